package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookwyrm/pkg/domain"
)

const migrateLockID int64 = 84218421

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BookModel{}, &ReviewModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		// Reviews block deletion of the user/book they reference.
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'review_models'
					AND constraint_name = 'review_models_user_id_fkey'
				) THEN
					ALTER TABLE review_models
					ADD CONSTRAINT review_models_user_id_fkey
					FOREIGN KEY (user_id) REFERENCES user_models(id) ON DELETE RESTRICT;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'review_models'
					AND constraint_name = 'review_models_book_id_fkey'
				) THEN
					ALTER TABLE review_models
					ADD CONSTRAINT review_models_book_id_fkey
					FOREIGN KEY (book_id) REFERENCES book_models(id) ON DELETE RESTRICT;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure review foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "tier", "is_admin", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by name.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// DeleteUser removes a user unless reviews still reference it.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ReviewModel{}).Where("user_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUserHasReviews
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
}

// SaveBook stores or updates a book.
func (s *GormStore) SaveBook(b domain.Book) error {
	model := bookToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "author", "isbn", "updated_at"}),
	}).Create(&model).Error
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns all books ordered by title.
func (s *GormStore) ListBooks() ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Order("title ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// SetBookCover records the object-storage key of the book cover.
func (s *GormStore) SetBookCover(id, coverKey string) error {
	return s.db.Model(&BookModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"cover_key":  coverKey,
			"updated_at": time.Now().UTC(),
		}).Error
}

// DeleteBook removes a book unless reviews still reference it.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ReviewModel{}).Where("book_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrBookHasReviews
		}
		return tx.Delete(&BookModel{}, "id = ?", id).Error
	})
}

// ReviewStats aggregates review count and average rating per book.
func (s *GormStore) ReviewStats() (map[string]RatingSummary, error) {
	var rows []struct {
		BookID  string
		Count   int
		Average float64
	}
	if err := s.db.Model(&ReviewModel{}).
		Select("book_id, COUNT(*) AS count, AVG(rating) AS average").
		Group("book_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	stats := make(map[string]RatingSummary, len(rows))
	for _, row := range rows {
		stats[row.BookID] = RatingSummary{Count: row.Count, Average: row.Average}
	}
	return stats, nil
}

// HasUserReviewForBook reports whether the user already reviewed the book.
func (s *GormStore) HasUserReviewForBook(userID, bookID string) (bool, error) {
	var count int64
	if err := s.db.Model(&ReviewModel{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddReview inserts the review and applies the tier upgrade in one
// transaction. It re-checks for a duplicate inside the transaction and
// returns the author's refreshed row.
func (s *GormStore) AddReview(review domain.Review) (domain.User, error) {
	var author UserModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ReviewModel{}).
			Where("user_id = ? AND book_id = ?", review.UserID, review.BookID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateReview
		}
		model := reviewToModel(review)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if err := tx.Model(&ReviewModel{}).
			Where("user_id = ?", review.UserID).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= domain.PremierReviewThreshold {
			if err := tx.Model(&UserModel{}).
				Where("id = ? AND tier <> ?", review.UserID, string(domain.TierPremier)).
				Updates(map[string]any{
					"tier":       string(domain.TierPremier),
					"updated_at": time.Now().UTC(),
				}).Error; err != nil {
				return err
			}
		}
		return tx.First(&author, "id = ?", review.UserID).Error
	})
	if err != nil {
		return domain.User{}, err
	}
	return userFromModel(author), nil
}

// GetReview retrieves one review.
func (s *GormStore) GetReview(id string) (domain.Review, bool, error) {
	var model ReviewModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Review{}, false, nil
		}
		return domain.Review{}, false, err
	}
	return reviewFromModel(model), true, nil
}

// SaveReview stores or updates a review.
func (s *GormStore) SaveReview(review domain.Review) error {
	model := reviewToModel(review)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "review", "updated_at"}),
	}).Create(&model).Error
}

// DeleteReview removes one review.
func (s *GormStore) DeleteReview(id string) error {
	return s.db.Delete(&ReviewModel{}, "id = ?", id).Error
}

// ListReviews returns one page of reviews joined with reviewer and book
// display fields, plus the total count. The sort column must come from the
// caller's whitelist.
func (s *GormStore) ListReviews(p ListParams) ([]domain.ReviewWithRefs, int, error) {
	var total int64
	if err := s.db.Model(&ReviewModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := "DESC"
	if p.Order == "asc" {
		order = "ASC"
	}
	sort := p.Sort
	if sort == "" {
		sort = "created_at"
	}
	var rows []struct {
		ReviewModel
		UserName  string
		BookTitle string
	}
	q := s.db.Model(&ReviewModel{}).
		Select("review_models.*, user_models.name AS user_name, book_models.title AS book_title").
		Joins("JOIN user_models ON user_models.id = review_models.user_id").
		Joins("JOIN book_models ON book_models.id = review_models.book_id").
		Order(fmt.Sprintf("review_models.%s %s", sort, order))
	if p.Limit > 0 {
		q = q.Offset((p.Page - 1) * p.Limit).Limit(p.Limit)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.ReviewWithRefs, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.ReviewWithRefs{
			Review:    reviewFromModel(row.ReviewModel),
			UserName:  row.UserName,
			BookTitle: row.BookTitle,
		})
	}
	return res, int(total), nil
}

// CountReviewsByUser returns the user's review count.
func (s *GormStore) CountReviewsByUser(userID string) (int, error) {
	var count int64
	if err := s.db.Model(&ReviewModel{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Tier:         string(u.Tier),
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	tier := domain.UserTier(m.Tier)
	if tier == "" {
		tier = domain.TierBasic
	}
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Tier:         tier,
		IsAdmin:      m.IsAdmin,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		ISBN:      b.ISBN,
		CoverKey:  b.CoverKey,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:        m.ID,
		Title:     m.Title,
		Author:    m.Author,
		ISBN:      m.ISBN,
		CoverKey:  m.CoverKey,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func reviewToModel(r domain.Review) ReviewModel {
	return ReviewModel{
		ID:        r.ID,
		UserID:    r.UserID,
		BookID:    r.BookID,
		Rating:    r.Rating,
		Review:    r.Review,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func reviewFromModel(m ReviewModel) domain.Review {
	return domain.Review{
		ID:        m.ID,
		UserID:    m.UserID,
		BookID:    m.BookID,
		Rating:    m.Rating,
		Review:    m.Review,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
