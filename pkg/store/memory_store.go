package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"bookwyrm/pkg/domain"
)

// MemoryStore keeps all records in-process. It is the test double for Store
// and mirrors the transactional behavior of GormStore under its lock.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	email   map[string]string // email -> user ID
	books   map[string]domain.Book
	reviews map[string]domain.Review
	order   []string // review IDs in insertion order
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		email:   make(map[string]string),
		books:   make(map[string]domain.Book),
		reviews: make(map[string]domain.Review),
	}
}

// SaveUser stores or replaces a user record.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsers returns all users ordered by name.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// DeleteUser removes a user unless reviews still reference it.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.UserID == id {
			return ErrUserHasReviews
		}
	}
	if u, ok := m.users[id]; ok {
		delete(m.email, u.Email)
		delete(m.users, id)
	}
	return nil
}

// SaveBook stores or replaces a book record, preserving any cover key.
func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.books[b.ID]; ok && b.CoverKey == "" {
		b.CoverKey = prev.CoverKey
	}
	m.books[b.ID] = b
	return nil
}

// GetBook retrieves a book.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooks returns all books ordered by title.
func (m *MemoryStore) ListBooks() ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Title < res[j].Title })
	return res, nil
}

// SetBookCover records the cover key for a book.
func (m *MemoryStore) SetBookCover(id, coverKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil
	}
	b.CoverKey = coverKey
	b.UpdatedAt = time.Now().UTC()
	m.books[id] = b
	return nil
}

// DeleteBook removes a book unless reviews still reference it.
func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.BookID == id {
			return ErrBookHasReviews
		}
	}
	delete(m.books, id)
	return nil
}

// ReviewStats aggregates review count and average rating per book.
func (m *MemoryStore) ReviewStats() (map[string]RatingSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, r := range m.reviews {
		sums[r.BookID] += r.Rating
		counts[r.BookID]++
	}
	stats := make(map[string]RatingSummary, len(counts))
	for id, count := range counts {
		stats[id] = RatingSummary{
			Count:   count,
			Average: float64(sums[id]) / float64(count),
		}
	}
	return stats, nil
}

// HasUserReviewForBook reports whether the user already reviewed the book.
func (m *MemoryStore) HasUserReviewForBook(userID, bookID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasReviewLocked(userID, bookID), nil
}

func (m *MemoryStore) hasReviewLocked(userID, bookID string) bool {
	for _, r := range m.reviews {
		if r.UserID == userID && r.BookID == bookID {
			return true
		}
	}
	return false
}

// AddReview inserts the review and applies the tier upgrade atomically.
func (m *MemoryStore) AddReview(review domain.Review) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasReviewLocked(review.UserID, review.BookID) {
		return domain.User{}, ErrDuplicateReview
	}
	m.reviews[review.ID] = review
	m.order = append(m.order, review.ID)
	count := 0
	for _, r := range m.reviews {
		if r.UserID == review.UserID {
			count++
		}
	}
	author := m.users[review.UserID]
	if count >= domain.PremierReviewThreshold && author.Tier != domain.TierPremier {
		author.Tier = domain.TierPremier
		author.UpdatedAt = time.Now().UTC()
		m.users[review.UserID] = author
	}
	return author, nil
}

// GetReview retrieves one review.
func (m *MemoryStore) GetReview(id string) (domain.Review, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reviews[id]
	return r, ok, nil
}

// SaveReview stores or replaces a review.
func (m *MemoryStore) SaveReview(review domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[review.ID]; !ok {
		m.order = append(m.order, review.ID)
	}
	m.reviews[review.ID] = review
	return nil
}

// DeleteReview removes one review.
func (m *MemoryStore) DeleteReview(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reviews, id)
	return nil
}

// ListReviews returns one page of reviews with reviewer/book display fields.
func (m *MemoryStore) ListReviews(p ListParams) ([]domain.ReviewWithRefs, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]domain.ReviewWithRefs, 0, len(m.reviews))
	for _, id := range m.order {
		r, ok := m.reviews[id]
		if !ok {
			continue
		}
		all = append(all, domain.ReviewWithRefs{
			Review:    r,
			UserName:  m.users[r.UserID].Name,
			BookTitle: m.books[r.BookID].Title,
		})
	}
	less := sortFunc(p.Sort, all)
	asc := strings.EqualFold(p.Order, "asc")
	sort.SliceStable(all, func(i, j int) bool {
		if asc {
			return less(i, j)
		}
		return less(j, i)
	})
	total := len(all)
	if p.Limit <= 0 {
		return all, total, nil
	}
	start := (p.Page - 1) * p.Limit
	if start >= total {
		return []domain.ReviewWithRefs{}, total, nil
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func sortFunc(column string, all []domain.ReviewWithRefs) func(i, j int) bool {
	switch column {
	case "rating":
		return func(i, j int) bool { return all[i].Rating < all[j].Rating }
	case "updated_at":
		return func(i, j int) bool { return all[i].UpdatedAt.Before(all[j].UpdatedAt) }
	default:
		return func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) }
	}
}

// CountReviewsByUser returns the user's review count.
func (m *MemoryStore) CountReviewsByUser(userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, r := range m.reviews {
		if r.UserID == userID {
			count++
		}
	}
	return count, nil
}
