package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookwyrm/pkg/domain"
	"bookwyrm/pkg/store"
)

const (
	defaultReviewPage  = 1
	defaultReviewLimit = 10
	maxReviewLimit     = 100
)

// reviewSortColumns whitelists the sortable review fields (request name ->
// storage column).
var reviewSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"rating":    "rating",
}

// ReviewPage is one page of reviews plus the pagination meta block.
type ReviewPage struct {
	Data []domain.ReviewWithRefs `json:"data"`
	Meta ReviewPageMeta          `json:"meta"`
}

type ReviewPageMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// ListReviews returns a page of reviews. Out-of-range paging values fall back
// to defaults; unknown sort fields are rejected.
func (a *App) ListReviews(page, limit int, sortField, order string) (ReviewPage, error) {
	if page <= 0 {
		page = defaultReviewPage
	}
	if limit <= 0 {
		limit = defaultReviewLimit
	}
	if limit > maxReviewLimit {
		limit = maxReviewLimit
	}
	if sortField == "" {
		sortField = "createdAt"
	}
	column, ok := reviewSortColumns[sortField]
	if !ok {
		return ReviewPage{}, fmt.Errorf("%w: cannot sort by %q", ErrValidation, sortField)
	}
	order = strings.ToLower(strings.TrimSpace(order))
	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		return ReviewPage{}, fmt.Errorf("%w: order must be asc or desc", ErrValidation)
	}
	data, total, err := a.store.ListReviews(store.ListParams{
		Page:  page,
		Limit: limit,
		Sort:  column,
		Order: order,
	})
	if err != nil {
		return ReviewPage{}, fmt.Errorf("list reviews: %w", err)
	}
	pages := (total + limit - 1) / limit
	return ReviewPage{
		Data: data,
		Meta: ReviewPageMeta{Total: total, Page: page, Limit: limit, Pages: pages},
	}, nil
}

// AllReviews returns every review with reviewer/book display fields, newest
// first. Used by the admin grid, which renders the full table.
func (a *App) AllReviews() ([]domain.ReviewWithRefs, error) {
	data, _, err := a.store.ListReviews(store.ListParams{Sort: "created_at", Order: "desc"})
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return data, nil
}

// ReviewsByUser returns the user's own reviews, newest first.
func (a *App) ReviewsByUser(userID string) ([]domain.ReviewWithRefs, error) {
	all, err := a.AllReviews()
	if err != nil {
		return nil, err
	}
	mine := make([]domain.ReviewWithRefs, 0, len(all))
	for _, r := range all {
		if r.UserID == userID {
			mine = append(mine, r)
		}
	}
	return mine, nil
}

// GetReview returns one review.
func (a *App) GetReview(id string) (domain.Review, error) {
	review, ok, err := a.store.GetReview(id)
	if err != nil {
		return domain.Review{}, fmt.Errorf("fetch review: %w", err)
	}
	if !ok {
		return domain.Review{}, ErrNotFound
	}
	return review, nil
}

// CreateReview records the author's review of a book. A user reviews a book
// at most once (pre-checked, then re-checked inside the write transaction).
// The author's 3rd review upgrades their tier to PREMIER atomically with the
// insert; later reviews leave the tier unchanged.
func (a *App) CreateReview(author domain.User, bookID string, rating int, text string) (domain.Review, domain.User, error) {
	text = strings.TrimSpace(text)
	if bookID == "" || text == "" {
		return domain.Review{}, domain.User{}, fmt.Errorf("%w: bookId and review text are required", ErrValidation)
	}
	if rating < 1 || rating > 5 {
		return domain.Review{}, domain.User{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	_, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Review{}, domain.User{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Review{}, domain.User{}, ErrNotFound
	}
	exists, err := a.store.HasUserReviewForBook(author.ID, bookID)
	if err != nil {
		return domain.Review{}, domain.User{}, fmt.Errorf("check existing review: %w", err)
	}
	if exists {
		return domain.Review{}, domain.User{}, store.ErrDuplicateReview
	}
	now := time.Now().UTC()
	review := domain.Review{
		ID:        uuid.NewString(),
		UserID:    author.ID,
		BookID:    bookID,
		Rating:    rating,
		Review:    text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	refreshed, err := a.store.AddReview(review)
	if err != nil {
		return domain.Review{}, domain.User{}, err
	}
	return review, refreshed, nil
}

// UpdateReview edits rating/text; allowed for the owner or an admin.
func (a *App) UpdateReview(actor domain.User, id string, rating int, text string) (domain.Review, error) {
	review, ok, err := a.store.GetReview(id)
	if err != nil {
		return domain.Review{}, fmt.Errorf("fetch review: %w", err)
	}
	if !ok {
		return domain.Review{}, ErrNotFound
	}
	if review.UserID != actor.ID && !actor.IsAdmin {
		return domain.Review{}, ErrForbidden
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Review{}, fmt.Errorf("%w: review text is required", ErrValidation)
	}
	if rating < 1 || rating > 5 {
		return domain.Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	review.Rating = rating
	review.Review = text
	review.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveReview(review); err != nil {
		return domain.Review{}, fmt.Errorf("save review: %w", err)
	}
	return review, nil
}

// DeleteReview removes a review; allowed for the owner or an admin.
func (a *App) DeleteReview(actor domain.User, id string) error {
	review, ok, err := a.store.GetReview(id)
	if err != nil {
		return fmt.Errorf("fetch review: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if review.UserID != actor.ID && !actor.IsAdmin {
		return ErrForbidden
	}
	return a.store.DeleteReview(id)
}
