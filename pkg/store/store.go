package store

import (
	"errors"

	"bookwyrm/pkg/domain"
)

var (
	// ErrDuplicateReview is returned when a user already reviewed the book.
	ErrDuplicateReview = errors.New("user has already reviewed this book")

	// ErrBookHasReviews blocks deleting a book that reviews still reference.
	ErrBookHasReviews = errors.New("book has associated reviews")

	// ErrUserHasReviews blocks deleting a user that reviews still reference.
	ErrUserHasReviews = errors.New("user has associated reviews")
)

// RatingSummary aggregates the reviews of one book.
type RatingSummary struct {
	Count   int     `json:"reviewCount"`
	Average float64 `json:"averageRating"`
}

// ListParams control pagination and ordering of review listings.
// Sort must already be validated against the column whitelist by the caller.
// Limit <= 0 disables paging.
type ListParams struct {
	Page  int
	Limit int
	Sort  string
	Order string
}

// Store defines persistence operations for users, books, and reviews.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	DeleteUser(id string) error

	// books
	SaveBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	ListBooks() ([]domain.Book, error)
	SetBookCover(id, coverKey string) error
	DeleteBook(id string) error
	ReviewStats() (map[string]RatingSummary, error)

	// reviews
	HasUserReviewForBook(userID, bookID string) (bool, error)
	AddReview(domain.Review) (domain.User, error)
	GetReview(id string) (domain.Review, bool, error)
	SaveReview(domain.Review) error
	DeleteReview(id string) error
	ListReviews(p ListParams) ([]domain.ReviewWithRefs, int, error)
	CountReviewsByUser(userID string) (int, error)
}

// SessionStore persists server-side session records.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDBySession(sid string) (string, bool, error)
	DeleteSession(sid string) error
}
