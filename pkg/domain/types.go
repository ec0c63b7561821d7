package domain

import "time"

type UserTier string

const (
	TierBasic   UserTier = "BASIC"
	TierPremier UserTier = "PREMIER"
)

// PremierReviewThreshold is the review count at which a user's tier is
// upgraded to PREMIER.
const PremierReviewThreshold = 3

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Tier         UserTier  `json:"tier"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	ISBN      string    `json:"isbn,omitempty"`
	CoverKey  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId"`
	Rating    int       `json:"rating"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReviewWithRefs is a review joined with the display fields listings need.
type ReviewWithRefs struct {
	Review
	UserName  string `json:"userName"`
	BookTitle string `json:"bookTitle"`
}
