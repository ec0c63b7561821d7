package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookwyrm/pkg/domain"
	"bookwyrm/pkg/storage"
	"bookwyrm/pkg/store"
)

const coverURLExpiry = 15 * time.Minute

// BookWithStats is a book decorated with its review aggregate and, when a
// cover exists, a short-lived presigned URL for it.
type BookWithStats struct {
	domain.Book
	store.RatingSummary
	CoverURL string `json:"coverUrl,omitempty"`
}

// ListBooks returns all books sorted by title with their review aggregates.
func (a *App) ListBooks(ctx context.Context) ([]BookWithStats, error) {
	books, err := a.store.ListBooks()
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	stats, err := a.store.ReviewStats()
	if err != nil {
		return nil, fmt.Errorf("review stats: %w", err)
	}
	res := make([]BookWithStats, 0, len(books))
	for _, b := range books {
		res = append(res, a.decorateBook(ctx, b, stats[b.ID]))
	}
	return res, nil
}

// GetBook returns one book with its review aggregate.
func (a *App) GetBook(ctx context.Context, id string) (BookWithStats, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return BookWithStats{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return BookWithStats{}, ErrNotFound
	}
	stats, err := a.store.ReviewStats()
	if err != nil {
		return BookWithStats{}, fmt.Errorf("review stats: %w", err)
	}
	return a.decorateBook(ctx, book, stats[book.ID]), nil
}

func (a *App) decorateBook(ctx context.Context, b domain.Book, summary store.RatingSummary) BookWithStats {
	out := BookWithStats{Book: b, RatingSummary: summary}
	if b.CoverKey != "" && a.covers != nil {
		if url, err := a.covers.PresignGet(ctx, b.CoverKey, coverURLExpiry); err == nil {
			out.CoverURL = url
		}
	}
	return out
}

// CreateBook registers a new book. The ID may be supplied by the caller
// (the admin grid generates its own row IDs) or is generated here.
func (a *App) CreateBook(id, title, author, isbn string) (domain.Book, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" || author == "" {
		return domain.Book{}, fmt.Errorf("%w: title and author are required", ErrValidation)
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	book := domain.Book{
		ID:        id,
		Title:     title,
		Author:    author,
		ISBN:      strings.TrimSpace(isbn),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// UpdateBook edits title/author/isbn of an existing book.
func (a *App) UpdateBook(id, title, author, isbn string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" || author == "" {
		return domain.Book{}, fmt.Errorf("%w: title and author are required", ErrValidation)
	}
	book.Title = title
	book.Author = author
	book.ISBN = strings.TrimSpace(isbn)
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// DeleteBook removes a book; deletion is blocked while reviews reference it.
func (a *App) DeleteBook(ctx context.Context, id string) error {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := a.store.DeleteBook(id); err != nil {
		return err
	}
	if book.CoverKey != "" && a.covers != nil {
		_ = a.covers.Delete(ctx, book.CoverKey)
	}
	return nil
}

// AttachCover stores a cover image for the book and records its key.
func (a *App) AttachCover(ctx context.Context, bookID string, r io.Reader, size int64, contentType string) error {
	if a.covers == nil {
		return fmt.Errorf("%w: cover storage is not configured", ErrValidation)
	}
	if !storage.AllowedCoverType(contentType) {
		return fmt.Errorf("%w: unsupported cover content type %q", ErrValidation, contentType)
	}
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	key := "covers/" + bookID + "/" + uuid.NewString()
	if err := a.covers.Put(ctx, key, r, size, contentType); err != nil {
		return fmt.Errorf("store cover: %w", err)
	}
	if err := a.store.SetBookCover(bookID, key); err != nil {
		return fmt.Errorf("record cover key: %w", err)
	}
	if book.CoverKey != "" {
		_ = a.covers.Delete(ctx, book.CoverKey)
	}
	return nil
}

// CoverURL returns a presigned URL for the book's cover.
func (a *App) CoverURL(ctx context.Context, bookID string) (string, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return "", fmt.Errorf("fetch book: %w", err)
	}
	if !ok || book.CoverKey == "" {
		return "", ErrNotFound
	}
	if a.covers == nil {
		return "", ErrNotFound
	}
	url, err := a.covers.PresignGet(ctx, book.CoverKey, coverURLExpiry)
	if err != nil {
		return "", fmt.Errorf("presign cover: %w", err)
	}
	return url, nil
}
