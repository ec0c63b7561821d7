package server

import (
	"net/http"
	"strings"

	"bookwyrm/pkg/domain"
)

// handleBooks serves GET /api/books, the public catalog with review
// aggregates and cover URLs.
func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.ListBooks(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

// handleBookByID serves /api/books/{id} and /api/books/{id}/cover.
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/books/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		if parts[1] != "cover" {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.handleCoverRedirect(w, r, id)
		case http.MethodPost:
			s.adminOnly(func(w http.ResponseWriter, r *http.Request, _ domain.User) {
				s.handleUploadCover(w, r, id)
			}).ServeHTTP(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	book, err := s.app.GetBook(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// handleCoverRedirect bounces the client to a short-lived presigned URL for
// the book's cover object.
func (s *Server) handleCoverRedirect(w http.ResponseWriter, r *http.Request, id string) {
	url, err := s.app.CoverURL(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleUploadCover(w http.ResponseWriter, r *http.Request, id string) {
	if s.maxCoverBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxCoverBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("cover")
	if err != nil {
		writeError(w, http.StatusBadRequest, "cover file is required (field: cover)")
		return
	}
	defer file.Close()
	contentType := header.Header.Get("Content-Type")
	if err := s.app.AttachCover(r.Context(), id, file, header.Size, contentType); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}
