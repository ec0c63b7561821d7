package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bookwyrm/pkg/domain"
)

type reviewRequest struct {
	BookID string `json:"bookId"`
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

// readReviewRequest accepts a JSON body or a form post.
func readReviewRequest(r *http.Request) (reviewRequest, error) {
	if isJSONRequest(r) {
		var req reviewRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			return reviewRequest{}, err
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return reviewRequest{}, err
	}
	rating, _ := strconv.Atoi(r.PostFormValue("rating"))
	return reviewRequest{
		BookID: r.PostFormValue("bookId"),
		Rating: rating,
		Review: r.PostFormValue("review"),
	}, nil
}

// handleReviews serves GET /api/reviews (public, paginated) and
// POST /api/reviews (signed-in users).
func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListReviews(w, r)
	case http.MethodPost:
		s.authenticated(s.handleCreateReview).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	result, err := s.app.ListReviews(page, limit, q.Get("sort"), q.Get("order"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	req, err := readReviewRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	review, author, err := s.app.CreateReview(user, req.BookID, req.Rating, req.Review)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	// The tier may have just changed, so return the refreshed author row.
	writeJSON(w, http.StatusCreated, map[string]any{
		"review": review,
		"user":   author,
	})
}

// handleReviewByID serves /api/reviews/{id}: public read, owner-or-admin
// edit and delete.
func (s *Server) handleReviewByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/reviews/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		review, err := s.app.GetReview(id)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, review)
	case http.MethodPut:
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			req, err := readReviewRequest(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			review, err := s.app.UpdateReview(user, id, req.Rating, req.Review)
			if err != nil {
				s.writeAppError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, review)
		}).ServeHTTP(w, r)
	case http.MethodDelete:
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			if err := s.app.DeleteReview(user, id); err != nil {
				s.writeAppError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}
