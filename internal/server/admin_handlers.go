package server

import (
	"net/http"
	"strconv"
	"strings"

	"bookwyrm/pkg/domain"
)

// The admin grids post classic forms with an actionType discriminator and
// answer every successful mutation with {"success": true}.

func (s *Server) handleAdminBooks(w http.ResponseWriter, r *http.Request, _ domain.User) {
	switch r.Method {
	case http.MethodGet:
		books, err := s.app.ListBooks(r.Context())
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"books": books})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		switch r.PostFormValue("actionType") {
		case "create":
			_, err := s.app.CreateBook(
				r.PostFormValue("id"),
				r.PostFormValue("title"),
				r.PostFormValue("author"),
				r.PostFormValue("isbn"),
			)
			s.writeActionResult(w, r, http.StatusCreated, err)
		case "update":
			_, err := s.app.UpdateBook(
				r.PostFormValue("id"),
				r.PostFormValue("title"),
				r.PostFormValue("author"),
				r.PostFormValue("isbn"),
			)
			s.writeActionResult(w, r, http.StatusOK, err)
		case "delete":
			err := s.app.DeleteBook(r.Context(), r.PostFormValue("id"))
			s.writeActionResult(w, r, http.StatusOK, err)
		default:
			writeError(w, http.StatusBadRequest, "unknown actionType")
		}
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	switch r.Method {
	case http.MethodGet:
		users, err := s.app.ListUsers()
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		switch r.PostFormValue("actionType") {
		case "create":
			_, err := s.app.AdminCreateUser(
				r.PostFormValue("id"),
				r.PostFormValue("name"),
				r.PostFormValue("email"),
				domain.UserTier(r.PostFormValue("tier")),
				parseCheckbox(r.PostFormValue("isAdmin")),
			)
			s.writeActionResult(w, r, http.StatusCreated, err)
		case "update":
			_, err := s.app.AdminUpdateUser(
				r.PostFormValue("id"),
				r.PostFormValue("name"),
				r.PostFormValue("email"),
				domain.UserTier(r.PostFormValue("tier")),
				parseCheckbox(r.PostFormValue("isAdmin")),
			)
			s.writeActionResult(w, r, http.StatusOK, err)
		case "delete":
			err := s.app.AdminDeleteUser(r.PostFormValue("id"))
			s.writeActionResult(w, r, http.StatusOK, err)
		default:
			writeError(w, http.StatusBadRequest, "unknown actionType")
		}
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAdminReviews(w http.ResponseWriter, r *http.Request, admin domain.User) {
	switch r.Method {
	case http.MethodGet:
		reviews, err := s.app.AllReviews()
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		rating, _ := strconv.Atoi(r.PostFormValue("rating"))
		switch r.PostFormValue("actionType") {
		case "create":
			// Reviews created from the grid still count toward the named
			// user's tier, so resolve that user first.
			author, err := s.app.GetUser(r.PostFormValue("userId"))
			if err != nil {
				s.writeAppError(w, r, err)
				return
			}
			_, _, err = s.app.CreateReview(author, r.PostFormValue("bookId"), rating, r.PostFormValue("review"))
			s.writeActionResult(w, r, http.StatusCreated, err)
		case "update":
			_, err := s.app.UpdateReview(admin, r.PostFormValue("id"), rating, r.PostFormValue("review"))
			s.writeActionResult(w, r, http.StatusOK, err)
		case "delete":
			err := s.app.DeleteReview(admin, r.PostFormValue("id"))
			s.writeActionResult(w, r, http.StatusOK, err)
		default:
			writeError(w, http.StatusBadRequest, "unknown actionType")
		}
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) writeActionResult(w http.ResponseWriter, r *http.Request, okStatus int, err error) {
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, okStatus, map[string]any{"success": true})
}

func parseCheckbox(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "on", "1", "yes":
		return true
	default:
		return false
	}
}
