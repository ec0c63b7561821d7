package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"bookwyrm/pkg/domain"
)

type credentialsRequest struct {
	ActionType string `json:"actionType"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// readCredentials accepts either a JSON body or a classic form post, since
// the login page submits forms while API clients send JSON.
func readCredentials(r *http.Request) (credentialsRequest, bool, error) {
	if isJSONRequest(r) {
		var req credentialsRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			return credentialsRequest{}, true, err
		}
		return req, true, nil
	}
	if err := r.ParseForm(); err != nil {
		return credentialsRequest{}, false, err
	}
	return credentialsRequest{
		ActionType: r.PostFormValue("actionType"),
		Name:       r.PostFormValue("name"),
		Email:      r.PostFormValue("email"),
		Password:   r.PostFormValue("password"),
	}, false, nil
}

func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

// handleLogin serves POST /login. The actionType field selects between
// signing in and creating an account; both open a session on success.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	req, wantsJSON, err := readCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	action := strings.TrimSpace(req.ActionType)
	if action == "" {
		action = "login"
	}
	switch action {
	case "login":
		if !s.allowRate(w, r, s.loginLimiter, "login", "too many login attempts") {
			s.audit(r, "auth.login", "rate_limited")
			return
		}
		user, token, err := s.app.Login(req.Email, req.Password)
		if err != nil {
			s.audit(r, "auth.login", "fail", "reason", err.Error())
			s.writeAppError(w, r, err)
			return
		}
		s.audit(r, "auth.login", "success", "user_id", user.ID)
		s.finishAuth(w, r, user, token, wantsJSON, http.StatusOK)
	case "register":
		if !s.allowRate(w, r, s.registerLimiter, "register", "too many registration attempts") {
			s.audit(r, "auth.register", "rate_limited")
			return
		}
		user, token, err := s.app.Register(req.Name, req.Email, req.Password)
		if err != nil {
			s.audit(r, "auth.register", "fail", "reason", err.Error())
			s.writeAppError(w, r, err)
			return
		}
		s.audit(r, "auth.register", "success", "user_id", user.ID)
		s.finishAuth(w, r, user, token, wantsJSON, http.StatusCreated)
	default:
		writeError(w, http.StatusBadRequest, "unknown actionType")
	}
}

func (s *Server) finishAuth(w http.ResponseWriter, r *http.Request, user domain.User, token string, wantsJSON bool, status int) {
	http.SetCookie(w, s.app.Sessions().Cookie(token, s.secureCookies))
	if wantsJSON {
		writeJSON(w, status, map[string]any{"user": user})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout serves POST /logout: it revokes the server-side session,
// clears the cookie, and sends the browser back to the login page.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.Logout(r.Header.Get("Cookie")); err != nil {
		s.audit(r, "auth.logout", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.logout", "success")
	http.SetCookie(w, s.app.Sessions().ExpiredCookie(s.secureCookies))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// handleMyReviews serves GET /reviews, the signed-in user's own reviews.
func (s *Server) handleMyReviews(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	reviews, err := s.app.ReviewsByUser(user.ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reviews": reviews,
		"count":   len(reviews),
	})
}
