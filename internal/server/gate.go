package server

import (
	"net/http"

	"bookwyrm/pkg/domain"
)

// authHandler receives the resolved user alongside the request. The user is
// always re-read from the database; the cookie only points at a session.
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) currentUser(r *http.Request) (domain.User, bool) {
	return s.app.UserFromCookie(r.Header.Get("Cookie"))
}

// authenticated guards a JSON API route. Anonymous callers get 401.
func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.currentUser(r)
		if !ok {
			s.audit(r, "session.resolve", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// adminOnly guards a JSON API route that requires the admin flag on the
// persisted user row. Anonymous callers get 401, non-admins 403.
func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.currentUser(r)
		if !ok {
			s.audit(r, "admin.authorize", "fail", "reason", "no_session")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !user.IsAdmin {
			s.audit(r, "admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		s.audit(r, "admin.authorize", "success", "user_id", user.ID)
		next(w, r, user)
	})
}

// authenticatedPage guards a page-style route. Denied requests are sent back
// to the login page instead of getting a JSON error.
func (s *Server) authenticatedPage(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.currentUser(r)
		if !ok {
			s.audit(r, "session.resolve", "fail")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r, user)
	})
}

// adminPage guards an admin page-style route. Both anonymous and non-admin
// callers land on the login page; the grid never reveals whether the account
// merely lacks the admin flag.
func (s *Server) adminPage(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.currentUser(r)
		if !ok {
			s.audit(r, "admin.authorize", "fail", "reason", "no_session")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if !user.IsAdmin {
			s.audit(r, "admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		s.audit(r, "admin.authorize", "success", "user_id", user.ID)
		next(w, r, user)
	})
}
