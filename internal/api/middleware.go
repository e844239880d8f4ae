package api

// This file contains the middleware for handling authentication and role-based authorization.

import (
	"context"
	"net/http"
	"net/url"

	"github.com/vrsandeep/vmfa-addons/internal/models"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey string

const (
	userContextKey    = contextKey("user")
	sessionContextKey = contextKey("session")
	sessionCookieName = "session_token"
)

// AuthMiddleware verifies a user's session and injects the user into the
// request context. Requests without a valid session get a JSON 401.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			RespondWithError(w, http.StatusUnauthorized, "Unauthorized: No session token")
			return
		}

		user, err := s.store.GetUserFromSession(cookie.Value)
		if err != nil {
			RespondWithError(w, http.StatusUnauthorized, "Unauthorized: Invalid session")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user, cookie.Value)))
	})
}

// AdminOnlyMiddleware ensures only users with the 'admin' role can access a route.
// It must be chained *after* the AuthMiddleware.
func (s *Server) AdminOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := getUserFromContext(r)
		if user == nil {
			RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if !user.IsAdmin() {
			RespondWithError(w, http.StatusForbidden, "Forbidden: Administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionMiddleware loads the session user when there is one and lets
// anonymous requests through.
func (s *Server) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			if user, err := s.store.GetUserFromSession(cookie.Value); err == nil {
				r = r.WithContext(withUser(r.Context(), user, cookie.Value))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// AdminPageMiddleware sends anonymous visitors to the login page and
// answers non-admins with the blocking error page. It must be chained
// after SessionMiddleware.
func (s *Server) AdminPageMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := getUserFromContext(r)
		if user == nil {
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
			return
		}
		if !user.IsAdmin() {
			s.renderErrorPage(w, http.StatusForbidden, "You do not have permission to access this page.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withUser(ctx context.Context, user *models.User, session string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, sessionContextKey, session)
}

// getUserFromContext is a helper function to safely retrieve the user object from the request context.
// It returns nil if the user is not found in the context.
func getUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

func getSessionFromContext(r *http.Request) string {
	session, _ := r.Context().Value(sessionContextKey).(string)
	return session
}
