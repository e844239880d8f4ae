package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vrsandeep/vmfa-addons/internal/auth"
	"github.com/vrsandeep/vmfa-addons/internal/models"
	"github.com/vrsandeep/vmfa-addons/internal/store"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authenticate checks the credentials and opens a session.
func (s *Server) authenticate(c credentials) (*models.User, string, bool) {
	user, err := s.store.GetUserByUsername(c.Username)
	if err != nil || !auth.CheckPasswordHash(c.Password, user.PasswordHash) {
		return nil, "", false
	}
	token, err := s.store.CreateSession(user.ID)
	if err != nil {
		s.logger.Error("failed to create session", zap.String("username", user.Username), zap.Error(err))
		return nil, "", false
	}
	return user, token, true
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Expires:  time.Now().Add(store.SessionTTL),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleLogin accepts a JSON body or the login form. Form submissions are
// answered with redirects, JSON with status codes.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if isFormRequest(r) {
		s.handleLoginForm(w, r)
		return
	}

	var payload credentials
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, token, ok := s.authenticate(payload)
	if !ok {
		RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	setSessionCookie(w, r, token)
	RespondWithJSON(w, http.StatusOK, user)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.PostFormValue("next"))
	_, token, ok := s.authenticate(credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	})
	if !ok {
		http.Redirect(w, r, "/login?error=1&next="+url.QueryEscape(next), http.StatusSeeOther)
		return
	}
	setSessionCookie(w, r, token)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if session := getSessionFromContext(r); session != "" {
		s.store.DeleteSession(session)
	}
	clearSessionCookie(w, r)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLogoutForm(w http.ResponseWriter, r *http.Request) {
	if session := getSessionFromContext(r); session != "" {
		s.store.DeleteSession(session)
	}
	clearSessionCookie(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		RespondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	RespondWithJSON(w, http.StatusOK, user)
}

type loginPage struct {
	Title string
	User  *models.User
	Error bool
	Next  string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))
	if user := getUserFromContext(r); user != nil && user.IsAdmin() {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}
	s.renderPage(w, http.StatusOK, "login.html", loginPage{
		Title: "Sign in",
		Error: r.URL.Query().Get("error") != "",
		Next:  next,
	})
}

func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

// safeNext only allows local absolute paths as post-login targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return addonsPagePath
	}
	return next
}
