package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vrsandeep/vmfa-addons/internal/api"
	"github.com/vrsandeep/vmfa-addons/internal/auth"
)

// GetAuthCookie creates a user, logs them in, and returns a valid session cookie.
func GetAuthCookie(t *testing.T, s *api.Server, username, password, role string) *http.Cookie {
	t.Helper()

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password for test user: %v", err)
	}
	if _, err := s.Store().CreateUser(username, passwordHash, role); err != nil {
		t.Fatalf("Failed to create test user '%s': %v", username, err)
	}

	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, _ := http.NewRequest("POST", "/api/users/login", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Login failed within test helper for user '%s': got status %d, want 200", username, rr.Code)
	}

	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == "session_token" {
			return cookie
		}
	}
	t.Fatal("Failed to get session cookie after successful login for test user")
	return nil
}

// CookieForUser is GetAuthCookie that removes the user when the test ends.
func CookieForUser(t *testing.T, server *api.Server, username, password, role string) *http.Cookie {
	t.Helper()
	cookie := GetAuthCookie(t, server, username, password, role)
	t.Cleanup(func() {
		if user, err := server.Store().GetUserByUsername(username); err == nil {
			server.Store().DeleteUser(user.ID)
		}
	})
	return cookie
}
