package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/vmfa-addons/internal/models"
	"github.com/vrsandeep/vmfa-addons/internal/testutil"
)

func TestAuthHandlers(t *testing.T) {
	server, _, _ := testutil.SetupTestServer(t)
	router := server.Router()

	testutil.GetAuthCookie(t, server, "testuser", "password123", models.RoleUser)

	t.Run("Successful Login", func(t *testing.T) {
		payload := `{"username":"testuser", "password":"password123"}`
		req, _ := http.NewRequest("POST", "/api/users/login", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var found *http.Cookie
		for _, cookie := range rr.Result().Cookies() {
			if cookie.Name == "session_token" {
				found = cookie
			}
		}
		require.NotNil(t, found, "session_token cookie not found in response")
		assert.NotEmpty(t, found.Value)
		assert.True(t, found.HttpOnly)
	})

	t.Run("Login with Wrong Password", func(t *testing.T) {
		payload := `{"username":"testuser", "password":"wrongpassword"}`
		req, _ := http.NewRequest("POST", "/api/users/login", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Form Login Redirects", func(t *testing.T) {
		form := url.Values{"username": {"testuser"}, "password": {"password123"}, "next": {"/admin/addons"}}
		req, _ := http.NewRequest("POST", "/api/users/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/admin/addons", rr.Header().Get("Location"))
	})

	t.Run("Form Login Failure Keeps Next Local", func(t *testing.T) {
		form := url.Values{"username": {"testuser"}, "password": {"nope"}, "next": {"//evil.example"}}
		req, _ := http.NewRequest("POST", "/api/users/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/login?error=1&next=%2Fadmin%2Faddons", rr.Header().Get("Location"))
	})

	t.Run("Get Me (Authenticated)", func(t *testing.T) {
		userCookie := testutil.GetAuthCookie(t, server, "getme_user", "password", models.RoleUser)

		req, _ := http.NewRequest("GET", "/api/users/me", nil)
		req.AddCookie(userCookie)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var user models.User
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
		assert.Equal(t, "getme_user", user.Username)
		assert.NotContains(t, rr.Body.String(), "password")
	})

	t.Run("Get Me (Unauthenticated)", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/api/users/me", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Logout", func(t *testing.T) {
		cookie := testutil.GetAuthCookie(t, server, "logout_user", "password", models.RoleUser)

		req, _ := http.NewRequest("POST", "/api/users/logout", nil)
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		req, _ = http.NewRequest("GET", "/api/users/me", nil)
		req.AddCookie(cookie)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Login Page", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/login?error=1", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid username or password.")
		assert.Contains(t, rr.Body.String(), `name="next" value="/admin/addons"`)
	})
}
