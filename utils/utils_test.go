package utils

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dashboard/config"
	"dashboard/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testManager() *TokenManager {
	return NewTokenManager(config.SessionConfig{
		Secret:          "test-secret",
		Issuer:          "dashboard",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 12 * time.Hour,
	})
}

func TestTokenRoundTrip(t *testing.T) {
	tm := testManager()
	pair, err := tm.GenerateTokens("sess-1", model.RoleManager)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(pair.AccessToken, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, model.RoleManager, claims.Role)

	_, err = tm.ValidateToken(pair.AccessToken, RefreshToken)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)

	_, err = tm.ValidateToken(pair.AccessToken+"x", AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	other := NewTokenManager(config.SessionConfig{Secret: "other", Issuer: "dashboard", AccessTokenTTL: time.Minute})
	_, err = other.ValidateToken(pair.AccessToken, AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenExpiry(t *testing.T) {
	tm := testManager()
	now := time.Now()
	tm.now = func() time.Time { return now }
	pair, err := tm.GenerateTokens("sess-1", model.RoleAdmin)
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)
	_, err = tm.ValidateToken(pair.AccessToken, AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	fresh, claims, err := tm.RefreshTokens(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	_, err = tm.ValidateToken(fresh.AccessToken, AccessToken)
	assert.NoError(t, err)

	_, _, err = tm.RefreshTokens(pair.AccessToken)
	assert.Error(t, err)
}

func TestSealer(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	s, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("backend-token"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "backend-token")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "backend-token", string(plain))

	sealed[len(sealed)-1] ^= 0xff
	_, err = s.Open(sealed)
	assert.Error(t, err)

	_, err = s.Open([]byte("short"))
	assert.ErrorIs(t, err, ErrSealedTooShort)

	_, err = NewSealer([]byte("short"))
	assert.Error(t, err)
}

func TestIPLimiter(t *testing.T) {
	l := NewIPLimiter(60, 2)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("1.1.1.1"))

	now = now.Add(time.Hour)
	l.Allow("3.3.3.3")
	assert.Len(t, l.clients, 1)
}

func TestMiddleware(t *testing.T) {
	tm := testManager()
	pair, err := tm.GenerateTokens("sess-9", model.RoleManager)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/manager", TokenMiddleware(tm, "dash_token"), RoleMiddleware(model.RoleManager), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.SessionID)
	})
	r.GET("/admin", TokenMiddleware(tm, "dash_token"), RoleMiddleware(model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		name   string
		path   string
		header string
		cookie string
		want   int
	}{
		{"bearer", "/manager", "Bearer " + pair.AccessToken, "", http.StatusOK},
		{"cookie", "/manager", "", pair.AccessToken, http.StatusOK},
		{"missing", "/manager", "", "", http.StatusUnauthorized},
		{"bad format", "/manager", pair.AccessToken, "", http.StatusUnauthorized},
		{"refresh token", "/manager", "Bearer " + pair.RefreshToken, "", http.StatusUnauthorized},
		{"wrong role", "/admin", "Bearer " + pair.AccessToken, "", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "dash_token", Value: tc.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusOK && tc.path == "/manager" {
				assert.Equal(t, "sess-9", w.Body.String())
			}
		})
	}
}
