package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	auth := NewSessionAuthenticator("test-secret", time.Hour, nil)

	token, err := auth.GenerateToken(&models.User{ID: 42, Role: models.RoleAdmin})
	require.NoError(t, err)

	identity, err := auth.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), identity.UserID)
	assert.True(t, identity.IsAdmin())
}

func TestValidateTokenRejectsForeignAndExpiredTokens(t *testing.T) {
	issuer := NewSessionAuthenticator("one-secret", time.Hour, nil)
	token, err := issuer.GenerateToken(&models.User{ID: 1, Role: models.RoleStudent})
	require.NoError(t, err)

	other := NewSessionAuthenticator("another-secret", time.Hour, nil)
	_, err = other.ValidateToken(token)
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidToken))

	expired := NewSessionAuthenticator("one-secret", time.Minute, nil)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.GenerateToken(&models.User{ID: 1, Role: models.RoleStudent})
	require.NoError(t, err)
	_, err = issuer.ValidateToken(old)
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	auth := NewSessionAuthenticator("test-secret", time.Hour, nil)
	token, err := auth.GenerateToken(&models.User{ID: 7, Role: models.RoleStudent})
	require.NoError(t, err)

	var seen Identity
	handler := auth.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	w = httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(7), seen.UserID)

	// query tokens are reserved for socket handshakes
	req = httptest.NewRequest(http.MethodGet, "/api/conversations?token="+token, nil)
	w = httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	assert.Equal(t, "from-query", TokenFromRequest(req, true))
	assert.Equal(t, "", TokenFromRequest(req, false))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(req, true))
}
