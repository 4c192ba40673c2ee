// internal/middleware/jwt.go
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionCookieName carries the session token for browser clients.
	SessionCookieName = "portal_session"

	tokenIssuer = "sao-connect"
)

// Claims represents the JWT claims for our application
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the verified caller of a request or socket handshake.
type Identity struct {
	UserID int64
	Role   string
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// SessionAuthenticator issues and verifies session tokens.
type SessionAuthenticator struct {
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewSessionAuthenticator(secret string, ttl time.Duration, logger *slog.Logger) *SessionAuthenticator {
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &SessionAuthenticator{
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// GenerateToken creates a new JWT token for the given user
func (a *SessionAuthenticator) GenerateToken(user *models.User) (string, error) {
	now := a.now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken validates the provided JWT token
func (a *SessionAuthenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "invalid token", errors.New("missing user claim"))
	}
	return claims, nil
}

// Authenticate resolves a raw token into the identity it was issued for.
func (a *SessionAuthenticator) Authenticate(tokenString string) (Identity, error) {
	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

// TokenFromRequest extracts a session token from the Authorization header or
// the session cookie. When allowQuery is set the "token" query parameter is
// also accepted, which browsers need for socket handshakes.
func TokenFromRequest(r *http.Request, allowQuery bool) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")); token != "" {
			return token
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}
	if allowQuery {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}

// RequireAuth wraps a handler so that it only runs for a verified caller.
func (a *SessionAuthenticator) RequireAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := TokenFromRequest(r, false)
		if tokenString == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		identity, err := a.Authenticate(tokenString)
		if err != nil {
			a.logger.Debug("rejected session token", "path", r.URL.Path, "err", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		handler(w, r.WithContext(SetIdentityInContext(r.Context(), identity)))
	}
}

// Define a custom context key type to avoid collisions
type contextKey string

const identityKey contextKey = "identity"

// SetIdentityInContext saves the caller identity in the request context
func SetIdentityInContext(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the caller identity from the context
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}
