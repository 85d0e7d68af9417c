// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/authflow/internal/core"
)

const (
	UserIDKey contextKey = "user_id"
	ClaimsKey contextKey = "session_claims"
	TokenKey  contextKey = "session_token"
)

type TokenVerifier interface {
	VerifySession(ctx context.Context, token string) (*SessionClaims, error)
}

// SessionClaims is the identity carried by a session token. It doubles as
// the body of GET /v1/auth/session.
type SessionClaims struct {
	JTI           string    `json:"-"`
	UserID        string    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	Name          string    `json:"name"`
	Avatar        string    `json:"avatar"`
	Bio           string    `json:"bio"`
	Location      string    `json:"location"`
	Website       string    `json:"website"`
	JoinedAt      time.Time `json:"joined_at"`
	Followers     int       `json:"followers"`
	Following     int       `json:"following"`
	Posts         int       `json:"posts"`
	IsActive      bool      `json:"is_active"`
	EmailVerified bool      `json:"email_verified"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func Authenticator(
	verifier TokenVerifier,
	cookieName string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r, cookieName)

			if token == "" {
				core.JSONError(
					w,
					core.UnauthorizedError("authentication required"),
				)
				return
			}

			claims, err := verifier.VerifySession(r.Context(), token)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims, token)))
		})
	}
}

// OptionalAuth attaches claims when a valid session is present and passes
// the request through untouched otherwise.
func OptionalAuth(
	verifier TokenVerifier,
	cookieName string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r, cookieName)

			if token != "" {
				claims, err := verifier.VerifySession(r.Context(), token)
				if err == nil {
					r = r.WithContext(withClaims(r.Context(), claims, token))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func withClaims(
	ctx context.Context,
	claims *SessionClaims,
	token string,
) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return context.WithValue(ctx, TokenKey, token)
}

// ExtractToken prefers the session cookie and falls back to a bearer
// Authorization header.
func ExtractToken(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// handleAuthError answers 401 only for token faults. Anything else, such as
// an unreachable revocation store, is a server error.
func handleAuthError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	case errors.Is(err, core.ErrTokenInvalid):
		core.JSONError(w, core.TokenInvalidError())
	default:
		core.InternalServerError(w, err)
	}
}

func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

func GetClaims(ctx context.Context) *SessionClaims {
	if claims, ok := ctx.Value(ClaimsKey).(*SessionClaims); ok {
		return claims
	}
	return nil
}

func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(TokenKey).(string); ok {
		return token
	}
	return ""
}

func IsAuthenticated(ctx context.Context) bool {
	return GetUserID(ctx) != ""
}
