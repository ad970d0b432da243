package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// CookieName is the session cookie set on the dashboard origin.
const CookieName = "printa_session"

// ErrInvalidToken covers expired, malformed and tampered session tokens.
var ErrInvalidToken = errors.New("auth: invalid session token")

// Claims identify a storefront session.
type Claims struct {
	SessionID string
	UserID    string
	ExpiresAt time.Time
}

// Issuer signs and verifies session tokens.
type Issuer interface {
	Issue(sessionID, userID string) (string, time.Time, error)
	Parse(token string) (*Claims, error)
}

// TokenFromRequest returns the bearer token or the session cookie value.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
