package storefront

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/georgemunganga/printa-storefront/internal/modules/auth"
	"github.com/georgemunganga/printa-storefront/internal/session"
)

// SessionMiddleware resolves the session named by the request's token and
// stores it in the request context. A missing, invalid or expired token, or
// one naming a session that no longer exists, gets a fresh anonymous session
// and a new cookie.
func SessionMiddleware(reg *Registry, issuer auth.Issuer, secure bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess *Session
			if token := auth.TokenFromRequest(r); token != "" {
				if claims, err := issuer.Parse(token); err == nil {
					sess, _ = reg.Get(claims.SessionID)
				}
			}
			if sess == nil {
				sess = reg.Create()
				if err := issueCookie(w, issuer, sess, secure); err != nil {
					logger.Error("issuing session token", zap.Error(err))
					reg.Drop(sess.ID())
					respond(w, http.StatusInternalServerError, map[string]string{"error": "could not start session"})
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}

// issueCookie signs a token for the session's current user and sets it.
func issueCookie(w http.ResponseWriter, issuer auth.Issuer, sess *Session, secure bool) error {
	token, expires, err := issuer.Issue(sess.ID(), sess.User().ID)
	if err != nil {
		return err
	}
	auth.SetCookie(w, token, expires, secure)
	return nil
}

// current returns the session the middleware attached.
func current(r *http.Request) (*Session, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		return nil, false
	}
	sess, ok := s.(*Session)
	return sess, ok
}
