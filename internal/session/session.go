// Package session carries the per-request view of a storefront session so
// feature handlers can reach the caller's upstream client and identity.
package session

import (
	"context"

	"github.com/georgemunganga/printa-storefront/internal/modules/user"
	"github.com/georgemunganga/printa-storefront/internal/notify"
	"github.com/georgemunganga/printa-storefront/internal/remote"
)

// Session is what handlers may use of a session.
type Session interface {
	ID() string
	// Client is credentialed for this session only.
	Client() remote.Caller
	// User returns the cached identity; zero when logged out.
	User() user.User
	// Notify queues a notice for the dashboard and forwards it out of band.
	Notify(ctx context.Context, n notify.Notice)
}

// LandingPage is where the dashboard sends a user whose upstream session expired.
const LandingPage = "/"

type ctxKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
