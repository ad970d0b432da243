package storefront

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-storefront/internal/modules/user"
	"github.com/georgemunganga/printa-storefront/internal/notify"
	"github.com/georgemunganga/printa-storefront/internal/remote"
)

// DefaultIdleTimeout is how long an untouched session survives a sweep.
const DefaultIdleTimeout = 30 * time.Minute

// Session pairs a Store with the upstream client credentialed for it.
type Session struct {
	id       string
	store    *Store
	client   *remote.Client
	notifier notify.Notifier
	lastSeen atomic.Int64
}

func (s *Session) ID() string            { return s.id }
func (s *Session) Store() *Store         { return s.store }
func (s *Session) Client() remote.Caller { return s.client }
func (s *Session) User() user.User       { return s.store.User() }

// Notify queues n on the store and forwards it to the out-of-band notifier.
// Nothing is sent for a closed session.
func (s *Session) Notify(ctx context.Context, n notify.Notice) {
	if s.store.Notify(n) != nil {
		return
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, s.id, n)
	}
}

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

// Registry owns every live session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	base     *remote.Client
	notifier notify.Notifier
	idle     time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewRegistry(base *remote.Client, notifier notify.Notifier, idle time.Duration, logger *zap.Logger) *Registry {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Registry{
		sessions: make(map[string]*Session),
		base:     base,
		notifier: notifier,
		idle:     idle,
		logger:   logger,
		now:      time.Now,
	}
}

// Create starts an anonymous session with a fresh id and cookie jar.
func (r *Registry) Create() *Session {
	store := NewStore()
	sess := &Session{
		id:       uuid.NewString(),
		store:    store,
		client:   r.base.WithSession(store.Invalidate),
		notifier: r.notifier,
	}
	sess.touch(r.now())

	r.mu.Lock()
	r.sessions[sess.id] = sess
	r.mu.Unlock()
	r.logger.Debug("session created", zap.String("session", sess.id))
	return sess
}

// Get returns the live session with id and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		sess.touch(r.now())
	}
	return sess, ok
}

// Drop removes the session and closes its store, so responses still in
// flight for it are discarded.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		sess.store.Close()
		r.logger.Debug("session dropped", zap.String("session", id))
	}
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops every session idle for longer than the idle timeout and
// returns how many were dropped.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idle).UnixNano()
	var expired []string
	r.mu.Lock()
	for id, sess := range r.sessions {
		if sess.lastSeen.Load() < cutoff {
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.Drop(id)
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then drops every session.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("idle sessions expired", zap.Int("count", n), zap.Int("live", r.Len()))
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Drop(id)
	}
}
