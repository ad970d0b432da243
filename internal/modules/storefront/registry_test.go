package storefront

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-storefront/internal/modules/user"
	"github.com/georgemunganga/printa-storefront/internal/notify"
	"github.com/georgemunganga/printa-storefront/internal/remote"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[string][]notify.Notice
}

func (n *recordingNotifier) Notify(_ context.Context, sessionID string, notice notify.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = make(map[string][]notify.Notice)
	}
	n.sent[sessionID] = append(n.sent[sessionID], notice)
	return nil
}

func (n *recordingNotifier) codes(sessionID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, notice := range n.sent[sessionID] {
		out = append(out, notice.Code)
	}
	return out
}

func TestRegistryLifecycle(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(remote.New("http://upstream.invalid", nil, time.Second, nil), notifier, time.Minute, zap.NewNop())

	a := reg.Create()
	b := reg.Create()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, reg.Len())

	got, ok := reg.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)

	a.Notify(context.Background(), notify.Notice{Code: notify.CodeUpstreamError})
	assert.Equal(t, []string{notify.CodeUpstreamError}, notifier.codes(a.ID()))
	assert.Len(t, a.Store().DrainNotices(), 1)

	reg.Drop(a.ID())
	_, ok = reg.Get(a.ID())
	assert.False(t, ok)
	assert.True(t, a.Store().Closed())

	a.Notify(context.Background(), notify.Notice{Code: notify.CodeFollowFailed})
	assert.Len(t, notifier.codes(a.ID()), 1, "closed sessions do not notify")
}

func TestRegistrySweep(t *testing.T) {
	reg := NewRegistry(remote.New("http://upstream.invalid", nil, time.Second, nil), nil, time.Minute, zap.NewNop())
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	idle := reg.Create()
	busy := reg.Create()

	now = now.Add(45 * time.Second)
	reg.Get(busy.ID())
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, reg.Sweep())
	_, ok := reg.Get(idle.ID())
	assert.False(t, ok)
	_, ok = reg.Get(busy.ID())
	assert.True(t, ok)
	assert.True(t, idle.Store().Closed())
}

func TestRegistryRunClosesOnShutdown(t *testing.T) {
	reg := NewRegistry(remote.New("http://upstream.invalid", nil, time.Second, nil), nil, time.Minute, zap.NewNop())
	sess := reg.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Zero(t, reg.Len())
	assert.True(t, sess.Store().Closed())
}

func TestSessionClientInvalidatesOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	reg := NewRegistry(remote.New(srv.URL, nil, time.Second, nil), nil, time.Minute, zap.NewNop())
	sess := reg.Create()
	require.NoError(t, sess.Store().SetUser(user.User{ID: "u1"}))

	err := sess.Client().Call(context.Background(), remote.EPProducts, nil, nil, nil)
	assert.ErrorIs(t, err, remote.ErrUnauthorized)
	assert.True(t, sess.User().IsZero())
}
