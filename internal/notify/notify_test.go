package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func TestBrokerNotify(t *testing.T) {
	ch := &fakeChannel{}
	b := NewBroker(ch, "storefront.notifications")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := b.Notify(context.Background(), "sess-1", Notice{
		Level: LevelWarning, Code: CodeItemUnavailable, Subject: "p9", Message: "gone", At: at,
	})
	require.NoError(t, err)
	require.Len(t, ch.published, 1)

	msg := ch.published[0]
	assert.Equal(t, "storefront.notifications", ch.keys[0])
	assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
	assert.Equal(t, CodeItemUnavailable, msg.Type)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "sess-1", body["session_id"])
	assert.Equal(t, "p9", body["subject"])
	assert.NoError(t, b.Close())
}

func TestMultiSwallowsFailures(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	failing := NewBroker(&fakeChannel{err: errors.New("channel closed")}, "q")
	m := Multi{Notifiers: []Notifier{failing, Log{Logger: logger}}, Logger: logger}

	err := m.Notify(context.Background(), "sess-2", Notice{Level: LevelError, Code: CodeUpstreamError, Message: "down"})
	assert.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("notifier failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("notice").Len())
}
