package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Level is the severity shown on a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice codes.
const (
	CodeItemUnavailable = "cart.item_unavailable"
	CodeUpstreamError   = "upstream.error"
	CodeFollowFailed    = "vendor.follow_failed"
	CodeSessionExpired  = "session.expired"
)

// Notice is a transient, dismissable message for one session.
type Notice struct {
	Level   Level     `json:"level"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Subject string    `json:"subject,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier delivers notices out of band.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, n Notice) error
}

// Log writes notices to the service log.
type Log struct{ Logger *zap.Logger }

func (l Log) Notify(_ context.Context, sessionID string, n Notice) error {
	l.Logger.Info("notice",
		zap.String("session", sessionID),
		zap.String("level", string(n.Level)),
		zap.String("code", n.Code),
		zap.String("subject", n.Subject),
		zap.String("message", n.Message))
	return nil
}

// Multi fans a notice out to every notifier. Failures are logged, never returned.
type Multi struct {
	Notifiers []Notifier
	Logger    *zap.Logger
}

func (m Multi) Notify(ctx context.Context, sessionID string, n Notice) error {
	for _, nt := range m.Notifiers {
		if err := nt.Notify(ctx, sessionID, n); err != nil && m.Logger != nil {
			m.Logger.Warn("notifier failed", zap.String("code", n.Code), zap.Error(err))
		}
	}
	return nil
}
