package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an upstream failure.
type Kind int

const (
	// KindTransport means no response arrived.
	KindTransport Kind = iota + 1
	// KindServer means the upstream answered with an error status.
	KindServer
	// KindDecode means a successful response carried an unreadable body.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// ErrUnauthorized matches any upstream 401 via errors.Is.
var ErrUnauthorized = errors.New("remote: unauthorized")

// Error is returned for every failed upstream call.
type Error struct {
	Kind     Kind
	Endpoint string
	Status   int
	// Message is the server-provided message, if any.
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindServer && e.Message != "":
		return fmt.Sprintf("%s: %d %s", e.Endpoint, e.Status, e.Message)
	case e.Kind == KindServer:
		return fmt.Sprintf("%s: %d %s", e.Endpoint, e.Status, http.StatusText(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("%s: %s error: %v", e.Endpoint, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s error", e.Endpoint, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// UserMessage is the text shown to the user in a notice.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind == KindTransport {
		return "Network error, please try again"
	}
	return "Something went wrong"
}

// Message extracts a user-facing message from any error.
func Message(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.UserMessage()
	}
	return err.Error()
}
