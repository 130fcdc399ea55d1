package notification

import (
	"context"
	"strings"
	"time"

	"spaces-client/internal/pkg/apperror"

	"github.com/google/uuid"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-facing event. The core only emits these; how they
// are rendered is up to whoever consumes the sink.
type Notification struct {
	Id         uuid.UUID              `json:"id"`
	Level      Level                  `json:"level"`
	Module     string                 `json:"module"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Sink receives notifications. Implementations must not block for long and
// must be safe for concurrent use.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

func New(level Level, module, message string, details map[string]interface{}) Notification {
	return Notification{
		Id:         uuid.New(),
		Level:      level,
		Module:     module,
		Message:    message,
		Details:    details,
		OccurredAt: time.Now(),
	}
}

func Success(module, message string, details map[string]interface{}) Notification {
	return New(LevelSuccess, module, message, details)
}

func Warning(module, message string, details map[string]interface{}) Notification {
	return New(LevelWarning, module, message, details)
}

// FromError classifies err. Locally caught input problems are warnings,
// everything that went over the wire is an error.
func FromError(module string, err error, details map[string]interface{}) Notification {
	level := LevelError
	if apperror.IsLocal(err) {
		level = LevelWarning
	}
	n := New(level, module, apperror.UserMessage(err), details)
	n.Code = apperror.Kind(err)
	return n
}

// EventType, Payload and Timestamp make a Notification an events.Event.
func (n Notification) EventType() string {
	return "NOTIFICATION_" + strings.ToUpper(string(n.Level))
}

func (n Notification) Payload() map[string]interface{} {
	return map[string]interface{}{
		"id":          n.Id.String(),
		"level":       string(n.Level),
		"module":      n.Module,
		"message":     n.Message,
		"code":        n.Code,
		"details":     n.Details,
		"occurred_at": n.OccurredAt,
	}
}

func (n Notification) Timestamp() time.Time {
	return n.OccurredAt
}

// Fanout delivers to every sink in order.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, n Notification) {
	for _, s := range f {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(context.Context, Notification) {}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard{}
	}
	return s
}
