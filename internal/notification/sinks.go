package notification

import (
	"context"
	"encoding/json"
	"sync"

	"spaces-client/internal/pkg/logger"
	"spaces-client/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Topic carries notifications on the in-process bus.
const Topic = "notifications"

// LogSink writes every notification to the structured log.
type LogSink struct {
	logger logger.ILogger
}

func NewLogSink(log logger.ILogger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Notify(_ context.Context, n Notification) {
	details := map[string]interface{}{"level": n.Level, "code": n.Code, "details": n.Details}
	switch n.Level {
	case LevelError:
		s.logger.Error(n.Module, n.Message, details)
	case LevelWarning:
		s.logger.Warn(n.Module, n.Message, details)
	default:
		s.logger.Info(n.Module, n.Message, details)
	}
}

// BusSink publishes notifications as JSON on a watermill publisher, so
// display consumers subscribe instead of being called directly.
type BusSink struct {
	publisher message.Publisher
	topic     string
	logger    logger.ILogger
}

func NewBusSink(publisher message.Publisher, topic string, log logger.ILogger) *BusSink {
	return &BusSink{publisher: publisher, topic: topic, logger: log}
}

func (s *BusSink) Notify(_ context.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		s.logger.Error("Notification", "Failed to marshal notification", map[string]interface{}{"error": err.Error()})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.publisher.Publish(s.topic, msg); err != nil {
		s.logger.Error("Notification", "Failed to publish notification", map[string]interface{}{"error": err.Error()})
	}
}

// Listen consumes notifications from the bus until ctx is done or the
// subscription closes.
func Listen(ctx context.Context, subscriber message.Subscriber, topic string, handle func(Notification)) error {
	messages, err := subscriber.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	for msg := range messages {
		var n Notification
		if err := json.Unmarshal(msg.Payload, &n); err == nil {
			handle(n)
		}
		// Malformed payloads are acked too so they are not redelivered forever.
		msg.Ack()
	}
	return nil
}

// EventPublisher is satisfied by pkg/nats.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// EventSink forwards notifications to an external event bus such as NATS.
type EventSink struct {
	publisher EventPublisher
	logger    logger.ILogger
}

func NewEventSink(publisher EventPublisher, log logger.ILogger) *EventSink {
	return &EventSink{publisher: publisher, logger: log}
}

func (s *EventSink) Notify(ctx context.Context, n Notification) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.logger.Warn("Notification", "Failed to forward notification", map[string]interface{}{"error": err.Error()})
	}
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

// Levels lists the recorded levels in order.
func (r *Recorder) Levels() []Level {
	all := r.All()
	levels := make([]Level, len(all))
	for i, n := range all {
		levels[i] = n.Level
	}
	return levels
}

func (r *Recorder) Last() (Notification, bool) {
	all := r.All()
	if len(all) == 0 {
		return Notification{}, false
	}
	return all[len(all)-1], true
}
