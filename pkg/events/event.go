package events

import "time"

// Event is anything that can be published on an event bus.
type Event interface {
	// EventType returns the unique code for this event (e.g., "UPLOAD_SUCCEEDED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}
