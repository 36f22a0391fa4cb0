package events

import "time"

const (
	// SubscriptionEmailSent fires once per stored send-log record.
	SubscriptionEmailSent = "SUBSCRIPTION_EMAIL_SENT"
	// SubscriptionCancelled fires when a sweep flips is_cancelled on a record.
	SubscriptionCancelled = "SUBSCRIPTION_CANCELLED"
	// SnapshotFetched fires after the poller pulls a full snapshot upstream.
	SnapshotFetched = "SNAPSHOT_FETCHED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SUBSCRIPTION_CANCELLED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func NewEvent(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
