// Package events provides the pub/sub bus every launcher component
// communicates through. Subscribers register against an exact event type or
// a wildcard pattern; publishers never learn who is listening.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Well-known event types published by the launcher managers.
const (
	ProcessStarting = "process.starting"
	ProcessStarted  = "process.started"
	ProcessStopping = "process.stopping"
	ProcessStopped  = "process.stopped"
	ProcessFailed   = "process.failed"
	ProcessDetected = "process.detected"

	HealthUpdate         = "health.update"
	HealthCheckStarted   = "health.check_started"
	HealthCheckCompleted = "health.check_completed"

	LogError = "log.error"
)

// Event is an immutable message delivered through the bus.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// New creates an event with a fresh ID and the current timestamp.
func New(eventType, source string, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// ServiceKey returns the service_key data field, if present.
func (e Event) ServiceKey() string {
	if e.Data == nil {
		return ""
	}
	key, _ := e.Data["service_key"].(string)
	return key
}
