// Package audit keeps the append-only operational event log: device errors,
// admin commands, lifecycle changes. It backs the per-device log endpoint and
// is pruned on a retention schedule.
package audit

import "time"

// EventType labels what kind of thing happened.
type EventType string

const (
	EventDeviceError    EventType = "DEVICE_ERROR"
	EventDeviceCommand  EventType = "DEVICE_COMMAND"
	EventDeviceOnline   EventType = "DEVICE_ONLINE"
	EventDeviceOffline  EventType = "DEVICE_OFFLINE"
	EventBroadcastStart EventType = "BROADCAST_START"
	EventBroadcastEnd   EventType = "BROADCAST_END"
	EventSystemStartup  EventType = "SYSTEM_STARTUP"
)

// EventLevel is the severity of an audit event.
type EventLevel string

const (
	EventLevelInfo  EventLevel = "INFO"
	EventLevelWarn  EventLevel = "WARN"
	EventLevelError EventLevel = "ERROR"
)

// Event is one row of the audit log. DeviceID is the surrogate id of the
// device the event concerns, when there is one.
type Event struct {
	ID        int64          `json:"id"`
	Type      EventType      `json:"type"`
	Level     EventLevel     `json:"level"`
	Message   string         `json:"message"`
	DeviceID  *int64         `json:"device_id,omitempty"`
	Actor     *string        `json:"actor,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// WriteEventInput are the fields for appending an event.
type WriteEventInput struct {
	Type     EventType
	Level    EventLevel
	Message  string
	DeviceID *int64
	Actor    string
	Details  map[string]any
}

// ListFilter narrows an event query. Zero values mean "no restriction".
type ListFilter struct {
	Type     EventType
	Level    EventLevel
	DeviceID int64
	Limit    int
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z07:00")
}
