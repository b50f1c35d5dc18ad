package devices

import "time"

// Status is the last-known device status.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// Device is a registered kiosk.
type Device struct {
	ID          int64   `json:"id"`
	DeviceID    string  `json:"device_id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	Status      Status  `json:"status"`
	LastSeen    *string `json:"last_seen,omitempty"`

	// Client metadata reported by the agent on connect and in health reports.
	ScreenResolution *string `json:"screen_resolution,omitempty"`
	OSVersion        *string `json:"os_version,omitempty"`
	ClientVersion    *string `json:"client_version,omitempty"`
	IPAddress        *string `json:"ip_address,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreateDeviceInput is the payload for provisioning a device.
type CreateDeviceInput struct {
	DeviceID    string  `json:"device_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
}

// UpdateDeviceInput is the payload for updating device metadata.
// Nil fields are left unchanged.
type UpdateDeviceInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
}

// ClientInfo is the metadata an agent reports about itself.
type ClientInfo struct {
	ScreenResolution *string `json:"screenResolution"`
	OSVersion        *string `json:"osVersion"`
	ClientVersion    *string `json:"clientVersion"`
	IPAddress        *string `json:"ipAddress"`
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z07:00")
}
