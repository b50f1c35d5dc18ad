// Package protocol defines the framed message contract shared by the hub's
// realtime gateway and the kiosk agent. Every frame on the wire is a JSON
// object {"event": string, "payload": object}.
package protocol

import "encoding/json"

// Frame is the wire envelope for every realtime message.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFrame marshals a payload into a Frame. A nil payload produces an empty
// object so clients never see a null payload.
func NewFrame(event string, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Event: event, Payload: json.RawMessage(`{}`)}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Payload: raw}, nil
}

// Device -> Server events.
const (
	EventDeviceRegister      = "device:register"
	EventHealthReport        = "health:report"
	EventDeviceStatus        = "device:status"
	EventErrorReport         = "error:report"
	EventScreenshotUpload    = "screenshot:upload"
	EventPlaybackStateUpdate = "playback:state:update"
	EventScreencastFrame     = "screencast:frame"
)

// Server -> Device events.
const (
	EventContentUpdate     = "content:update"
	EventDisplayNavigate   = "display:navigate"
	EventDisplayRefresh    = "display:refresh"
	EventScreenshotRequest = "screenshot:request"
	EventConfigUpdate      = "config:update"
	EventDeviceRestart     = "device:restart"
	EventScreencastStart   = "screencast:start"
	EventScreencastStop    = "screencast:stop"
	EventRemoteClick       = "remote:click"
	EventRemoteType        = "remote:type"
	EventRemoteKey         = "remote:key"
	EventRemoteScroll      = "remote:scroll"
	EventPlaylistPause     = "playlist:pause"
	EventPlaylistResume    = "playlist:resume"
	EventPlaylistNext      = "playlist:next"
	EventPlaylistPrevious  = "playlist:previous"
	EventBroadcastStart    = "broadcast:start"
	EventBroadcastEnd      = "broadcast:end"
)

// Server -> Admin events.
const (
	EventAdminDevicesSync        = "admin:devices:sync"
	EventAdminDeviceConnected    = "admin:device:connected"
	EventAdminDeviceDisconnected = "admin:device:disconnected"
	EventAdminDeviceStatus       = "admin:device:status"
	EventAdminDeviceHealth       = "admin:device:health"
	EventAdminScreenshotReceived = "admin:screenshot:received"
	EventAdminError              = "admin:error"
	EventAdminScreencastFrame    = "admin:screencast:frame"
	EventAdminPlaybackState      = "admin:playback:state"
)

// PlaylistItem is one entry of a content-update push, the playlist item
// joined with its content row. DisplayDuration is milliseconds; 0 means the
// item displays permanently unless the list has other entries.
type PlaylistItem struct {
	ID              int64   `json:"id"`
	PlaylistID      int64   `json:"playlistId"`
	ContentID       int64   `json:"contentId"`
	Name            string  `json:"name"`
	URL             string  `json:"url"`
	IsInteractive   bool    `json:"isInteractive"`
	DisplayDuration int64   `json:"displayDuration"`
	OrderIndex      int     `json:"orderIndex"`
	TimeWindowStart *string `json:"timeWindowStart,omitempty"`
	TimeWindowEnd   *string `json:"timeWindowEnd,omitempty"`
	DaysOfWeek      []int   `json:"daysOfWeek,omitempty"`
}

// ContentUpdate is a full-state replacement of a device's effective playlist.
// PlaylistID is 0 when no active playlist resolves for the device.
type ContentUpdate struct {
	PlaylistID int64          `json:"playlistId"`
	Items      []PlaylistItem `json:"items"`
}

// PlaybackState is the compact snapshot of what a device is showing.
type PlaybackState struct {
	IsPlaying        bool   `json:"isPlaying"`
	IsPaused         bool   `json:"isPaused"`
	IsBroadcasting   bool   `json:"isBroadcasting"`
	CurrentItemID    int64  `json:"currentItemId"`
	CurrentItemIndex int    `json:"currentItemIndex"`
	PlaylistID       int64  `json:"playlistId"`
	TotalItems       int    `json:"totalItems"`
	CurrentURL       string `json:"currentUrl"`
	// TimeRemaining is milliseconds left on the current item, null when the
	// item displays permanently or nothing is showing.
	TimeRemaining *int64 `json:"timeRemaining"`
}

// HealthReport is the periodic device telemetry payload.
type HealthReport struct {
	UptimeSec        int64   `json:"uptimeSec"`
	MemoryMB         float64 `json:"memoryMb"`
	ScreenResolution string  `json:"screenResolution,omitempty"`
	OSVersion        string  `json:"osVersion,omitempty"`
	ClientVersion    string  `json:"clientVersion,omitempty"`
	CurrentURL       string  `json:"currentUrl,omitempty"`
}

// StatusUpdate is a device-reported status change.
type StatusUpdate struct {
	Status string `json:"status"`
}

// ErrorReport is a device-reported error.
type ErrorReport struct {
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

// ScreenshotUpload carries a captured screenshot (base64 image data).
type ScreenshotUpload struct {
	ImageData string `json:"imageData"`
	URL       string `json:"url,omitempty"`
}

// ScreencastFrame is one frame of the low-rate live stream.
type ScreencastFrame struct {
	ImageData string `json:"imageData"`
	Timestamp int64  `json:"timestamp"`
}

// NavigateCommand targets the display at a URL.
type NavigateCommand struct {
	URL string `json:"url"`
}

// BroadcastStart preempts the device's playlist. Type is "url" or "message".
type BroadcastStart struct {
	Type       string `json:"type"`
	URL        string `json:"url,omitempty"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// ClickCommand is a remote click at viewport coordinates.
type ClickCommand struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TypeCommand types text into the focused input.
type TypeCommand struct {
	Text string `json:"text"`
}

// KeyCommand presses a named key.
type KeyCommand struct {
	Key string `json:"key"`
}

// ScrollCommand scrolls by a pixel delta.
type ScrollCommand struct {
	DeltaX int `json:"deltaX"`
	DeltaY int `json:"deltaY"`
}

// DeviceList is the admin sync payload of online device identities.
type DeviceList struct {
	DeviceIDs []string `json:"deviceIds"`
}

// DeviceRef stamps a device identity onto an admin-bound payload. The
// identity always comes from the session's authenticated token.
type DeviceRef struct {
	DeviceID string `json:"deviceId"`
}
