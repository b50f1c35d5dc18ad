package screenshots

import "time"

// Screenshot is a single captured frame from a device display. ImageData is a
// base64 data URL; it is omitted from list responses to keep payloads small.
type Screenshot struct {
	ID        string  `json:"id"`
	DeviceID  int64   `json:"device_id"`
	ImageData string  `json:"image_data,omitempty"`
	URL       *string `json:"url,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z07:00")
}
