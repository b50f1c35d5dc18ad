package playlists

import "time"

// Playlist is a named ordered collection of items. A device may be assigned
// several playlists, but only an active one can become its effective playlist.
type Playlist struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	IsActive    bool    `json:"is_active"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// Item is one playlist entry. DisplayDuration is milliseconds; 0 means the
// item has no rotation trigger of its own.
type Item struct {
	ID              int64   `json:"id"`
	PlaylistID      int64   `json:"playlist_id"`
	ContentID       int64   `json:"content_id"`
	DisplayDuration int64   `json:"display_duration"`
	OrderIndex      int     `json:"order_index"`
	TimeWindowStart *string `json:"time_window_start,omitempty"`
	TimeWindowEnd   *string `json:"time_window_end,omitempty"`
	DaysOfWeek      []int   `json:"days_of_week,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// Assignment links a device to a playlist. Uniqueness on (device, playlist).
type Assignment struct {
	ID         int64  `json:"id"`
	DeviceID   int64  `json:"device_id"`
	PlaylistID int64  `json:"playlist_id"`
	CreatedAt  string `json:"created_at"`
}

// CreatePlaylistInput is the payload for creating a playlist.
type CreatePlaylistInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	IsActive    bool    `json:"is_active"`
}

// UpdatePlaylistInput is the payload for updating a playlist. Nil fields are
// left unchanged.
type UpdatePlaylistInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// CreateItemInput is the payload for adding an item to a playlist.
type CreateItemInput struct {
	PlaylistID      int64   `json:"playlist_id"`
	ContentID       int64   `json:"content_id"`
	DisplayDuration int64   `json:"display_duration"`
	OrderIndex      *int    `json:"order_index"`
	TimeWindowStart *string `json:"time_window_start"`
	TimeWindowEnd   *string `json:"time_window_end"`
	DaysOfWeek      []int   `json:"days_of_week"`
}

// UpdateItemInput is the payload for updating an item. Nil fields are left
// unchanged; ClearDaysOfWeek / ClearTimeWindow drop the constraint.
type UpdateItemInput struct {
	ContentID       *int64  `json:"content_id"`
	DisplayDuration *int64  `json:"display_duration"`
	OrderIndex      *int    `json:"order_index"`
	TimeWindowStart *string `json:"time_window_start"`
	TimeWindowEnd   *string `json:"time_window_end"`
	DaysOfWeek      []int   `json:"days_of_week"`
	ClearTimeWindow bool    `json:"clear_time_window"`
	ClearDaysOfWeek bool    `json:"clear_days_of_week"`
}

// AssignInput is the payload for assigning a playlist to a device.
type AssignInput struct {
	DeviceID   int64 `json:"deviceId"`
	PlaylistID int64 `json:"playlistId"`
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z07:00")
}
