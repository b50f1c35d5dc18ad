package playlists

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
)

// DBPair interface for dependency injection (matches db.DBPair).
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

var (
	// ErrAssignmentExists is returned on a duplicate (device, playlist) pair.
	ErrAssignmentExists = errors.New("assignment already exists")
	// ErrPlaylistNotFound is returned when a referenced playlist is absent.
	ErrPlaylistNotFound = errors.New("playlist not found")
	// ErrDeviceNotFound is returned when a referenced device is absent.
	ErrDeviceNotFound = errors.New("device not found")
)

// Repository handles database operations for playlists, items and
// assignments.
type Repository struct {
	reader *sql.DB
	writer *sql.DB
}

// NewRepository creates a new playlist Repository.
func NewRepository(dbPair DBPair) *Repository {
	return &Repository{reader: dbPair.Reader(), writer: dbPair.Writer()}
}

// ---------------------------------------------------------------------------
// Playlists
// ---------------------------------------------------------------------------

const playlistColumns = `id, name, description, is_active, created_at, updated_at`

func scanPlaylist(row interface{ Scan(...any) error }) (*Playlist, error) {
	var p Playlist
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new playlist.
func (r *Repository) Create(input CreatePlaylistInput) (*Playlist, error) {
	now := nowISO()
	result, err := r.writer.Exec(`
		INSERT INTO playlists (name, description, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, input.Name, input.Description, input.IsActive, now, now)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// GetByID fetches a playlist by id. Returns nil when absent.
func (r *Repository) GetByID(id int64) (*Playlist, error) {
	row := r.reader.QueryRow(`SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id)
	return scanPlaylist(row)
}

// List returns all playlists ordered by name.
func (r *Repository) List() ([]Playlist, error) {
	rows, err := r.reader.Query(`SELECT ` + playlistColumns + ` FROM playlists ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]Playlist, 0)
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// Update applies changes. Returns the updated row, nil when absent.
func (r *Repository) Update(id int64, input UpdatePlaylistInput) (*Playlist, error) {
	existing, err := r.GetByID(id)
	if err != nil || existing == nil {
		return existing, err
	}

	name := existing.Name
	if input.Name != nil {
		name = *input.Name
	}
	description := existing.Description
	if input.Description != nil {
		description = input.Description
	}
	isActive := existing.IsActive
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	_, err = r.writer.Exec(`
		UPDATE playlists SET name = ?, description = ?, is_active = ?, updated_at = ? WHERE id = ?
	`, name, description, isActive, nowISO(), id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// Delete removes a playlist. Items and assignments cascade.
func (r *Repository) Delete(id int64) (bool, error) {
	result, err := r.writer.Exec(`DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

const itemColumns = `id, playlist_id, content_id, display_duration, order_index,
	time_window_start, time_window_end, days_of_week, created_at`

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	var item Item
	var daysJSON sql.NullString
	err := row.Scan(&item.ID, &item.PlaylistID, &item.ContentID, &item.DisplayDuration,
		&item.OrderIndex, &item.TimeWindowStart, &item.TimeWindowEnd, &daysJSON, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if daysJSON.Valid && daysJSON.String != "" {
		if err := json.Unmarshal([]byte(daysJSON.String), &item.DaysOfWeek); err != nil {
			// Corrupt constraint data must not break playback; treat as
			// unrestricted.
			item.DaysOfWeek = nil
		}
	}
	return &item, nil
}

func marshalDays(days []int) (any, error) {
	if days == nil {
		return nil, nil
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// CreateItem appends an item to a playlist. When OrderIndex is nil the item
// goes to the end of the list.
func (r *Repository) CreateItem(input CreateItemInput) (*Item, error) {
	orderIndex := 0
	if input.OrderIndex != nil {
		orderIndex = *input.OrderIndex
	} else {
		row := r.reader.QueryRow(`SELECT COALESCE(MAX(order_index) + 1, 0) FROM playlist_items WHERE playlist_id = ?`, input.PlaylistID)
		if err := row.Scan(&orderIndex); err != nil {
			return nil, err
		}
	}

	days, err := marshalDays(input.DaysOfWeek)
	if err != nil {
		return nil, err
	}

	result, err := r.writer.Exec(`
		INSERT INTO playlist_items (playlist_id, content_id, display_duration, order_index,
			time_window_start, time_window_end, days_of_week, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, input.PlaylistID, input.ContentID, input.DisplayDuration, orderIndex,
		input.TimeWindowStart, input.TimeWindowEnd, days, nowISO())
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return nil, ErrPlaylistNotFound
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetItem(id)
}

// GetItem fetches an item by id. Returns nil when absent.
func (r *Repository) GetItem(id int64) (*Item, error) {
	row := r.reader.QueryRow(`SELECT `+itemColumns+` FROM playlist_items WHERE id = ?`, id)
	return scanItem(row)
}

// ListItems returns a playlist's items sorted by order_index ascending.
func (r *Repository) ListItems(playlistID int64) ([]Item, error) {
	rows, err := r.reader.Query(`SELECT `+itemColumns+` FROM playlist_items WHERE playlist_id = ? ORDER BY order_index ASC, id ASC`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem applies changes. Returns the updated row, nil when absent.
func (r *Repository) UpdateItem(id int64, input UpdateItemInput) (*Item, error) {
	existing, err := r.GetItem(id)
	if err != nil || existing == nil {
		return existing, err
	}

	contentID := existing.ContentID
	if input.ContentID != nil {
		contentID = *input.ContentID
	}
	duration := existing.DisplayDuration
	if input.DisplayDuration != nil {
		duration = *input.DisplayDuration
	}
	orderIndex := existing.OrderIndex
	if input.OrderIndex != nil {
		orderIndex = *input.OrderIndex
	}
	windowStart := existing.TimeWindowStart
	windowEnd := existing.TimeWindowEnd
	if input.ClearTimeWindow {
		windowStart, windowEnd = nil, nil
	} else {
		if input.TimeWindowStart != nil {
			windowStart = input.TimeWindowStart
		}
		if input.TimeWindowEnd != nil {
			windowEnd = input.TimeWindowEnd
		}
	}
	daysOfWeek := existing.DaysOfWeek
	if input.ClearDaysOfWeek {
		daysOfWeek = nil
	} else if input.DaysOfWeek != nil {
		daysOfWeek = input.DaysOfWeek
	}

	days, err := marshalDays(daysOfWeek)
	if err != nil {
		return nil, err
	}

	_, err = r.writer.Exec(`
		UPDATE playlist_items SET content_id = ?, display_duration = ?, order_index = ?,
			time_window_start = ?, time_window_end = ?, days_of_week = ?
		WHERE id = ?
	`, contentID, duration, orderIndex, windowStart, windowEnd, days, id)
	if err != nil {
		return nil, err
	}
	return r.GetItem(id)
}

// DeleteItem removes an item, returning its parent playlist id for
// propagation. Returns (0, false, nil) when absent.
func (r *Repository) DeleteItem(id int64) (int64, bool, error) {
	item, err := r.GetItem(id)
	if err != nil {
		return 0, false, err
	}
	if item == nil {
		return 0, false, nil
	}
	if _, err := r.writer.Exec(`DELETE FROM playlist_items WHERE id = ?`, id); err != nil {
		return 0, false, err
	}
	return item.PlaylistID, true, nil
}

// ---------------------------------------------------------------------------
// Assignments
// ---------------------------------------------------------------------------

// Assign creates a (device, playlist) assignment.
func (r *Repository) Assign(deviceID, playlistID int64) (*Assignment, error) {
	result, err := r.writer.Exec(`
		INSERT INTO device_playlists (device_id, playlist_id, created_at) VALUES (?, ?, ?)
	`, deviceID, playlistID, nowISO())
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "UNIQUE constraint failed") {
			return nil, ErrAssignmentExists
		}
		if strings.Contains(msg, "FOREIGN KEY constraint failed") {
			// Figure out which side is missing for a useful error.
			var exists int
			if scanErr := r.reader.QueryRow(`SELECT COUNT(*) FROM devices WHERE id = ?`, deviceID).Scan(&exists); scanErr == nil && exists == 0 {
				return nil, ErrDeviceNotFound
			}
			return nil, ErrPlaylistNotFound
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	var a Assignment
	row := r.reader.QueryRow(`SELECT id, device_id, playlist_id, created_at FROM device_playlists WHERE id = ?`, id)
	if err := row.Scan(&a.ID, &a.DeviceID, &a.PlaylistID, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Unassign removes a (device, playlist) assignment.
func (r *Repository) Unassign(deviceID, playlistID int64) (bool, error) {
	result, err := r.writer.Exec(`DELETE FROM device_playlists WHERE device_id = ? AND playlist_id = ?`, deviceID, playlistID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// PlaylistsForDevice returns the playlists assigned to a device.
func (r *Repository) PlaylistsForDevice(deviceID int64) ([]Playlist, error) {
	rows, err := r.reader.Query(`
		SELECT p.id, p.name, p.description, p.is_active, p.created_at, p.updated_at
		FROM playlists p
		JOIN device_playlists dp ON dp.playlist_id = p.id
		WHERE dp.device_id = ?
		ORDER BY p.id ASC
	`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]Playlist, 0)
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// DeviceKeysForPlaylist returns the stable keys of devices assigned to a
// playlist, used by the propagator to find push targets.
func (r *Repository) DeviceKeysForPlaylist(playlistID int64) ([]string, error) {
	rows, err := r.reader.Query(`
		SELECT d.device_id
		FROM devices d
		JOIN device_playlists dp ON dp.device_id = d.id
		WHERE dp.playlist_id = ?
	`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DevicesForPlaylist returns device rows assigned to a playlist (for the
// REST listing endpoint).
func (r *Repository) DevicesForPlaylist(playlistID int64) ([]AssignedDevice, error) {
	rows, err := r.reader.Query(`
		SELECT d.id, d.device_id, d.name, dp.created_at
		FROM devices d
		JOIN device_playlists dp ON dp.device_id = d.id
		WHERE dp.playlist_id = ?
		ORDER BY d.name COLLATE NOCASE
	`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]AssignedDevice, 0)
	for rows.Next() {
		var d AssignedDevice
		if err := rows.Scan(&d.ID, &d.DeviceID, &d.Name, &d.AssignedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// AssignedDevice is a device row in a playlist's device listing.
type AssignedDevice struct {
	ID         int64  `json:"id"`
	DeviceID   string `json:"device_id"`
	Name       string `json:"name"`
	AssignedAt string `json:"assigned_at"`
}

// DeviceKeysUsingContent returns keys of devices assigned to any playlist
// containing an item that references the given content.
func (r *Repository) DeviceKeysUsingContent(contentID int64) ([]string, error) {
	rows, err := r.reader.Query(`
		SELECT DISTINCT d.device_id
		FROM devices d
		JOIN device_playlists dp ON dp.device_id = d.id
		JOIN playlist_items pi ON pi.playlist_id = dp.playlist_id
		WHERE pi.content_id = ?
	`, contentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
