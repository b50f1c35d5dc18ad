package devices

import (
	"database/sql"
	"errors"
	"strings"
)

// DBPair interface for dependency injection (matches db.DBPair).
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

// Repository handles database operations for devices.
// Uses separate reader/writer connections for optimal SQLite concurrency.
type Repository struct {
	reader *sql.DB
	writer *sql.DB
}

// NewRepository creates a new device Repository.
func NewRepository(dbPair DBPair) *Repository {
	return &Repository{reader: dbPair.Reader(), writer: dbPair.Writer()}
}

const deviceColumns = `id, device_id, name, description, location, status, last_seen,
	screen_resolution, os_version, client_version, ip_address, created_at, updated_at`

func scanDevice(row interface{ Scan(...any) error }) (*Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.DeviceID, &d.Name, &d.Description, &d.Location, &d.Status,
		&d.LastSeen, &d.ScreenResolution, &d.OSVersion, &d.ClientVersion, &d.IPAddress,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// Create provisions a new device row.
func (r *Repository) Create(input CreateDeviceInput) (*Device, error) {
	now := nowISO()
	result, err := r.writer.Exec(`
		INSERT INTO devices (device_id, name, description, location, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'offline', ?, ?)
	`, input.DeviceID, input.Name, input.Description, input.Location, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDeviceIDTaken
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// ErrDeviceIDTaken is returned when the stable device id is already in use.
var ErrDeviceIDTaken = errors.New("device_id already exists")

// GetByID fetches a device by its surrogate id. Returns nil when absent.
func (r *Repository) GetByID(id int64) (*Device, error) {
	row := r.reader.QueryRow(`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	return scanDevice(row)
}

// GetByKey fetches a device by its stable string identity. Returns nil when absent.
func (r *Repository) GetByKey(deviceKey string) (*Device, error) {
	row := r.reader.QueryRow(`SELECT `+deviceColumns+` FROM devices WHERE device_id = ?`, deviceKey)
	return scanDevice(row)
}

// List returns all devices ordered by name.
func (r *Repository) List() ([]Device, error) {
	rows, err := r.reader.Query(`SELECT ` + deviceColumns + ` FROM devices ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := make([]Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// Update applies metadata changes. Returns the updated row, nil when absent.
func (r *Repository) Update(id int64, input UpdateDeviceInput) (*Device, error) {
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
	location := existing.Location
	if input.Location != nil {
		location = input.Location
	}

	_, err = r.writer.Exec(`
		UPDATE devices SET name = ?, description = ?, location = ?, updated_at = ? WHERE id = ?
	`, name, description, location, nowISO(), id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// Delete removes a device. Assignments cascade via the device_playlists
// foreign key, so the row and its assignments go in one statement.
func (r *Repository) Delete(id int64) (bool, error) {
	result, err := r.writer.Exec(`DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// SetStatus updates status and last-seen for a device identified by its
// stable key.
func (r *Repository) SetStatus(deviceKey string, status Status) error {
	_, err := r.writer.Exec(`
		UPDATE devices SET status = ?, last_seen = ?, updated_at = ? WHERE device_id = ?
	`, status, nowISO(), nowISO(), deviceKey)
	return err
}

// TouchLastSeen bumps last_seen without changing status.
func (r *Repository) TouchLastSeen(deviceKey string) error {
	_, err := r.writer.Exec(`
		UPDATE devices SET last_seen = ?, updated_at = ? WHERE device_id = ?
	`, nowISO(), nowISO(), deviceKey)
	return err
}

// SetClientInfo records agent-reported metadata. Nil fields are left unchanged.
func (r *Repository) SetClientInfo(deviceKey string, info ClientInfo) error {
	_, err := r.writer.Exec(`
		UPDATE devices SET
			screen_resolution = COALESCE(?, screen_resolution),
			os_version = COALESCE(?, os_version),
			client_version = COALESCE(?, client_version),
			ip_address = COALESCE(?, ip_address),
			updated_at = ?
		WHERE device_id = ?
	`, info.ScreenResolution, info.OSVersion, info.ClientVersion, info.IPAddress, nowISO(), deviceKey)
	return err
}

// MarkStaleOffline flips devices still marked online to offline when their
// last_seen is older than the cutoff. Returns the affected device keys.
func (r *Repository) MarkStaleOffline(cutoffISO string) ([]string, error) {
	rows, err := r.reader.Query(`
		SELECT device_id FROM devices
		WHERE status = 'online' AND (last_seen IS NULL OR last_seen < ?)
	`, cutoffISO)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, key := range keys {
		if _, err := r.writer.Exec(`
			UPDATE devices SET status = 'offline', updated_at = ? WHERE device_id = ?
		`, nowISO(), key); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// Counts returns total and online device counts.
func (r *Repository) Counts() (total int, online int, err error) {
	if err = r.reader.QueryRow(`SELECT COUNT(*) FROM devices`).Scan(&total); err != nil {
		return 0, 0, err
	}
	if err = r.reader.QueryRow(`SELECT COUNT(*) FROM devices WHERE status = 'online'`).Scan(&online); err != nil {
		return 0, 0, err
	}
	return total, online, nil
}
