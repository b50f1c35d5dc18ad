package screenshots

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// DBPair interface for dependency injection (matches db.DBPair).
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

// Repository handles database operations for screenshots.
type Repository struct {
	reader *sql.DB
	writer *sql.DB
}

// NewRepository creates a new screenshot Repository.
func NewRepository(dbPair DBPair) *Repository {
	return &Repository{reader: dbPair.Reader(), writer: dbPair.Writer()}
}

// Save stores a screenshot and returns its generated id.
func (r *Repository) Save(deviceID int64, imageData string, url string) (string, error) {
	id := uuid.NewString()
	var urlVal any
	if url != "" {
		urlVal = url
	}
	_, err := r.writer.Exec(`
		INSERT INTO screenshots (id, device_id, image_data, url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, deviceID, imageData, urlVal, nowISO())
	if err != nil {
		return "", err
	}
	return id, nil
}

// Get returns one screenshot with its image data, or nil when missing.
func (r *Repository) Get(id string) (*Screenshot, error) {
	row := r.reader.QueryRow(`
		SELECT id, device_id, image_data, url, created_at
		FROM screenshots WHERE id = ?
	`, id)
	var s Screenshot
	if err := row.Scan(&s.ID, &s.DeviceID, &s.ImageData, &s.URL, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Latest returns the most recent screenshot for a device, or nil.
func (r *Repository) Latest(deviceID int64) (*Screenshot, error) {
	row := r.reader.QueryRow(`
		SELECT id, device_id, image_data, url, created_at
		FROM screenshots WHERE device_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, deviceID)
	var s Screenshot
	if err := row.Scan(&s.ID, &s.DeviceID, &s.ImageData, &s.URL, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListForDevice returns screenshot metadata for a device, newest first,
// without the image data.
func (r *Repository) ListForDevice(deviceID int64, limit int) ([]Screenshot, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.reader.Query(`
		SELECT id, device_id, url, created_at
		FROM screenshots WHERE device_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []Screenshot{}
	for rows.Next() {
		var s Screenshot
		if err := rows.Scan(&s.ID, &s.DeviceID, &s.URL, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Delete removes one screenshot. Returns false when it did not exist.
func (r *Repository) Delete(id string) (bool, error) {
	result, err := r.writer.Exec(`DELETE FROM screenshots WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// PruneKeepNewest deletes all but the newest keep screenshots per device.
// Returns the number of rows removed.
func (r *Repository) PruneKeepNewest(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	result, err := r.writer.Exec(`
		DELETE FROM screenshots WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY device_id ORDER BY created_at DESC, id DESC
				) AS rank
				FROM screenshots
			) WHERE rank <= ?
		)
	`, keep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// PruneOlderThan deletes screenshots captured before cutoffISO.
func (r *Repository) PruneOlderThan(cutoffISO string) (int64, error) {
	result, err := r.writer.Exec(`DELETE FROM screenshots WHERE created_at < ?`, cutoffISO)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
