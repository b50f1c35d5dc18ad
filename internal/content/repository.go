package content

import (
	"database/sql"
	"errors"
)

// DBPair interface for dependency injection (matches db.DBPair).
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

// Repository handles database operations for content.
type Repository struct {
	reader *sql.DB
	writer *sql.DB
}

// NewRepository creates a new content Repository.
func NewRepository(dbPair DBPair) *Repository {
	return &Repository{reader: dbPair.Reader(), writer: dbPair.Writer()}
}

const contentColumns = `id, name, url, description, is_interactive, thumbnail_url, created_at, updated_at`

func scanContent(row interface{ Scan(...any) error }) (*Content, error) {
	var c Content
	err := row.Scan(&c.ID, &c.Name, &c.URL, &c.Description, &c.IsInteractive, &c.ThumbnailURL, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// Create inserts a new content row.
func (r *Repository) Create(input CreateContentInput) (*Content, error) {
	now := nowISO()
	result, err := r.writer.Exec(`
		INSERT INTO content (name, url, description, is_interactive, thumbnail_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, input.Name, input.URL, input.Description, input.IsInteractive, input.ThumbnailURL, now, now)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// GetByID fetches content by id. Returns nil when absent.
func (r *Repository) GetByID(id int64) (*Content, error) {
	row := r.reader.QueryRow(`SELECT `+contentColumns+` FROM content WHERE id = ?`, id)
	return scanContent(row)
}

// List returns all content ordered by name.
func (r *Repository) List() ([]Content, error) {
	rows, err := r.reader.Query(`SELECT ` + contentColumns + ` FROM content ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Content, 0)
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// Update applies changes. Returns the updated row, nil when absent.
func (r *Repository) Update(id int64, input UpdateContentInput) (*Content, error) {
	existing, err := r.GetByID(id)
	if err != nil || existing == nil {
		return existing, err
	}

	name := existing.Name
	if input.Name != nil {
		name = *input.Name
	}
	url := existing.URL
	if input.URL != nil {
		url = *input.URL
	}
	description := existing.Description
	if input.Description != nil {
		description = input.Description
	}
	isInteractive := existing.IsInteractive
	if input.IsInteractive != nil {
		isInteractive = *input.IsInteractive
	}
	thumbnail := existing.ThumbnailURL
	if input.ThumbnailURL != nil {
		thumbnail = input.ThumbnailURL
	}

	_, err = r.writer.Exec(`
		UPDATE content SET name = ?, url = ?, description = ?, is_interactive = ?, thumbnail_url = ?, updated_at = ?
		WHERE id = ?
	`, name, url, description, isInteractive, thumbnail, nowISO(), id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// Delete removes content. Playlist items referencing it cascade.
func (r *Repository) Delete(id int64) (bool, error) {
	result, err := r.writer.Exec(`DELETE FROM content WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}
