package audit

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

// Repository handles database operations for audit events.
type Repository struct {
	reader *sql.DB
	writer *sql.DB
}

// NewRepository creates a new audit Repository.
func NewRepository(dbPair DBPair) *Repository {
	return &Repository{reader: dbPair.Reader(), writer: dbPair.Writer()}
}

// Write appends one event and returns its id.
func (r *Repository) Write(input WriteEventInput) (int64, error) {
	level := input.Level
	if level == "" {
		level = EventLevelInfo
	}
	var details any
	if len(input.Details) > 0 {
		raw, err := json.Marshal(input.Details)
		if err != nil {
			return 0, err
		}
		details = string(raw)
	}
	var actor any
	if input.Actor != "" {
		actor = input.Actor
	}
	result, err := r.writer.Exec(`
		INSERT INTO audit_events (type, level, message, device_id, actor, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(input.Type), string(level), input.Message, input.DeviceID, actor, details, nowISO())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Get returns one event by id, or nil when missing.
func (r *Repository) Get(id int64) (*Event, error) {
	row := r.reader.QueryRow(`
		SELECT id, type, level, message, device_id, actor, details, created_at
		FROM audit_events WHERE id = ?
	`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return event, nil
}

// List returns events newest first, applying the filter.
func (r *Repository) List(filter ListFilter) ([]Event, error) {
	query := `SELECT id, type, level, message, device_id, actor, details, created_at FROM audit_events`
	conditions := []string{}
	args := []any{}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Level != "" {
		conditions = append(conditions, "level = ?")
		args = append(args, string(filter.Level))
	}
	if filter.DeviceID != 0 {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.reader.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// PruneOlderThan deletes events created before cutoffISO.
func (r *Repository) PruneOlderThan(cutoffISO string) (int64, error) {
	result, err := r.writer.Exec(`DELETE FROM audit_events WHERE created_at < ?`, cutoffISO)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanEvent(row interface{ Scan(...any) error }) (*Event, error) {
	var e Event
	var eventType, level string
	var detailsRaw sql.NullString
	if err := row.Scan(&e.ID, &eventType, &level, &e.Message, &e.DeviceID, &e.Actor, &detailsRaw, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Type = EventType(eventType)
	e.Level = EventLevel(level)
	if detailsRaw.Valid && detailsRaw.String != "" {
		// Tolerate corrupt details; the event row itself is still useful.
		_ = json.Unmarshal([]byte(detailsRaw.String), &e.Details)
	}
	return &e, nil
}
