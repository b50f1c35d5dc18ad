package playlists

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

// Resolver computes a device's effective playlist from persisted state:
// among the device's assigned playlists with is_active set, the one with the
// lowest id wins; its items come back sorted by order_index with content
// joined. A pure read with no side effects.
type Resolver struct {
	reader *sql.DB
}

// NewResolver creates a Resolver on the read pool.
func NewResolver(dbPair DBPair) *Resolver {
	return &Resolver{reader: dbPair.Reader()}
}

// ResolveByKey resolves the effective playlist for a device identified by its
// stable string id. Returns (0, empty) when the device is unknown, has no
// assignments, or none of its playlists is active.
func (r *Resolver) ResolveByKey(deviceKey string) (int64, []protocol.PlaylistItem, error) {
	var deviceID int64
	err := r.reader.QueryRow(`SELECT id FROM devices WHERE device_id = ?`, deviceKey).Scan(&deviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, []protocol.PlaylistItem{}, nil
		}
		return 0, nil, err
	}
	return r.ResolveByID(deviceID)
}

// ResolveByID resolves the effective playlist for a device surrogate id.
func (r *Resolver) ResolveByID(deviceID int64) (int64, []protocol.PlaylistItem, error) {
	// Lowest active playlist id wins the tie-break.
	var playlistID int64
	err := r.reader.QueryRow(`
		SELECT p.id
		FROM playlists p
		JOIN device_playlists dp ON dp.playlist_id = p.id
		WHERE dp.device_id = ? AND p.is_active = 1
		ORDER BY p.id ASC
		LIMIT 1
	`, deviceID).Scan(&playlistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, []protocol.PlaylistItem{}, nil
		}
		return 0, nil, err
	}

	rows, err := r.reader.Query(`
		SELECT pi.id, pi.playlist_id, pi.content_id, c.name, c.url, c.is_interactive,
			pi.display_duration, pi.order_index, pi.time_window_start, pi.time_window_end, pi.days_of_week
		FROM playlist_items pi
		JOIN content c ON c.id = pi.content_id
		WHERE pi.playlist_id = ?
		ORDER BY pi.order_index ASC, pi.id ASC
	`, playlistID)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	items := make([]protocol.PlaylistItem, 0)
	for rows.Next() {
		var item protocol.PlaylistItem
		var daysJSON sql.NullString
		if err := rows.Scan(&item.ID, &item.PlaylistID, &item.ContentID, &item.Name, &item.URL,
			&item.IsInteractive, &item.DisplayDuration, &item.OrderIndex,
			&item.TimeWindowStart, &item.TimeWindowEnd, &daysJSON); err != nil {
			return 0, nil, err
		}
		if daysJSON.Valid && daysJSON.String != "" {
			if err := json.Unmarshal([]byte(daysJSON.String), &item.DaysOfWeek); err != nil {
				item.DaysOfWeek = nil
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	return playlistID, items, nil
}
