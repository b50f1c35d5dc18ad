package playlists

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kioskhub/kiosk-hub-go/internal/api"
	"github.com/kioskhub/kiosk-hub-go/internal/apperrors"
)

// RegisterRoutes wires playlist, item and assignment routes to the router.
func RegisterRoutes(router chi.Router, service *Service) {
	repo := service.Repo()

	// -----------------------------------------------------------------------
	// Playlist CRUD
	// -----------------------------------------------------------------------

	router.Method(http.MethodGet, "/v1/playlists", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		list, err := repo.List()
		if err != nil {
			return apperrors.NewInternalError("Failed to load playlists")
		}
		return api.WriteList(w, "/v1/playlists", list, false)
	}))

	router.Method(http.MethodPost, "/v1/playlists", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var input CreatePlaylistInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return apperrors.NewValidationError("Invalid request body", nil)
		}
		input.Name = strings.TrimSpace(input.Name)
		if input.Name == "" {
			return apperrors.NewValidationError("name is required", nil)
		}

		created, err := repo.Create(input)
		if err != nil {
			return apperrors.NewInternalError("Failed to create playlist")
		}
		// A brand-new playlist has no assignments, so there is nothing to
		// propagate yet.
		return api.WriteResource(w, http.StatusCreated, created)
	}))

	router.Method(http.MethodGet, "/v1/playlists/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "id")
		if err != nil {
			return err
		}
		playlist, err2 := repo.GetByID(id)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to load playlist")
		}
		if playlist == nil {
			return apperrors.NewNotFoundResource("Playlist", chi.URLParam(r, "id"))
		}
		return api.WriteResource(w, http.StatusOK, playlist)
	}))

	router.Method(http.MethodPut, "/v1/playlists/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "id")
		if err != nil {
			return err
		}
		var input UpdatePlaylistInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return apperrors.NewValidationError("Invalid request body", nil)
		}
		if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
			return apperrors.NewValidationError("name must not be empty", nil)
		}

		updated, err2 := repo.Update(id, input)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to update playlist")
		}
		if updated == nil {
			return apperrors.NewNotFoundResource("Playlist", chi.URLParam(r, "id"))
		}

		service.PropagatePlaylist(id)
		return api.WriteResource(w, http.StatusOK, updated)
	}))

	router.Method(http.MethodDelete, "/v1/playlists/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "id")
		if err != nil {
			return err
		}

		// Snapshot push targets before the cascade removes the assignments.
		affected, _ := repo.DeviceKeysForPlaylist(id)

		deleted, err2 := repo.Delete(id)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to delete playlist")
		}
		if !deleted {
			return apperrors.NewNotFoundResource("Playlist", chi.URLParam(r, "id"))
		}

		service.PushCurrentPlaylists(affected)
		return api.WriteNoContent(w)
	}))

	// -----------------------------------------------------------------------
	// Items
	// -----------------------------------------------------------------------

	router.Method(http.MethodGet, "/v1/playlists/{id}/items", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "id")
		if err != nil {
			return err
		}
		playlist, err2 := repo.GetByID(id)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to load playlist")
		}
		if playlist == nil {
			return apperrors.NewNotFoundResource("Playlist", chi.URLParam(r, "id"))
		}
		items, err2 := repo.ListItems(id)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to load playlist items")
		}
		return api.WriteList(w, "/v1/playlists/"+chi.URLParam(r, "id")+"/items", items, false)
	}))

	router.Method(http.MethodPost, "/v1/playlists/items", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var input CreateItemInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return apperrors.NewValidationError("Invalid request body", nil)
		}
		if input.PlaylistID == 0 {
			return apperrors.NewValidationError("playlist_id is required", nil)
		}
		if input.ContentID == 0 {
			return apperrors.NewValidationError("content_id is required", nil)
		}
		if input.DisplayDuration < 0 {
			return apperrors.NewValidationError("display_duration must not be negative", nil)
		}
		if err := validateConstraints(input.TimeWindowStart, input.TimeWindowEnd, input.DaysOfWeek); err != nil {
			return err
		}

		item, err := repo.CreateItem(input)
		if err != nil {
			if errors.Is(err, ErrPlaylistNotFound) {
				return apperrors.NewNotFoundResource("Playlist", strconv.FormatInt(input.PlaylistID, 10))
			}
			return apperrors.NewInternalError("Failed to create playlist item")
		}

		service.PropagatePlaylist(input.PlaylistID)
		return api.WriteResource(w, http.StatusCreated, item)
	}))

	router.Method(http.MethodPut, "/v1/playlists/items/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "id")
		if err != nil {
			return err
		}
		var input UpdateItemInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return apperrors.NewValidationError("Invalid request body", nil)
		}
		if err := validateConstraints(input.TimeWindowStart, input.TimeWindowEnd, input.DaysOfWeek); err != nil {
			return err
		}

		item, err2 := repo.UpdateItem(id, input)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to update playlist item")
		}
		if item == nil {
			return apperrors.NewNotFoundResource("Playlist item", chi.URLParam(r, "id"))
		}

		service.PropagatePlaylist(item.PlaylistID)
		return api.WriteResource(w, http.StatusOK, item)
	}))

	router.Method(http.MethodDelete, "/v1/playlists/items/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "id")
		if err != nil {
			return err
		}
		playlistID, deleted, err2 := repo.DeleteItem(id)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to delete playlist item")
		}
		if !deleted {
			return apperrors.NewNotFoundResource("Playlist item", chi.URLParam(r, "id"))
		}

		service.PropagatePlaylist(playlistID)
		return api.WriteNoContent(w)
	}))

	// -----------------------------------------------------------------------
	// Assignments
	// -----------------------------------------------------------------------

	router.Method(http.MethodPost, "/v1/playlists/assign", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var input AssignInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return apperrors.NewValidationError("Invalid request body", nil)
		}
		if input.DeviceID == 0 || input.PlaylistID == 0 {
			return apperrors.NewValidationError("deviceId and playlistId are required", nil)
		}

		assignment, err := repo.Assign(input.DeviceID, input.PlaylistID)
		if err != nil {
			switch {
			case errors.Is(err, ErrAssignmentExists):
				return apperrors.NewConflictError("Playlist is already assigned to this device", apperrors.ErrorCodeAssignmentExists)
			case errors.Is(err, ErrDeviceNotFound):
				return apperrors.NewNotFoundResource("Device", strconv.FormatInt(input.DeviceID, 10))
			case errors.Is(err, ErrPlaylistNotFound):
				return apperrors.NewNotFoundResource("Playlist", strconv.FormatInt(input.PlaylistID, 10))
			}
			return apperrors.NewInternalError("Failed to assign playlist")
		}

		if key, err := deviceKeyByID(repo, input.DeviceID); err == nil {
			service.PropagateDeviceKey(key)
		}
		return api.WriteResource(w, http.StatusCreated, assignment)
	}))

	router.Method(http.MethodDelete, "/v1/playlists/assign/device/{deviceId}/playlist/{playlistId}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		deviceID, err := pathID(r, "deviceId")
		if err != nil {
			return err
		}
		playlistID, err := pathID(r, "playlistId")
		if err != nil {
			return err
		}

		removed, err2 := repo.Unassign(deviceID, playlistID)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to remove assignment")
		}
		if !removed {
			return apperrors.NewNotFoundError("Assignment not found", map[string]any{
				"device_id":   deviceID,
				"playlist_id": playlistID,
			})
		}

		if key, err := deviceKeyByID(repo, deviceID); err == nil {
			service.PropagateDeviceKey(key)
		}
		return api.WriteNoContent(w)
	}))

	router.Method(http.MethodGet, "/v1/playlists/device/{deviceId}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		deviceID, err := pathID(r, "deviceId")
		if err != nil {
			return err
		}
		list, err2 := repo.PlaylistsForDevice(deviceID)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to load device playlists")
		}
		return api.WriteList(w, "/v1/playlists/device/"+chi.URLParam(r, "deviceId"), list, false)
	}))

	router.Method(http.MethodGet, "/v1/playlists/{id}/devices", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "id")
		if err != nil {
			return err
		}
		list, err2 := repo.DevicesForPlaylist(id)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to load playlist devices")
		}
		return api.WriteList(w, "/v1/playlists/"+chi.URLParam(r, "id")+"/devices", list, false)
	}))
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("Invalid "+name+": "+raw, nil)
	}
	return id, nil
}

func deviceKeyByID(repo *Repository, deviceID int64) (string, error) {
	var key string
	err := repo.reader.QueryRow(`SELECT device_id FROM devices WHERE id = ?`, deviceID).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrDeviceNotFound
		}
		return "", err
	}
	return key, nil
}

// validateConstraints checks item scheduling constraints. Times are "HH:MM"
// zero-padded local time; days are 0..6 with 0 = Sunday. Start and end must
// come as a pair.
func validateConstraints(start, end *string, days []int) error {
	if (start == nil) != (end == nil) {
		return apperrors.NewValidationError("time_window_start and time_window_end must both be set", nil)
	}
	if start != nil {
		if !validHHMM(*start) || !validHHMM(*end) {
			return apperrors.NewValidationError("time window must be zero-padded HH:MM", nil)
		}
	}
	for _, day := range days {
		if day < 0 || day > 6 {
			return apperrors.NewValidationError("days_of_week values must be 0..6", nil)
		}
	}
	return nil
}

func validHHMM(value string) bool {
	if len(value) != 5 || value[2] != ':' {
		return false
	}
	hh, err := strconv.Atoi(value[:2])
	if err != nil || hh < 0 || hh > 23 {
		return false
	}
	mm, err := strconv.Atoi(value[3:])
	if err != nil || mm < 0 || mm > 59 {
		return false
	}
	return true
}
