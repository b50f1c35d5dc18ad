package content

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kioskhub/kiosk-hub-go/internal/api"
	"github.com/kioskhub/kiosk-hub-go/internal/apperrors"
)

// PlaylistPropagator lets content mutations trigger content-update pushes.
// Deleting content cascades into playlist items, which changes the effective
// playlist of any device assigned to a playlist that referenced it.
type PlaylistPropagator interface {
	DevicesUsingContent(contentID int64) ([]string, error)
	PushCurrentPlaylists(deviceKeys []string)
}

// RegisterRoutes wires content routes to the router.
func RegisterRoutes(router chi.Router, repo *Repository, propagator PlaylistPropagator) {
	router.Method(http.MethodGet, "/v1/content", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		items, err := repo.List()
		if err != nil {
			return apperrors.NewInternalError("Failed to load content")
		}
		return api.WriteList(w, "/v1/content", items, false)
	}))

	router.Method(http.MethodPost, "/v1/content", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var input CreateContentInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return apperrors.NewValidationError("Invalid request body", nil)
		}
		input.Name = strings.TrimSpace(input.Name)
		input.URL = strings.TrimSpace(input.URL)
		if input.Name == "" {
			return apperrors.NewValidationError("name is required", nil)
		}
		if input.URL == "" {
			return apperrors.NewValidationError("url is required", nil)
		}

		created, err := repo.Create(input)
		if err != nil {
			return apperrors.NewInternalError("Failed to create content")
		}
		return api.WriteResource(w, http.StatusCreated, created)
	}))

	router.Method(http.MethodGet, "/v1/content/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := parseID(r)
		if err != nil {
			return err
		}
		item, err2 := repo.GetByID(id)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to load content")
		}
		if item == nil {
			return apperrors.NewNotFoundResource("Content", chi.URLParam(r, "id"))
		}
		return api.WriteResource(w, http.StatusOK, item)
	}))

	router.Method(http.MethodPut, "/v1/content/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := parseID(r)
		if err != nil {
			return err
		}
		var input UpdateContentInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return apperrors.NewValidationError("Invalid request body", nil)
		}

		updated, err2 := repo.Update(id, input)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to update content")
		}
		if updated == nil {
			return apperrors.NewNotFoundResource("Content", chi.URLParam(r, "id"))
		}

		// URL changes alter what devices should be showing.
		if input.URL != nil && propagator != nil {
			if keys, err := propagator.DevicesUsingContent(id); err == nil {
				propagator.PushCurrentPlaylists(keys)
			}
		}
		return api.WriteResource(w, http.StatusOK, updated)
	}))

	router.Method(http.MethodDelete, "/v1/content/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := parseID(r)
		if err != nil {
			return err
		}

		// Snapshot affected devices before the cascade removes the items.
		var affected []string
		if propagator != nil {
			affected, _ = propagator.DevicesUsingContent(id)
		}

		deleted, err2 := repo.Delete(id)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to delete content")
		}
		if !deleted {
			return apperrors.NewNotFoundResource("Content", chi.URLParam(r, "id"))
		}

		if propagator != nil {
			propagator.PushCurrentPlaylists(affected)
		}
		return api.WriteNoContent(w)
	}))
}

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("Invalid content id: "+raw, nil)
	}
	return id, nil
}
