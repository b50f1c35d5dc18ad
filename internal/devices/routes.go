package devices

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kioskhub/kiosk-hub-go/internal/api"
	"github.com/kioskhub/kiosk-hub-go/internal/apperrors"
	"github.com/kioskhub/kiosk-hub-go/internal/auth"
	"github.com/kioskhub/kiosk-hub-go/internal/config"
)

// LogProvider supplies recent log entries for a device. Implemented by the
// audit service; kept narrow to avoid a package cycle.
type LogProvider interface {
	DeviceLogs(deviceID int64, limit int) (any, error)
}

// RegisterRoutes wires device routes to the router.
func RegisterRoutes(router chi.Router, service *Service, cfg config.Config, logs LogProvider) {
	router.Method(http.MethodGet, "/v1/devices", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		list, err := service.Repo().List()
		if err != nil {
			return apperrors.NewInternalError("Failed to load devices")
		}
		return api.WriteList(w, "/v1/devices", list, false)
	}))

	router.Method(http.MethodPost, "/v1/devices", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var input CreateDeviceInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return apperrors.NewValidationError("Invalid request body", nil)
		}
		input.DeviceID = strings.TrimSpace(input.DeviceID)
		input.Name = strings.TrimSpace(input.Name)
		if input.DeviceID == "" {
			return apperrors.NewValidationError("device_id is required", nil)
		}
		if input.Name == "" {
			return apperrors.NewValidationError("name is required", nil)
		}

		device, err := service.Repo().Create(input)
		if err != nil {
			if err == ErrDeviceIDTaken {
				return apperrors.NewConflictError("device_id already exists: "+input.DeviceID, apperrors.ErrorCodeDeviceIDTaken)
			}
			return apperrors.NewInternalError("Failed to create device")
		}
		return api.WriteResource(w, http.StatusCreated, device)
	}))

	router.Method(http.MethodGet, "/v1/devices/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		device, err := resolveDevice(service, r)
		if err != nil {
			return err
		}
		return api.WriteResource(w, http.StatusOK, device)
	}))

	router.Method(http.MethodPut, "/v1/devices/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		device, err := resolveDevice(service, r)
		if err != nil {
			return err
		}

		var input UpdateDeviceInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return apperrors.NewValidationError("Invalid request body", nil)
		}
		if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
			return apperrors.NewValidationError("name must not be empty", nil)
		}

		updated, err2 := service.Repo().Update(device.ID, input)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to update device")
		}
		return api.WriteResource(w, http.StatusOK, updated)
	}))

	router.Method(http.MethodDelete, "/v1/devices/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		device, err := resolveDevice(service, r)
		if err != nil {
			return err
		}
		deleted, err2 := service.Repo().Delete(device.ID)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to delete device")
		}
		if !deleted {
			return apperrors.NewNotFoundResource("Device", device.DeviceID)
		}
		return api.WriteNoContent(w)
	}))

	// Mints a token pair for a provisioned device; the operator installs it
	// in the agent's environment.
	router.Method(http.MethodPost, "/v1/devices/{id}/token", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		device, err := resolveDevice(service, r)
		if err != nil {
			return err
		}
		tokens, err2 := auth.GenerateDeviceTokenPair(cfg, device.ID, device.DeviceID)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to generate device token")
		}
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":         "device_token_pair",
			"device_id":      device.DeviceID,
			"access_token":   tokens.AccessToken,
			"refresh_token":  tokens.RefreshToken,
			"expires_in_sec": tokens.ExpiresInSec,
		})
	}))

	router.Method(http.MethodGet, "/v1/devices/{id}/logs", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		device, err := resolveDevice(service, r)
		if err != nil {
			return err
		}
		entries, err2 := logs.DeviceLogs(device.ID, 100)
		if err2 != nil {
			return apperrors.NewInternalError("Failed to load device logs")
		}
		return api.WriteList(w, "/v1/devices/"+device.DeviceID+"/logs", entries, false)
	}))
}

func resolveDevice(service *Service, r *http.Request) (*Device, error) {
	ref := chi.URLParam(r, "id")
	device, err := service.Resolve(ref)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to load device")
	}
	if device == nil {
		return nil, apperrors.NewNotFoundResource("Device", ref)
	}
	return device, nil
}
