// Package control is the REST ingress for admin-initiated device commands.
// Each endpoint validates the target device, maps 1:1 onto an outbound
// session event, and hands it to the registry. Offline targets get 409;
// commands are never queued.
package control

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kioskhub/kiosk-hub-go/internal/api"
	"github.com/kioskhub/kiosk-hub-go/internal/apperrors"
	"github.com/kioskhub/kiosk-hub-go/internal/auth"
	"github.com/kioskhub/kiosk-hub-go/internal/devices"
	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

// Sender pushes an event to one device's session.
type Sender interface {
	SendToDevice(deviceKey string, event string, payload any) bool
}

// CommandRecorder logs accepted control commands for the audit trail.
type CommandRecorder interface {
	RecordCommand(deviceID int64, deviceKey, actor, command string)
}

// RegisterRoutes wires the control endpoints to the router.
func RegisterRoutes(router chi.Router, deviceService *devices.Service, sender Sender, recorder CommandRecorder) {
	send := func(r *http.Request, event string, payload any) error {
		device, err := resolveDevice(deviceService, r)
		if err != nil {
			return err
		}
		if !sender.SendToDevice(device.DeviceID, event, payload) {
			return apperrors.NewDeviceOfflineError(device.DeviceID)
		}
		if recorder != nil {
			actor := ""
			if user, ok := auth.UserFromContext(r.Context()); ok {
				actor = user.Sub
			}
			recorder.RecordCommand(device.ID, device.DeviceID, actor, event)
		}
		return nil
	}

	delivered := func(w http.ResponseWriter) error {
		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object":    "command",
			"delivered": true,
		})
	}

	router.Method(http.MethodPost, "/v1/devices/{id}/navigate", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body protocol.NavigateCommand
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
			return apperrors.NewValidationError("url is required", nil)
		}
		if err := send(r, protocol.EventDisplayNavigate, body); err != nil {
			return err
		}
		return delivered(w)
	}))

	router.Method(http.MethodPost, "/v1/devices/{id}/refresh", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := send(r, protocol.EventDisplayRefresh, nil); err != nil {
			return err
		}
		return delivered(w)
	}))

	router.Method(http.MethodPost, "/v1/devices/{id}/screenshot", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := send(r, protocol.EventScreenshotRequest, nil); err != nil {
			return err
		}
		return delivered(w)
	}))

	router.Method(http.MethodPost, "/v1/devices/{id}/restart", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := send(r, protocol.EventDeviceRestart, nil); err != nil {
			return err
		}
		return delivered(w)
	}))

	router.Method(http.MethodPost, "/v1/devices/{id}/config", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return apperrors.NewValidationError("Invalid request body", nil)
		}
		if err := send(r, protocol.EventConfigUpdate, body); err != nil {
			return err
		}
		return delivered(w)
	}))

	// Remote input.

	router.Method(http.MethodPost, "/v1/devices/{id}/click", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body protocol.ClickCommand
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return apperrors.NewValidationError("x and y are required", nil)
		}
		if err := send(r, protocol.EventRemoteClick, body); err != nil {
			return err
		}
		return delivered(w)
	}))

	router.Method(http.MethodPost, "/v1/devices/{id}/type", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body protocol.TypeCommand
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
			return apperrors.NewValidationError("text is required", nil)
		}
		if err := send(r, protocol.EventRemoteType, body); err != nil {
			return err
		}
		return delivered(w)
	}))

	router.Method(http.MethodPost, "/v1/devices/{id}/key", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body protocol.KeyCommand
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Key == "" {
			return apperrors.NewValidationError("key is required", nil)
		}
		if err := send(r, protocol.EventRemoteKey, body); err != nil {
			return err
		}
		return delivered(w)
	}))

	router.Method(http.MethodPost, "/v1/devices/{id}/scroll", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body protocol.ScrollCommand
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return apperrors.NewValidationError("deltaX and deltaY are required", nil)
		}
		if err := send(r, protocol.EventRemoteScroll, body); err != nil {
			return err
		}
		return delivered(w)
	}))

	// Playlist transport controls.

	playlistEvents := map[string]string{
		"pause":    protocol.EventPlaylistPause,
		"resume":   protocol.EventPlaylistResume,
		"next":     protocol.EventPlaylistNext,
		"previous": protocol.EventPlaylistPrevious,
	}
	for action, event := range playlistEvents {
		event := event
		router.Method(http.MethodPost, "/v1/devices/{id}/playlist/"+action, api.Handler(func(w http.ResponseWriter, r *http.Request) error {
			if err := send(r, event, nil); err != nil {
				return err
			}
			return delivered(w)
		}))
	}

	// Screencast controls.

	router.Method(http.MethodPost, "/v1/devices/{id}/screencast/start", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := send(r, protocol.EventScreencastStart, nil); err != nil {
			return err
		}
		return delivered(w)
	}))

	router.Method(http.MethodPost, "/v1/devices/{id}/screencast/stop", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := send(r, protocol.EventScreencastStop, nil); err != nil {
			return err
		}
		return delivered(w)
	}))
}

func resolveDevice(service *devices.Service, r *http.Request) (*devices.Device, error) {
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
