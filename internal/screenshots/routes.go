package screenshots

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kioskhub/kiosk-hub-go/internal/api"
	"github.com/kioskhub/kiosk-hub-go/internal/apperrors"
	"github.com/kioskhub/kiosk-hub-go/internal/devices"
)

// RegisterRoutes wires screenshot routes to the router.
func RegisterRoutes(router chi.Router, service *Service, deviceService *devices.Service) {
	resolve := func(r *http.Request) (int64, error) {
		ref := chi.URLParam(r, "deviceId")
		device, err := deviceService.Resolve(ref)
		if err != nil {
			return 0, apperrors.NewInternalError("Failed to load device")
		}
		if device == nil {
			return 0, apperrors.NewNotFoundResource("Device", ref)
		}
		return device.ID, nil
	}

	router.Method(http.MethodGet, "/v1/screenshots/device/{deviceId}/latest", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		deviceID, err := resolve(r)
		if err != nil {
			return err
		}
		latest, err := service.Repo().Latest(deviceID)
		if err != nil {
			return apperrors.NewInternalError("Failed to load screenshot")
		}
		if latest == nil {
			return apperrors.NewAppError(apperrors.ErrorCodeScreenshotNone, "No screenshots for device", 404, nil)
		}
		return api.WriteResource(w, http.StatusOK, latest)
	}))

	router.Method(http.MethodGet, "/v1/screenshots/device/{deviceId}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		deviceID, err := resolve(r)
		if err != nil {
			return err
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, _ = strconv.Atoi(raw)
		}
		list, err := service.Repo().ListForDevice(deviceID, limit)
		if err != nil {
			return apperrors.NewInternalError("Failed to load screenshots")
		}
		return api.WriteList(w, r.URL.Path, list, false)
	}))

	router.Method(http.MethodGet, "/v1/screenshots/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id := chi.URLParam(r, "id")
		shot, err := service.Repo().Get(id)
		if err != nil {
			return apperrors.NewInternalError("Failed to load screenshot")
		}
		if shot == nil {
			return apperrors.NewAppError(apperrors.ErrorCodeScreenshotNone, "Screenshot not found", 404, nil)
		}
		return api.WriteResource(w, http.StatusOK, shot)
	}))

	router.Method(http.MethodDelete, "/v1/screenshots/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id := chi.URLParam(r, "id")
		deleted, err := service.Repo().Delete(id)
		if err != nil {
			return apperrors.NewInternalError("Failed to delete screenshot")
		}
		if !deleted {
			return apperrors.NewAppError(apperrors.ErrorCodeScreenshotNone, "Screenshot not found", 404, nil)
		}
		return api.WriteNoContent(w)
	}))
}
