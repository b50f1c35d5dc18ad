package audit

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kioskhub/kiosk-hub-go/internal/api"
	"github.com/kioskhub/kiosk-hub-go/internal/apperrors"
)

// RegisterRoutes wires the audit event routes to the router.
func RegisterRoutes(router chi.Router, service *Service) {
	router.Method(http.MethodGet, "/v1/events", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		filter := ListFilter{
			Type:  EventType(r.URL.Query().Get("type")),
			Level: EventLevel(r.URL.Query().Get("level")),
		}
		if raw := r.URL.Query().Get("deviceId"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return apperrors.NewValidationError("deviceId must be numeric", nil)
			}
			filter.DeviceID = id
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			filter.Limit, _ = strconv.Atoi(raw)
		}

		events, err := service.Repo().List(filter)
		if err != nil {
			return apperrors.NewInternalError("Failed to load events")
		}
		return api.WriteList(w, "/v1/events", events, false)
	}))

	router.Method(http.MethodGet, "/v1/events/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			return apperrors.NewValidationError("id must be numeric", nil)
		}
		event, err := service.Repo().Get(id)
		if err != nil {
			return apperrors.NewInternalError("Failed to load event")
		}
		if event == nil {
			return apperrors.NewAppError(apperrors.ErrorCodeEventNotFound, "Event not found", 404, nil)
		}
		return api.WriteResource(w, http.StatusOK, event)
	}))
}
