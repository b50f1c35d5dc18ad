package broadcast

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kioskhub/kiosk-hub-go/internal/api"
	"github.com/kioskhub/kiosk-hub-go/internal/apperrors"
)

// RegisterRoutes wires broadcast routes to the router.
func RegisterRoutes(router chi.Router, service *Service) {
	router.Method(http.MethodPost, "/v1/broadcast/start", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var input StartInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return apperrors.NewValidationError("Invalid request body", nil)
		}
		switch input.Type {
		case "url":
			if input.URL == "" {
				return apperrors.NewValidationError("url is required for type=url", nil)
			}
		case "message":
			if input.Message == "" {
				return apperrors.NewValidationError("message is required for type=message", nil)
			}
		default:
			return apperrors.NewValidationError("type must be url or message", nil)
		}
		if input.DurationMs < 0 {
			return apperrors.NewValidationError("duration_ms must not be negative", nil)
		}

		started, ok := service.Start(input)
		if !ok {
			return apperrors.NewConflictError("A broadcast is already active", apperrors.ErrorCodeBroadcastActive)
		}
		return api.WriteResource(w, http.StatusCreated, map[string]any{
			"object":    "broadcast",
			"broadcast": started,
		})
	}))

	router.Method(http.MethodPost, "/v1/broadcast/end", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if !service.End() {
			return apperrors.NewConflictError("No broadcast is active", apperrors.ErrorCodeBroadcastNone)
		}
		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object": "broadcast_end",
			"ended":  true,
		})
	}))

	router.Method(http.MethodGet, "/v1/broadcast/active", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		active := service.Active()
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":    "broadcast_status",
			"active":    active != nil,
			"broadcast": active,
		})
	}))
}
