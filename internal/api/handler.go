package api

import (
	"log"
	"net/http"

	"github.com/kioskhub/kiosk-hub-go/internal/apperrors"
)

// Handler is an http.Handler whose returned errors render as the standard
// error body. Route code returns AppErrors (plain errors map to 500) instead
// of writing failure responses by hand.
type Handler func(w http.ResponseWriter, r *http.Request) error

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h(w, r); err != nil {
		WriteError(w, r, err)
	}
}

// RecovererMiddleware turns a handler panic into a 500 for the one request
// that hit it, keeping the hub itself up.
func RecovererMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Printf("request %s: panic recovered: %v", RequestID(r), recovered)
				WriteError(w, r, apperrors.NewInternalError("Internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
