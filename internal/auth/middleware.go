package auth

import (
	"net/http"
	"strings"

	"github.com/kioskhub/kiosk-hub-go/internal/api"
	"github.com/kioskhub/kiosk-hub-go/internal/apperrors"
	"github.com/kioskhub/kiosk-hub-go/internal/config"
)

var publicRoutes = map[string]struct{}{
	"/v1/auth/login":   {},
	"/v1/auth/refresh": {},
	"/v1/health":       {},
	"/v1/health/live":  {},
	"/v1/health/ready": {},
}

var publicPrefixes = []string{
	"/v1/health",
	"/v1/openapi",
	"/v1/assets",
	// The websocket gateway authenticates during its own handshake; bearer
	// validation there happens before the upgrade, not in this middleware.
	"/v1/ws",
}

// Middleware validates JWT access tokens for protected REST routes.
// REST is an admin surface: device tokens are only honored on the websocket
// gateway, so anything that reaches a protected route must be an admin.
func Middleware(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, err := BearerFromRequest(r)
			if err != nil {
				api.WriteError(w, r, err)
				return
			}

			payload, verifyErr := VerifyToken(cfg, token)
			if verifyErr != nil {
				if verifyErr == ErrTokenExpired {
					api.WriteError(w, r, apperrors.NewUnauthorizedError("Token has expired", apperrors.ErrorCodeAuthTokenExpired))
					return
				}
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Invalid token", apperrors.ErrorCodeAuthTokenInvalid))
				return
			}

			if payload.Type != TokenTypeAccess {
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Invalid token type", apperrors.ErrorCodeAuthTokenInvalid))
				return
			}
			if payload.Role != RoleAdmin {
				api.WriteError(w, r, apperrors.NewForbiddenError("Admin token required"))
				return
			}

			user := User{
				Sub:       payload.Sub,
				Role:      payload.Role,
				Type:      payload.Type,
				DeviceID:  payload.DeviceID,
				DeviceKey: payload.DeviceKey,
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// BearerFromRequest extracts the bearer token from the Authorization header,
// falling back to the "token" query parameter for websocket clients that
// cannot set headers.
func BearerFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", apperrors.NewUnauthorizedError("Invalid Authorization header format")
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return "", apperrors.NewUnauthorizedError("Invalid Authorization header format")
		}
		return token, nil
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	return "", apperrors.NewUnauthorizedError("Missing Authorization header")
}

func isPublicRoute(path string) bool {
	if _, ok := publicRoutes[path]; ok {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
