package server

import (
	"context"
	"log"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kioskhub/kiosk-hub-go/internal/api"
	"github.com/kioskhub/kiosk-hub-go/internal/audit"
	"github.com/kioskhub/kiosk-hub-go/internal/auth"
	"github.com/kioskhub/kiosk-hub-go/internal/broadcast"
	"github.com/kioskhub/kiosk-hub-go/internal/config"
	"github.com/kioskhub/kiosk-hub-go/internal/content"
	"github.com/kioskhub/kiosk-hub-go/internal/control"
	"github.com/kioskhub/kiosk-hub-go/internal/db"
	"github.com/kioskhub/kiosk-hub-go/internal/devices"
	"github.com/kioskhub/kiosk-hub-go/internal/openapi"
	"github.com/kioskhub/kiosk-hub-go/internal/playlists"
	"github.com/kioskhub/kiosk-hub-go/internal/realtime"
	"github.com/kioskhub/kiosk-hub-go/internal/screenshots"
	"github.com/kioskhub/kiosk-hub-go/internal/system"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLoggerMiddleware logs all incoming HTTP requests
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, wrapped.status, time.Since(start).Round(time.Millisecond))
	})
}

// Options controls server wiring.
type Options struct {
	// DisableBackgroundJobs skips the cron schedulers (for tests).
	DisableBackgroundJobs bool
}

// NewHandler builds the HTTP handler and returns a shutdown function.
func NewHandler(cfg config.Config, options Options) (http.Handler, func(context.Context) error, error) {
	log.Printf("Using database: %s", cfg.SQLiteDBPath)
	dbPair, err := db.Init(cfg.SQLiteDBPath)
	if err != nil {
		return nil, nil, err
	}

	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(requestLoggerMiddleware)
	router.Use(api.RequestIDMiddleware)
	router.Use(api.RecovererMiddleware)
	router.Use(auth.Middleware(cfg))

	openapi.RegisterRoutes(router)
	auth.RegisterRoutes(router, cfg)

	// Device status is considered stale after three missed heartbeats.
	staleness := 3 * time.Duration(cfg.HeartbeatIntervalSec) * time.Second
	deviceRepo := devices.NewRepository(dbPair)
	deviceService := devices.NewService(deviceRepo, nil, staleness)

	registry := realtime.NewRegistry(nil)
	deviceService.SetConnectionChecker(registry)

	playlistRepo := playlists.NewRepository(dbPair)
	resolver := playlists.NewResolver(dbPair)
	playlistService := playlists.NewService(playlistRepo, resolver, registry, nil)

	contentRepo := content.NewRepository(dbPair)

	screenshotRepo := screenshots.NewRepository(dbPair)
	screenshotService := screenshots.NewService(screenshotRepo, cfg.ScreenshotKeepPerDevice, cfg.ScreenshotMaxAgeDays, nil)

	auditRepo := audit.NewRepository(dbPair)
	auditService := audit.NewService(auditRepo, cfg.AuditRetentionDays, nil)

	broadcastService := broadcast.NewService(registry, nil)

	eventRouter := realtime.NewRouter(registry, deviceService, screenshotService, auditService, nil)
	gateway := realtime.NewGateway(cfg, registry, eventRouter, deviceService, playlistService, broadcastService, nil)
	router.Handle("/v1/ws", gateway)

	devices.RegisterRoutes(router, deviceService, cfg, auditService)
	content.RegisterRoutes(router, contentRepo, playlistService)
	playlists.RegisterRoutes(router, playlistService)
	broadcast.RegisterRoutes(router, broadcastService)
	control.RegisterRoutes(router, deviceService, registry, auditService)
	screenshots.RegisterRoutes(router, screenshotService, deviceService)
	audit.RegisterRoutes(router, auditService)

	systemService := system.NewService(dbPair, nil, registry, deviceRepo, broadcastService)
	system.RegisterRoutes(router, systemService)

	// Serve static files
	router.Handle("/v1/assets/*", http.StripPrefix("/v1/assets/", http.FileServer(http.Dir("./assets"))))

	if !options.DisableBackgroundJobs {
		deviceService.StartStaleSweep()
		screenshotService.StartRetention()
		auditService.StartRetention()
	}

	auditService.Record(audit.WriteEventInput{
		Type:    audit.EventSystemStartup,
		Level:   audit.EventLevelInfo,
		Message: "Hub started",
	})

	shutdown := func(ctx context.Context) error {
		deviceService.StopStaleSweep()
		screenshotService.StopRetention()
		auditService.StopRetention()
		if ctx == nil {
			ctx = context.Background()
		}
		return dbPair.Close()
	}

	return router, shutdown, nil
}
