package realtime

import (
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kioskhub/kiosk-hub-go/internal/auth"
	"github.com/kioskhub/kiosk-hub-go/internal/config"
	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

// DeviceLifecycleSink observes device sessions coming and going, used to
// persist status transitions.
type DeviceLifecycleSink interface {
	HandleConnect(deviceKey string, ip string)
	HandleDisconnect(deviceKey string)
}

// PlaylistPusher pushes the current effective playlist to one device. The
// gateway invokes it exactly once per device connect, so a reconnecting
// device always starts from full state.
type PlaylistPusher interface {
	PropagateDeviceKey(deviceKey string)
}

// BroadcastStateProvider reports the active fleet-wide broadcast, if any, so
// late-joining devices are preempted like everyone else.
type BroadcastStateProvider interface {
	ActivePayload() (protocol.BroadcastStart, bool)
}

// Gateway terminates websocket sessions for devices and admins. Bearer
// validation happens before the upgrade; the declared role must match the
// token's role claim.
type Gateway struct {
	logger    *log.Logger
	cfg       config.Config
	registry  *Registry
	router    *Router
	lifecycle DeviceLifecycleSink
	playlists PlaylistPusher
	broadcast BroadcastStateProvider
	upgrader  websocket.Upgrader
}

// NewGateway builds the websocket endpoint handler.
func NewGateway(cfg config.Config, registry *Registry, router *Router,
	lifecycle DeviceLifecycleSink, playlists PlaylistPusher, broadcast BroadcastStateProvider,
	logger *log.Logger) *Gateway {

	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{
		logger:    logger,
		cfg:       cfg,
		registry:  registry,
		router:    router,
		lifecycle: lifecycle,
		playlists: playlists,
		broadcast: broadcast,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Admin UIs and agents connect from arbitrary origins on the
			// LAN; auth is the bearer token, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /v1/ws?role={device|admin}.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	role := auth.Role(r.URL.Query().Get("role"))
	if role != auth.RoleDevice && role != auth.RoleAdmin {
		http.Error(w, "role must be device or admin", http.StatusBadRequest)
		return
	}

	token, err := auth.BearerFromRequest(r)
	if err != nil {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	payload, err := auth.VerifyTokenForRole(g.cfg, token, role)
	if err != nil {
		// Auth failures close immediately with no retry hint.
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	session := NewSession(conn, payload, SessionConfig{
		Logger:       g.logger,
		QueueSize:    g.cfg.OutboundQueueSize,
		PingInterval: time.Duration(g.cfg.HeartbeatIntervalSec) * time.Second,
	}, g.router.HandleFrame, g.onSessionClose)

	switch role {
	case auth.RoleDevice:
		g.registry.AddDevice(session)
		session.Start()
		if g.lifecycle != nil {
			g.lifecycle.HandleConnect(payload.DeviceKey, remoteIP(r))
		}
		// Push the effective playlist exactly once per connect; the agent's
		// restart policy decides whether to adopt silently.
		if g.playlists != nil {
			g.playlists.PropagateDeviceKey(payload.DeviceKey)
		}
		if g.broadcast != nil {
			if active, ok := g.broadcast.ActivePayload(); ok {
				session.Send(protocol.EventBroadcastStart, active)
			}
		}
	case auth.RoleAdmin:
		g.registry.AddAdmin(session)
		session.Start()
	}
}

func (g *Gateway) onSessionClose(session *Session) {
	g.registry.Remove(session)
	if session.Role == auth.RoleDevice && g.lifecycle != nil {
		// Eviction replaces the registry entry before the old session
		// closes; only report a disconnect if no session remains.
		if !g.registry.IsConnected(session.DeviceKey) {
			g.lifecycle.HandleDisconnect(session.DeviceKey)
		}
	}
}

func remoteIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
