package realtime

import (
	"log"
	"sync"

	"github.com/kioskhub/kiosk-hub-go/internal/auth"
	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

// Registry is the authoritative in-memory map of live sessions: at most one
// device session per device key, plus the set of admin sessions. It is the
// only globally shared mutable state in the hub; every public operation is
// safe under concurrent callers and no lock is held across a network write
// (sends only enqueue onto per-session queues).
type Registry struct {
	logger *log.Logger

	mu      sync.RWMutex
	devices map[string]*Session
	admins  map[*Session]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		logger:  logger,
		devices: make(map[string]*Session),
		admins:  make(map[*Session]struct{}),
	}
}

// AddDevice installs a device session. An existing session for the same
// device key is evicted first: closed and reported to admins as a
// disconnect, so at most one session per key ever exists.
func (r *Registry) AddDevice(session *Session) {
	r.mu.Lock()
	evicted := r.devices[session.DeviceKey]
	r.devices[session.DeviceKey] = session
	r.mu.Unlock()

	if evicted != nil {
		r.logger.Printf("device %s: evicting previous session %s", session.DeviceKey, evicted.ID)
		evicted.Close()
		r.BroadcastToAdmins(protocol.EventAdminDeviceDisconnected, protocol.DeviceRef{DeviceID: session.DeviceKey})
	}

	r.logger.Printf("device %s: session %s connected", session.DeviceKey, session.ID)
	r.BroadcastToAdmins(protocol.EventAdminDeviceConnected, protocol.DeviceRef{DeviceID: session.DeviceKey})
}

// AddAdmin installs an admin session and immediately syncs it with the
// currently online device keys, so a UI reconnecting mid-flight does not
// wait for the next event.
func (r *Registry) AddAdmin(session *Session) {
	r.mu.Lock()
	r.admins[session] = struct{}{}
	r.mu.Unlock()

	r.logger.Printf("admin %s: session %s connected", session.AdminSub, session.ID)
	session.Send(protocol.EventAdminDevicesSync, protocol.DeviceList{DeviceIDs: r.ConnectedDeviceKeys()})
}

// Remove deregisters a session by identity. Removing a device session
// notifies admins. Safe to call for sessions that were already evicted: the
// eviction replaced the map entry, so identity comparison skips them.
func (r *Registry) Remove(session *Session) {
	removedDevice := false

	r.mu.Lock()
	switch session.Role {
	case auth.RoleDevice:
		if current, ok := r.devices[session.DeviceKey]; ok && current == session {
			delete(r.devices, session.DeviceKey)
			removedDevice = true
		}
	default:
		delete(r.admins, session)
	}
	r.mu.Unlock()

	if removedDevice {
		r.logger.Printf("device %s: session %s disconnected", session.DeviceKey, session.ID)
		r.BroadcastToAdmins(protocol.EventAdminDeviceDisconnected, protocol.DeviceRef{DeviceID: session.DeviceKey})
	}
}

// SendToDevice pushes one event to a device's session. Returns false when
// the device is offline; events are never buffered for offline devices.
func (r *Registry) SendToDevice(deviceKey string, event string, payload any) bool {
	r.mu.RLock()
	session := r.devices[deviceKey]
	r.mu.RUnlock()

	if session == nil {
		return false
	}
	return session.Send(event, payload)
}

// BroadcastToAdmins sends an event to every admin session, best-effort. A
// slow or failed admin does not affect the others.
func (r *Registry) BroadcastToAdmins(event string, payload any) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.admins))
	for session := range r.admins {
		sessions = append(sessions, session)
	}
	r.mu.RUnlock()

	for _, session := range sessions {
		session.Send(event, payload)
	}
}

// IsConnected reports whether a device has a live session.
func (r *Registry) IsConnected(deviceKey string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[deviceKey]
	return ok
}

// ConnectedDeviceKeys returns the keys of all online devices.
func (r *Registry) ConnectedDeviceKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.devices))
	for key := range r.devices {
		keys = append(keys, key)
	}
	return keys
}

// DeviceCount returns the number of online devices.
func (r *Registry) DeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// AdminCount returns the number of connected admin sessions.
func (r *Registry) AdminCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.admins)
}
