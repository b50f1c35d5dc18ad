package realtime

import (
	"encoding/json"
	"log"

	"github.com/kioskhub/kiosk-hub-go/internal/auth"
	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

// DeviceStatusSink persists device lifecycle and telemetry effects.
// Implemented by the device service; kept narrow so the realtime core never
// depends on a full service object.
type DeviceStatusSink interface {
	HandleStatus(deviceKey string, status string)
	HandleHealth(deviceKey string, screenResolution, osVersion, clientVersion string)
}

// ScreenshotSink persists uploaded screenshots and returns the new id.
type ScreenshotSink interface {
	SaveScreenshot(deviceID int64, imageData, url string) (string, error)
}

// ErrorSink records device-reported errors for the device log.
type ErrorSink interface {
	RecordDeviceError(deviceID int64, deviceKey, message, source string)
}

// Router dispatches inbound device events to their handlers and fans the
// results out to admins. Every event is attributed to the identity on the
// session's authenticated token; device ids inside payloads are ignored.
type Router struct {
	logger      *log.Logger
	registry    *Registry
	status      DeviceStatusSink
	screenshots ScreenshotSink
	errors      ErrorSink
}

// NewRouter creates the inbound event router. Sinks may be nil; events whose
// sink is missing are still forwarded to admins where applicable.
func NewRouter(registry *Registry, status DeviceStatusSink, screenshots ScreenshotSink, errors ErrorSink, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		logger:      logger,
		registry:    registry,
		status:      status,
		screenshots: screenshots,
		errors:      errors,
	}
}

// HandleFrame routes one inbound frame from a session.
func (rt *Router) HandleFrame(session *Session, frame protocol.Frame) {
	if session.Role != auth.RoleDevice {
		// Admin sessions are observe-only on the websocket; commands arrive
		// over REST.
		rt.logger.Printf("session %s: dropping %s from non-device session", session.ID, frame.Event)
		return
	}

	switch frame.Event {
	case protocol.EventDeviceRegister:
		// Registration is established at connect time from token claims;
		// the event is acknowledged for older agents that still send it.
		rt.logger.Printf("device %s: register event acknowledged", session.DeviceKey)

	case protocol.EventHealthReport:
		if rt.status != nil {
			var report protocol.HealthReport
			// Health payloads vary by agent version; decode what we can.
			_ = json.Unmarshal(frame.Payload, &report)
			rt.status.HandleHealth(session.DeviceKey, report.ScreenResolution, report.OSVersion, report.ClientVersion)
		}
		rt.forwardToAdmins(session, protocol.EventAdminDeviceHealth, frame.Payload)

	case protocol.EventDeviceStatus:
		var update protocol.StatusUpdate
		if err := json.Unmarshal(frame.Payload, &update); err != nil {
			rt.logger.Printf("device %s: bad status payload: %v", session.DeviceKey, err)
			return
		}
		if rt.status != nil {
			rt.status.HandleStatus(session.DeviceKey, update.Status)
		}
		rt.forwardToAdmins(session, protocol.EventAdminDeviceStatus, frame.Payload)

	case protocol.EventErrorReport:
		var report protocol.ErrorReport
		if err := json.Unmarshal(frame.Payload, &report); err != nil {
			rt.logger.Printf("device %s: bad error payload: %v", session.DeviceKey, err)
			return
		}
		if rt.errors != nil {
			rt.errors.RecordDeviceError(session.DeviceID, session.DeviceKey, report.Message, report.Source)
		}
		rt.forwardToAdmins(session, protocol.EventAdminError, frame.Payload)

	case protocol.EventScreenshotUpload:
		var upload protocol.ScreenshotUpload
		if err := json.Unmarshal(frame.Payload, &upload); err != nil {
			rt.logger.Printf("device %s: bad screenshot payload: %v", session.DeviceKey, err)
			return
		}
		if rt.screenshots == nil {
			return
		}
		id, err := rt.screenshots.SaveScreenshot(session.DeviceID, upload.ImageData, upload.URL)
		if err != nil {
			rt.logger.Printf("device %s: failed to persist screenshot: %v", session.DeviceKey, err)
			return
		}
		// Admins get the id only; image data stays in the store.
		rt.registry.BroadcastToAdmins(protocol.EventAdminScreenshotReceived, map[string]any{
			"deviceId":     session.DeviceKey,
			"screenshotId": id,
		})

	case protocol.EventPlaybackStateUpdate:
		rt.forwardToAdmins(session, protocol.EventAdminPlaybackState, frame.Payload)

	case protocol.EventScreencastFrame:
		// Best-effort: slow admins may drop frames via their queue policy.
		rt.forwardToAdmins(session, protocol.EventAdminScreencastFrame, frame.Payload)

	default:
		// Unknown events are logged and dropped, never fatal.
		rt.logger.Printf("device %s: unknown event %q dropped", session.DeviceKey, frame.Event)
	}
}

// forwardToAdmins stamps the session's authenticated device id into the
// payload and broadcasts it. Any deviceId a client put in the payload is
// overwritten.
func (rt *Router) forwardToAdmins(session *Session, event string, payload json.RawMessage) {
	merged := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &merged); err != nil {
			rt.logger.Printf("device %s: unforwardable payload for %s: %v", session.DeviceKey, event, err)
			return
		}
	}
	merged["deviceId"] = session.DeviceKey
	rt.registry.BroadcastToAdmins(event, merged)
}
