package broadcast

import (
	"log"
	"sync"
	"time"

	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

// Sender abstracts the registry operations the coordinator needs.
type Sender interface {
	ConnectedDeviceKeys() []string
	SendToDevice(deviceKey string, event string, payload any) bool
}

// Broadcast is the active fleet-wide override.
type Broadcast struct {
	Type       string    `json:"type"`
	URL        string    `json:"url,omitempty"`
	Message    string    `json:"message,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// Service tracks at most one active fleet-wide broadcast and fans the
// start/end commands out to every connected device. The auto-end duration is
// enforced by the devices, not here.
type Service struct {
	logger *log.Logger
	sender Sender

	mu     sync.Mutex
	active *Broadcast
}

// NewService creates the broadcast coordinator.
func NewService(sender Sender, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{logger: logger, sender: sender}
}

// StartInput is the payload for starting a broadcast.
type StartInput struct {
	Type       string `json:"type"`
	URL        string `json:"url"`
	Message    string `json:"message"`
	DurationMs int64  `json:"duration_ms"`
}

// Start begins a fleet-wide broadcast. Returns false when one is already
// active; a rejected start mutates nothing.
func (s *Service) Start(input StartInput) (*Broadcast, bool) {
	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return nil, false
	}
	broadcast := &Broadcast{
		Type:       input.Type,
		URL:        input.URL,
		Message:    input.Message,
		DurationMs: input.DurationMs,
		StartedAt:  time.Now().UTC(),
	}
	s.active = broadcast
	s.mu.Unlock()

	payload := s.payloadFor(broadcast)
	delivered := 0
	for _, key := range s.sender.ConnectedDeviceKeys() {
		if s.sender.SendToDevice(key, protocol.EventBroadcastStart, payload) {
			delivered++
		}
	}
	s.logger.Printf("broadcast started (type=%s) delivered to %d devices", broadcast.Type, delivered)
	return broadcast, true
}

// End clears the active broadcast and instructs every connected device to
// restore its prior playlist. Returns false when none is active.
func (s *Service) End() bool {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return false
	}
	s.active = nil
	s.mu.Unlock()

	for _, key := range s.sender.ConnectedDeviceKeys() {
		s.sender.SendToDevice(key, protocol.EventBroadcastEnd, nil)
	}
	s.logger.Printf("broadcast ended")
	return true
}

// Active returns the active broadcast, if any.
func (s *Service) Active() *Broadcast {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	copied := *s.active
	return &copied
}

// IsActive reports whether a broadcast is currently in effect.
func (s *Service) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// ActivePayload implements the gateway's BroadcastStateProvider, so devices
// connecting mid-broadcast are preempted like the rest of the fleet.
func (s *Service) ActivePayload() (protocol.BroadcastStart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return protocol.BroadcastStart{}, false
	}
	return s.payloadFor(s.active), true
}

func (s *Service) payloadFor(b *Broadcast) protocol.BroadcastStart {
	payload := protocol.BroadcastStart{
		Type:    b.Type,
		URL:     b.URL,
		Message: b.Message,
	}
	if b.DurationMs > 0 {
		// Late joiners get the remaining duration, not the original one.
		elapsed := time.Since(b.StartedAt).Milliseconds()
		remaining := b.DurationMs - elapsed
		if remaining < 1 {
			// Past due but not yet ended server-side; the device should end
			// immediately rather than inherit "no auto-end".
			remaining = 1
		}
		payload.DurationMs = remaining
	}
	return payload
}
