package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kioskhub/kiosk-hub-go/internal/auth"
	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

const (
	// defaultOutboundQueueSize bounds the per-session send queue. A full
	// queue means a slow client; the session is closed rather than blocking
	// the sender.
	defaultOutboundQueueSize = 256

	writeTimeout = 10 * time.Second
)

// Session is one live authenticated duplex channel: a websocket plus one
// reader and one writer goroutine coordinated through a bounded outbound
// queue. All outbound sends go through Send; FIFO order per session is
// guaranteed by the single writer.
type Session struct {
	ID   string
	Role auth.Role

	// Device identity from token claims; empty for admin sessions.
	DeviceKey string
	DeviceID  int64
	// AdminSub is the admin user id; empty for device sessions.
	AdminSub string

	CreatedAt time.Time

	logger    *log.Logger
	conn      *websocket.Conn
	out       chan protocol.Frame
	done      chan struct{}
	closeOnce sync.Once

	pingInterval time.Duration
	pongWait     time.Duration

	// onClose is invoked exactly once after the session is closed, used by
	// the registry to deregister.
	onClose func(*Session)
	// onFrame receives every decoded inbound frame.
	onFrame func(*Session, protocol.Frame)
}

// SessionConfig carries per-session tuning.
type SessionConfig struct {
	Logger       *log.Logger
	QueueSize    int
	PingInterval time.Duration
}

// NewSession wraps an upgraded websocket connection. The caller supplies the
// inbound frame handler and the close notification; both may be nil.
func NewSession(conn *websocket.Conn, payload auth.TokenPayload, cfg SessionConfig,
	onFrame func(*Session, protocol.Frame), onClose func(*Session)) *Session {

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultOutboundQueueSize
	}
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}

	return &Session{
		ID:        uuid.NewString(),
		Role:      payload.Role,
		DeviceKey: payload.DeviceKey,
		DeviceID:  payload.DeviceID,
		AdminSub:  payload.Sub,
		CreatedAt: time.Now(),
		logger:    logger,
		conn:      conn,
		out:       make(chan protocol.Frame, queueSize),
		done:      make(chan struct{}),
		// Two consecutive missed pongs close the session.
		pingInterval: pingInterval,
		pongWait:     2*pingInterval + 5*time.Second,
		onClose:      onClose,
		onFrame:      onFrame,
	}
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.writeLoop()
	go s.readLoop()
}

// Send enqueues a frame without blocking. Returns false if the session is
// closed. A full queue closes the session (backpressure policy) and reports
// the send as failed.
func (s *Session) Send(event string, payload any) bool {
	frame, err := protocol.NewFrame(event, payload)
	if err != nil {
		s.logger.Printf("session %s: failed to encode %s: %v", s.ID, event, err)
		return false
	}

	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.out <- frame:
		return true
	case <-s.done:
		return false
	default:
		s.logger.Printf("session %s: outbound queue full, closing slow client", s.ID)
		s.Close()
		return false
	}
}

// Close tears the session down. Idempotent; the registry is notified once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) readLoop() {
	defer s.Close()

	_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		var frame protocol.Frame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("session %s: read error: %v", s.ID, err)
			}
			return
		}
		if frame.Event == "" {
			// Frame parse problems are a transport failure of this one
			// session, never fatal to the hub.
			s.logger.Printf("session %s: dropping frame with empty event", s.ID)
			continue
		}
		if s.onFrame != nil {
			s.onFrame(s, frame)
		}
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	defer s.Close()

	for {
		select {
		case frame := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(frame); err != nil {
				s.logger.Printf("session %s: write error: %v", s.ID, err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
