// Package client maintains the agent's websocket session with the hub:
// dialing with the device token, reconnecting with backoff, dispatching
// server commands to the executor and display, and sending telemetry back.
package client

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kioskhub/kiosk-hub-go/internal/agent/cache"
	"github.com/kioskhub/kiosk-hub-go/internal/agent/display"
	"github.com/kioskhub/kiosk-hub-go/internal/agent/executor"
	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

const (
	writeTimeout       = 10 * time.Second
	minBackoff         = time.Second
	maxBackoff         = time.Minute
	healthInterval     = 60 * time.Second
	screencastInterval = time.Second
	outboundQueueSize  = 64
)

// Options configures the client.
type Options struct {
	// HubURL is the hub base URL, e.g. http://hub.local:9000.
	HubURL string
	// Token is the device bearer token minted by the hub.
	Token string
	// ClientVersion is reported in health telemetry.
	ClientVersion string
	// Restart is invoked on a device:restart command; nil means log only.
	Restart func()
	Logger  *log.Logger
}

// Client is the hub connection. It implements executor.Telemetry so the
// executor's state reports and screenshots flow through the same session.
type Client struct {
	logger   *log.Logger
	opts     Options
	driver   display.Driver
	cache    cache.Cache
	executor *executor.Executor

	startedAt time.Time

	mu        sync.Mutex
	out       chan outbound
	casting   bool
	castStop  chan struct{}
	connected bool
}

type outbound struct {
	event   string
	payload any
}

// New creates a client. The executor should be constructed with this client
// as its telemetry sink before Run is called.
func New(driver display.Driver, cacheStore cache.Cache, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		logger:    logger,
		opts:      opts,
		driver:    driver,
		cache:     cacheStore,
		startedAt: time.Now(),
	}
}

// SetExecutor wires the executor; must happen before Run.
func (c *Client) SetExecutor(ex *executor.Executor) {
	c.executor = ex
}

// Run connects and serves the session until ctx is cancelled, reconnecting
// with exponential backoff on any failure.
func (c *Client) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Printf("hub session ended: %v (reconnecting in %s)", err, backoff)
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	wsURL, err := websocketURL(c.opts.HubURL)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.opts.Token)
	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.logger.Printf("connected to hub at %s", wsURL)

	out := make(chan outbound, outboundQueueSize)
	c.mu.Lock()
	c.out = out
	c.connected = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.out = nil
		c.connected = false
		c.mu.Unlock()
		c.stopScreencast()
	}()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Writer: the only goroutine touching the write side.
	writeErr := make(chan error, 1)
	go func() {
		health := time.NewTicker(healthInterval)
		defer health.Stop()
		for {
			select {
			case msg := <-out:
				frame, err := protocol.NewFrame(msg.event, msg.payload)
				if err != nil {
					c.logger.Printf("failed to encode %s: %v", msg.event, err)
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(frame); err != nil {
					writeErr <- err
					return
				}
			case <-health.C:
				c.Send(protocol.EventHealthReport, c.healthReport())
			case <-sessionCtx.Done():
				writeErr <- nil
				return
			}
		}
	}()

	c.Send(protocol.EventDeviceRegister, nil)
	c.Send(protocol.EventHealthReport, c.healthReport())

	readErr := make(chan error, 1)
	go func() {
		for {
			var frame protocol.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				readErr <- err
				return
			}
			c.handle(frame)
		}
	}()

	select {
	case err := <-readErr:
		return err
	case err := <-writeErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Send queues an event; drops it when disconnected or the queue is full.
func (c *Client) Send(event string, payload any) {
	c.mu.Lock()
	out := c.out
	c.mu.Unlock()
	if out == nil {
		return
	}
	select {
	case out <- outbound{event: event, payload: payload}:
	default:
		c.logger.Printf("outbound queue full, dropping %s", event)
	}
}

// SendPlaybackState implements executor.Telemetry.
func (c *Client) SendPlaybackState(state protocol.PlaybackState) {
	c.Send(protocol.EventPlaybackStateUpdate, state)
}

// CaptureScreenshot implements executor.Telemetry.
func (c *Client) CaptureScreenshot(currentURL string) {
	image, err := c.driver.Capture()
	if err != nil {
		c.logger.Printf("screenshot capture failed: %v", err)
		return
	}
	if image == "" {
		return
	}
	c.Send(protocol.EventScreenshotUpload, protocol.ScreenshotUpload{
		ImageData: image,
		URL:       currentURL,
	})
}

func (c *Client) handle(frame protocol.Frame) {
	switch frame.Event {
	case protocol.EventContentUpdate:
		var update protocol.ContentUpdate
		if err := json.Unmarshal(frame.Payload, &update); err != nil {
			c.logger.Printf("bad content update: %v", err)
			return
		}
		c.logger.Printf("received playlist %d with %d items", update.PlaylistID, len(update.Items))
		c.executor.LoadPlaylist(update.Items, update.PlaylistID)
		if !c.executor.Running() && len(update.Items) > 0 {
			// Give the first item a short head start in the cache so the
			// initial display can come from disk.
			if c.cache != nil && c.cache.IsCacheable(update.Items[0].URL) {
				c.cache.WaitForCache(update.Items[0].URL, 10*time.Second)
			}
			c.executor.Start()
		}

	case protocol.EventDisplayNavigate:
		var cmd protocol.NavigateCommand
		if err := json.Unmarshal(frame.Payload, &cmd); err != nil || cmd.URL == "" {
			return
		}
		if err := c.driver.Navigate(cmd.URL); err != nil {
			c.reportError("navigate failed: "+err.Error(), "display")
		}

	case protocol.EventDisplayRefresh:
		if err := c.driver.Refresh(); err != nil {
			c.reportError("refresh failed: "+err.Error(), "display")
		}

	case protocol.EventScreenshotRequest:
		c.CaptureScreenshot(c.executor.State().CurrentURL)

	case protocol.EventConfigUpdate:
		c.logger.Printf("config update received: %s", string(frame.Payload))

	case protocol.EventDeviceRestart:
		c.logger.Printf("restart requested by hub")
		if c.opts.Restart != nil {
			c.opts.Restart()
		}

	case protocol.EventScreencastStart:
		c.startScreencast()
	case protocol.EventScreencastStop:
		c.stopScreencast()

	case protocol.EventRemoteClick:
		var cmd protocol.ClickCommand
		if err := json.Unmarshal(frame.Payload, &cmd); err != nil {
			return
		}
		_ = c.driver.Click(cmd.X, cmd.Y)
	case protocol.EventRemoteType:
		var cmd protocol.TypeCommand
		if err := json.Unmarshal(frame.Payload, &cmd); err != nil {
			return
		}
		_ = c.driver.TypeText(cmd.Text)
	case protocol.EventRemoteKey:
		var cmd protocol.KeyCommand
		if err := json.Unmarshal(frame.Payload, &cmd); err != nil {
			return
		}
		_ = c.driver.PressKey(cmd.Key)
	case protocol.EventRemoteScroll:
		var cmd protocol.ScrollCommand
		if err := json.Unmarshal(frame.Payload, &cmd); err != nil {
			return
		}
		_ = c.driver.Scroll(cmd.DeltaX, cmd.DeltaY)

	case protocol.EventPlaylistPause:
		c.executor.Pause()
	case protocol.EventPlaylistResume:
		c.executor.Resume()
	case protocol.EventPlaylistNext:
		c.executor.Next(true)
	case protocol.EventPlaylistPrevious:
		c.executor.Previous(true)

	case protocol.EventBroadcastStart:
		var b protocol.BroadcastStart
		if err := json.Unmarshal(frame.Payload, &b); err != nil {
			c.logger.Printf("bad broadcast payload: %v", err)
			return
		}
		c.executor.StartBroadcast(b)
	case protocol.EventBroadcastEnd:
		c.executor.EndBroadcast()

	default:
		c.logger.Printf("ignoring unknown event %q", frame.Event)
	}
}

func (c *Client) reportError(message, source string) {
	c.logger.Printf("error (%s): %s", source, message)
	c.Send(protocol.EventErrorReport, protocol.ErrorReport{
		Message: message,
		Source:  source,
	})
}

func (c *Client) startScreencast() {
	c.mu.Lock()
	if c.casting {
		c.mu.Unlock()
		return
	}
	c.casting = true
	stop := make(chan struct{})
	c.castStop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(screencastInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				image, err := c.driver.Capture()
				if err != nil || image == "" {
					continue
				}
				c.Send(protocol.EventScreencastFrame, protocol.ScreencastFrame{
					ImageData: image,
					Timestamp: time.Now().UnixMilli(),
				})
			case <-stop:
				return
			}
		}
	}()
}

func (c *Client) stopScreencast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.casting {
		return
	}
	c.casting = false
	close(c.castStop)
	c.castStop = nil
}

func (c *Client) healthReport() protocol.HealthReport {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return protocol.HealthReport{
		UptimeSec:     int64(time.Since(c.startedAt).Seconds()),
		MemoryMB:      float64(memStats.Alloc) / 1024 / 1024,
		OSVersion:     runtime.GOOS + "/" + runtime.GOARCH,
		ClientVersion: c.opts.ClientVersion,
	}
}

func websocketURL(hubURL string) (string, error) {
	parsed, err := url.Parse(hubURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "https", "wss":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = "/v1/ws"
	parsed.RawQuery = "role=device"
	return parsed.String(), nil
}
