// Package executor drives what the device display shows: playlist rotation
// with per-item durations and day/time constraints, pause/resume and manual
// stepping, broadcast overlays, and periodic playback-state telemetry.
package executor

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kioskhub/kiosk-hub-go/internal/agent/cache"
	"github.com/kioskhub/kiosk-hub-go/internal/agent/display"
	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

const (
	// starvationRetry is how long to wait before rescanning when no item is
	// valid right now. The display keeps showing the last item meanwhile.
	starvationRetry = 60 * time.Second
	// screenshotDelay gives a page time to render before the capture.
	screenshotDelay = 4 * time.Second
	// stateEmitInterval is the cadence of unconditional state reports.
	stateEmitInterval = 5 * time.Second
	// periodicCaptureInterval refreshes admin previews of static displays.
	periodicCaptureInterval = 60 * time.Second
)

const messageTemplate = `<!DOCTYPE html>
<html>
<head><style>
body { margin: 0; display: flex; align-items: center; justify-content: center;
       height: 100vh; background: #111; color: #fff;
       font-family: sans-serif; text-align: center; }
.msg { font-size: 4vw; padding: 0 8vw; }
</style></head>
<body><div class="msg">%s</div></body>
</html>`

// Telemetry is what the executor reports back through. Both methods are
// best-effort; implementations must not block.
type Telemetry interface {
	SendPlaybackState(state protocol.PlaybackState)
	// CaptureScreenshot grabs the current frame and uploads it, tagging it
	// with the URL that was showing when the capture was scheduled.
	CaptureScreenshot(currentURL string)
}

// Config tunes the executor.
type Config struct {
	// DefaultRotation substitutes for displayDuration 0 in multi-item lists.
	DefaultRotation time.Duration
	Logger          *log.Logger
	// Now is injectable for constraint tests.
	Now func() time.Time
}

// Executor is the device-side rotation state machine. All public methods are
// safe for concurrent use; internally a single mutex serializes every
// transition, matching the one-logical-worker model.
type Executor struct {
	logger    *log.Logger
	driver    display.Driver
	cache     cache.Cache
	telemetry Telemetry
	rotation  time.Duration
	now       func() time.Time

	mu           sync.Mutex
	items        []protocol.PlaylistItem
	index        int // next to display
	playlistID   int64
	running      bool
	paused       bool
	broadcasting bool

	current      *protocol.PlaylistItem
	currentStart time.Time
	currentDelay time.Duration // effective duration armed for the current item
	remaining    time.Duration // set by Pause

	savedItems []protocol.PlaylistItem
	savedIndex int

	gen            uint64 // invalidates outstanding rotation timers
	rotateTimer    *time.Timer
	broadcastTimer *time.Timer
	emitStop       chan struct{}
	captureStop    chan struct{}
}

// New creates an executor. driver is required; cacheStore and telemetry may
// be nil.
func New(driver display.Driver, cacheStore cache.Cache, telemetry Telemetry, cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	rotation := cfg.DefaultRotation
	if rotation <= 0 {
		rotation = 15 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Executor{
		logger:    logger,
		driver:    driver,
		cache:     cacheStore,
		telemetry: telemetry,
		rotation:  rotation,
		now:       now,
	}
}

// LoadPlaylist replaces the item list. The restart policy keeps the display
// steady whenever it can: identical permanent single items are a no-op, a
// list that still contains the showing item is adopted silently, anything
// else restarts rotation from the top.
func (e *Executor) LoadPlaylist(items []protocol.PlaylistItem, playlistID int64) {
	sorted := make([]protocol.PlaylistItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].OrderIndex != sorted[b].OrderIndex {
			return sorted[a].OrderIndex < sorted[b].OrderIndex
		}
		return sorted[a].ID < sorted[b].ID
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.broadcasting {
		// Adopt into the snapshot; the new list takes over when the
		// broadcast ends.
		e.savedItems = sorted
		e.savedIndex = 0
		e.playlistID = playlistID
		e.logger.Printf("playlist %d adopted behind active broadcast (%d items)", playlistID, len(sorted))
		return
	}

	prev := e.items
	e.playlistID = playlistID

	if isPermanentSingle(sorted) && isPermanentSingle(prev) && sorted[0].ID == prev[0].ID {
		e.items = sorted
		e.logger.Printf("playlist %d unchanged permanent item %d, keeping display", playlistID, sorted[0].ID)
		return
	}

	if e.running && e.current != nil && !isPermanentSingle(sorted) {
		if pos := indexOfID(sorted, e.current.ID); pos >= 0 {
			e.items = sorted
			e.index = (pos + 1) % len(sorted)
			e.updateCapturePolicyLocked()
			e.prefetch(sorted)
			e.logger.Printf("playlist %d adopted silently (%d items), still showing item %d", playlistID, len(sorted), e.current.ID)
			return
		}
	}

	e.items = sorted
	e.index = 0
	e.prefetch(sorted)
	if e.running {
		e.cancelRotateLocked()
		e.paused = false
		if len(sorted) == 0 {
			e.logger.Printf("playlist %d is empty, stopping rotation", playlistID)
			e.stopLocked()
			return
		}
		e.rotateLocked(true)
	}
	e.updateCapturePolicyLocked()
}

// Start begins rotation from the top of the list.
func (e *Executor) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running || len(e.items) == 0 {
		return
	}
	e.running = true
	e.paused = false
	e.index = 0
	e.startEmitLoopLocked()
	e.updateCapturePolicyLocked()
	e.rotateLocked(true)
}

// Stop halts rotation and telemetry, emitting one final state.
func (e *Executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.stopLocked()
}

func (e *Executor) stopLocked() {
	e.cancelRotateLocked()
	e.running = false
	e.paused = false
	if e.emitStop != nil {
		close(e.emitStop)
		e.emitStop = nil
	}
	e.updateCapturePolicyLocked()
	e.emitLocked()
}

// Pause freezes the rotation clock on the current item.
func (e *Executor) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.paused {
		return
	}
	e.cancelRotateLocked()
	e.remaining = 0
	if e.currentDelay > 0 {
		e.remaining = e.currentDelay - e.now().Sub(e.currentStart)
		if e.remaining < 0 {
			e.remaining = 0
		}
	}
	e.paused = true
	e.emitLocked()
}

// Resume continues from where Pause left off.
func (e *Executor) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || !e.paused {
		return
	}
	e.paused = false
	if e.remaining > 0 {
		e.currentStart = e.now()
		e.currentDelay = e.remaining
		e.armRotateLocked(e.remaining)
		e.emitLocked()
		return
	}
	e.rotateLocked(true)
}

// Next advances to the following item immediately.
func (e *Executor) Next(respectConstraints bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || len(e.items) == 0 {
		return
	}
	e.cancelRotateLocked()
	e.paused = false
	e.rotateLocked(respectConstraints)
}

// Previous steps back to the item shown before the current one.
func (e *Executor) Previous(respectConstraints bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || len(e.items) == 0 {
		return
	}
	e.cancelRotateLocked()
	e.paused = false

	n := len(e.items)
	// index points past the current item, so the previous one is two back.
	start := ((e.index-2)%n + n) % n
	idx := start
	if respectConstraints {
		idx = prevValidIndex(e.items, start, e.now())
		if idx < 0 {
			e.armRotateLocked(starvationRetry)
			return
		}
	}
	e.showLocked(idx)
}

// StartBroadcast preempts the playlist with a fleet-wide override.
func (e *Executor) StartBroadcast(b protocol.BroadcastStart) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.broadcasting {
		e.savedItems = e.items
		// The cursor already points past the showing item; snapshot the
		// showing item itself so the restore reshows it.
		e.savedIndex = e.index
		if e.current != nil {
			if pos := indexOfID(e.items, e.current.ID); pos >= 0 {
				e.savedIndex = pos
			}
		}
	}
	e.broadcasting = true
	e.cancelRotateLocked()
	if e.broadcastTimer != nil {
		e.broadcastTimer.Stop()
		e.broadcastTimer = nil
	}

	switch b.Type {
	case "url":
		if err := e.driver.Navigate(b.URL); err != nil {
			e.logger.Printf("broadcast navigate failed: %v", err)
		}
	case "message":
		if err := e.driver.ShowHTML(renderMessage(b.Message)); err != nil {
			e.logger.Printf("broadcast message render failed: %v", err)
		}
	default:
		e.logger.Printf("ignoring broadcast with unknown type %q", b.Type)
	}

	if b.DurationMs > 0 {
		e.broadcastTimer = time.AfterFunc(time.Duration(b.DurationMs)*time.Millisecond, e.EndBroadcast)
	}
	e.emitLocked()
}

// EndBroadcast restores the saved playlist position and resumes rotation.
func (e *Executor) EndBroadcast() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.broadcasting {
		return
	}
	e.broadcasting = false
	if e.broadcastTimer != nil {
		e.broadcastTimer.Stop()
		e.broadcastTimer = nil
	}
	e.items = e.savedItems
	e.index = e.savedIndex
	e.savedItems = nil
	if e.running {
		if len(e.items) == 0 {
			e.stopLocked()
			return
		}
		e.rotateLocked(true)
		return
	}
	e.emitLocked()
}

// Running reports whether rotation is active.
func (e *Executor) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// EmitState sends one playback-state report immediately.
func (e *Executor) EmitState() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitLocked()
}

// State returns the current playback snapshot.
func (e *Executor) State() protocol.PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// rotateLocked picks the next item to show, starting the scan at the cursor.
func (e *Executor) rotateLocked(respectConstraints bool) {
	n := len(e.items)
	if n == 0 {
		return
	}
	idx := ((e.index % n) + n) % n
	if respectConstraints {
		idx = nextValidIndex(e.items, e.index, e.now())
		if idx < 0 {
			// Nothing showable right now; keep the current display and
			// rescan later.
			e.armRotateLocked(starvationRetry)
			return
		}
	}
	e.showLocked(idx)
}

// showLocked displays items[idx] and arms the rotation timer for it.
func (e *Executor) showLocked(idx int) {
	n := len(e.items)
	item := e.items[idx]
	e.index = (idx + 1) % n

	e.displayLocked(item)

	d := time.Duration(item.DisplayDuration) * time.Millisecond
	if d == 0 && n > 1 {
		d = e.rotation
	}
	if d == 0 && n == 1 {
		// Permanent display: no rotation timer.
		e.currentDelay = 0
		e.emitLocked()
		return
	}
	if n == 1 {
		// Single-item loop: rewind so the same item reshows after d.
		e.index = idx
	}
	e.currentDelay = d
	e.armRotateLocked(d)
	e.emitLocked()
}

// displayLocked navigates the driver and schedules the post-render capture.
func (e *Executor) displayLocked(item protocol.PlaylistItem) {
	url := item.URL
	if e.cache != nil {
		if local, ok := e.cache.GetLocalPath(item.URL); ok {
			url = local
		}
	}
	if err := e.driver.Navigate(url); err != nil {
		// Rotation continues on schedule; the display owns its recovery.
		e.logger.Printf("display of item %d failed: %v", item.ID, err)
	}
	current := item
	e.current = &current
	e.currentStart = e.now()

	if e.telemetry != nil {
		captureURL := url
		time.AfterFunc(screenshotDelay, func() {
			e.telemetry.CaptureScreenshot(captureURL)
		})
	}
}

func (e *Executor) armRotateLocked(d time.Duration) {
	gen := e.gen
	e.rotateTimer = time.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.gen || !e.running || e.paused || e.broadcasting {
			return
		}
		e.rotateLocked(true)
	})
}

func (e *Executor) cancelRotateLocked() {
	e.gen++
	if e.rotateTimer != nil {
		e.rotateTimer.Stop()
		e.rotateTimer = nil
	}
}

func (e *Executor) startEmitLoopLocked() {
	if e.emitStop != nil {
		return
	}
	stop := make(chan struct{})
	e.emitStop = stop
	go func() {
		ticker := time.NewTicker(stateEmitInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.EmitState()
			case <-stop:
				return
			}
		}
	}()
}

// updateCapturePolicyLocked enables periodic captures for static displays:
// single-item lists and lists with any permanent item rotate rarely or never,
// so per-item captures alone would leave admin previews stale.
func (e *Executor) updateCapturePolicyLocked() {
	want := e.running && e.telemetry != nil && needsPeriodicCapture(e.items)
	if want && e.captureStop == nil {
		stop := make(chan struct{})
		e.captureStop = stop
		go func() {
			ticker := time.NewTicker(periodicCaptureInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					e.mu.Lock()
					url := ""
					if e.current != nil {
						url = e.current.URL
					}
					e.mu.Unlock()
					e.telemetry.CaptureScreenshot(url)
				case <-stop:
					return
				}
			}
		}()
	}
	if !want && e.captureStop != nil {
		close(e.captureStop)
		e.captureStop = nil
	}
}

func (e *Executor) emitLocked() {
	if e.telemetry == nil {
		return
	}
	e.telemetry.SendPlaybackState(e.stateLocked())
}

func (e *Executor) stateLocked() protocol.PlaybackState {
	state := protocol.PlaybackState{
		IsPlaying:      e.running,
		IsPaused:       e.paused,
		IsBroadcasting: e.broadcasting,
		PlaylistID:     e.playlistID,
		TotalItems:     len(e.items),
	}
	if e.current != nil {
		state.CurrentItemID = e.current.ID
		state.CurrentURL = e.current.URL
		state.CurrentItemIndex = indexOfID(e.items, e.current.ID)
	}
	switch {
	case e.paused:
		ms := e.remaining.Milliseconds()
		state.TimeRemaining = &ms
	case e.running && e.currentDelay > 0:
		ms := (e.currentDelay - e.now().Sub(e.currentStart)).Milliseconds()
		if ms < 0 {
			ms = 0
		}
		state.TimeRemaining = &ms
	}
	return state
}

func (e *Executor) prefetch(items []protocol.PlaylistItem) {
	type prefetcher interface{ Prefetch(urls []string) }
	p, ok := e.cache.(prefetcher)
	if !ok {
		return
	}
	urls := make([]string, 0, len(items))
	for _, item := range items {
		urls = append(urls, item.URL)
	}
	p.Prefetch(urls)
}

func isPermanentSingle(items []protocol.PlaylistItem) bool {
	return len(items) == 1 && items[0].DisplayDuration == 0
}

func needsPeriodicCapture(items []protocol.PlaylistItem) bool {
	if len(items) == 1 {
		return true
	}
	for _, item := range items {
		if item.DisplayDuration == 0 {
			return true
		}
	}
	return false
}

func indexOfID(items []protocol.PlaylistItem, id int64) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func renderMessage(message string) string {
	escaped := strings.ReplaceAll(message, "<", "&lt;")
	escaped = strings.ReplaceAll(escaped, ">", "&gt;")
	return fmt.Sprintf(messageTemplate, escaped)
}
