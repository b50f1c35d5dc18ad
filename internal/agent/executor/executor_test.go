package executor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

type fakeDriver struct {
	mu        sync.Mutex
	navigated []string
	html      []string
	refreshed int
}

func (d *fakeDriver) Navigate(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *fakeDriver) ShowHTML(html string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.html = append(d.html, html)
	return nil
}

func (d *fakeDriver) Refresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshed++
	return nil
}

func (d *fakeDriver) Capture() (string, error)   { return "", nil }
func (d *fakeDriver) Click(x, y int) error       { return nil }
func (d *fakeDriver) TypeText(text string) error { return nil }
func (d *fakeDriver) PressKey(key string) error  { return nil }
func (d *fakeDriver) Scroll(dx, dy int) error    { return nil }

func (d *fakeDriver) urls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.navigated))
	copy(out, d.navigated)
	return out
}

func (d *fakeDriver) lastURL() string {
	urls := d.urls()
	if len(urls) == 0 {
		return ""
	}
	return urls[len(urls)-1]
}

type fakeTelemetry struct {
	mu       sync.Mutex
	states   []protocol.PlaybackState
	captures []string
}

func (f *fakeTelemetry) SendPlaybackState(state protocol.PlaybackState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeTelemetry) CaptureScreenshot(currentURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, currentURL)
}

func (f *fakeTelemetry) lastState(t *testing.T) protocol.PlaybackState {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.states)
	return f.states[len(f.states)-1]
}

// fakeClock lets tests advance the executor's view of time without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, time.August, 24, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func item(id int64, url string, durationMs int64, order int) protocol.PlaylistItem {
	return protocol.PlaylistItem{
		ID:              id,
		URL:             url,
		DisplayDuration: durationMs,
		OrderIndex:      order,
	}
}

func newTestExecutor(t *testing.T) (*Executor, *fakeDriver, *fakeTelemetry, *fakeClock) {
	t.Helper()
	driver := &fakeDriver{}
	telemetry := &fakeTelemetry{}
	clock := newFakeClock()
	ex := New(driver, nil, telemetry, Config{Now: clock.now})
	t.Cleanup(ex.Stop)
	return ex, driver, telemetry, clock
}

func TestStartShowsFirstItemInOrder(t *testing.T) {
	ex, driver, telemetry, _ := newTestExecutor(t)

	// Loaded out of order; rotation starts at the lowest order index.
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(2, "https://example.com/b", 10_000, 2),
		item(1, "https://example.com/a", 10_000, 1),
	}, 7)
	ex.Start()

	require.Equal(t, []string{"https://example.com/a"}, driver.urls())

	state := telemetry.lastState(t)
	require.True(t, state.IsPlaying)
	require.Equal(t, int64(7), state.PlaylistID)
	require.Equal(t, int64(1), state.CurrentItemID)
	require.Equal(t, 0, state.CurrentItemIndex)
	require.Equal(t, 2, state.TotalItems)
	require.NotNil(t, state.TimeRemaining)
}

func TestStartWithEmptyPlaylistIsNoOp(t *testing.T) {
	ex, driver, _, _ := newTestExecutor(t)
	ex.Start()
	require.False(t, ex.Running())
	require.Empty(t, driver.urls())
}

func TestNextAndPreviousStepManually(t *testing.T) {
	ex, driver, _, _ := newTestExecutor(t)
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(1, "https://example.com/a", 60_000, 1),
		item(2, "https://example.com/b", 60_000, 2),
		item(3, "https://example.com/c", 60_000, 3),
	}, 1)
	ex.Start()

	ex.Next(true)
	require.Equal(t, "https://example.com/b", driver.lastURL())

	ex.Next(true)
	require.Equal(t, "https://example.com/c", driver.lastURL())

	ex.Previous(true)
	require.Equal(t, "https://example.com/b", driver.lastURL())
}

func TestPauseFreezesRemainingTime(t *testing.T) {
	ex, _, telemetry, clock := newTestExecutor(t)
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(1, "https://example.com/a", 15_000, 1),
		item(2, "https://example.com/b", 15_000, 2),
	}, 1)
	ex.Start()

	clock.advance(5 * time.Second)
	ex.Pause()

	state := telemetry.lastState(t)
	require.True(t, state.IsPaused)
	require.NotNil(t, state.TimeRemaining)
	require.Equal(t, int64(10_000), *state.TimeRemaining)

	// The frozen clock does not drain while paused.
	clock.advance(time.Minute)
	state = ex.State()
	require.Equal(t, int64(10_000), *state.TimeRemaining)
}

func TestResumeContinuesFromRemaining(t *testing.T) {
	ex, driver, telemetry, clock := newTestExecutor(t)
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(1, "https://example.com/a", 15_000, 1),
		item(2, "https://example.com/b", 15_000, 2),
	}, 1)
	ex.Start()

	clock.advance(5 * time.Second)
	ex.Pause()
	ex.Resume()

	state := telemetry.lastState(t)
	require.False(t, state.IsPaused)
	require.NotNil(t, state.TimeRemaining)
	require.Equal(t, int64(10_000), *state.TimeRemaining)
	// Resuming never re-navigates; the item was showing the whole time.
	require.Len(t, driver.urls(), 1)
}

func TestPermanentSingleItemHasNoTimer(t *testing.T) {
	ex, _, telemetry, _ := newTestExecutor(t)
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(1, "https://example.com/a", 0, 1),
	}, 1)
	ex.Start()

	state := telemetry.lastState(t)
	require.True(t, state.IsPlaying)
	require.Nil(t, state.TimeRemaining)
}

func TestZeroDurationInMultiItemListGetsDefaultRotation(t *testing.T) {
	driver := &fakeDriver{}
	telemetry := &fakeTelemetry{}
	clock := newFakeClock()
	ex := New(driver, nil, telemetry, Config{Now: clock.now, DefaultRotation: 20 * time.Second})
	t.Cleanup(ex.Stop)

	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(1, "https://example.com/a", 0, 1),
		item(2, "https://example.com/b", 10_000, 2),
	}, 1)
	ex.Start()

	state := telemetry.lastState(t)
	require.NotNil(t, state.TimeRemaining)
	require.Equal(t, int64(20_000), *state.TimeRemaining)
}

func TestReloadIdenticalPermanentItemKeepsDisplay(t *testing.T) {
	ex, driver, _, _ := newTestExecutor(t)
	items := []protocol.PlaylistItem{item(1, "https://example.com/a", 0, 1)}

	ex.LoadPlaylist(items, 1)
	ex.Start()
	require.Len(t, driver.urls(), 1)

	ex.LoadPlaylist(items, 1)
	require.Len(t, driver.urls(), 1)
	require.True(t, ex.Running())
}

func TestReloadAdoptsListContainingCurrentItem(t *testing.T) {
	ex, driver, _, _ := newTestExecutor(t)
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(1, "https://example.com/a", 60_000, 1),
		item(2, "https://example.com/b", 60_000, 2),
	}, 1)
	ex.Start()
	require.Equal(t, "https://example.com/a", driver.lastURL())

	// Item 1 is still showing and present in the new list: no flicker.
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(3, "https://example.com/c", 60_000, 1),
		item(1, "https://example.com/a", 60_000, 2),
	}, 1)
	require.Len(t, driver.urls(), 1)

	// Rotation continues from the item after the adopted position.
	ex.Next(true)
	require.Equal(t, "https://example.com/c", driver.lastURL())
}

func TestReloadWithoutCurrentItemRestartsFromTop(t *testing.T) {
	ex, driver, _, _ := newTestExecutor(t)
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(1, "https://example.com/a", 60_000, 1),
	}, 1)
	ex.Start()

	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(5, "https://example.com/e", 60_000, 1),
		item(6, "https://example.com/f", 60_000, 2),
	}, 2)
	require.Equal(t, "https://example.com/e", driver.lastURL())

	state := ex.State()
	require.Equal(t, int64(2), state.PlaylistID)
	require.Equal(t, int64(5), state.CurrentItemID)
}

func TestReloadEmptyListStopsRotation(t *testing.T) {
	ex, _, _, _ := newTestExecutor(t)
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(1, "https://example.com/a", 60_000, 1),
	}, 1)
	ex.Start()
	require.True(t, ex.Running())

	ex.LoadPlaylist(nil, 0)
	require.False(t, ex.Running())
}

func TestBroadcastMessageOverlaysAndRestores(t *testing.T) {
	ex, driver, telemetry, _ := newTestExecutor(t)
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(1, "https://example.com/a", 60_000, 1),
		item(2, "https://example.com/b", 60_000, 2),
	}, 1)
	ex.Start()

	ex.StartBroadcast(protocol.BroadcastStart{Type: "message", Message: "Fire drill"})
	require.Len(t, driver.html, 1)
	require.Contains(t, driver.html[0], "Fire drill")
	require.True(t, telemetry.lastState(t).IsBroadcasting)

	ex.EndBroadcast()
	state := telemetry.lastState(t)
	require.False(t, state.IsBroadcasting)
	require.True(t, state.IsPlaying)
	// The preempted item reshows; rotation continues from there.
	require.Equal(t, "https://example.com/a", driver.lastURL())
	require.Equal(t, int64(1), state.CurrentItemID)
	ex.Next(true)
	require.Equal(t, "https://example.com/b", driver.lastURL())
}

func TestBroadcastRestoresItemShowingWhenPreempted(t *testing.T) {
	ex, driver, _, _ := newTestExecutor(t)
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(1, "https://example.com/a", 60_000, 1),
		item(2, "https://example.com/b", 60_000, 2),
		item(3, "https://example.com/c", 60_000, 3),
	}, 1)
	ex.Start()
	ex.Next(true)
	require.Equal(t, "https://example.com/b", driver.lastURL())
	require.Equal(t, int64(2), ex.State().CurrentItemID)

	ex.StartBroadcast(protocol.BroadcastStart{Type: "message", Message: "hold"})
	ex.EndBroadcast()

	// Item B comes back at its index, not the item that was queued after it.
	require.Equal(t, "https://example.com/b", driver.lastURL())
	state := ex.State()
	require.Equal(t, int64(2), state.CurrentItemID)
	require.Equal(t, 1, state.CurrentItemIndex)
}

func TestBroadcastURLNavigates(t *testing.T) {
	ex, driver, _, _ := newTestExecutor(t)
	ex.StartBroadcast(protocol.BroadcastStart{Type: "url", URL: "https://example.com/alert"})
	require.Equal(t, "https://example.com/alert", driver.lastURL())

	ex.EndBroadcast()
	require.False(t, ex.State().IsBroadcasting)
}

func TestEndBroadcastWithoutActiveIsNoOp(t *testing.T) {
	ex, driver, _, _ := newTestExecutor(t)
	ex.EndBroadcast()
	require.Empty(t, driver.urls())
}

func TestPlaylistLoadedDuringBroadcastTakesOverAfterEnd(t *testing.T) {
	ex, driver, _, _ := newTestExecutor(t)
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(1, "https://example.com/a", 60_000, 1),
	}, 1)
	ex.Start()

	ex.StartBroadcast(protocol.BroadcastStart{Type: "message", Message: "hold"})
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(9, "https://example.com/new", 60_000, 1),
	}, 2)
	// The broadcast stays on screen; the new list waits behind it.
	require.NotEqual(t, "https://example.com/new", driver.lastURL())

	ex.EndBroadcast()
	require.Equal(t, "https://example.com/new", driver.lastURL())
	require.Equal(t, int64(2), ex.State().PlaylistID)
}

func TestNoValidItemKeepsDisplayUntilWindowOpens(t *testing.T) {
	ex, driver, _, clock := newTestExecutor(t)

	// Both items open at 13:00; the clock starts at 12:00.
	start, end := "13:00", "14:00"
	items := []protocol.PlaylistItem{
		item(1, "https://example.com/a", 10_000, 1),
		item(2, "https://example.com/b", 10_000, 2),
	}
	for i := range items {
		items[i].TimeWindowStart = &start
		items[i].TimeWindowEnd = &end
	}

	ex.LoadPlaylist(items, 1)
	ex.Start()

	// Rotation stays armed but nothing is shown: the display is left alone
	// rather than blanked.
	require.True(t, ex.Running())
	require.Empty(t, driver.urls())
	state := ex.State()
	require.True(t, state.IsPlaying)
	require.Zero(t, state.CurrentItemID)
	require.Nil(t, state.TimeRemaining)

	// Once the window opens, the next rescan finds an item.
	clock.advance(90 * time.Minute)
	ex.Next(true)
	require.Equal(t, "https://example.com/a", driver.lastURL())
	require.Equal(t, int64(1), ex.State().CurrentItemID)
}

func TestStopEmitsFinalIdleState(t *testing.T) {
	ex, _, telemetry, _ := newTestExecutor(t)
	ex.LoadPlaylist([]protocol.PlaylistItem{
		item(1, "https://example.com/a", 60_000, 1),
	}, 1)
	ex.Start()
	ex.Stop()

	state := telemetry.lastState(t)
	require.False(t, state.IsPlaying)
	require.False(t, ex.Running())
}

func TestRenderMessageEscapesMarkup(t *testing.T) {
	html := renderMessage(`<script>alert("hi") & more</script>`)
	require.NotContains(t, html, "<script>")
	require.Contains(t, html, "&lt;script&gt;")
	// Ampersands and quotes pass through untouched.
	require.Contains(t, html, `alert("hi") & more`)
}
