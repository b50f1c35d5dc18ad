package playlists

import (
	"encoding/json"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

// fakeSender records pushes and simulates offline devices.
type fakeSender struct {
	mu      sync.Mutex
	offline map[string]bool
	pushes  []push
}

type push struct {
	deviceKey string
	event     string
	payload   protocol.ContentUpdate
}

func newFakeSender() *fakeSender {
	return &fakeSender{offline: map[string]bool{}}
}

func (f *fakeSender) SendToDevice(deviceKey string, event string, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline[deviceKey] {
		return false
	}
	raw, _ := json.Marshal(payload)
	var update protocol.ContentUpdate
	_ = json.Unmarshal(raw, &update)
	f.pushes = append(f.pushes, push{deviceKey: deviceKey, event: event, payload: update})
	return true
}

func (f *fakeSender) pushesFor(deviceKey string) []push {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []push
	for _, p := range f.pushes {
		if p.deviceKey == deviceKey {
			out = append(out, p)
		}
	}
	return out
}

func setupService(t *testing.T) (*fixture, *Service, *fakeSender) {
	t.Helper()
	f := setupFixture(t)
	sender := newFakeSender()
	service := NewService(f.repo, f.resolver, sender, nil)
	return f, service, sender
}

func TestPropagatePlaylistPushesFullState(t *testing.T) {
	f, service, sender := setupService(t)
	deviceID := f.device(t, "lobby-01")
	playlistID := f.playlist(t, "rotation", true)
	contentID := f.contentItem(t, "page", "https://example.com/a.html")

	_, err := f.repo.CreateItem(CreateItemInput{PlaylistID: playlistID, ContentID: contentID})
	require.NoError(t, err)
	_, err = f.repo.Assign(deviceID, playlistID)
	require.NoError(t, err)

	service.PropagatePlaylist(playlistID)

	pushes := sender.pushesFor("lobby-01")
	require.Len(t, pushes, 1)
	require.Equal(t, protocol.EventContentUpdate, pushes[0].event)
	require.Equal(t, playlistID, pushes[0].payload.PlaylistID)
	require.Len(t, pushes[0].payload.Items, 1)
}

func TestPropagateSkipsUnassignedDevices(t *testing.T) {
	f, service, sender := setupService(t)
	f.device(t, "bystander-01")
	deviceID := f.device(t, "lobby-01")
	playlistID := f.playlist(t, "rotation", true)

	_, err := f.repo.Assign(deviceID, playlistID)
	require.NoError(t, err)

	service.PropagatePlaylist(playlistID)

	require.Empty(t, sender.pushesFor("bystander-01"))
	require.Len(t, sender.pushesFor("lobby-01"), 1)
}

func TestPropagateOfflineDeviceIsSkippedNotBuffered(t *testing.T) {
	f, service, sender := setupService(t)
	deviceID := f.device(t, "lobby-01")
	playlistID := f.playlist(t, "rotation", true)

	_, err := f.repo.Assign(deviceID, playlistID)
	require.NoError(t, err)

	sender.offline["lobby-01"] = true
	service.PropagatePlaylist(playlistID)
	require.Empty(t, sender.pushesFor("lobby-01"))

	// Back online: the reconnect path resolves current state, so the device
	// sees the latest playlist, not a replay of missed pushes.
	sender.offline["lobby-01"] = false
	service.PropagateDeviceKey("lobby-01")
	pushes := sender.pushesFor("lobby-01")
	require.Len(t, pushes, 1)
	require.Equal(t, playlistID, pushes[0].payload.PlaylistID)
}

func TestUnassignPushesEmptyState(t *testing.T) {
	f, service, sender := setupService(t)
	deviceID := f.device(t, "lobby-01")
	playlistID := f.playlist(t, "rotation", true)

	_, err := f.repo.Assign(deviceID, playlistID)
	require.NoError(t, err)

	removed, err := f.repo.Unassign(deviceID, playlistID)
	require.NoError(t, err)
	require.True(t, removed)

	service.PropagateDeviceKey("lobby-01")
	pushes := sender.pushesFor("lobby-01")
	require.Len(t, pushes, 1)
	require.Zero(t, pushes[0].payload.PlaylistID)
	require.Empty(t, pushes[0].payload.Items)
}

func TestDevicesUsingContentFeedsContentPropagation(t *testing.T) {
	f, service, _ := setupService(t)
	deviceID := f.device(t, "lobby-01")
	playlistID := f.playlist(t, "rotation", true)
	contentID := f.contentItem(t, "page", "https://example.com/a.html")

	_, err := f.repo.CreateItem(CreateItemInput{PlaylistID: playlistID, ContentID: contentID})
	require.NoError(t, err)
	_, err = f.repo.Assign(deviceID, playlistID)
	require.NoError(t, err)

	keys, err := service.DevicesUsingContent(contentID)
	require.NoError(t, err)
	require.Equal(t, []string{"lobby-01"}, keys)
}
