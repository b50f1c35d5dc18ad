package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kioskhub/kiosk-hub-go/internal/auth"
	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

// Sessions are built without a connection and never started: Send only
// enqueues, so tests read queued frames straight off the outbound channel.

func newDeviceSession(deviceKey string, onClose func(*Session)) *Session {
	return NewSession(nil, auth.TokenPayload{
		Role:      auth.RoleDevice,
		DeviceKey: deviceKey,
		DeviceID:  1,
	}, SessionConfig{}, nil, onClose)
}

func newAdminSession(sub string) *Session {
	return NewSession(nil, auth.TokenPayload{
		Role: auth.RoleAdmin,
		Sub:  sub,
	}, SessionConfig{}, nil, nil)
}

func drainFrames(s *Session) []protocol.Frame {
	var frames []protocol.Frame
	for {
		select {
		case frame := <-s.out:
			frames = append(frames, frame)
		default:
			return frames
		}
	}
}

func TestAddDeviceEvictsPreviousSession(t *testing.T) {
	registry := NewRegistry(nil)

	first := newDeviceSession("lobby-01", nil)
	second := newDeviceSession("lobby-01", nil)

	registry.AddDevice(first)
	registry.AddDevice(second)

	require.Equal(t, 1, registry.DeviceCount())
	select {
	case <-first.Done():
	default:
		t.Fatal("evicted session was not closed")
	}

	// The new session receives subsequent sends, not the evicted one.
	require.True(t, registry.SendToDevice("lobby-01", "display:refresh", nil))
	require.Len(t, drainFrames(second), 1)
}

func TestRemoveSkipsEvictedSession(t *testing.T) {
	registry := NewRegistry(nil)

	first := newDeviceSession("lobby-01", nil)
	second := newDeviceSession("lobby-01", nil)
	registry.AddDevice(first)
	registry.AddDevice(second)

	// The evicted session's close callback races with the replacement; its
	// Remove must not take the live session down.
	registry.Remove(first)
	require.True(t, registry.IsConnected("lobby-01"))

	registry.Remove(second)
	require.False(t, registry.IsConnected("lobby-01"))
}

func TestSendToOfflineDeviceReturnsFalse(t *testing.T) {
	registry := NewRegistry(nil)
	require.False(t, registry.SendToDevice("ghost", "display:refresh", nil))
}

func TestAdminSyncOnConnect(t *testing.T) {
	registry := NewRegistry(nil)
	registry.AddDevice(newDeviceSession("lobby-01", nil))

	admin := newAdminSession("admin")
	registry.AddAdmin(admin)

	frames := drainFrames(admin)
	require.Len(t, frames, 1)
	require.Equal(t, protocol.EventAdminDevicesSync, frames[0].Event)

	var list protocol.DeviceList
	require.NoError(t, json.Unmarshal(frames[0].Payload, &list))
	require.Equal(t, []string{"lobby-01"}, list.DeviceIDs)
}

func TestDeviceLifecycleBroadcastsToAdmins(t *testing.T) {
	registry := NewRegistry(nil)
	admin := newAdminSession("admin")
	registry.AddAdmin(admin)
	drainFrames(admin) // discard the sync

	device := newDeviceSession("lobby-01", nil)
	registry.AddDevice(device)
	frames := drainFrames(admin)
	require.Len(t, frames, 1)
	require.Equal(t, protocol.EventAdminDeviceConnected, frames[0].Event)

	registry.Remove(device)
	frames = drainFrames(admin)
	require.Len(t, frames, 1)
	require.Equal(t, protocol.EventAdminDeviceDisconnected, frames[0].Event)
}

func TestSendPreservesOrder(t *testing.T) {
	registry := NewRegistry(nil)
	device := newDeviceSession("lobby-01", nil)
	registry.AddDevice(device)

	events := []string{"display:navigate", "display:refresh", "screenshot:request"}
	for _, event := range events {
		require.True(t, registry.SendToDevice("lobby-01", event, nil))
	}

	frames := drainFrames(device)
	require.Len(t, frames, len(events))
	for i, event := range events {
		require.Equal(t, event, frames[i].Event)
	}
}

func TestFullQueueClosesSlowSession(t *testing.T) {
	session := NewSession(nil, auth.TokenPayload{
		Role:      auth.RoleDevice,
		DeviceKey: "slow-01",
	}, SessionConfig{QueueSize: 2}, nil, nil)

	require.True(t, session.Send("a", nil))
	require.True(t, session.Send("b", nil))
	require.False(t, session.Send("c", nil))

	select {
	case <-session.Done():
	default:
		t.Fatal("session with full queue was not closed")
	}
	// Closed sessions refuse further sends.
	require.False(t, session.Send("d", nil))
}

func TestCloseNotifiesOnceAndIsIdempotent(t *testing.T) {
	calls := 0
	session := newDeviceSession("lobby-01", func(*Session) { calls++ })

	session.Close()
	session.Close()
	require.Equal(t, 1, calls)
}
