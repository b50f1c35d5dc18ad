package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

type fanoutRecorder struct {
	keys    []string
	offline map[string]bool
	sent    []sent
}

type sent struct {
	deviceKey string
	event     string
	payload   any
}

func (f *fanoutRecorder) ConnectedDeviceKeys() []string { return f.keys }

func (f *fanoutRecorder) SendToDevice(deviceKey string, event string, payload any) bool {
	if f.offline[deviceKey] {
		return false
	}
	f.sent = append(f.sent, sent{deviceKey: deviceKey, event: event, payload: payload})
	return true
}

func TestStartFansOutToAllConnectedDevices(t *testing.T) {
	sender := &fanoutRecorder{keys: []string{"lobby-01", "lobby-02"}}
	service := NewService(sender, nil)

	broadcast, ok := service.Start(StartInput{Type: "message", Message: "Fire drill at noon"})
	require.True(t, ok)
	require.Equal(t, "message", broadcast.Type)

	require.Len(t, sender.sent, 2)
	for _, s := range sender.sent {
		require.Equal(t, protocol.EventBroadcastStart, s.event)
		payload := s.payload.(protocol.BroadcastStart)
		require.Equal(t, "Fire drill at noon", payload.Message)
	}
}

func TestSecondStartRejectedWithoutMutation(t *testing.T) {
	sender := &fanoutRecorder{keys: []string{"lobby-01"}}
	service := NewService(sender, nil)

	first, ok := service.Start(StartInput{Type: "url", URL: "https://example.com/alert"})
	require.True(t, ok)

	rejected, ok := service.Start(StartInput{Type: "message", Message: "second"})
	require.False(t, ok)
	require.Nil(t, rejected)

	// The original broadcast stays in effect untouched.
	active := service.Active()
	require.NotNil(t, active)
	require.Equal(t, "url", active.Type)
	require.Equal(t, first.URL, active.URL)
	require.Len(t, sender.sent, 1)
}

func TestEndRestoresFleetAndClearsState(t *testing.T) {
	sender := &fanoutRecorder{keys: []string{"lobby-01", "lobby-02"}}
	service := NewService(sender, nil)

	_, ok := service.Start(StartInput{Type: "message", Message: "hi"})
	require.True(t, ok)
	sender.sent = nil

	require.True(t, service.End())
	require.Len(t, sender.sent, 2)
	for _, s := range sender.sent {
		require.Equal(t, protocol.EventBroadcastEnd, s.event)
	}

	require.Nil(t, service.Active())
	require.False(t, service.IsActive())
	require.False(t, service.End())
}

func TestStartSkipsOfflineDevices(t *testing.T) {
	sender := &fanoutRecorder{
		keys:    []string{"lobby-01", "lobby-02"},
		offline: map[string]bool{"lobby-02": true},
	}
	service := NewService(sender, nil)

	_, ok := service.Start(StartInput{Type: "message", Message: "hi"})
	require.True(t, ok)
	require.Len(t, sender.sent, 1)
	require.Equal(t, "lobby-01", sender.sent[0].deviceKey)
}

func TestActivePayloadReportsRemainingDuration(t *testing.T) {
	service := NewService(&fanoutRecorder{}, nil)

	_, ok := service.Start(StartInput{Type: "message", Message: "hi", DurationMs: 60_000})
	require.True(t, ok)

	payload, active := service.ActivePayload()
	require.True(t, active)
	require.Greater(t, payload.DurationMs, int64(0))
	require.LessOrEqual(t, payload.DurationMs, int64(60_000))

	// A past-due broadcast still reports a positive duration so late joiners
	// end it immediately instead of showing it forever.
	service.mu.Lock()
	service.active.StartedAt = time.Now().Add(-2 * time.Minute)
	service.mu.Unlock()

	payload, active = service.ActivePayload()
	require.True(t, active)
	require.Equal(t, int64(1), payload.DurationMs)
}

func TestActivePayloadWhenIdle(t *testing.T) {
	service := NewService(&fanoutRecorder{}, nil)
	_, active := service.ActivePayload()
	require.False(t, active)
}
