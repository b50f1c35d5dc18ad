package system

import (
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/kioskhub/kiosk-hub-go/internal/db"
	"github.com/kioskhub/kiosk-hub-go/internal/devices"
)

type staticCounts struct {
	devices int
	admins  int
}

func (s staticCounts) DeviceCount() int { return s.devices }
func (s staticCounts) AdminCount() int  { return s.admins }

type staticBroadcast bool

func (s staticBroadcast) IsActive() bool { return bool(s) }

func TestGetSystemInfo(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	dbPair, err := db.Init(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { dbPair.Close() })

	deviceRepo := devices.NewRepository(dbPair)
	_, err = deviceRepo.Create(devices.CreateDeviceInput{DeviceID: "a", Name: "A"})
	require.NoError(t, err)
	_, err = deviceRepo.Create(devices.CreateDeviceInput{DeviceID: "b", Name: "B"})
	require.NoError(t, err)
	require.NoError(t, deviceRepo.SetStatus("a", devices.StatusOnline))

	service := NewService(dbPair, nil, staticCounts{devices: 1, admins: 2}, deviceRepo, staticBroadcast(true))

	info, err := service.GetSystemInfo()
	require.NoError(t, err)
	require.Equal(t, Version, info.HubVersion)
	require.True(t, info.SQLiteConnected)
	require.Equal(t, 2, info.DevicesTotal)
	require.Equal(t, 1, info.DevicesOnline)
	require.Equal(t, 1, info.DevicesConnected)
	require.Equal(t, 2, info.AdminsConnected)
	require.True(t, info.BroadcastActive)
	require.GreaterOrEqual(t, info.MemoryUsageMB, 0.0)
}

func TestGetSystemInfoWithNilCollaborators(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	dbPair, err := db.Init(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { dbPair.Close() })

	service := NewService(dbPair, nil, nil, nil, nil)

	info, err := service.GetSystemInfo()
	require.NoError(t, err)
	require.Zero(t, info.DevicesConnected)
	require.False(t, info.BroadcastActive)
}
