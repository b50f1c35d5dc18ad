package audit

import (
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/kioskhub/kiosk-hub-go/internal/db"
)

func setupTestRepo(t *testing.T) (*Repository, *db.DBPair) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	dbPair, err := db.Init(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { dbPair.Close() })

	return NewRepository(dbPair), dbPair
}

func TestWriteAndGet(t *testing.T) {
	repo, _ := setupTestRepo(t)

	deviceID := int64(7)
	id, err := repo.Write(WriteEventInput{
		Type:     EventDeviceError,
		Level:    EventLevelError,
		Message:  "renderer crashed",
		DeviceID: &deviceID,
		Actor:    "agent",
		Details:  map[string]any{"source": "display"},
	})
	require.NoError(t, err)

	event, err := repo.Get(id)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, EventDeviceError, event.Type)
	require.Equal(t, EventLevelError, event.Level)
	require.Equal(t, "renderer crashed", event.Message)
	require.Equal(t, int64(7), *event.DeviceID)
	require.Equal(t, "agent", *event.Actor)
	require.Equal(t, "display", event.Details["source"])

	missing, err := repo.Get(999)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestWriteDefaultsLevelToInfo(t *testing.T) {
	repo, _ := setupTestRepo(t)

	id, err := repo.Write(WriteEventInput{Type: EventSystemStartup, Message: "hub started"})
	require.NoError(t, err)

	event, err := repo.Get(id)
	require.NoError(t, err)
	require.Equal(t, EventLevelInfo, event.Level)
	require.Nil(t, event.DeviceID)
	require.Nil(t, event.Actor)
	require.Empty(t, event.Details)
}

func TestListFilters(t *testing.T) {
	repo, _ := setupTestRepo(t)

	deviceA, deviceB := int64(1), int64(2)
	_, err := repo.Write(WriteEventInput{Type: EventDeviceError, Level: EventLevelError, Message: "a", DeviceID: &deviceA})
	require.NoError(t, err)
	_, err = repo.Write(WriteEventInput{Type: EventDeviceCommand, Message: "b", DeviceID: &deviceA})
	require.NoError(t, err)
	_, err = repo.Write(WriteEventInput{Type: EventDeviceError, Level: EventLevelError, Message: "c", DeviceID: &deviceB})
	require.NoError(t, err)

	all, err := repo.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	errors, err := repo.List(ListFilter{Type: EventDeviceError})
	require.NoError(t, err)
	require.Len(t, errors, 2)

	forA, err := repo.List(ListFilter{DeviceID: deviceA})
	require.NoError(t, err)
	require.Len(t, forA, 2)

	narrowed, err := repo.List(ListFilter{Type: EventDeviceError, DeviceID: deviceA})
	require.NoError(t, err)
	require.Len(t, narrowed, 1)
	require.Equal(t, "a", narrowed[0].Message)
}

func TestListNewestFirstWithLimit(t *testing.T) {
	repo, dbPair := setupTestRepo(t)

	oldID, err := repo.Write(WriteEventInput{Type: EventDeviceOnline, Message: "old"})
	require.NoError(t, err)
	stamp := time.Now().UTC().Add(-time.Hour).Format("2006-01-02T15:04:05Z07:00")
	_, err = dbPair.Writer().Exec(`UPDATE audit_events SET created_at = ? WHERE id = ?`, stamp, oldID)
	require.NoError(t, err)

	_, err = repo.Write(WriteEventInput{Type: EventDeviceOffline, Message: "new"})
	require.NoError(t, err)

	events, err := repo.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "new", events[0].Message)

	limited, err := repo.List(ListFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "new", limited[0].Message)
}

func TestPruneOlderThan(t *testing.T) {
	repo, dbPair := setupTestRepo(t)

	oldID, err := repo.Write(WriteEventInput{Type: EventDeviceOnline, Message: "old"})
	require.NoError(t, err)
	stamp := time.Now().UTC().Add(-48 * time.Hour).Format("2006-01-02T15:04:05Z07:00")
	_, err = dbPair.Writer().Exec(`UPDATE audit_events SET created_at = ? WHERE id = ?`, stamp, oldID)
	require.NoError(t, err)

	_, err = repo.Write(WriteEventInput{Type: EventDeviceOnline, Message: "fresh"})
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(-24 * time.Hour).Format("2006-01-02T15:04:05Z07:00")
	removed, err := repo.PruneOlderThan(cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	events, err := repo.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "fresh", events[0].Message)
}
