package devices

import (
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/kioskhub/kiosk-hub-go/internal/db"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	dbPair, err := db.Init(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { dbPair.Close() })

	return NewRepository(dbPair)
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := setupTestRepo(t)

	location := "Main Lobby"
	created, err := repo.Create(CreateDeviceInput{
		DeviceID: "lobby-01",
		Name:     "Lobby Display",
		Location: &location,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, "lobby-01", created.DeviceID)
	require.Equal(t, StatusOffline, created.Status)
	require.Nil(t, created.LastSeen)

	byID, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	require.Equal(t, "Lobby Display", byID.Name)

	byKey, err := repo.GetByKey("lobby-01")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	require.Equal(t, created.ID, byKey.ID)
}

func TestRepository_CreateDuplicateKey(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Create(CreateDeviceInput{DeviceID: "lobby-01", Name: "First"})
	require.NoError(t, err)

	_, err = repo.Create(CreateDeviceInput{DeviceID: "lobby-01", Name: "Second"})
	require.ErrorIs(t, err, ErrDeviceIDTaken)
}

func TestRepository_GetMissingReturnsNil(t *testing.T) {
	repo := setupTestRepo(t)

	device, err := repo.GetByID(999)
	require.NoError(t, err)
	require.Nil(t, device)

	device, err = repo.GetByKey("nope")
	require.NoError(t, err)
	require.Nil(t, device)
}

func TestRepository_Update(t *testing.T) {
	repo := setupTestRepo(t)

	created, err := repo.Create(CreateDeviceInput{DeviceID: "lobby-01", Name: "Old Name"})
	require.NoError(t, err)

	newName := "New Name"
	updated, err := repo.Update(created.ID, UpdateDeviceInput{Name: &newName})
	require.NoError(t, err)
	require.Equal(t, "New Name", updated.Name)

	// Absent row returns nil, no error.
	missing, err := repo.Update(999, UpdateDeviceInput{Name: &newName})
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRepository_Delete(t *testing.T) {
	repo := setupTestRepo(t)

	created, err := repo.Create(CreateDeviceInput{DeviceID: "lobby-01", Name: "Lobby"})
	require.NoError(t, err)

	deleted, err := repo.Delete(created.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = repo.Delete(created.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestRepository_StatusAndLastSeen(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Create(CreateDeviceInput{DeviceID: "lobby-01", Name: "Lobby"})
	require.NoError(t, err)

	require.NoError(t, repo.SetStatus("lobby-01", StatusOnline))
	device, err := repo.GetByKey("lobby-01")
	require.NoError(t, err)
	require.Equal(t, StatusOnline, device.Status)
	require.NotNil(t, device.LastSeen)
}

func TestRepository_SetClientInfoPartial(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Create(CreateDeviceInput{DeviceID: "lobby-01", Name: "Lobby"})
	require.NoError(t, err)

	resolution := "1920x1080"
	require.NoError(t, repo.SetClientInfo("lobby-01", ClientInfo{ScreenResolution: &resolution}))

	version := "2.1.0"
	require.NoError(t, repo.SetClientInfo("lobby-01", ClientInfo{ClientVersion: &version}))

	device, err := repo.GetByKey("lobby-01")
	require.NoError(t, err)
	// The second write must not blank the first field.
	require.NotNil(t, device.ScreenResolution)
	require.Equal(t, "1920x1080", *device.ScreenResolution)
	require.NotNil(t, device.ClientVersion)
	require.Equal(t, "2.1.0", *device.ClientVersion)
}

func TestRepository_MarkStaleOffline(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Create(CreateDeviceInput{DeviceID: "stale-01", Name: "Stale"})
	require.NoError(t, err)
	_, err = repo.Create(CreateDeviceInput{DeviceID: "fresh-01", Name: "Fresh"})
	require.NoError(t, err)

	require.NoError(t, repo.SetStatus("stale-01", StatusOnline))
	require.NoError(t, repo.SetStatus("fresh-01", StatusOnline))

	// A cutoff in the future ages out stale-01 and fresh-01 alike; a cutoff
	// in the past ages out neither.
	past := time.Now().UTC().Add(-time.Hour).Format("2006-01-02T15:04:05Z07:00")
	keys, err := repo.MarkStaleOffline(past)
	require.NoError(t, err)
	require.Empty(t, keys)

	future := time.Now().UTC().Add(time.Hour).Format("2006-01-02T15:04:05Z07:00")
	keys, err = repo.MarkStaleOffline(future)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"stale-01", "fresh-01"}, keys)

	device, err := repo.GetByKey("stale-01")
	require.NoError(t, err)
	require.Equal(t, StatusOffline, device.Status)
}

func TestRepository_Counts(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Create(CreateDeviceInput{DeviceID: "a", Name: "A"})
	require.NoError(t, err)
	_, err = repo.Create(CreateDeviceInput{DeviceID: "b", Name: "B"})
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus("a", StatusOnline))

	total, online, err := repo.Counts()
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, 1, online)
}
