package content

import (
	"path/filepath"
	"testing"

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

func TestCreateAndGet(t *testing.T) {
	repo := setupTestRepo(t)

	description := "weather wall"
	created, err := repo.Create(CreateContentInput{
		Name:          "Weather",
		URL:           "https://example.com/weather.html",
		Description:   &description,
		IsInteractive: true,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.True(t, created.IsInteractive)
	require.Equal(t, "weather wall", *created.Description)

	missing, err := repo.GetByID(999)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestListOrdersByNameCaseInsensitive(t *testing.T) {
	repo := setupTestRepo(t)

	for _, name := range []string{"zebra", "Alpha", "menu"} {
		_, err := repo.Create(CreateContentInput{Name: name, URL: "https://example.com/" + name})
		require.NoError(t, err)
	}

	items, err := repo.List()
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "Alpha", items[0].Name)
	require.Equal(t, "menu", items[1].Name)
	require.Equal(t, "zebra", items[2].Name)
}

func TestUpdatePartialFields(t *testing.T) {
	repo := setupTestRepo(t)

	description := "original"
	created, err := repo.Create(CreateContentInput{
		Name:        "Menu",
		URL:         "https://example.com/menu.html",
		Description: &description,
	})
	require.NoError(t, err)

	newURL := "https://example.com/menu-v2.html"
	updated, err := repo.Update(created.ID, UpdateContentInput{URL: &newURL})
	require.NoError(t, err)
	require.Equal(t, newURL, updated.URL)
	// Untouched fields survive.
	require.Equal(t, "Menu", updated.Name)
	require.Equal(t, "original", *updated.Description)

	missing, err := repo.Update(999, UpdateContentInput{URL: &newURL})
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestDelete(t *testing.T) {
	repo := setupTestRepo(t)

	created, err := repo.Create(CreateContentInput{Name: "Menu", URL: "https://example.com/menu.html"})
	require.NoError(t, err)

	deleted, err := repo.Delete(created.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = repo.Delete(created.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}
