package cache

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsCacheable(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/page.html", true},
		{"https://example.com/photo.jpg", true},
		{"https://example.com/clip.mp4", true},
		{"https://example.com/doc.pdf", true},
		{"https://example.com/dashboard", false},
		{"https://example.com/feed.html?refresh=30", false},
		{"file:///opt/kiosk/local.html", false},
		{"not a url at all", false},
		{"https://example.com/archive.zip", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, m.IsCacheable(tt.url), tt.url)
	}
}

func TestWaitForCacheDownloadsAndServesLocally(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>hello</html>"))
	}))
	defer server.Close()

	m := NewManager(t.TempDir(), nil)
	remote := server.URL + "/page.html"

	local, ok := m.WaitForCache(remote, 5*time.Second)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(local, "file://"))

	data, err := os.ReadFile(strings.TrimPrefix(local, "file://"))
	require.NoError(t, err)
	require.Equal(t, "<html>hello</html>", string(data))

	// Once downloaded, the non-blocking lookup finds it too.
	got, ok := m.GetLocalPath(remote)
	require.True(t, ok)
	require.Equal(t, local, got)
}

func TestGetLocalPathMissesWhileNotFetched(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	_, ok := m.GetLocalPath("https://example.com/page.html")
	require.False(t, ok)
}

func TestWaitForCacheFailedDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	m := NewManager(t.TempDir(), nil)
	_, ok := m.WaitForCache(server.URL+"/gone.html", 5*time.Second)
	require.False(t, ok)

	// The failure is remembered; lookups keep missing without re-blocking.
	_, ok = m.GetLocalPath(server.URL + "/gone.html")
	require.False(t, ok)
}

func TestWaitForCacheRejectsUncacheable(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	_, ok := m.WaitForCache("https://example.com/app?session=1", time.Second)
	require.False(t, ok)
}

func TestPrefetchWarmsCache(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("img"))
	}))
	defer server.Close()

	m := NewManager(t.TempDir(), nil)
	remote := server.URL + "/logo.png"

	m.Prefetch([]string{remote, "https://example.com/skip-me"})

	local, ok := m.WaitForCache(remote, 5*time.Second)
	require.True(t, ok)
	require.NotEmpty(t, local)

	// Prefetch and the wait share one download.
	require.Equal(t, int64(1), hits.Load())
}

func TestCacheKeyPreservesExtension(t *testing.T) {
	key := cacheKey("https://example.com/video.mp4")
	require.True(t, strings.HasSuffix(key, ".mp4"))

	other := cacheKey("https://example.com/other.mp4")
	require.NotEqual(t, key, other)
}
