// Package cache keeps local copies of playlist content so displays survive
// flaky uplinks. Lookups are non-blocking; WaitForCache bounds how long the
// executor will hold out for a download before falling back to the remote URL.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// MaxWait caps how long WaitForCache blocks for an in-flight download.
const MaxWait = 5 * time.Minute

// Cache is what the executor needs from the content cache.
type Cache interface {
	IsCacheable(rawURL string) bool
	// GetLocalPath returns a file:// URL for already-cached content.
	GetLocalPath(rawURL string) (string, bool)
	// WaitForCache blocks up to timeout (capped at MaxWait) for the content
	// to finish downloading, returning the local URL on success.
	WaitForCache(rawURL string, timeout time.Duration) (string, bool)
}

var cacheableExtensions = map[string]bool{
	".html": true, ".htm": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".mp4": true, ".webm": true,
	".pdf": true,
}

// Manager is the filesystem cache. Downloads happen in the background; the
// done channel per entry lets waiters block without polling.
type Manager struct {
	logger *log.Logger
	dir    string
	client *http.Client

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	path string
	done chan struct{}
	ok   bool
}

// NewManager creates a cache rooted at dir.
func NewManager(dir string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		logger:  logger,
		dir:     dir,
		client:  &http.Client{Timeout: MaxWait},
		entries: map[string]*entry{},
	}
}

// IsCacheable reports whether the URL points at static downloadable content.
// Interactive pages and query-driven endpoints stay remote.
func (m *Manager) IsCacheable(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return false
	}
	if parsed.RawQuery != "" {
		return false
	}
	return cacheableExtensions[strings.ToLower(filepath.Ext(parsed.Path))]
}

// GetLocalPath returns the cached copy if the download already finished.
func (m *Manager) GetLocalPath(rawURL string) (string, bool) {
	m.mu.Lock()
	e := m.entries[rawURL]
	m.mu.Unlock()
	if e == nil {
		return "", false
	}
	select {
	case <-e.done:
		if e.ok {
			return "file://" + e.path, true
		}
		return "", false
	default:
		return "", false
	}
}

// WaitForCache blocks until the download completes or timeout elapses. A URL
// never fetched starts downloading.
func (m *Manager) WaitForCache(rawURL string, timeout time.Duration) (string, bool) {
	if !m.IsCacheable(rawURL) {
		return "", false
	}
	if timeout <= 0 || timeout > MaxWait {
		timeout = MaxWait
	}
	e := m.ensureFetching(rawURL)
	select {
	case <-e.done:
	case <-time.After(timeout):
		return "", false
	}
	if !e.ok {
		return "", false
	}
	return "file://" + e.path, true
}

// Prefetch starts background downloads for every cacheable URL in the list.
func (m *Manager) Prefetch(urls []string) {
	for _, u := range urls {
		if m.IsCacheable(u) {
			m.ensureFetching(u)
		}
	}
}

func (m *Manager) ensureFetching(rawURL string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[rawURL]; ok {
		return e
	}
	e := &entry{
		path: filepath.Join(m.dir, cacheKey(rawURL)),
		done: make(chan struct{}),
	}
	m.entries[rawURL] = e
	go m.fetch(rawURL, e)
	return e
}

func (m *Manager) fetch(rawURL string, e *entry) {
	defer close(e.done)

	if info, err := os.Stat(e.path); err == nil && info.Size() > 0 {
		e.ok = true
		return
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		m.logger.Printf("cache: mkdir failed: %v", err)
		return
	}

	resp, err := m.client.Get(rawURL)
	if err != nil {
		m.logger.Printf("cache: fetch %s failed: %v", rawURL, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		m.logger.Printf("cache: fetch %s returned %d", rawURL, resp.StatusCode)
		return
	}

	tmp := e.path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		m.logger.Printf("cache: create %s failed: %v", tmp, err)
		return
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		m.logger.Printf("cache: download %s failed: %v", rawURL, err)
		return
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return
	}
	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		m.logger.Printf("cache: finalize %s failed: %v", rawURL, err)
		return
	}
	e.ok = true
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	name := hex.EncodeToString(sum[:])
	if ext := filepath.Ext(rawURL); len(ext) > 1 && len(ext) <= 6 {
		name += ext
	}
	return name
}
