package system

import (
	"database/sql"
	"log"
	"runtime"
	"time"
)

// Version is the hub version, set at build time or defaulted.
var Version = "1.0.0"

// ConnectionCounter reports live websocket session counts.
type ConnectionCounter interface {
	DeviceCount() int
	AdminCount() int
}

// DeviceCounter reports persisted device counts by status.
type DeviceCounter interface {
	Counts() (total int, online int, err error)
}

// BroadcastChecker reports whether a fleet-wide broadcast is active.
type BroadcastChecker interface {
	IsActive() bool
}

// DBPair interface for dependency injection (matches db.DBPair).
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

// Service provides system information. Uses the reader connection only as
// this service only performs SELECT queries.
type Service struct {
	logger    *log.Logger
	reader    *sql.DB
	conns     ConnectionCounter
	devices   DeviceCounter
	broadcast BroadcastChecker
	startTime time.Time
}

// NewService creates a new system service.
func NewService(dbPair DBPair, logger *log.Logger, conns ConnectionCounter, deviceCounter DeviceCounter, broadcast BroadcastChecker) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		logger:    logger,
		reader:    dbPair.Reader(),
		conns:     conns,
		devices:   deviceCounter,
		broadcast: broadcast,
		startTime: time.Now(),
	}
}

// SystemInfo holds hub status for the operations dashboard.
type SystemInfo struct {
	HubVersion       string  `json:"hub_version"`
	Uptime           int64   `json:"uptime_seconds"`
	MemoryUsageMB    float64 `json:"memory_mb"`
	SQLiteConnected  bool    `json:"sqlite_connected"`
	DevicesTotal     int     `json:"devices_total"`
	DevicesOnline    int     `json:"devices_online"`
	DevicesConnected int     `json:"devices_connected"`
	AdminsConnected  int     `json:"admins_connected"`
	BroadcastActive  bool    `json:"broadcast_active"`
}

// GetSystemInfo returns current system information.
func (s *Service) GetSystemInfo() (*SystemInfo, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	sqliteConnected := true
	if err := s.reader.Ping(); err != nil {
		sqliteConnected = false
	}

	total, online := 0, 0
	if s.devices != nil {
		var err error
		total, online, err = s.devices.Counts()
		if err != nil {
			s.logger.Printf("failed to count devices: %v", err)
		}
	}

	info := &SystemInfo{
		HubVersion:      Version,
		Uptime:          int64(time.Since(s.startTime).Seconds()),
		MemoryUsageMB:   float64(memStats.Alloc) / 1024 / 1024,
		SQLiteConnected: sqliteConnected,
		DevicesTotal:    total,
		DevicesOnline:   online,
	}
	if s.conns != nil {
		info.DevicesConnected = s.conns.DeviceCount()
		info.AdminsConnected = s.conns.AdminCount()
	}
	if s.broadcast != nil {
		info.BroadcastActive = s.broadcast.IsActive()
	}
	return info, nil
}
