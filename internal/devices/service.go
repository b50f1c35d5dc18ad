package devices

import (
	"log"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// ConnectionChecker reports whether a device has a live session. Narrow
// interface so the service does not depend on the realtime package.
type ConnectionChecker interface {
	IsConnected(deviceKey string) bool
}

// Service provides device management on top of the repository, plus the
// stale-device sweep that reconciles persisted status with reality after
// a hub crash or missed disconnect.
type Service struct {
	logger    *log.Logger
	repo      *Repository
	conns     ConnectionChecker
	staleness time.Duration
	cron      *cron.Cron
}

// NewService creates a new device service. conns may be nil until the
// realtime registry is wired in via SetConnectionChecker.
func NewService(repo *Repository, logger *log.Logger, staleness time.Duration) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if staleness <= 0 {
		staleness = 90 * time.Second
	}
	return &Service{
		logger:    logger,
		repo:      repo,
		staleness: staleness,
	}
}

// SetConnectionChecker wires the live-session checker. The registry is built
// after the device service, so this is set during server assembly.
func (s *Service) SetConnectionChecker(conns ConnectionChecker) {
	s.conns = conns
}

// Repo exposes the underlying repository for route handlers.
func (s *Service) Repo() *Repository { return s.repo }

// Resolve finds a device by URL reference: numeric surrogate id first, then
// the stable string identity.
func (s *Service) Resolve(ref string) (*Device, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		device, err := s.repo.GetByID(id)
		if err != nil || device != nil {
			return device, err
		}
	}
	return s.repo.GetByKey(ref)
}

// HandleConnect records a device session coming online.
func (s *Service) HandleConnect(deviceKey string, ip string) {
	if err := s.repo.SetStatus(deviceKey, StatusOnline); err != nil {
		s.logger.Printf("device %s: failed to mark online: %v", deviceKey, err)
	}
	if ip != "" {
		if err := s.repo.SetClientInfo(deviceKey, ClientInfo{IPAddress: &ip}); err != nil {
			s.logger.Printf("device %s: failed to record client IP: %v", deviceKey, err)
		}
	}
}

// HandleDisconnect records a device session going away.
func (s *Service) HandleDisconnect(deviceKey string) {
	if err := s.repo.SetStatus(deviceKey, StatusOffline); err != nil {
		s.logger.Printf("device %s: failed to mark offline: %v", deviceKey, err)
	}
}

// HandleStatus records a device-reported status change.
func (s *Service) HandleStatus(deviceKey string, status string) {
	switch Status(status) {
	case StatusOnline, StatusOffline, StatusError:
	default:
		s.logger.Printf("device %s: ignoring unknown status %q", deviceKey, status)
		return
	}
	if err := s.repo.SetStatus(deviceKey, Status(status)); err != nil {
		s.logger.Printf("device %s: failed to record status: %v", deviceKey, err)
	}
}

// HandleHealth bumps last-seen on a health report and folds in any client
// metadata the agent included.
func (s *Service) HandleHealth(deviceKey string, screenResolution, osVersion, clientVersion string) {
	if err := s.repo.TouchLastSeen(deviceKey); err != nil {
		s.logger.Printf("device %s: failed to touch last_seen: %v", deviceKey, err)
	}
	info := ClientInfo{}
	changed := false
	if screenResolution != "" {
		info.ScreenResolution = &screenResolution
		changed = true
	}
	if osVersion != "" {
		info.OSVersion = &osVersion
		changed = true
	}
	if clientVersion != "" {
		info.ClientVersion = &clientVersion
		changed = true
	}
	if changed {
		if err := s.repo.SetClientInfo(deviceKey, info); err != nil {
			s.logger.Printf("device %s: failed to record client info: %v", deviceKey, err)
		}
	}
}

// StartStaleSweep schedules the periodic reconciliation of persisted status
// against live sessions.
func (s *Service) StartStaleSweep() {
	if s.cron != nil {
		return
	}
	s.cron = cron.New()
	// Every minute is plenty: the sweep only matters after crashes.
	if _, err := s.cron.AddFunc("@every 1m", s.sweepStale); err != nil {
		s.logger.Printf("failed to schedule stale sweep: %v", err)
		return
	}
	s.cron.Start()
}

// StopStaleSweep stops the sweep scheduler.
func (s *Service) StopStaleSweep() {
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

func (s *Service) sweepStale() {
	cutoff := time.Now().UTC().Add(-s.staleness).Format("2006-01-02T15:04:05Z07:00")
	keys, err := s.repo.MarkStaleOffline(cutoff)
	if err != nil {
		s.logger.Printf("stale sweep failed: %v", err)
		return
	}
	for _, key := range keys {
		// A live session means the row was stale, not the device; flip it back.
		if s.conns != nil && s.conns.IsConnected(key) {
			if err := s.repo.SetStatus(key, StatusOnline); err != nil {
				s.logger.Printf("device %s: failed to restore online status: %v", key, err)
			}
			continue
		}
		s.logger.Printf("device %s: marked offline by stale sweep", key)
	}
}
