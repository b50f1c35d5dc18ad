package audit

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Service records operational events and prunes old ones. Writes are
// best-effort: a failed audit insert is logged, never propagated, so the
// operation that triggered it still succeeds.
type Service struct {
	logger        *log.Logger
	repo          *Repository
	retentionDays int
	cron          *cron.Cron
}

// NewService creates the audit service.
func NewService(repo *Repository, retentionDays int, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{logger: logger, repo: repo, retentionDays: retentionDays}
}

// Repo exposes the underlying repository for route handlers.
func (s *Service) Repo() *Repository { return s.repo }

// Record appends an event, swallowing failures.
func (s *Service) Record(input WriteEventInput) {
	if _, err := s.repo.Write(input); err != nil {
		s.logger.Printf("audit write failed (type=%s): %v", input.Type, err)
	}
}

// RecordDeviceError implements the realtime router's error sink.
func (s *Service) RecordDeviceError(deviceID int64, deviceKey, message, source string) {
	details := map[string]any{"deviceId": deviceKey}
	if source != "" {
		details["source"] = source
	}
	s.Record(WriteEventInput{
		Type:     EventDeviceError,
		Level:    EventLevelError,
		Message:  message,
		DeviceID: &deviceID,
		Details:  details,
	})
}

// RecordCommand implements the control ingress recorder.
func (s *Service) RecordCommand(deviceID int64, deviceKey, actor, command string) {
	s.Record(WriteEventInput{
		Type:     EventDeviceCommand,
		Level:    EventLevelInfo,
		Message:  "Command " + command + " sent to " + deviceKey,
		DeviceID: &deviceID,
		Actor:    actor,
		Details:  map[string]any{"command": command, "deviceId": deviceKey},
	})
}

// DeviceLogs implements the device routes' log provider: recent events
// concerning one device, newest first.
func (s *Service) DeviceLogs(deviceID int64, limit int) (any, error) {
	return s.repo.List(ListFilter{DeviceID: deviceID, Limit: limit})
}

// StartRetention schedules the daily prune.
func (s *Service) StartRetention() {
	if s.cron != nil || s.retentionDays <= 0 {
		return
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@daily", s.prune); err != nil {
		s.logger.Printf("failed to schedule audit prune: %v", err)
		return
	}
	s.cron.Start()
}

// StopRetention stops the prune scheduler.
func (s *Service) StopRetention() {
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

func (s *Service) prune() {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays).Format("2006-01-02T15:04:05Z07:00")
	removed, err := s.repo.PruneOlderThan(cutoff)
	if err != nil {
		s.logger.Printf("audit prune failed: %v", err)
		return
	}
	if removed > 0 {
		s.logger.Printf("audit prune removed %d events older than %d days", removed, s.retentionDays)
	}
}
