package screenshots

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Service persists uploaded screenshots and enforces the retention policy:
// keep the newest N per device and drop anything past the max age.
type Service struct {
	logger     *log.Logger
	repo       *Repository
	keepPer    int
	maxAgeDays int
	cron       *cron.Cron
}

// NewService creates the screenshot service.
func NewService(repo *Repository, keepPerDevice, maxAgeDays int, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		logger:     logger,
		repo:       repo,
		keepPer:    keepPerDevice,
		maxAgeDays: maxAgeDays,
	}
}

// Repo exposes the underlying repository for route handlers.
func (s *Service) Repo() *Repository { return s.repo }

// SaveScreenshot stores an uploaded frame and returns its id. Implements the
// realtime router's screenshot sink.
func (s *Service) SaveScreenshot(deviceID int64, imageData, url string) (string, error) {
	return s.repo.Save(deviceID, imageData, url)
}

// StartRetention schedules the hourly prune.
func (s *Service) StartRetention() {
	if s.cron != nil {
		return
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@hourly", s.prune); err != nil {
		s.logger.Printf("failed to schedule screenshot prune: %v", err)
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
	if s.keepPer > 0 {
		removed, err := s.repo.PruneKeepNewest(s.keepPer)
		if err != nil {
			s.logger.Printf("screenshot prune (keep %d) failed: %v", s.keepPer, err)
		} else if removed > 0 {
			s.logger.Printf("screenshot prune removed %d over-quota rows", removed)
		}
	}
	if s.maxAgeDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -s.maxAgeDays).Format("2006-01-02T15:04:05Z07:00")
		removed, err := s.repo.PruneOlderThan(cutoff)
		if err != nil {
			s.logger.Printf("screenshot prune (age) failed: %v", err)
		} else if removed > 0 {
			s.logger.Printf("screenshot prune removed %d expired rows", removed)
		}
	}
}
