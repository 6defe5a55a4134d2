package callsession

import (
	"time"

	"go.uber.org/zap"
)

// CleanupService sweeps provisioned calls whose media stream never arrived
type CleanupService struct {
	registry *Registry
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewCleanupService creates a sweeper that checks every ttl/2
func NewCleanupService(registry *Registry, ttl time.Duration, logger *zap.Logger) *CleanupService {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	return &CleanupService{
		registry: registry,
		ttl:      ttl,
		interval: interval,
		logger:   logger.With(zap.String("component", "session_cleanup")),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *CleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started", zap.Duration("ttl", s.ttl))
}

// Stop gracefully stops the cleanup service
func (s *CleanupService) Stop() {
	close(s.stopChan)
	<-s.done
	s.logger.Info("Session cleanup service stopped")
}

func (s *CleanupService) cleanupLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			s.RunCleanup(now)
		}
	}
}

// RunCleanup removes stale sessions and reports how many were removed
func (s *CleanupService) RunCleanup(now time.Time) int {
	removed := s.registry.RemoveStale(s.ttl, now)
	if len(removed) > 0 {
		s.logger.Info("Session cleanup completed", zap.Int("removed", len(removed)))
	}
	return len(removed)
}
