package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
)

// RefreshScheduler runs periodic refreshes for stores that declare a
// schedule. One goroutine per scheduled store; reconfiguring a store
// replaces its ticker, deleting it stops it.
type RefreshScheduler struct {
	refresh RefreshService
	logger  *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
	ctx     context.Context
	stop    context.CancelFunc
}

// NewRefreshScheduler creates a scheduler. Call Shutdown to stop all loops.
func NewRefreshScheduler(refresh RefreshService, logger *zap.Logger) *RefreshScheduler {
	ctx, stop := context.WithCancel(context.Background())
	return &RefreshScheduler{
		refresh: refresh,
		logger:  logger.Named("refresh-scheduler"),
		cancels: make(map[string]context.CancelFunc),
		ctx:     ctx,
		stop:    stop,
	}
}

var _ ScheduleNotifier = (*RefreshScheduler)(nil)

// Start registers schedules for all given configs.
func (s *RefreshScheduler) Start(configs []*models.ValueStoreConfig) {
	for _, cfg := range configs {
		s.ConfigChanged(cfg)
	}
}

// ConfigChanged installs or replaces the schedule for one store. A config
// without a schedule stops any existing loop.
func (s *RefreshScheduler) ConfigChanged(config *models.ValueStoreConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.cancels[config.Name]; ok {
		cancel()
		delete(s.cancels, config.Name)
	}

	if config.Schedule == "" {
		return
	}
	interval, err := time.ParseDuration(config.Schedule)
	if err != nil || interval <= 0 {
		// Upsert validation rejects bad schedules; a stored one that fails
		// to parse is stale data, not a reason to crash the scheduler.
		s.logger.Warn("Ignoring unparseable schedule",
			zap.String("store", config.Name), zap.String("schedule", config.Schedule))
		return
	}

	loopCtx, cancel := context.WithCancel(s.ctx)
	s.cancels[config.Name] = cancel

	s.wg.Add(1)
	go s.run(loopCtx, config.Name, interval)

	s.logger.Info("Scheduled refresh",
		zap.String("store", config.Name), zap.Duration("interval", interval))
}

// ConfigDeleted stops the schedule for one store.
func (s *RefreshScheduler) ConfigDeleted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[name]; ok {
		cancel()
		delete(s.cancels, name)
	}
}

// Shutdown stops every loop and waits for in-flight refreshes to finish.
func (s *RefreshScheduler) Shutdown() {
	s.stop()
	s.wg.Wait()
}

func (s *RefreshScheduler) run(ctx context.Context, name string, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.refresh.Refresh(ctx, name); err != nil {
				s.logger.Warn("Scheduled refresh failed",
					zap.String("store", name), zap.Error(err))
			}
		}
	}
}
