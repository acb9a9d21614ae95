package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

const sweepLock = "plan-expiry-sweep"

// Repository downgrades profiles whose paid plan has expired
type Repository interface {
	DowngradeExpiredPlans(ctx context.Context, now time.Time, freeCeiling, limit int) ([]models.PlanExpiredEvent, error)
}

// Locker serializes sweeps across worker replicas
type Locker interface {
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, resource string) error
}

// EventPublisher publishes domain events
type EventPublisher interface {
	PublishEvent(ctx context.Context, event string, data interface{}) error
}

// PlanExpirySweeper periodically moves expired paid plans back to free
type PlanExpirySweeper struct {
	repo        Repository
	locker      Locker
	publisher   EventPublisher
	logger      *logging.Logger
	interval    time.Duration
	batchSize   int
	freeCeiling int
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPlanExpirySweeper creates a sweeper. locker and publisher may be nil.
func NewPlanExpirySweeper(repo Repository, locker Locker, publisher EventPublisher, freeCeiling int, interval time.Duration, batchSize int, logger *logging.Logger) *PlanExpirySweeper {
	if logger == nil {
		logger = logging.Nop()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 500
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &PlanExpirySweeper{
		repo:        repo,
		locker:      locker,
		publisher:   publisher,
		logger:      logger,
		interval:    interval,
		batchSize:   batchSize,
		freeCeiling: freeCeiling,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start runs a sweep immediately and then on every interval
func (s *PlanExpirySweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	s.logger.Infof("Plan expiry sweeper started (interval: %s)", s.interval)
}

// Stop stops the sweeper and waits for a running sweep to finish
func (s *PlanExpirySweeper) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Plan expiry sweeper stopped")
}

func (s *PlanExpirySweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(s.ctx); err != nil {
			s.logger.ErrorWithErr("Plan expiry sweep failed", err)
		}

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep downgrades every expired plan in batches and returns how many were downgraded
func (s *PlanExpirySweeper) Sweep(ctx context.Context) (int, error) {
	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ctx, sweepLock, s.interval)
		if err != nil {
			return 0, fmt.Errorf("failed to acquire sweep lock: %w", err)
		}
		if !acquired {
			s.logger.Debug("Plan expiry sweep already running elsewhere")
			return 0, nil
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.Background(), sweepLock); err != nil {
				s.logger.ErrorWithErr("Failed to release sweep lock", err)
			}
		}()
	}

	total := 0
	now := s.now()

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		expired, err := s.repo.DowngradeExpiredPlans(ctx, now, s.freeCeiling, s.batchSize)
		if err != nil {
			return total, err
		}

		for _, ev := range expired {
			metrics.PlanDowngradesTotal.WithLabelValues(string(ev.PreviousPlan)).Inc()
			s.logger.LogQuotaEvent(ev.UserID, "plan_expired", s.freeCeiling, map[string]interface{}{
				"previous_plan": ev.PreviousPlan,
				"expired_at":    ev.ExpiredAt,
			})

			if s.publisher != nil {
				if err := s.publisher.PublishEvent(ctx, models.WebhookEventPlanExpired, ev); err != nil {
					s.logger.WithError(err).WithUserID(ev.UserID).Warn("Failed to publish plan expiry")
				}
			}
		}

		total += len(expired)
		if len(expired) < s.batchSize {
			break
		}
	}

	if total > 0 {
		s.logger.Infof("Downgraded %d expired plans", total)
	}
	return total, nil
}
