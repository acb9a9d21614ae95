package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/internal/tracing"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// Store is the profile persistence the quota manager needs
type Store interface {
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	ResetQuota(ctx context.Context, id string, ceiling int, day time.Time) (*models.UserProfile, bool, error)
	ConsumeQuota(ctx context.Context, id string, day time.Time) (int, bool, error)
	RefundQuota(ctx context.Context, id string, ceiling int, day time.Time) (int, bool, error)
}

// Manager resets and consumes the per-user daily AI quota
type Manager struct {
	store  Store
	policy Policy
	loc    *time.Location
	now    func() time.Time
	logger *logging.Logger
}

// NewManager creates a quota manager. Quota days start at midnight in loc.
func NewManager(store Store, policy Policy, loc *time.Location, logger *logging.Logger) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		store:  store,
		policy: policy,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the time source
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Policy returns the plan allowances in use
func (m *Manager) Policy() Policy {
	return m.policy
}

// Today returns the current quota day
func (m *Manager) Today() time.Time {
	return StartOfDay(m.now(), m.loc)
}

// StartOfDay returns midnight of t's calendar date in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// needsReset reports whether last is absent or on a day before today
func (m *Manager) needsReset(last *time.Time, today time.Time) bool {
	if last == nil {
		return true
	}
	return StartOfDay(*last, m.loc).Before(today)
}

// CheckAndResetQuota fetches the profile and, on the first call of a new day, resets its
// quota to the plan ceiling. When the reset cannot be written the fetched profile is
// returned together with the error.
func (m *Manager) CheckAndResetQuota(ctx context.Context, userID string) (profile *models.UserProfile, err error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}

	span, ctx := tracing.StartUserSpan(ctx, "quota.check_and_reset", userID)
	defer func() { tracing.FinishSpan(span, err) }()

	current, err := m.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	today := m.Today()
	if !m.needsReset(current.LastSummaryDate, today) {
		return current, nil
	}

	ceiling := m.policy.DefaultQuotaFor(current.Plan)
	updated, applied, err := m.store.ResetQuota(ctx, userID, ceiling, today)
	if err != nil {
		m.logger.WithUserID(userID).WithError(err).Error("Failed to persist quota reset")
		metrics.RecordError("quota", "persistence")
		return current, fmt.Errorf("failed to reset quota: %w", err)
	}

	if applied {
		metrics.RecordQuotaReset(string(current.Plan))
		m.logger.LogQuotaEvent(userID, "reset", updated.DailyRemainingQuota, map[string]interface{}{
			"plan": string(current.Plan),
		})
	}

	return updated, nil
}

// DecrementQuota consumes one unit of the profile's daily quota. It returns false without
// writing when the snapshot shows no quota left, and false when a concurrent request took
// the last unit first. On success the snapshot is updated with the stored values.
func (m *Manager) DecrementQuota(ctx context.Context, profile *models.UserProfile) (ok bool, err error) {
	if profile == nil || profile.ID == "" {
		return false, models.ErrUnauthenticated
	}

	span, ctx := tracing.StartUserSpan(ctx, "quota.decrement", profile.ID)
	defer func() { tracing.FinishSpan(span, err) }()

	if profile.DailyRemainingQuota <= 0 {
		metrics.RecordQuotaConsumption("exhausted")
		return false, nil
	}

	today := m.Today()
	remaining, ok, err := m.store.ConsumeQuota(ctx, profile.ID, today)
	if err != nil {
		metrics.RecordQuotaConsumption("error")
		return false, fmt.Errorf("failed to decrement quota: %w", err)
	}
	if !ok {
		metrics.RecordQuotaConsumption("exhausted")
		profile.DailyRemainingQuota = 0
		return false, nil
	}

	metrics.RecordQuotaConsumption("consumed")
	tracing.SetTag(span, "quota.remaining", remaining)

	profile.DailyRemainingQuota = remaining
	profile.LastSummaryDate = &today

	return true, nil
}

// RefundQuota returns the unit consumed for a request whose AI call failed. The quota
// never rises above the plan ceiling, and a unit taken on a day that has since ended
// is not given back.
func (m *Manager) RefundQuota(ctx context.Context, userID string) (remaining int, err error) {
	if userID == "" {
		return 0, models.ErrUnauthenticated
	}

	span, ctx := tracing.StartUserSpan(ctx, "quota.refund", userID)
	defer func() { tracing.FinishSpan(span, err) }()

	profile, err := m.store.GetProfile(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load profile: %w", err)
	}

	remaining, applied, err := m.store.RefundQuota(ctx, userID, m.policy.DefaultQuotaFor(profile.Plan), m.Today())
	if err != nil {
		return 0, fmt.Errorf("failed to refund quota: %w", err)
	}
	if !applied {
		m.logger.LogQuotaEvent(userID, "refund_skipped", profile.DailyRemainingQuota, nil)
		return profile.DailyRemainingQuota, nil
	}

	metrics.QuotaRefundsTotal.Inc()
	m.logger.LogQuotaEvent(userID, "refund", remaining, nil)

	return remaining, nil
}

// Reserve runs the usual pre-flight for an AI tool: reset if a new day started, then take
// one unit. It returns models.ErrQuotaExhausted when nothing is left.
func (m *Manager) Reserve(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := m.CheckAndResetQuota(ctx, userID)
	if err != nil {
		return nil, err
	}

	ok, err := m.DecrementQuota(ctx, profile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return profile, models.ErrQuotaExhausted
	}

	return profile, nil
}

// IsExhausted reports whether err means the caller has no quota left today
func IsExhausted(err error) bool {
	return errors.Is(err, models.ErrQuotaExhausted)
}
