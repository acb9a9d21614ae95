package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// memoryStore mimics the conditional writes of the database repository
type memoryStore struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
	writes   int
	failNext error
}

func newMemoryStore(profiles ...*models.UserProfile) *memoryStore {
	s := &memoryStore{profiles: make(map[string]*models.UserProfile)}
	for _, p := range profiles {
		s.profiles[p.ID] = p.Clone()
	}
	return s
}

func (s *memoryStore) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, models.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (s *memoryStore) ResetQuota(ctx context.Context, id string, ceiling int, day time.Time) (*models.UserProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return nil, false, err
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, false, models.ErrProfileNotFound
	}
	if p.LastSummaryDate != nil && !p.LastSummaryDate.Before(day) {
		return p.Clone(), false, nil
	}
	s.writes++
	p.DailyRemainingQuota = ceiling
	d := day
	p.LastSummaryDate = &d
	return p.Clone(), true, nil
}

func (s *memoryStore) ConsumeQuota(ctx context.Context, id string, day time.Time) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return 0, false, err
	}
	p, ok := s.profiles[id]
	if !ok || p.DailyRemainingQuota <= 0 {
		return 0, false, nil
	}
	s.writes++
	p.DailyRemainingQuota--
	d := day
	p.LastSummaryDate = &d
	return p.DailyRemainingQuota, true, nil
}

func (s *memoryStore) RefundQuota(ctx context.Context, id string, ceiling int, day time.Time) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok || p.LastSummaryDate == nil || !p.LastSummaryDate.Equal(day) {
		return 0, false, nil
	}
	s.writes++
	if p.DailyRemainingQuota < ceiling {
		p.DailyRemainingQuota++
	}
	return p.DailyRemainingQuota, true, nil
}

func (s *memoryStore) get(id string) *models.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[id].Clone()
}

var istanbul = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Istanbul")
	if err != nil {
		panic(err)
	}
	return loc
}()

// fixedNow is 10:30 local time on 15 March 2024
var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, istanbul)

func newTestManager(store Store) *Manager {
	m := NewManager(store, DefaultPolicy(), istanbul, nil)
	m.SetClock(func() time.Time { return fixedNow })
	return m
}

func datePtr(t time.Time) *time.Time {
	return &t
}

func TestDefaultQuotaFor(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, 2, p.DefaultQuotaFor(models.PlanFree))
	assert.Equal(t, 20, p.DefaultQuotaFor(models.PlanPremium))
	assert.Equal(t, 100, p.DefaultQuotaFor(models.PlanPro))
	assert.Equal(t, 2, p.DefaultQuotaFor(models.Plan("enterprise")))

	for _, plan := range []models.Plan{models.PlanFree, models.PlanPremium, models.PlanPro} {
		assert.Equal(t, p.DefaultQuotaFor(plan), p.DefaultQuotaFor(plan))
	}
}

func TestStartOfDay(t *testing.T) {
	// 22:30 UTC on the 14th is already the 15th in Istanbul
	utc := time.Date(2024, 3, 14, 22, 30, 0, 0, time.UTC)
	day := StartOfDay(utc, istanbul)

	assert.Equal(t, 15, day.Day())
	assert.Equal(t, 0, day.Hour())
	assert.Equal(t, istanbul, day.Location())
}

func TestCheckAndResetQuota(t *testing.T) {
	today := StartOfDay(fixedNow, istanbul)

	tests := []struct {
		name          string
		profile       *models.UserProfile
		wantQuota     int
		wantResetDate bool
	}{
		{
			name:          "absent date resets",
			profile:       &models.UserProfile{ID: "u1", Plan: models.PlanPremium, DailyRemainingQuota: 0},
			wantQuota:     20,
			wantResetDate: true,
		},
		{
			name:          "yesterday resets",
			profile:       &models.UserProfile{ID: "u1", Plan: models.PlanPro, DailyRemainingQuota: 3, LastSummaryDate: datePtr(today.AddDate(0, 0, -1))},
			wantQuota:     100,
			wantResetDate: true,
		},
		{
			name:          "free plan two days ago with zero quota",
			profile:       &models.UserProfile{ID: "u1", Plan: models.PlanFree, DailyRemainingQuota: 0, LastSummaryDate: datePtr(today.AddDate(0, 0, -2))},
			wantQuota:     2,
			wantResetDate: true,
		},
		{
			name:      "today is unchanged",
			profile:   &models.UserProfile{ID: "u1", Plan: models.PlanFree, DailyRemainingQuota: 1, LastSummaryDate: datePtr(today)},
			wantQuota: 1,
		},
		{
			name:      "later today in UTC is unchanged",
			profile:   &models.UserProfile{ID: "u1", Plan: models.PlanFree, DailyRemainingQuota: 0, LastSummaryDate: datePtr(today.Add(3 * time.Hour).UTC())},
			wantQuota: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore(tt.profile)
			m := newTestManager(store)

			got, err := m.CheckAndResetQuota(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuota, got.DailyRemainingQuota)

			if tt.wantResetDate {
				require.NotNil(t, got.LastSummaryDate)
				assert.True(t, got.LastSummaryDate.Equal(today))
				assert.Equal(t, 1, store.writes)
			} else {
				assert.Equal(t, 0, store.writes)
				assert.Equal(t, tt.profile.LastSummaryDate, got.LastSummaryDate)
			}
		})
	}
}

func TestCheckAndResetQuotaIsIdempotent(t *testing.T) {
	store := newMemoryStore(&models.UserProfile{ID: "u1", Plan: models.PlanFree})
	m := newTestManager(store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CheckAndResetQuota(context.Background(), "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.writes)
	assert.Equal(t, 2, store.get("u1").DailyRemainingQuota)
}

func TestCheckAndResetQuotaWriteFailure(t *testing.T) {
	yesterday := StartOfDay(fixedNow, istanbul).AddDate(0, 0, -1)
	store := newMemoryStore(&models.UserProfile{ID: "u1", Plan: models.PlanFree, DailyRemainingQuota: 0, LastSummaryDate: &yesterday})
	store.failNext = models.ErrPersistence
	m := newTestManager(store)

	got, err := m.CheckAndResetQuota(context.Background(), "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPersistence)

	// The last known good profile comes back with the error
	require.NotNil(t, got)
	assert.Equal(t, 0, got.DailyRemainingQuota)
	assert.True(t, got.LastSummaryDate.Equal(yesterday))
}

func TestCheckAndResetQuotaErrors(t *testing.T) {
	m := newTestManager(newMemoryStore())

	_, err := m.CheckAndResetQuota(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	_, err = m.CheckAndResetQuota(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDecrementQuota(t *testing.T) {
	yesterday := StartOfDay(fixedNow, istanbul).AddDate(0, 0, -1)
	store := newMemoryStore(&models.UserProfile{ID: "u1", Plan: models.PlanFree, DailyRemainingQuota: 2, LastSummaryDate: &yesterday})
	m := newTestManager(store)

	profile, err := m.CheckAndResetQuota(context.Background(), "u1")
	require.NoError(t, err)

	ok, err := m.DecrementQuota(context.Background(), profile)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, profile.DailyRemainingQuota)
	assert.True(t, profile.LastSummaryDate.Equal(StartOfDay(fixedNow, istanbul)))

	ok, err = m.DecrementQuota(context.Background(), profile)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, profile.DailyRemainingQuota)

	writes := store.writes
	ok, err = m.DecrementQuota(context.Background(), profile)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, writes, store.writes, "exhausted quota must not write")
	assert.Equal(t, 0, store.get("u1").DailyRemainingQuota)
}

func TestDecrementQuotaStaleSnapshot(t *testing.T) {
	today := StartOfDay(fixedNow, istanbul)
	store := newMemoryStore(&models.UserProfile{ID: "u1", Plan: models.PlanFree, DailyRemainingQuota: 1, LastSummaryDate: &today})
	m := newTestManager(store)

	a, err := m.CheckAndResetQuota(context.Background(), "u1")
	require.NoError(t, err)
	b, err := m.CheckAndResetQuota(context.Background(), "u1")
	require.NoError(t, err)

	// Both snapshots show one unit left but only one decrement may succeed
	okA, err := m.DecrementQuota(context.Background(), a)
	require.NoError(t, err)
	okB, err := m.DecrementQuota(context.Background(), b)
	require.NoError(t, err)

	assert.True(t, okA)
	assert.False(t, okB)
	assert.Equal(t, 0, store.get("u1").DailyRemainingQuota)
}

func TestDecrementQuotaConcurrent(t *testing.T) {
	today := StartOfDay(fixedNow, istanbul)
	store := newMemoryStore(&models.UserProfile{ID: "u1", Plan: models.PlanPremium, DailyRemainingQuota: 5, LastSummaryDate: &today})
	m := newTestManager(store)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		consumed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snapshot, err := m.CheckAndResetQuota(context.Background(), "u1")
			if !assert.NoError(t, err) {
				return
			}
			ok, err := m.DecrementQuota(context.Background(), snapshot)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, consumed)
	assert.Equal(t, 0, store.get("u1").DailyRemainingQuota)
}

func TestDecrementQuotaStoreFailure(t *testing.T) {
	today := StartOfDay(fixedNow, istanbul)
	store := newMemoryStore(&models.UserProfile{ID: "u1", Plan: models.PlanFree, DailyRemainingQuota: 2, LastSummaryDate: &today})
	store.failNext = errors.New("connection reset")
	m := newTestManager(store)

	profile := store.get("u1")
	ok, err := m.DecrementQuota(context.Background(), profile)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, profile.DailyRemainingQuota)
}

func TestDecrementQuotaRequiresProfile(t *testing.T) {
	m := newTestManager(newMemoryStore())

	_, err := m.DecrementQuota(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestRefundQuota(t *testing.T) {
	today := StartOfDay(fixedNow, istanbul)
	store := newMemoryStore(&models.UserProfile{ID: "u1", Plan: models.PlanFree, DailyRemainingQuota: 1, LastSummaryDate: &today})
	m := newTestManager(store)

	remaining, err := m.RefundQuota(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	remaining, err = m.RefundQuota(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining, "refund is capped at the plan ceiling")
}

func TestRefundQuotaAfterDayRollover(t *testing.T) {
	yesterday := StartOfDay(fixedNow, istanbul).AddDate(0, 0, -1)
	store := newMemoryStore(&models.UserProfile{ID: "u1", Plan: models.PlanFree, DailyRemainingQuota: 0, LastSummaryDate: &yesterday})
	m := newTestManager(store)

	before := testutil.ToFloat64(metrics.QuotaRefundsTotal)

	remaining, err := m.RefundQuota(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 0, store.get("u1").DailyRemainingQuota, "previous day's unit is not handed back")
	assert.Equal(t, before, testutil.ToFloat64(metrics.QuotaRefundsTotal))
}

func TestReserve(t *testing.T) {
	store := newMemoryStore(&models.UserProfile{ID: "u1", Plan: models.PlanFree})
	m := newTestManager(store)

	for i := 0; i < 2; i++ {
		_, err := m.Reserve(context.Background(), "u1")
		require.NoError(t, err)
	}

	profile, err := m.Reserve(context.Background(), "u1")
	assert.True(t, IsExhausted(err))
	assert.ErrorIs(t, err, models.ErrInvalidState)
	require.NotNil(t, profile)
	assert.Equal(t, 0, profile.DailyRemainingQuota)

	// Next day the quota is back
	m.SetClock(func() time.Time { return fixedNow.Add(24 * time.Hour) })
	profile, err = m.Reserve(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.DailyRemainingQuota)
}
