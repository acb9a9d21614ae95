package account

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/examprep/internal/quota"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

type memoryStore struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
	imported []*models.UserProfile
}

func newMemoryStore() *memoryStore {
	return &memoryStore{profiles: make(map[string]*models.UserProfile)}
}

func (m *memoryStore) CreateProfile(ctx context.Context, p *models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.profiles {
		if existing.Email == p.Email {
			return models.ErrAlreadyExists
		}
	}
	m.profiles[p.ID] = p.Clone()
	return nil
}

func (m *memoryStore) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, models.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (m *memoryStore) GetProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Email == email {
			return p.Clone(), nil
		}
	}
	return nil, models.ErrProfileNotFound
}

func (m *memoryStore) UpdateProfile(ctx context.Context, id string, u models.ProfileUpdate) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, models.ErrProfileNotFound
	}
	if u.Plan != nil {
		p.Plan = *u.Plan
	}
	if u.IsAdmin != nil {
		p.IsAdmin = *u.IsAdmin
	}
	if u.PlanExpiryDate != nil {
		d := *u.PlanExpiryDate
		p.PlanExpiryDate = &d
	}
	if u.ClearExpiry {
		p.PlanExpiryDate = nil
	}
	return p.Clone(), nil
}

func (m *memoryStore) ListProfiles(ctx context.Context, limit, offset int) ([]*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.UserProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (m *memoryStore) ImportProfiles(ctx context.Context, profiles []*models.UserProfile) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imported = append(m.imported, profiles...)
	return len(profiles), nil
}

type stubTokens struct{}

func (stubTokens) GenerateToken(userID, email string) (string, time.Time, error) {
	return "token-" + userID, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

var istanbul = time.FixedZone("TRT", 3*3600)

func newTestService(store Store) *Service {
	s := NewService(store, stubTokens{}, quota.DefaultPolicy(), istanbul, []string{" Admin@Example.com "}, bcrypt.MinCost, nil)
	s.now = func() time.Time { return time.Date(2024, 3, 14, 22, 30, 0, 0, time.UTC) }
	return s
}

func TestSignup(t *testing.T) {
	store := newMemoryStore()
	s := newTestService(store)

	resp, err := s.Signup(context.Background(), models.SignupRequest{
		Email:       "  Ogrenci@Example.com",
		Password:    "correct horse",
		DisplayName: "Ayşe",
	})
	require.NoError(t, err)

	p := resp.Profile
	assert.Equal(t, "token-"+p.ID, resp.Token)
	assert.Equal(t, "ogrenci@example.com", p.Email)
	assert.Equal(t, models.PlanFree, p.Plan)
	assert.Equal(t, 2, p.DailyRemainingQuota)
	assert.False(t, p.IsAdmin)
	require.NotNil(t, p.LastSummaryDate)
	// 22:30 UTC is already the next day in Istanbul
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, istanbul), *p.LastSummaryDate)
	assert.NotEqual(t, "correct horse", p.PasswordHash)

	_, err = s.Signup(context.Background(), models.SignupRequest{Email: "ogrenci@example.com", Password: "another one"})
	assert.ErrorIs(t, err, models.ErrAlreadyExists)
}

func TestSignupAdminEmail(t *testing.T) {
	s := newTestService(newMemoryStore())

	resp, err := s.Signup(context.Background(), models.SignupRequest{Email: "admin@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, resp.Profile.IsAdmin)
}

func TestLogin(t *testing.T) {
	store := newMemoryStore()
	s := newTestService(store)

	signed, err := s.Signup(context.Background(), models.SignupRequest{Email: "u@example.com", Password: "password123"})
	require.NoError(t, err)

	resp, err := s.Login(context.Background(), models.LoginRequest{Email: "U@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, signed.Profile.ID, resp.Profile.ID)

	_, err = s.Login(context.Background(), models.LoginRequest{Email: "u@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	_, err = s.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestUpdateProfile(t *testing.T) {
	store := newMemoryStore()
	s := newTestService(store)

	signed, err := s.Signup(context.Background(), models.SignupRequest{Email: "u@example.com", Password: "password123"})
	require.NoError(t, err)
	id := signed.Profile.ID

	_, err = s.UpdateProfile(context.Background(), "admin", id, models.ProfileUpdate{})
	assert.ErrorIs(t, err, models.ErrValidation)

	bogus := models.Plan("gold")
	_, err = s.UpdateProfile(context.Background(), "admin", id, models.ProfileUpdate{Plan: &bogus})
	assert.ErrorIs(t, err, models.ErrValidation)

	pro := models.PlanPro
	expiry := time.Date(2024, 4, 15, 0, 0, 0, 0, istanbul)
	p, err := s.UpdateProfile(context.Background(), "admin", id, models.ProfileUpdate{Plan: &pro, PlanExpiryDate: &expiry})
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, p.Plan)
	assert.Equal(t, expiry, *p.PlanExpiryDate)

	_, err = s.UpdateProfile(context.Background(), "admin", "missing", models.ProfileUpdate{Plan: &pro})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestImportLegacy(t *testing.T) {
	store := newMemoryStore()
	s := newTestService(store)

	var docs []models.LegacyProfile
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id":"a","email":"A@example.com","plan":"pro","dailyRemainingQuota":250,
		 "lastSummaryDate":{"seconds":1710450000,"nanoseconds":0},
		 "planExpiryDate":"2024-04-01T00:00:00Z"},
		{"id":"b","email":"admin@example.com","plan":"platinum",
		 "lastSummaryDate":"not a date"},
		{"id":"c","email":"c@example.com","plan":"premium","dailyRemainingQuota":-3}
	]`), &docs))

	n, err := s.ImportLegacy(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	a, b, c := store.imported[0], store.imported[1], store.imported[2]

	assert.Equal(t, "a@example.com", a.Email)
	assert.Equal(t, 100, a.DailyRemainingQuota, "clamped to the pro ceiling")
	require.NotNil(t, a.LastSummaryDate)
	// 2024-03-14T21:00:00Z is midnight of the 15th in Istanbul
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, istanbul), *a.LastSummaryDate)
	require.NotNil(t, a.PlanExpiryDate)

	assert.Equal(t, models.PlanFree, b.Plan)
	assert.Equal(t, 2, b.DailyRemainingQuota)
	assert.Nil(t, b.LastSummaryDate)
	assert.True(t, b.IsAdmin)

	assert.Equal(t, 0, c.DailyRemainingQuota)
	assert.Empty(t, c.PasswordHash)

	n, err = s.ImportLegacy(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
