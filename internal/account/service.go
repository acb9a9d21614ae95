package account

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/internal/quota"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

var errInvalidCredentials = fmt.Errorf("%w: invalid email or password", models.ErrUnauthenticated)

// Store is the profile persistence the service needs
type Store interface {
	CreateProfile(ctx context.Context, p *models.UserProfile) error
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, id string, u models.ProfileUpdate) (*models.UserProfile, error)
	ListProfiles(ctx context.Context, limit, offset int) ([]*models.UserProfile, error)
	ImportProfiles(ctx context.Context, profiles []*models.UserProfile) (int, error)
}

// TokenIssuer signs session tokens
type TokenIssuer interface {
	GenerateToken(userID, email string) (string, time.Time, error)
}

// Service handles signup, login and administrator profile management
type Service struct {
	store       Store
	tokens      TokenIssuer
	policy      quota.Policy
	loc         *time.Location
	adminEmails []string
	bcryptCost  int
	logger      *logging.Logger
	now         func() time.Time
}

// NewService creates an account service
func NewService(store Store, tokens TokenIssuer, policy quota.Policy, loc *time.Location, adminEmails []string, bcryptCost int, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	admins := make([]string, 0, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			admins = append(admins, e)
		}
	}

	return &Service{
		store:       store,
		tokens:      tokens,
		policy:      policy,
		loc:         loc,
		adminEmails: admins,
		bcryptCost:  bcryptCost,
		logger:      logger,
		now:         time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a free-plan user with a full daily allowance and issues a token
func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", models.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	today := quota.StartOfDay(s.now(), s.loc)
	profile := &models.UserProfile{
		ID:                  uuid.New().String(),
		Email:               email,
		PasswordHash:        string(hash),
		DisplayName:         strings.TrimSpace(req.DisplayName),
		Plan:                models.PlanFree,
		DailyRemainingQuota: s.policy.DefaultQuotaFor(models.PlanFree),
		LastSummaryDate:     &today,
		IsAdmin:             slices.Contains(s.adminEmails, email),
	}

	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}

	metrics.SignupsTotal.Inc()
	s.logger.WithUserID(profile.ID).WithField("is_admin", profile.IsAdmin).Info("User signed up")

	return s.issue(profile)
}

// Login verifies credentials and issues a token
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	profile, err := s.store.GetProfileByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, models.ErrNotFound) {
		metrics.RecordLogin(false)
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if profile.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)) != nil {
		metrics.RecordLogin(false)
		return nil, errInvalidCredentials
	}

	metrics.RecordLogin(true)
	return s.issue(profile)
}

func (s *Service) issue(profile *models.UserProfile) (*models.AuthResponse, error) {
	token, expiresAt, err := s.tokens.GenerateToken(profile.ID, profile.Email)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, ExpiresAt: expiresAt, Profile: profile}, nil
}

// Profile returns a stored profile
func (s *Service) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	return s.store.GetProfile(ctx, userID)
}

// UpdateProfile applies an administrator change to another user's plan, role or expiry
func (s *Service) UpdateProfile(ctx context.Context, adminID, userID string, u models.ProfileUpdate) (*models.UserProfile, error) {
	if u.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrValidation)
	}
	if u.Plan != nil && !u.Plan.Valid() {
		return nil, fmt.Errorf("%w: unknown plan %q", models.ErrValidation, *u.Plan)
	}
	if u.ClearExpiry && u.PlanExpiryDate != nil {
		return nil, fmt.Errorf("%w: cannot set and clear the plan expiry together", models.ErrValidation)
	}

	profile, err := s.store.UpdateProfile(ctx, userID, u)
	if err != nil {
		return nil, err
	}

	s.logger.WithUserID(userID).WithFields(map[string]interface{}{
		"admin_id": adminID,
		"plan":     profile.Plan,
		"is_admin": profile.IsAdmin,
	}).Info("Profile updated by administrator")

	return profile, nil
}

// ListProfiles pages through all profiles
func (s *Service) ListProfiles(ctx context.Context, limit, offset int) ([]*models.UserProfile, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListProfiles(ctx, limit, offset)
}

// ImportLegacy upserts profiles exported from the old document store.
// Imported users have no password until they reset it.
func (s *Service) ImportLegacy(ctx context.Context, docs []models.LegacyProfile) (int, error) {
	profiles := make([]*models.UserProfile, 0, len(docs))
	for _, d := range docs {
		profiles = append(profiles, s.fromLegacy(d))
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	n, err := s.store.ImportProfiles(ctx, profiles)
	if err != nil {
		return 0, err
	}

	s.logger.Infof("Imported %d legacy profiles", n)
	return n, nil
}

func (s *Service) fromLegacy(d models.LegacyProfile) *models.UserProfile {
	plan := d.Plan
	if !plan.Valid() {
		plan = models.PlanFree
	}
	ceiling := s.policy.DefaultQuotaFor(plan)

	remaining := ceiling
	if d.DailyRemainingQuota != nil {
		remaining = min(max(*d.DailyRemainingQuota, 0), ceiling)
	}

	var last *time.Time
	if d.LastSummaryDate.Valid {
		day := quota.StartOfDay(d.LastSummaryDate.Time, s.loc)
		last = &day
	}

	email := normalizeEmail(d.Email)

	return &models.UserProfile{
		ID:                  d.ID,
		Email:               email,
		DisplayName:         d.DisplayName,
		Plan:                plan,
		DailyRemainingQuota: remaining,
		LastSummaryDate:     last,
		IsAdmin:             d.IsAdmin || slices.Contains(s.adminEmails, email),
		PlanExpiryDate:      d.PlanExpiryDate.Ptr(),
	}
}
