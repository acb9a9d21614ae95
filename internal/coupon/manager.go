package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/internal/tracing"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// Store is the coupon persistence the manager needs
type Store interface {
	GetCoupon(ctx context.Context, code string) (*models.Coupon, error)
	CreateCoupon(ctx context.Context, c *models.Coupon) error
	SetCouponActive(ctx context.Context, code string, active bool) (*models.Coupon, error)
	ListCoupons(ctx context.Context) ([]*models.Coupon, error)
	RedeemCoupon(ctx context.Context, code, userID string, decide func(*models.Coupon) (*models.PlanGrant, error)) (*models.UserProfile, error)
}

// EventPublisher delivers domain events to the worker
type EventPublisher interface {
	PublishEvent(ctx context.Context, event string, data interface{}) error
}

// RedeemResult is the outcome of a redemption attempt
type RedeemResult struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	NewPlan   models.Plan `json:"new_plan,omitempty"`
	ExpiresAt *time.Time  `json:"plan_expiry_date,omitempty"`
	// Reason is the refusal cause when Success is false
	Reason error `json:"-"`
}

// CreateResult is the outcome of a coupon creation attempt
type CreateResult struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	CouponID string         `json:"coupon_id,omitempty"`
	Coupon   *models.Coupon `json:"coupon,omitempty"`
	Reason   error          `json:"-"`
}

// Manager validates and applies coupon redemptions and administers coupons
type Manager struct {
	store     Store
	publisher EventPublisher
	validate  *validator.Validate
	now       func() time.Time
	logger    *logging.Logger
}

// NewManager creates a coupon manager. publisher may be nil.
func NewManager(store Store, publisher EventPublisher, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		store:     store,
		publisher: publisher,
		validate:  validator.New(),
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock replaces the time source
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// checkRedeemable applies the redemption rules in order: existence, kill switch,
// prior redemption by the same user, then usage limit
func checkRedeemable(c *models.Coupon, userID string) error {
	switch {
	case c == nil:
		return models.ErrCouponNotFound
	case !c.IsActive:
		return models.ErrCouponInactive
	case c.RedeemedByUser(userID):
		return models.ErrAlreadyRedeemed
	case c.TimesUsed >= c.UsageLimit:
		return models.ErrUsageLimitReached
	}
	return nil
}

// Redeem applies coupon code to userID. Refusals come back as an unsuccessful result;
// only persistence failures are returned as errors.
func (m *Manager) Redeem(ctx context.Context, userID, code string) (result *RedeemResult, err error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}

	span, ctx := tracing.StartUserSpan(ctx, "coupon.redeem", userID)
	tracing.SetTag(span, "coupon.code", code)
	defer func() { tracing.FinishSpan(span, err) }()

	logger := m.logger.WithUserID(userID).WithCoupon(code)

	if strings.TrimSpace(code) == "" {
		metrics.RecordCouponRedemption("invalid")
		return refused(fmt.Errorf("%w: coupon code is required", models.ErrValidation)), nil
	}

	var grant *models.PlanGrant
	profile, err := m.store.RedeemCoupon(ctx, code, userID, func(c *models.Coupon) (*models.PlanGrant, error) {
		if err := checkRedeemable(c, userID); err != nil {
			return nil, err
		}
		grant = &models.PlanGrant{
			Plan:      c.PlanApplied,
			ExpiresAt: m.now().Add(time.Duration(c.DurationDays) * 24 * time.Hour),
		}
		return grant, nil
	})

	if err != nil {
		if !isRefusal(err) {
			metrics.RecordCouponRedemption("error")
			logger.WithError(err).Error("Coupon redemption failed")
			return nil, fmt.Errorf("failed to redeem coupon: %w", err)
		}
		metrics.RecordCouponRedemption(refusalLabel(err))
		logger.WithError(err).Info("Coupon redemption refused")
		return refused(err), nil
	}

	metrics.RecordCouponRedemption("success")
	logger.WithField("plan", string(profile.Plan)).Info("Coupon redeemed")

	m.publish(ctx, models.WebhookEventCouponRedeemed, models.CouponRedeemedEvent{
		Code:      code,
		UserID:    userID,
		Plan:      grant.Plan,
		ExpiresAt: grant.ExpiresAt,
	})

	expires := grant.ExpiresAt
	return &RedeemResult{
		Success:   true,
		Message:   fmt.Sprintf("Coupon redeemed. Your plan is now %s.", grant.Plan),
		NewPlan:   grant.Plan,
		ExpiresAt: &expires,
	}, nil
}

// Create stores a new coupon defined by adminID. An existing code is never modified.
// Invalid definitions and duplicate codes come back as an unsuccessful result.
func (m *Manager) Create(ctx context.Context, adminID string, def models.CouponDefinition) (result *CreateResult, err error) {
	if adminID == "" {
		return nil, models.ErrUnauthenticated
	}

	span, ctx := tracing.StartUserSpan(ctx, "coupon.create", adminID)
	defer func() { tracing.FinishSpan(span, err) }()

	if err := m.validateDefinition(def); err != nil {
		return &CreateResult{Message: err.Error(), Reason: err}, nil
	}

	coupon := &models.Coupon{
		ID:           def.Code,
		PlanApplied:  def.PlanApplied,
		DurationDays: def.DurationDays,
		UsageLimit:   def.UsageLimit,
		TimesUsed:    0,
		RedeemedBy:   []string{},
		IsActive:     true,
		CreatedBy:    adminID,
	}

	if err := m.store.CreateCoupon(ctx, coupon); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return &CreateResult{
				Message: fmt.Sprintf("coupon code %s already exists", def.Code),
				Reason:  err,
			}, nil
		}
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	metrics.CouponsCreatedTotal.WithLabelValues(string(coupon.PlanApplied)).Inc()
	m.logger.WithUserID(adminID).WithCoupon(coupon.ID).Info("Coupon created")

	return &CreateResult{
		Success:  true,
		Message:  fmt.Sprintf("Coupon %s created", coupon.ID),
		CouponID: coupon.ID,
		Coupon:   coupon,
	}, nil
}

// SetActive flips the kill switch of a coupon. Exhausted coupons stay exhausted.
func (m *Manager) SetActive(ctx context.Context, adminID, code string, active bool) (*models.Coupon, error) {
	if adminID == "" {
		return nil, models.ErrUnauthenticated
	}

	c, err := m.store.SetCouponActive(ctx, code, active)
	if err != nil {
		return nil, fmt.Errorf("failed to update coupon: %w", err)
	}

	m.logger.WithUserID(adminID).WithCoupon(code).WithField("active", active).Info("Coupon kill switch changed")
	return c, nil
}

// Get returns a single coupon
func (m *Manager) Get(ctx context.Context, code string) (*models.Coupon, error) {
	c, err := m.store.GetCoupon(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return c, nil
}

// List returns all coupons for the admin panel
func (m *Manager) List(ctx context.Context) ([]*models.Coupon, error) {
	coupons, err := m.store.ListCoupons(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	return coupons, nil
}

func (m *Manager) validateDefinition(def models.CouponDefinition) error {
	if err := m.validate.Struct(def); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	if strings.ContainsAny(def.Code, " \t\r\n") {
		return fmt.Errorf("%w: coupon code must not contain whitespace", models.ErrValidation)
	}
	return nil
}

func (m *Manager) publish(ctx context.Context, event string, data interface{}) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishEvent(ctx, event, data); err != nil {
		m.logger.WithError(err).WithField("event", event).Warn("Failed to publish event")
	}
}

func refused(reason error) *RedeemResult {
	return &RedeemResult{Message: message(reason), Reason: reason}
}

func isRefusal(err error) bool {
	return errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrInvalidState) ||
		errors.Is(err, models.ErrValidation)
}

// message returns the user-facing text of a refusal
func message(reason error) string {
	switch {
	case errors.Is(reason, models.ErrCouponNotFound):
		return "coupon not found"
	case errors.Is(reason, models.ErrCouponInactive):
		return "coupon is inactive"
	case errors.Is(reason, models.ErrUsageLimitReached):
		return "usage limit reached"
	case errors.Is(reason, models.ErrAlreadyRedeemed):
		return "already redeemed"
	case errors.Is(reason, models.ErrProfileNotFound):
		return "profile not found"
	default:
		return reason.Error()
	}
}

func refusalLabel(reason error) string {
	switch {
	case errors.Is(reason, models.ErrCouponNotFound):
		return "not_found"
	case errors.Is(reason, models.ErrCouponInactive):
		return "inactive"
	case errors.Is(reason, models.ErrUsageLimitReached):
		return "usage_limit_reached"
	case errors.Is(reason, models.ErrAlreadyRedeemed):
		return "already_redeemed"
	default:
		return "invalid"
	}
}
