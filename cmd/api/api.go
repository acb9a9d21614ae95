package main

import (
	"context"
	"io"
	"time"

	"github.com/therealutkarshpriyadarshi/examprep/internal/coupon"
	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// QuotaService reserves and refunds daily AI quota
type QuotaService interface {
	CheckAndResetQuota(ctx context.Context, userID string) (*models.UserProfile, error)
	Reserve(ctx context.Context, userID string) (*models.UserProfile, error)
	RefundQuota(ctx context.Context, userID string) (int, error)
}

// CouponService redeems and administers coupons
type CouponService interface {
	Redeem(ctx context.Context, userID, code string) (*coupon.RedeemResult, error)
	Create(ctx context.Context, adminID string, def models.CouponDefinition) (*coupon.CreateResult, error)
	SetActive(ctx context.Context, adminID, code string, active bool) (*models.Coupon, error)
	List(ctx context.Context) ([]*models.Coupon, error)
}

// AccountService handles signup, login and administrator profile changes
type AccountService interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	UpdateProfile(ctx context.Context, adminID, userID string, u models.ProfileUpdate) (*models.UserProfile, error)
	ListProfiles(ctx context.Context, limit, offset int) ([]*models.UserProfile, error)
	ImportLegacy(ctx context.Context, docs []models.LegacyProfile) (int, error)
}

// AIService runs the generative tools
type AIService interface {
	Summarize(ctx context.Context, req models.SummarizeRequest) (*models.SummarizeResponse, error)
	Solve(ctx context.Context, req models.SolveRequest) (*models.SolveResponse, error)
	Explain(ctx context.Context, req models.ExplainRequest) (*models.ExplainResponse, bool, error)
	Flashcards(ctx context.Context, req models.FlashcardsRequest) (*models.FlashcardsResponse, error)
	GenerateTest(ctx context.Context, req models.TestRequest) (*models.TestResponse, error)
}

// TestRenderer prints practice tests to PDF
type TestRenderer interface {
	RenderTest(ctx context.Context, test *models.TestResponse, withAnswers bool) ([]byte, error)
}

// DocumentStore archives uploaded documents and rendered tests
type DocumentStore interface {
	StoreDocument(ctx context.Context, userID, filename string, reader io.Reader, size int64) (*models.Document, error)
	StoreRenderedTest(ctx context.Context, userID string, pdf []byte) (key, url string, err error)
	ListDocuments(ctx context.Context, userID string) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, userID, name string) error
}

// SupportRepository persists tickets and webhook subscriptions
type SupportRepository interface {
	CreateTicket(ctx context.Context, t *models.SupportTicket) error
	ListTickets(ctx context.Context, status string, limit, offset int) ([]*models.SupportTicket, error)
	CreateWebhook(ctx context.Context, webhook *models.Webhook) error
}

// EventPublisher publishes domain events
type EventPublisher interface {
	PublishEvent(ctx context.Context, event string, data interface{}) error
}

// HealthChecker reports dependency health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// API holds the handler dependencies
type API struct {
	quota    QuotaService
	coupons  CouponService
	accounts AccountService
	ai       AIService
	renderer TestRenderer
	docs     DocumentStore
	support  SupportRepository
	events   EventPublisher
	health   HealthChecker
	logger   *logging.Logger

	maxUploadSize int64
	healthTimeout time.Duration
}
