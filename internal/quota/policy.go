package quota

import (
	"github.com/therealutkarshpriyadarshi/examprep/internal/config"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// Policy maps a plan to its daily AI allowance
type Policy struct {
	Free    int
	Premium int
	Pro     int
}

// DefaultPolicy returns the stock allowances
func DefaultPolicy() Policy {
	return Policy{Free: 2, Premium: 20, Pro: 100}
}

// NewPolicy builds a policy from configuration
func NewPolicy(cfg config.QuotaConfig) Policy {
	return Policy{Free: cfg.Free, Premium: cfg.Premium, Pro: cfg.Pro}
}

// DefaultQuotaFor returns the daily ceiling for plan. Unknown plans get the free allowance.
func (p Policy) DefaultQuotaFor(plan models.Plan) int {
	switch plan {
	case models.PlanPro:
		return p.Pro
	case models.PlanPremium:
		return p.Premium
	default:
		return p.Free
	}
}
