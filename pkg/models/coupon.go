package models

import (
	"slices"
	"time"
)

// CouponState is the derived redemption state of a coupon
type CouponState string

const (
	CouponStateActive    CouponState = "active"
	CouponStateExhausted CouponState = "exhausted"
	CouponStateInactive  CouponState = "inactive"
)

// Coupon is an administrator-issued code granting a paid plan for a number of days
type Coupon struct {
	ID           string    `json:"id" db:"id"`
	PlanApplied  Plan      `json:"plan_applied" db:"plan_applied"`
	DurationDays int       `json:"duration_days" db:"duration_days"`
	UsageLimit   int       `json:"usage_limit" db:"usage_limit"`
	TimesUsed    int       `json:"times_used" db:"times_used"`
	RedeemedBy   []string  `json:"redeemed_by" db:"redeemed_by"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedBy    string    `json:"created_by" db:"created_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// State derives the coupon state. Exhausted wins over inactive because it cannot be undone.
func (c *Coupon) State() CouponState {
	if c.TimesUsed >= c.UsageLimit {
		return CouponStateExhausted
	}
	if !c.IsActive {
		return CouponStateInactive
	}
	return CouponStateActive
}

// RedeemedByUser reports whether userID already redeemed this coupon
func (c *Coupon) RedeemedByUser(userID string) bool {
	return slices.Contains(c.RedeemedBy, userID)
}

// CouponDefinition is the administrator input for creating a coupon
type CouponDefinition struct {
	Code         string `json:"code" binding:"required" validate:"required,max=64"`
	PlanApplied  Plan   `json:"plan_applied" binding:"required" validate:"required,oneof=premium pro"`
	DurationDays int    `json:"duration_days" binding:"required" validate:"gt=0,lte=3650"`
	UsageLimit   int    `json:"usage_limit" binding:"required" validate:"gt=0"`
}
