package models

import (
	"time"
)

// Plan is a subscription tier controlling the daily AI quota ceiling
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
	PlanPro     Plan = "pro"
)

// Valid reports whether p is one of the known plans
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPremium, PlanPro:
		return true
	}
	return false
}

// Paid reports whether p is a paid plan
func (p Plan) Paid() bool {
	return p == PlanPremium || p == PlanPro
}

// UserProfile represents a registered user
type UserProfile struct {
	ID                  string     `json:"id" db:"id"`
	Email               string     `json:"email" db:"email"`
	PasswordHash        string     `json:"-" db:"password_hash"`
	DisplayName         string     `json:"display_name,omitempty" db:"display_name"`
	Plan                Plan       `json:"plan" db:"plan"`
	DailyRemainingQuota int        `json:"daily_remaining_quota" db:"daily_remaining_quota"`
	LastSummaryDate     *time.Time `json:"last_summary_date,omitempty" db:"last_summary_date"`
	IsAdmin             bool       `json:"is_admin" db:"is_admin"`
	PlanExpiryDate      *time.Time `json:"plan_expiry_date,omitempty" db:"plan_expiry_date"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// Clone returns a copy of the profile that shares no pointers with p
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.LastSummaryDate != nil {
		d := *p.LastSummaryDate
		c.LastSummaryDate = &d
	}
	if p.PlanExpiryDate != nil {
		d := *p.PlanExpiryDate
		c.PlanExpiryDate = &d
	}
	return &c
}

// ProfileUpdate holds the administrator-controlled profile fields.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Plan           *Plan      `json:"plan,omitempty"`
	IsAdmin        *bool      `json:"is_admin,omitempty"`
	PlanExpiryDate *time.Time `json:"plan_expiry_date,omitempty"`
	ClearExpiry    bool       `json:"clear_expiry,omitempty"`
}

// Empty reports whether the update would change nothing
func (u ProfileUpdate) Empty() bool {
	return u.Plan == nil && u.IsAdmin == nil && u.PlanExpiryDate == nil && !u.ClearExpiry
}

// PlanGrant is the plan change produced by redeeming a coupon
type PlanGrant struct {
	Plan      Plan      `json:"plan"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignupRequest is the body of a signup call
type SignupRequest struct {
	Email       string `json:"email" binding:"required,email,max=254"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	DisplayName string `json:"display_name" binding:"max=100"`
}

// LoginRequest is the body of a login call
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries an issued token and the caller's profile
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Profile   *UserProfile `json:"profile"`
}
