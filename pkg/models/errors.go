package models

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors wrap one of these so callers can branch with errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrPersistence     = errors.New("persistence failure")
	ErrValidation      = errors.New("validation failure")
	ErrAlreadyExists   = fmt.Errorf("%w: already exists", ErrInvalidState)
)

var (
	ErrProfileNotFound   = fmt.Errorf("%w: profile", ErrNotFound)
	ErrCouponNotFound    = fmt.Errorf("%w: coupon", ErrNotFound)
	ErrCouponInactive    = fmt.Errorf("%w: coupon is inactive", ErrInvalidState)
	ErrUsageLimitReached = fmt.Errorf("%w: usage limit reached", ErrInvalidState)
	ErrAlreadyRedeemed   = fmt.Errorf("%w: already redeemed", ErrInvalidState)
	ErrQuotaExhausted    = fmt.Errorf("%w: daily quota exhausted", ErrInvalidState)
)
