package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

const couponColumns = `id, plan_applied, duration_days, usage_limit, times_used, redeemed_by,
	is_active, created_by, created_at, updated_at`

func scanCoupon(row pgx.Row) (*models.Coupon, error) {
	var c models.Coupon
	err := row.Scan(
		&c.ID, &c.PlanApplied, &c.DurationDays, &c.UsageLimit, &c.TimesUsed, &c.RedeemedBy,
		&c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCoupon inserts a coupon. An existing code is left untouched and yields
// models.ErrAlreadyExists.
func (r *Repository) CreateCoupon(ctx context.Context, c *models.Coupon) (err error) {
	defer r.observe("create_coupon", time.Now(), &err)

	if c.RedeemedBy == nil {
		c.RedeemedBy = []string{}
	}

	query := `
		INSERT INTO coupons (id, plan_applied, duration_days, usage_limit, times_used, redeemed_by, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at, updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		c.ID, c.PlanApplied, c.DurationDays, c.UsageLimit, c.TimesUsed, c.RedeemedBy, c.IsActive, c.CreatedBy,
	).Scan(&c.CreatedAt, &c.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: coupon %s", models.ErrAlreadyExists, c.ID)
	}
	if err != nil {
		return persistenceError("create coupon", err)
	}

	return nil
}

// GetCoupon retrieves a coupon by code
func (r *Repository) GetCoupon(ctx context.Context, code string) (c *models.Coupon, err error) {
	defer r.observe("get_coupon", time.Now(), &err)

	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	c, err = scanCoupon(r.db.Pool.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCouponNotFound
	}
	if err != nil {
		return nil, persistenceError("get coupon", err)
	}

	return c, nil
}

// SetCouponActive flips the kill switch of a coupon
func (r *Repository) SetCouponActive(ctx context.Context, code string, active bool) (c *models.Coupon, err error) {
	defer r.observe("set_coupon_active", time.Now(), &err)

	query := `
		UPDATE coupons
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + couponColumns

	c, err = scanCoupon(r.db.Pool.QueryRow(ctx, query, code, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCouponNotFound
	}
	if err != nil {
		return nil, persistenceError("update coupon", err)
	}

	return c, nil
}

// ListCoupons retrieves all coupons, newest first
func (r *Repository) ListCoupons(ctx context.Context) (coupons []*models.Coupon, err error) {
	defer r.observe("list_coupons", time.Now(), &err)

	query := `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, persistenceError("list coupons", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, scanErr := scanCoupon(rows)
		if scanErr != nil {
			err = persistenceError("scan coupon", scanErr)
			return nil, err
		}
		coupons = append(coupons, c)
	}
	if err = rows.Err(); err != nil {
		return nil, persistenceError("list coupons", err)
	}

	return coupons, nil
}

// RedeemCoupon locks the coupon row and hands it to decide, which returns the plan grant
// or the reason the redemption is refused. decide receives nil when the code does not
// exist. On a grant the profile's plan and expiry, the coupon's usage count and its
// redeemer list are written in the same transaction. The updated profile is returned.
func (r *Repository) RedeemCoupon(
	ctx context.Context,
	code, userID string,
	decide func(*models.Coupon) (*models.PlanGrant, error),
) (p *models.UserProfile, err error) {
	defer r.observe("redeem_coupon", time.Now(), &err)

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, persistenceError("begin redemption", err)
	}
	defer tx.Rollback(ctx)

	coupon, err := scanCoupon(tx.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1 FOR UPDATE`, code))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, persistenceError("lock coupon", err)
	}

	grant, err := decide(coupon)
	if err != nil {
		return nil, err
	}

	profileQuery := `
		UPDATE profiles
		SET plan = $2, plan_expiry_date = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns

	p, err = r.scanProfile(tx.QueryRow(ctx, profileQuery, userID, grant.Plan, grant.ExpiresAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrProfileNotFound
	}
	if err != nil {
		return nil, persistenceError("apply plan", err)
	}

	couponQuery := `
		UPDATE coupons
		SET times_used = times_used + 1, redeemed_by = array_append(redeemed_by, $2), updated_at = NOW()
		WHERE id = $1
	`

	if _, err = tx.Exec(ctx, couponQuery, code, userID); err != nil {
		return nil, persistenceError("record redemption", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, persistenceError("commit redemption", err)
	}

	return p, nil
}
