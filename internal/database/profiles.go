package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

const profileColumns = `id, email, password_hash, display_name, plan, daily_remaining_quota,
	last_summary_date, is_admin, plan_expiry_date, created_at, updated_at`

func (r *Repository) scanProfile(row pgx.Row) (*models.UserProfile, error) {
	var p models.UserProfile
	err := row.Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.DisplayName, &p.Plan, &p.DailyRemainingQuota,
		&p.LastSummaryDate, &p.IsAdmin, &p.PlanExpiryDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.LastSummaryDate != nil {
		d := dayIn(*p.LastSummaryDate, r.loc)
		p.LastSummaryDate = &d
	}
	return &p, nil
}

// CreateProfile inserts a new profile. A duplicate email yields models.ErrAlreadyExists.
func (r *Repository) CreateProfile(ctx context.Context, p *models.UserProfile) (err error) {
	defer r.observe("create_profile", time.Now(), &err)

	query := `
		INSERT INTO profiles (id, email, password_hash, display_name, plan, daily_remaining_quota,
		                      last_summary_date, is_admin, plan_expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		p.ID, p.Email, p.PasswordHash, p.DisplayName, p.Plan, p.DailyRemainingQuota,
		p.LastSummaryDate, p.IsAdmin, p.PlanExpiryDate,
	).Scan(&p.CreatedAt, &p.UpdatedAt)

	if isUniqueViolation(err) {
		return fmt.Errorf("%w: profile %s", models.ErrAlreadyExists, p.Email)
	}
	if err != nil {
		return persistenceError("create profile", err)
	}

	return nil
}

// GetProfile retrieves a profile by ID
func (r *Repository) GetProfile(ctx context.Context, id string) (p *models.UserProfile, err error) {
	defer r.observe("get_profile", time.Now(), &err)

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err = r.scanProfile(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrProfileNotFound
	}
	if err != nil {
		return nil, persistenceError("get profile", err)
	}

	return p, nil
}

// GetProfileByEmail retrieves a profile by its login email
func (r *Repository) GetProfileByEmail(ctx context.Context, email string) (p *models.UserProfile, err error) {
	defer r.observe("get_profile_by_email", time.Now(), &err)

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = $1`

	p, err = r.scanProfile(r.db.Pool.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrProfileNotFound
	}
	if err != nil {
		return nil, persistenceError("get profile by email", err)
	}

	return p, nil
}

// ResetQuota sets the quota to ceiling and the last summary date to day, but only when the
// stored date is still before day. applied is false when another request already reset it,
// in which case the current row is returned.
func (r *Repository) ResetQuota(ctx context.Context, id string, ceiling int, day time.Time) (p *models.UserProfile, applied bool, err error) {
	defer r.observe("reset_quota", time.Now(), &err)

	query := `
		UPDATE profiles
		SET daily_remaining_quota = $2, last_summary_date = $3, updated_at = NOW()
		WHERE id = $1 AND (last_summary_date IS NULL OR last_summary_date < $3)
		RETURNING ` + profileColumns

	p, err = r.scanProfile(r.db.Pool.QueryRow(ctx, query, id, ceiling, day))
	if errors.Is(err, pgx.ErrNoRows) {
		p, err = r.GetProfile(ctx, id)
		return p, false, err
	}
	if err != nil {
		return nil, false, persistenceError("reset quota", err)
	}

	return p, true, nil
}

// ConsumeQuota atomically takes one unit from the profile's quota. ok is false when the
// quota was already zero, in which case nothing is written.
func (r *Repository) ConsumeQuota(ctx context.Context, id string, day time.Time) (remaining int, ok bool, err error) {
	defer r.observe("consume_quota", time.Now(), &err)

	query := `
		UPDATE profiles
		SET daily_remaining_quota = daily_remaining_quota - 1, last_summary_date = $2, updated_at = NOW()
		WHERE id = $1 AND daily_remaining_quota > 0
		RETURNING daily_remaining_quota
	`

	err = r.db.Pool.QueryRow(ctx, query, id, day).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, persistenceError("consume quota", err)
	}

	return remaining, true, nil
}

// RefundQuota gives one unit back without exceeding ceiling. Only a profile whose quota
// day is still day is touched; applied is false when the day has rolled over.
func (r *Repository) RefundQuota(ctx context.Context, id string, ceiling int, day time.Time) (remaining int, applied bool, err error) {
	defer r.observe("refund_quota", time.Now(), &err)

	query := `
		UPDATE profiles
		SET daily_remaining_quota = LEAST(daily_remaining_quota + 1, $2), updated_at = NOW()
		WHERE id = $1 AND last_summary_date = $3
		RETURNING daily_remaining_quota
	`

	err = r.db.Pool.QueryRow(ctx, query, id, ceiling, day).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, persistenceError("refund quota", err)
	}

	return remaining, true, nil
}

// UpdateProfile applies the administrator-controlled fields that are set in u
func (r *Repository) UpdateProfile(ctx context.Context, id string, u models.ProfileUpdate) (p *models.UserProfile, err error) {
	defer r.observe("update_profile", time.Now(), &err)

	var plan *string
	if u.Plan != nil {
		s := string(*u.Plan)
		plan = &s
	}

	query := `
		UPDATE profiles
		SET plan = COALESCE($2::text, plan),
		    is_admin = COALESCE($3::boolean, is_admin),
		    plan_expiry_date = CASE WHEN $5 THEN NULL ELSE COALESCE($4::timestamptz, plan_expiry_date) END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns

	p, err = r.scanProfile(r.db.Pool.QueryRow(ctx, query, id, plan, u.IsAdmin, u.PlanExpiryDate, u.ClearExpiry))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrProfileNotFound
	}
	if err != nil {
		return nil, persistenceError("update profile", err)
	}

	return p, nil
}

// ListProfiles retrieves profiles with pagination, newest first
func (r *Repository) ListProfiles(ctx context.Context, limit, offset int) (profiles []*models.UserProfile, err error) {
	defer r.observe("list_profiles", time.Now(), &err)

	query := `SELECT ` + profileColumns + `
		FROM profiles
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, persistenceError("list profiles", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, scanErr := r.scanProfile(rows)
		if scanErr != nil {
			err = persistenceError("scan profile", scanErr)
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err = rows.Err(); err != nil {
		return nil, persistenceError("list profiles", err)
	}

	return profiles, nil
}

// ImportProfiles upserts profiles by ID in a single transaction and returns how many rows
// were written. Password hashes of existing rows are kept.
func (r *Repository) ImportProfiles(ctx context.Context, profiles []*models.UserProfile) (n int, err error) {
	defer r.observe("import_profiles", time.Now(), &err)

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, persistenceError("begin import", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO profiles (id, email, display_name, plan, daily_remaining_quota,
		                      last_summary_date, is_admin, plan_expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    display_name = EXCLUDED.display_name,
		    plan = EXCLUDED.plan,
		    daily_remaining_quota = EXCLUDED.daily_remaining_quota,
		    last_summary_date = EXCLUDED.last_summary_date,
		    is_admin = EXCLUDED.is_admin,
		    plan_expiry_date = EXCLUDED.plan_expiry_date,
		    updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, p := range profiles {
		batch.Queue(query,
			p.ID, p.Email, p.DisplayName, p.Plan, p.DailyRemainingQuota,
			p.LastSummaryDate, p.IsAdmin, p.PlanExpiryDate,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for _, p := range profiles {
		if _, execErr := results.Exec(); execErr != nil {
			results.Close()
			return 0, persistenceError("import profile "+p.ID, execErr)
		}
		n++
	}
	if err = results.Close(); err != nil {
		return 0, persistenceError("import profiles", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, persistenceError("commit import", err)
	}

	return n, nil
}

// DowngradeExpiredPlans moves up to limit paid profiles whose plan expired before now back
// to the free plan, clamping their quota to freeCeiling. The downgraded rows are returned
// with the plan they had before.
func (r *Repository) DowngradeExpiredPlans(ctx context.Context, now time.Time, freeCeiling, limit int) (expired []models.PlanExpiredEvent, err error) {
	defer r.observe("downgrade_expired_plans", time.Now(), &err)

	query := `
		WITH due AS (
			SELECT id, plan, plan_expiry_date
			FROM profiles
			WHERE plan <> 'free' AND plan_expiry_date IS NOT NULL AND plan_expiry_date <= $1
			ORDER BY plan_expiry_date
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE profiles p
		SET plan = 'free',
		    plan_expiry_date = NULL,
		    daily_remaining_quota = LEAST(p.daily_remaining_quota, $2),
		    updated_at = NOW()
		FROM due
		WHERE p.id = due.id
		RETURNING p.id, due.plan, due.plan_expiry_date
	`

	rows, err := r.db.Pool.Query(ctx, query, now, freeCeiling, limit)
	if err != nil {
		return nil, persistenceError("downgrade expired plans", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev models.PlanExpiredEvent
		if err = rows.Scan(&ev.UserID, &ev.PreviousPlan, &ev.ExpiredAt); err != nil {
			return nil, persistenceError("scan expired plan", err)
		}
		expired = append(expired, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, persistenceError("downgrade expired plans", err)
	}

	return expired, nil
}
