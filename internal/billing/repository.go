package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ideaboard-app/ideaboard/internal/plans"
)

type PaymentStore interface {
	// Insert stores a payment record. Returns false when a record with the
	// same external payment id already exists (duplicate delivery).
	Insert(ctx context.Context, p *Payment) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Payment, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type SubscriptionStore interface {
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	// UpsertActive inserts or replaces the user's active subscription.
	UpsertActive(ctx context.Context, sub *Subscription) error
	// Cancel marks the user's active subscription as canceling. Returns
	// false if there was none.
	Cancel(ctx context.Context, userID uuid.UUID) (bool, error)
}

type CouponStore interface {
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	// Redeem atomically bumps the use counter if the coupon is live and
	// under its cap. Returns false if it could not be redeemed.
	Redeem(ctx context.Context, code string, now time.Time) (bool, error)
}

type postgresPaymentStore struct {
	pool *pgxpool.Pool
}

func NewPaymentStore(pool *pgxpool.Pool) PaymentStore {
	return &postgresPaymentStore{pool: pool}
}

func (r *postgresPaymentStore) Insert(ctx context.Context, p *Payment) (bool, error) {
	// The unique index on external_payment_id makes this the race-safe
	// idempotency check for at-least-once webhook delivery.
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO payments (id, user_id, external_payment_id, amount_paise, currency, status, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_payment_id) DO NOTHING`,
		p.ID, p.UserID, p.ExternalPaymentID, p.AmountPaise, p.Currency, p.Status, p.PaymentMethod, p.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("inserting payment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *postgresPaymentStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, external_payment_id, amount_paise, currency, status, payment_method, created_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		p := &Payment{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.ExternalPaymentID, &p.AmountPaise,
			&p.Currency, &p.Status, &p.PaymentMethod, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning payment row: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *postgresPaymentStore) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting payments: %w", err)
	}
	return count, nil
}

type postgresSubscriptionStore struct {
	pool *pgxpool.Pool
}

func NewSubscriptionStore(pool *pgxpool.Pool) SubscriptionStore {
	return &postgresSubscriptionStore{pool: pool}
}

func (r *postgresSubscriptionStore) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub := &Subscription{}
	var planID string
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, plan_id, status, current_period_start, current_period_end,
		       payment_method, external_payment_ref, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1 AND status = $2`, userID, StatusActive).Scan(
		&sub.ID, &sub.UserID, &planID, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.PaymentMethod, &sub.ExternalPaymentRef,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying active subscription: %w", err)
	}
	sub.PlanID = plans.ID(planID)
	return sub, nil
}

func (r *postgresSubscriptionStore) UpsertActive(ctx context.Context, sub *Subscription) error {
	// The partial unique index (user_id) WHERE status='active' is the
	// conflict target: a capture for a user with an active row updates it
	// in place, otherwise a new active row is created.
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, status, current_period_start, current_period_end,
		                           payment_method, external_payment_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) WHERE status = 'active' DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			payment_method = EXCLUDED.payment_method,
			external_payment_ref = EXCLUDED.external_payment_ref,
			updated_at = EXCLUDED.updated_at`,
		sub.ID, sub.UserID, string(sub.PlanID), sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.PaymentMethod, sub.ExternalPaymentRef,
		sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

func (r *postgresSubscriptionStore) Cancel(ctx context.Context, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET status = $2, updated_at = NOW()
		WHERE user_id = $1 AND status = $3`, userID, StatusCanceling, StatusActive)
	if err != nil {
		return false, fmt.Errorf("canceling subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type postgresCouponStore struct {
	pool *pgxpool.Pool
}

func NewCouponStore(pool *pgxpool.Pool) CouponStore {
	return &postgresCouponStore{pool: pool}
}

func (r *postgresCouponStore) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	c := &Coupon{}
	var restriction *string
	err := r.pool.QueryRow(ctx, `
		SELECT code, discount_percent, max_uses, current_uses, valid_from, valid_until, plan_restriction, is_active
		FROM coupons WHERE code = $1`, code).Scan(
		&c.Code, &c.DiscountPercent, &c.MaxUses, &c.CurrentUses,
		&c.ValidFrom, &c.ValidUntil, &restriction, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying coupon: %w", err)
	}
	if restriction != nil {
		p := plans.ID(*restriction)
		c.PlanRestriction = &p
	}
	return c, nil
}

func (r *postgresCouponStore) Redeem(ctx context.Context, code string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE coupons
		SET current_uses = current_uses + 1
		WHERE code = $1
		  AND is_active
		  AND current_uses < max_uses
		  AND valid_from <= $2 AND valid_until >= $2`, code, now.UTC())
	if err != nil {
		return false, fmt.Errorf("redeeming coupon: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
