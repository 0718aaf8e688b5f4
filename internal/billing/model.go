package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/ideaboard-app/ideaboard/internal/plans"
)

// Subscription statuses. At most one active row exists per user, enforced
// by a partial unique index.
const (
	StatusActive    = "active"
	StatusCanceling = "canceling"
	StatusSuspended = "suspended"
)

type Subscription struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	PlanID             plans.ID  `json:"plan_id"`
	Status             string    `json:"status"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	PaymentMethod      string    `json:"payment_method,omitempty"`
	ExternalPaymentRef string    `json:"external_payment_ref,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ActivePlan resolves the plan a subscription grants. A missing or
// non-active subscription means the free plan.
func ActivePlan(sub *Subscription) plans.ID {
	if sub == nil || sub.Status != StatusActive {
		return plans.Free
	}
	return sub.PlanID
}

// Payment statuses.
const (
	PaymentCaptured = "captured"
	PaymentFailed   = "failed"
	PaymentPending  = "pending"
)

// Payment is one gateway payment record. ExternalPaymentID is the
// idempotency key for webhook deliveries.
type Payment struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	ExternalPaymentID string    `json:"external_payment_id"`
	AmountPaise       int64     `json:"amount_paise"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	PaymentMethod     string    `json:"payment_method,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Coupon is an admin-managed discount code. Only redemption and validation
// live in this service; coupon management is a back-office concern.
type Coupon struct {
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	MaxUses         int       `json:"max_uses"`
	CurrentUses     int       `json:"current_uses"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidUntil      time.Time `json:"valid_until"`
	PlanRestriction *plans.ID `json:"plan_restriction,omitempty"`
	IsActive        bool      `json:"is_active"`
}
