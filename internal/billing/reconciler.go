package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ideaboard-app/ideaboard/internal/metrics"
	"github.com/ideaboard-app/ideaboard/internal/users"
)

// ErrInvalidSignature rejects webhook deliveries whose signature does not
// match the shared secret. No state is touched.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// subscriptionPeriod is the coarse validity window written on capture. It
// is an outer bound and audit field; quota refresh stays monthly.
const subscriptionPeriod = 365 * 24 * time.Hour

// Notifier is the fire-and-forget email side channel. Implementations must
// never block or fail the reconciliation path.
type Notifier interface {
	PaymentCaptured(email string, plan string, amountPaise int64, currency string)
	PaymentFailed(email string)
}

// Reconciler turns payment-gateway webhook deliveries into durable
// subscription and usage state, idempotently under at-least-once delivery.
type Reconciler struct {
	secret   string
	payments PaymentStore
	subs     SubscriptionStore
	coupons  CouponStore
	profiles users.Repository
	notifier Notifier
	now      func() time.Time
}

func NewReconciler(secret string, payments PaymentStore, subs SubscriptionStore, coupons CouponStore, profiles users.Repository, notifier Notifier) *Reconciler {
	return &Reconciler{
		secret:   secret,
		payments: payments,
		subs:     subs,
		coupons:  coupons,
		profiles: profiles,
		notifier: notifier,
		now:      time.Now,
	}
}

// HandleWebhook verifies, parses and applies one webhook delivery.
// A nil return means the delivery is acknowledged (including idempotent
// no-ops); ErrInvalidSignature means reject without retry-worthy state;
// any other error means the provider should redeliver.
func (r *Reconciler) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !VerifySignature(body, signature, r.secret) {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		return ErrInvalidSignature
	}

	event, err := ParseEvent(body)
	if err != nil {
		// Signed but unparseable: ack so the provider stops redelivering a
		// body we will never understand.
		slog.Warn("webhook: unparseable body", "error", err)
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		return nil
	}

	switch event.Kind {
	case EventPaymentCaptured:
		return r.applyCapture(ctx, event)
	case EventPaymentFailed:
		return r.applyFailure(ctx, event)
	default:
		slog.Debug("webhook: ignoring event", "type", event.RawType)
		metrics.WebhookEventsTotal.WithLabelValues(event.RawType, "ignored").Inc()
		return nil
	}
}

func (r *Reconciler) applyCapture(ctx context.Context, event *Event) error {
	if !event.HasSubject() || event.PaymentID == "" {
		slog.Warn("webhook: captured payment missing metadata",
			"payment_id", event.PaymentID, "user_id", event.UserID, "plan_id", event.PlanID)
		metrics.WebhookEventsTotal.WithLabelValues(event.RawType, "malformed").Inc()
		return nil
	}

	now := r.now()

	inserted, err := r.payments.Insert(ctx, &Payment{
		ID:                uuid.New(),
		UserID:            event.UserID,
		ExternalPaymentID: event.PaymentID,
		AmountPaise:       event.AmountPaise,
		Currency:          event.Currency,
		Status:            PaymentCaptured,
		PaymentMethod:     event.Method,
		CreatedAt:         now,
	})
	if err != nil {
		return fmt.Errorf("recording captured payment: %w", err)
	}
	if !inserted {
		// Duplicate delivery. Re-mutating would undo generations made
		// since the first delivery, so acknowledge and stop.
		slog.Info("webhook: duplicate payment delivery", "payment_id", event.PaymentID)
		metrics.WebhookEventsTotal.WithLabelValues(event.RawType, "duplicate").Inc()
		return nil
	}

	if err := r.profiles.ResetUsage(ctx, event.UserID, now); err != nil {
		return fmt.Errorf("resetting usage for %s: %w", event.UserID, err)
	}

	if err := r.subs.UpsertActive(ctx, &Subscription{
		ID:                 uuid.New(),
		UserID:             event.UserID,
		PlanID:             event.PlanID,
		Status:             StatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(subscriptionPeriod),
		PaymentMethod:      event.Method,
		ExternalPaymentRef: event.PaymentID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}); err != nil {
		return fmt.Errorf("upserting subscription for %s: %w", event.UserID, err)
	}

	if event.CouponCode != "" {
		redeemed, err := r.coupons.Redeem(ctx, event.CouponCode, now)
		if err != nil {
			slog.Warn("webhook: coupon redemption failed", "code", event.CouponCode, "error", err)
		} else if !redeemed {
			slog.Warn("webhook: coupon not redeemable", "code", event.CouponCode)
		}
	}

	if profile, err := r.profiles.GetByID(ctx, event.UserID); err != nil {
		slog.Warn("webhook: loading profile for notification", "error", err)
	} else if profile != nil {
		r.notifier.PaymentCaptured(profile.Email, string(event.PlanID), event.AmountPaise, event.Currency)
	}

	metrics.WebhookEventsTotal.WithLabelValues(event.RawType, "processed").Inc()
	slog.Info("webhook: payment captured",
		"payment_id", event.PaymentID, "user_id", event.UserID, "plan_id", event.PlanID)
	return nil
}

func (r *Reconciler) applyFailure(ctx context.Context, event *Event) error {
	if event.PaymentID == "" || event.UserID == uuid.Nil {
		slog.Warn("webhook: failed payment missing metadata", "payment_id", event.PaymentID)
		metrics.WebhookEventsTotal.WithLabelValues(event.RawType, "malformed").Inc()
		return nil
	}

	inserted, err := r.payments.Insert(ctx, &Payment{
		ID:                uuid.New(),
		UserID:            event.UserID,
		ExternalPaymentID: event.PaymentID,
		AmountPaise:       event.AmountPaise,
		Currency:          event.Currency,
		Status:            PaymentFailed,
		PaymentMethod:     event.Method,
		CreatedAt:         r.now(),
	})
	if err != nil {
		return fmt.Errorf("recording failed payment: %w", err)
	}
	if !inserted {
		metrics.WebhookEventsTotal.WithLabelValues(event.RawType, "duplicate").Inc()
		return nil
	}

	if profile, err := r.profiles.GetByID(ctx, event.UserID); err != nil {
		slog.Warn("webhook: loading profile for notification", "error", err)
	} else if profile != nil {
		r.notifier.PaymentFailed(profile.Email)
	}

	metrics.WebhookEventsTotal.WithLabelValues(event.RawType, "processed").Inc()
	return nil
}
