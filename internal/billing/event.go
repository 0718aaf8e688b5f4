package billing

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ideaboard-app/ideaboard/internal/plans"
)

// EventKind is the closed set of webhook event kinds the reconciler acts
// on. Anything else parses as EventIgnored so new provider event types are
// acknowledged without side effects.
type EventKind int

const (
	EventIgnored EventKind = iota
	EventPaymentCaptured
	EventPaymentFailed
)

// Event is a parsed gateway webhook delivery.
type Event struct {
	Kind        EventKind
	RawType     string
	PaymentID   string
	UserID      uuid.UUID
	PlanID      plans.ID
	AmountPaise int64
	Currency    string
	Method      string
	CouponCode  string
}

// HasSubject reports whether the event carries the metadata needed to
// attribute it to a user and plan.
func (e *Event) HasSubject() bool {
	return e.UserID != uuid.Nil && e.PlanID != ""
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Method   string            `json:"method"`
	Notes    map[string]string `json:"notes"`
}

// ParseEvent decodes a Razorpay webhook body. User and plan travel in the
// payment entity's notes, set at checkout time.
func ParseEvent(body []byte) (*Event, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding webhook body: %w", err)
	}

	entity := env.Payload.Payment.Entity
	ev := &Event{
		RawType:     env.Event,
		PaymentID:   entity.ID,
		AmountPaise: entity.Amount,
		Currency:    entity.Currency,
		Method:      entity.Method,
	}

	switch env.Event {
	case "payment.captured", "payment.authorized":
		ev.Kind = EventPaymentCaptured
	case "payment.failed":
		ev.Kind = EventPaymentFailed
	default:
		ev.Kind = EventIgnored
		return ev, nil
	}

	if raw, ok := entity.Notes["user_id"]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			ev.UserID = id
		}
	}
	if raw, ok := entity.Notes["plan_id"]; ok {
		ev.PlanID = plans.ID(raw)
	}
	ev.CouponCode = entity.Notes["coupon_code"]

	return ev, nil
}
