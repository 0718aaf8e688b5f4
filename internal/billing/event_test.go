package billing

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaboard-app/ideaboard/internal/plans"
)

func capturedBody(userID uuid.UUID, plan, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": %q,
			"amount": 49900,
			"currency": "INR",
			"method": "upi",
			"notes": {"user_id": %q, "plan_id": %q}
		}}}
	}`, paymentID, userID, plan))
}

func TestParseEvent_Captured(t *testing.T) {
	userID := uuid.New()
	ev, err := ParseEvent(capturedBody(userID, "premium", "pay_123"))
	require.NoError(t, err)

	assert.Equal(t, EventPaymentCaptured, ev.Kind)
	assert.Equal(t, "pay_123", ev.PaymentID)
	assert.Equal(t, userID, ev.UserID)
	assert.Equal(t, plans.Premium, ev.PlanID)
	assert.Equal(t, int64(49900), ev.AmountPaise)
	assert.Equal(t, "INR", ev.Currency)
	assert.True(t, ev.HasSubject())
}

func TestParseEvent_AuthorizedCountsAsCaptured(t *testing.T) {
	body := []byte(`{"event":"payment.authorized","payload":{"payment":{"entity":{"id":"pay_9","notes":{}}}}}`)
	ev, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentCaptured, ev.Kind)
	assert.False(t, ev.HasSubject())
}

func TestParseEvent_Failed(t *testing.T) {
	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_f","amount":100,"notes":{"user_id":"` + uuid.NewString() + `","plan_id":"basic"}}}}}`)
	ev, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentFailed, ev.Kind)
}

func TestParseEvent_UnknownKindIgnored(t *testing.T) {
	body := []byte(`{"event":"subscription.halted","payload":{"payment":{"entity":{"id":"x"}}}}`)
	ev, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventIgnored, ev.Kind)
	assert.Equal(t, "subscription.halted", ev.RawType)
}

func TestParseEvent_BadUserIDLeavesSubjectEmpty(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","notes":{"user_id":"not-a-uuid","plan_id":"basic"}}}}}`)
	ev, err := ParseEvent(body)
	require.NoError(t, err)
	assert.False(t, ev.HasSubject())
}

func TestParseEvent_InvalidJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`{not json`))
	assert.Error(t, err)
}

func TestParseEvent_CouponNote(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_c","notes":{"user_id":"` + uuid.NewString() + `","plan_id":"basic","coupon_code":"LAUNCH20"}}}}}`)
	ev, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "LAUNCH20", ev.CouponCode)
}
