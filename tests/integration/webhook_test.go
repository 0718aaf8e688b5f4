//go:build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capturedPayload(paymentID, userID, planID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": %q,
			"amount": 19900,
			"currency": "INR",
			"method": "upi",
			"notes": {"user_id": %q, "plan_id": %q}
		}}}
	}`, paymentID, userID, planID))
}

func TestWebhookActivatesSubscription(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	RegisterUser(t, env, "webhook-activate@example.com", "password123")
	token := LoginUser(t, env, "webhook-activate@example.com", "password123")

	user, err := env.UserSvc.GetByEmail(ctx, "webhook-activate@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)

	resp := DeliverWebhook(t, env, capturedPayload("pay_activate_1", user.ID.String(), "basic"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("subscription is active", func(t *testing.T) {
		subResp := DoRequest(t, env, "GET", "/api/v1/billing/subscription", nil, token)
		require.Equal(t, http.StatusOK, subResp.StatusCode)
		data := ParseResponse(t, subResp)["data"].(map[string]any)
		assert.Equal(t, "basic", data["plan_id"])
		assert.Equal(t, "active", data["status"])
	})

	t.Run("quota window was refreshed", func(t *testing.T) {
		usageResp := DoRequest(t, env, "GET", "/api/v1/usage", nil, token)
		require.Equal(t, http.StatusOK, usageResp.StatusCode)
		data := ParseResponse(t, usageResp)["data"].(map[string]any)
		assert.Equal(t, "basic", data["plan"])
		assert.Equal(t, float64(25), data["limit"])
		assert.Equal(t, float64(0), data["used"])
	})

	t.Run("payment is recorded", func(t *testing.T) {
		payResp := DoRequest(t, env, "GET", "/api/v1/billing/payments", nil, token)
		require.Equal(t, http.StatusOK, payResp.StatusCode)
		result := ParseResponse(t, payResp)
		assert.Equal(t, float64(1), result["total_count"])
	})
}

func TestWebhookDuplicateDeliveryIsIdempotent(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	RegisterUser(t, env, "webhook-dupe@example.com", "password123")
	token := LoginUser(t, env, "webhook-dupe@example.com", "password123")

	user, err := env.UserSvc.GetByEmail(ctx, "webhook-dupe@example.com")
	require.NoError(t, err)

	payload := capturedPayload("pay_dupe_1", user.ID.String(), "premium")

	first := DeliverWebhook(t, env, payload)
	require.Equal(t, http.StatusOK, first.StatusCode)

	// Consume one credit between deliveries; the redelivery must not reset it.
	gen := DoRequest(t, env, "POST", "/api/v1/generate",
		map[string]string{"idea_text": "an AI-powered meal planner for allergies"}, token)
	require.Equal(t, http.StatusCreated, gen.StatusCode)

	second := DeliverWebhook(t, env, payload)
	require.Equal(t, http.StatusOK, second.StatusCode, "redelivery must still be acknowledged")

	usage := DoRequest(t, env, "GET", "/api/v1/usage", nil, token)
	data := ParseResponse(t, usage)["data"].(map[string]any)
	assert.Equal(t, float64(1), data["used"], "duplicate delivery must not reset usage")

	payResp := DoRequest(t, env, "GET", "/api/v1/billing/payments", nil, token)
	result := ParseResponse(t, payResp)
	assert.Equal(t, float64(1), result["total_count"], "one payment row for two deliveries")
}

func TestWebhookInvalidSignatureRejected(t *testing.T) {
	env := SetupTestEnv(t)

	body := capturedPayload("pay_bad_sig", "00000000-0000-0000-0000-000000000001", "basic")
	req, err := http.NewRequest("POST", env.Server.URL+"/webhooks/razorpay", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Razorpay-Signature", "deadbeef")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookCancelFlow(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	RegisterUser(t, env, "webhook-cancel@example.com", "password123")
	token := LoginUser(t, env, "webhook-cancel@example.com", "password123")

	user, err := env.UserSvc.GetByEmail(ctx, "webhook-cancel@example.com")
	require.NoError(t, err)

	resp := DeliverWebhook(t, env, capturedPayload("pay_cancel_1", user.ID.String(), "basic"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancelResp := DoRequest(t, env, "POST", "/api/v1/billing/subscription/cancel", nil, token)
	assert.Equal(t, http.StatusOK, cancelResp.StatusCode)

	// No active subscription remains; plan falls back to free.
	subResp := DoRequest(t, env, "GET", "/api/v1/billing/subscription", nil, token)
	assert.Equal(t, http.StatusNotFound, subResp.StatusCode)

	usageResp := DoRequest(t, env, "GET", "/api/v1/usage", nil, token)
	data := ParseResponse(t, usageResp)["data"].(map[string]any)
	assert.Equal(t, "free", data["plan"])
}
