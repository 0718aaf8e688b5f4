package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inats "github.com/ideaboard-app/ideaboard/internal/nats"
)

type fakePublisher struct {
	jobs []inats.EmailJob
	err  error
}

func (f *fakePublisher) PublishEmail(_ context.Context, job inats.EmailJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func TestTrigger_LowCredit(t *testing.T) {
	pub := &fakePublisher{}
	trigger := NewTrigger(pub)

	trigger.LowCredit("u@example.com", "basic", 2)

	require.Len(t, pub.jobs, 1)
	job := pub.jobs[0]
	assert.Equal(t, inats.EmailLowCredit, job.Kind)
	assert.Equal(t, "u@example.com", job.To)
	assert.Equal(t, "basic", job.Data["plan"])
	assert.Equal(t, "2", job.Data["remaining"])
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestTrigger_PaymentCaptured(t *testing.T) {
	pub := &fakePublisher{}
	trigger := NewTrigger(pub)

	trigger.PaymentCaptured("u@example.com", "premium", 49900, "INR")

	require.Len(t, pub.jobs, 1)
	job := pub.jobs[0]
	assert.Equal(t, inats.EmailPaymentCaptured, job.Kind)
	assert.Equal(t, "premium", job.Data["plan"])
	assert.Equal(t, "49900", job.Data["amount_paise"])
	assert.Equal(t, "INR", job.Data["currency"])
}

func TestTrigger_PaymentFailed(t *testing.T) {
	pub := &fakePublisher{}
	trigger := NewTrigger(pub)

	trigger.PaymentFailed("u@example.com")

	require.Len(t, pub.jobs, 1)
	assert.Equal(t, inats.EmailPaymentFailed, pub.jobs[0].Kind)
}

func TestTrigger_PublishFailureIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("stream unavailable")}
	trigger := NewTrigger(pub)

	// Must not panic or block; delivery is best-effort.
	trigger.LowCredit("u@example.com", "free", 0)
	assert.Empty(t, pub.jobs)
}

func TestTrigger_SkipsEmptyRecipient(t *testing.T) {
	pub := &fakePublisher{}
	trigger := NewTrigger(pub)

	trigger.PaymentFailed("")
	assert.Empty(t, pub.jobs)
}

func TestRender_KnownKinds(t *testing.T) {
	subject, html := render(inats.EmailJob{
		Kind: inats.EmailLowCredit,
		Data: map[string]string{"plan": "basic", "remaining": "1"},
	})
	assert.Contains(t, subject, "low")
	assert.Contains(t, html, "1")
	assert.Contains(t, html, "basic")

	subject, _ = render(inats.EmailJob{Kind: inats.EmailPaymentFailed})
	assert.Equal(t, "Payment failed", subject)

	subject, _ = render(inats.EmailJob{Kind: "unknown"})
	assert.NotEmpty(t, subject)
}
