package notify

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ideaboard-app/ideaboard/internal/metrics"
	inats "github.com/ideaboard-app/ideaboard/internal/nats"
)

// publishTimeout bounds how long a request goroutine may block on the
// queue. Enqueue failures are logged and dropped, never surfaced to the
// caller.
const publishTimeout = 2 * time.Second

type emailPublisher interface {
	PublishEmail(ctx context.Context, job inats.EmailJob) error
}

// Trigger turns lifecycle events into queued email jobs. It satisfies
// the notifier interfaces of the generation and billing services.
type Trigger struct {
	publisher emailPublisher
}

func NewTrigger(publisher emailPublisher) *Trigger {
	return &Trigger{publisher: publisher}
}

// LowCredit enqueues a low-credit warning email.
func (t *Trigger) LowCredit(email, plan string, remaining int) {
	t.enqueue(inats.EmailJob{
		Kind: inats.EmailLowCredit,
		To:   email,
		Data: map[string]string{
			"plan":      plan,
			"remaining": strconv.Itoa(remaining),
		},
	})
}

// PaymentCaptured enqueues a payment confirmation email.
func (t *Trigger) PaymentCaptured(email, plan string, amountPaise int64, currency string) {
	t.enqueue(inats.EmailJob{
		Kind: inats.EmailPaymentCaptured,
		To:   email,
		Data: map[string]string{
			"plan":         plan,
			"amount_paise": strconv.FormatInt(amountPaise, 10),
			"currency":     currency,
		},
	})
}

// PaymentFailed enqueues a payment failure notice.
func (t *Trigger) PaymentFailed(email string) {
	t.enqueue(inats.EmailJob{
		Kind: inats.EmailPaymentFailed,
		To:   email,
	})
}

func (t *Trigger) enqueue(job inats.EmailJob) {
	if t.publisher == nil || job.To == "" {
		return
	}
	job.EnqueuedAt = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := t.publisher.PublishEmail(ctx, job); err != nil {
		slog.Error("enqueueing email job", "kind", job.Kind, "error", err)
		return
	}
	metrics.EmailsEnqueuedTotal.WithLabelValues(job.Kind).Inc()
}
