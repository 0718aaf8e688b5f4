package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/ideaboard-app/ideaboard/internal/metrics"
	inats "github.com/ideaboard-app/ideaboard/internal/nats"
)

type sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Consumer drains the email job stream and delivers each job through
// the mailer.
type Consumer struct {
	mailer      sender
	consumerMgr *inats.ConsumerManager
}

func NewConsumer(mailer sender, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		mailer:      mailer,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamEmails, "email-sender", inats.SubjectAnyEmail)
	if err != nil {
		return err
	}

	slog.Info("email consumer started", "consumer", "email-sender")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("email consumer: fetching jobs", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleJob(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleJob(ctx context.Context, msg jetstream.Msg) {
	var job inats.EmailJob
	if err := json.Unmarshal(msg.Data(), &job); err != nil {
		slog.Error("email consumer: unmarshaling job", "error", err)
		// Malformed payload will never parse; drop it.
		_ = msg.Term()
		return
	}

	subject, html := render(job)

	if err := c.mailer.Send(ctx, job.To, subject, html); err != nil {
		slog.Error("email consumer: sending", "error", err, "kind", job.Kind, "to", job.To)
		metrics.EmailsSentTotal.WithLabelValues(job.Kind, "error").Inc()
		_ = msg.Nak()
		return
	}

	metrics.EmailsSentTotal.WithLabelValues(job.Kind, "ok").Inc()
	_ = msg.Ack()

	slog.Debug("email consumer: sent", "kind", job.Kind, "to", job.To)
}

func render(job inats.EmailJob) (subject, html string) {
	switch job.Kind {
	case inats.EmailLowCredit:
		remaining := job.Data["remaining"]
		subject = "You're running low on generation credits"
		html = fmt.Sprintf(
			"<p>You have <strong>%s</strong> generation(s) left on the %s plan this month.</p>"+
				"<p>Upgrade to keep generating without interruption.</p>",
			remaining, job.Data["plan"])
	case inats.EmailPaymentCaptured:
		subject = "Payment received — subscription active"
		html = fmt.Sprintf(
			"<p>Thanks! Your payment was received and your <strong>%s</strong> subscription is active.</p>",
			job.Data["plan"])
	case inats.EmailPaymentFailed:
		subject = "Payment failed"
		html = "<p>Your recent payment could not be processed. Please check your payment method and try again.</p>"
	default:
		subject = "IdeaBoard notification"
		html = "<p>You have a new notification.</p>"
	}
	return subject, html
}
