package nats

import "time"

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEmails = "IDEABOARD_EMAILS"
)

// Subject constants. Email jobs are published per kind under
// ideaboard.emails.{kind}.
const (
	SubjectEmailPrefix = "ideaboard.emails"
	SubjectAnyEmail    = "ideaboard.emails.>"
)

// Email job kinds.
const (
	EmailLowCredit       = "low_credit"
	EmailPaymentCaptured = "payment_captured"
	EmailPaymentFailed   = "payment_failed"
)

// EmailJob is published when a lifecycle event requires an email. The
// consumer renders and sends it; delivery failures never propagate back
// to the request path.
type EmailJob struct {
	Kind       string            `json:"kind"`
	To         string            `json:"to"`
	Data       map[string]string `json:"data,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}
