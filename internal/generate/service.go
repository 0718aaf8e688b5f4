package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ideaboard-app/ideaboard/internal/ai"
	"github.com/ideaboard-app/ideaboard/internal/billing"
	"github.com/ideaboard-app/ideaboard/internal/metrics"
	"github.com/ideaboard-app/ideaboard/internal/plans"
	"github.com/ideaboard-app/ideaboard/internal/quota"
	"github.com/ideaboard-app/ideaboard/internal/users"
)

// ErrProfileNotFound signals a broken account state: an authenticated user
// with no profile row. Not retried; needs operator attention.
var ErrProfileNotFound = errors.New("profile not found")

// ErrBurstLimited rejects requests over the per-minute cap.
var ErrBurstLimited = errors.New("too many generation requests, slow down")

// QuotaExceededError is the expected over-limit rejection. It carries
// enough for a user-facing message without leaking internals.
type QuotaExceededError struct {
	Plan  plans.ID
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly generation limit reached (%d on the %s plan)", e.Limit, plans.Get(e.Plan).Name)
}

// AIClient is the external completion collaborator.
type AIClient interface {
	Complete(ctx context.Context, tier plans.PromptTier, ideaText string) (*ai.Analysis, error)
	Plan(ctx context.Context, tier plans.PromptTier, ideaText, platform string) (*ai.BuildPlan, error)
}

// Notifier is the fire-and-forget low-credit side channel.
type Notifier interface {
	LowCredit(email string, plan string, remaining int)
}

// Service is the only mutating entry point for consuming generation quota.
// Quota is consumed after a successful AI call, never before, so provider
// outages cost the user nothing.
type Service struct {
	profiles       users.Repository
	subs           billing.SubscriptionStore
	ai             AIClient
	notifier       Notifier
	burst          *quota.BurstLimiter
	burstPerMinute int
	now            func() time.Time
}

func NewService(profiles users.Repository, subs billing.SubscriptionStore, aiClient AIClient, notifier Notifier, burst *quota.BurstLimiter, burstPerMinute int) *Service {
	return &Service{
		profiles:       profiles,
		subs:           subs,
		ai:             aiClient,
		notifier:       notifier,
		burst:          burst,
		burstPerMinute: burstPerMinute,
		now:            time.Now,
	}
}

// AnalysisResult is a completed market-research generation.
type AnalysisResult struct {
	Analysis  *ai.Analysis `json:"analysis"`
	Plan      plans.ID     `json:"plan"`
	Remaining int          `json:"remaining"`
}

// PlanResult is a completed build-plan generation.
type PlanResult struct {
	BuildPlan *ai.BuildPlan `json:"build_plan"`
	Plan      plans.ID      `json:"plan"`
	Remaining int           `json:"remaining"`
}

// UsageStatus reports the credit meter for dashboard display.
type UsageStatus struct {
	Plan        plans.ID `json:"plan"`
	PlanName    string   `json:"plan_name"`
	Limit       int      `json:"limit"`
	Used        int      `json:"used"`
	Remaining   int      `json:"remaining"`
	WindowReset bool     `json:"window_reset"`
}

// Analyze runs one quota-metered market-research generation.
func (s *Service) Analyze(ctx context.Context, userID uuid.UUID, ideaText string) (*AnalysisResult, error) {
	profile, dec, err := s.admit(ctx, userID)
	if err != nil {
		return nil, err
	}

	analysis, err := s.ai.Complete(ctx, plans.TierFor(dec.Plan), ideaText)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(string(dec.Plan), "upstream_error").Inc()
		return nil, fmt.Errorf("analysis generation: %w", err)
	}

	remaining, err := s.consume(ctx, profile, dec)
	if err != nil {
		return nil, err
	}

	metrics.GenerationsTotal.WithLabelValues(string(dec.Plan), "ok").Inc()
	return &AnalysisResult{Analysis: analysis, Plan: dec.Plan, Remaining: remaining}, nil
}

// PlanBuild runs one quota-metered build-plan generation for the chosen
// platform. Same metering path as Analyze.
func (s *Service) PlanBuild(ctx context.Context, userID uuid.UUID, ideaText, platform string) (*PlanResult, error) {
	profile, dec, err := s.admit(ctx, userID)
	if err != nil {
		return nil, err
	}

	buildPlan, err := s.ai.Plan(ctx, plans.TierFor(dec.Plan), ideaText, platform)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(string(dec.Plan), "upstream_error").Inc()
		return nil, fmt.Errorf("build plan generation: %w", err)
	}

	remaining, err := s.consume(ctx, profile, dec)
	if err != nil {
		return nil, err
	}

	metrics.GenerationsTotal.WithLabelValues(string(dec.Plan), "ok").Inc()
	return &PlanResult{BuildPlan: buildPlan, Plan: dec.Plan, Remaining: remaining}, nil
}

// Usage reports current quota state without consuming anything.
func (s *Service) Usage(ctx context.Context, userID uuid.UUID) (*UsageStatus, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}

	sub, err := s.subs.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading subscription: %w", err)
	}

	plan := billing.ActivePlan(sub)
	dec := quota.Evaluate(profile.GenerationCount, profile.LastReset(), plan, s.now())

	return &UsageStatus{
		Plan:        plan,
		PlanName:    plans.Get(plan).Name,
		Limit:       dec.Limit,
		Used:        dec.EffectiveCount,
		Remaining:   dec.Limit - dec.EffectiveCount,
		WindowReset: dec.WindowReset,
	}, nil
}

func (s *Service) admit(ctx context.Context, userID uuid.UUID) (*users.Profile, quota.Decision, error) {
	if s.burst != nil {
		allowed, err := s.burst.Allow(ctx, userID, s.burstPerMinute)
		if err != nil {
			// Fail open: Redis being down must not block generations.
			slog.Warn("burst limiter unavailable, allowing request", "error", err)
		} else if !allowed {
			return nil, quota.Decision{}, ErrBurstLimited
		}
	}

	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, quota.Decision{}, fmt.Errorf("loading profile: %w", err)
	}
	if profile == nil {
		return nil, quota.Decision{}, ErrProfileNotFound
	}

	sub, err := s.subs.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, quota.Decision{}, fmt.Errorf("loading subscription: %w", err)
	}

	plan := billing.ActivePlan(sub)
	dec := quota.Evaluate(profile.GenerationCount, profile.LastReset(), plan, s.now())
	if !dec.Admitted {
		metrics.GenerationsTotal.WithLabelValues(string(plan), "quota_exceeded").Inc()
		return nil, dec, &QuotaExceededError{Plan: plan, Limit: dec.Limit}
	}

	return profile, dec, nil
}

func (s *Service) consume(ctx context.Context, profile *users.Profile, dec quota.Decision) (int, error) {
	newCount, err := s.profiles.ConsumeGeneration(ctx, profile.ID, dec.Limit, s.now())
	if err != nil {
		if errors.Is(err, users.ErrQuotaConsumed) {
			// A concurrent request took the last slot between evaluation
			// and consumption. The completed AI result is discarded.
			metrics.GenerationsTotal.WithLabelValues(string(dec.Plan), "quota_exceeded").Inc()
			return 0, &QuotaExceededError{Plan: dec.Plan, Limit: dec.Limit}
		}
		return 0, fmt.Errorf("consuming quota: %w", err)
	}

	remaining := dec.Limit - newCount
	if remaining < 0 {
		remaining = 0
	}
	if remaining <= 2 {
		s.notifier.LowCredit(profile.Email, plans.Get(dec.Plan).Name, remaining)
	}
	return remaining, nil
}
