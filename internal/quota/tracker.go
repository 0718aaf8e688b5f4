package quota

import (
	"time"

	"github.com/ideaboard-app/ideaboard/internal/plans"
)

// Decision is the outcome of evaluating one prospective generation against
// a user's plan and usage counters. It is a pure value; nothing is mutated.
type Decision struct {
	Plan           plans.ID
	Limit          int
	Admitted       bool
	WindowReset    bool
	EffectiveCount int
	Remaining      int
}

// Evaluate decides whether one generation may be consumed right now.
//
// The billing window is the calendar month: the counter resets when now
// falls in a different (year, month) than lastReset. Comparing the tuple
// rather than elapsed time keeps variable month lengths from drifting the
// window. A zero lastReset counts as a fresh window.
func Evaluate(generationCount int, lastReset time.Time, plan plans.ID, now time.Time) Decision {
	limit := plans.QuotaFor(plan)

	reset := lastReset.IsZero() || !sameWindow(lastReset, now)

	effective := generationCount
	if reset {
		effective = 0
	}

	admitted := effective < limit

	remaining := limit - effective
	if admitted {
		remaining--
	}
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Plan:           plan,
		Limit:          limit,
		Admitted:       admitted,
		WindowReset:    reset,
		EffectiveCount: effective,
		Remaining:      remaining,
	}
}

func sameWindow(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}
