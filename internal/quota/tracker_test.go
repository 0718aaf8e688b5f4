package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ideaboard-app/ideaboard/internal/plans"
)

var now = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func TestEvaluate_AdmitsUnderLimit(t *testing.T) {
	dec := Evaluate(1, now.Add(-48*time.Hour), plans.Free, now)

	assert.True(t, dec.Admitted)
	assert.False(t, dec.WindowReset)
	assert.Equal(t, 1, dec.EffectiveCount)
	assert.Equal(t, 1, dec.Remaining) // limit 3, one used, one being consumed
}

func TestEvaluate_RejectsAtLimit(t *testing.T) {
	dec := Evaluate(3, now.Add(-time.Hour), plans.Free, now)

	assert.False(t, dec.Admitted)
	assert.Equal(t, 0, dec.Remaining)
	assert.Equal(t, 3, dec.Limit)
}

func TestEvaluate_WindowResetAdmitsRegardlessOfCount(t *testing.T) {
	lastMonth := time.Date(2025, time.May, 31, 23, 59, 59, 0, time.UTC)

	dec := Evaluate(100, lastMonth, plans.Free, now)

	assert.True(t, dec.WindowReset)
	assert.True(t, dec.Admitted)
	assert.Equal(t, 0, dec.EffectiveCount)
	assert.Equal(t, 2, dec.Remaining)
}

func TestEvaluate_YearBoundary(t *testing.T) {
	december := time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC)
	january := time.Date(2025, time.January, 1, 0, 30, 0, 0, time.UTC)

	dec := Evaluate(5, december, plans.Basic, january)

	assert.True(t, dec.WindowReset, "December and January are different windows")
	assert.True(t, dec.Admitted)
}

func TestEvaluate_SameMonthDifferentYear(t *testing.T) {
	lastJune := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	dec := Evaluate(5, lastJune, plans.Basic, now)

	assert.True(t, dec.WindowReset, "same month of a prior year is a different window")
}

func TestEvaluate_ZeroLastResetIsFreshWindow(t *testing.T) {
	dec := Evaluate(7, time.Time{}, plans.Free, now)

	assert.True(t, dec.WindowReset)
	assert.True(t, dec.Admitted)
}

func TestEvaluate_UnknownPlanUsesFreeQuota(t *testing.T) {
	dec := Evaluate(0, now, "mystery", now)

	assert.Equal(t, plans.QuotaFor(plans.Free), dec.Limit)
}

func TestSameWindow(t *testing.T) {
	assert.True(t, sameWindow(now, now.Add(24*time.Hour)))
	assert.False(t, sameWindow(now, now.AddDate(0, 1, 0)))
	assert.False(t, sameWindow(now, now.AddDate(1, 0, 0)))
}

func TestEvaluate_Deterministic(t *testing.T) {
	lastReset := now.Add(-time.Hour)
	first := Evaluate(2, lastReset, plans.Basic, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(2, lastReset, plans.Basic, now))
	}
}

func TestEvaluate_SpecScenarioBasicPlan(t *testing.T) {
	// basic limit is 25; emulate the documented walk-up to the limit.
	lastReset := now.Add(-time.Minute)

	dec := Evaluate(24, lastReset, plans.Basic, now)
	assert.True(t, dec.Admitted)
	assert.Equal(t, 0, dec.Remaining)

	dec = Evaluate(25, lastReset, plans.Basic, now)
	assert.False(t, dec.Admitted)
	assert.Equal(t, 0, dec.Remaining)
}
