package users

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a user account with its generation usage counters.
// GenerationCount and LastGenerationReset are mutated only by the
// generation gate (ConsumeGeneration) and the billing reconciler
// (ResetUsage).
type Profile struct {
	ID                  uuid.UUID  `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	GenerationCount     int        `json:"generation_count"`
	LastGenerationReset *time.Time `json:"last_generation_reset,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// LastReset returns the reset timestamp, zero if usage was never recorded.
func (p *Profile) LastReset() time.Time {
	if p.LastGenerationReset == nil {
		return time.Time{}
	}
	return *p.LastGenerationReset
}
