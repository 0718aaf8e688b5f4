package ideas

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Idea is a submitted product idea together with its generated research
// artifacts. Analysis is written at creation; BuildPlan once the user picks
// a platform and generates a plan.
type Idea struct {
	ID          uuid.UUID       `json:"id"`
	OwnerUserID uuid.UUID       `json:"owner_user_id"`
	Title       string          `json:"title"`
	IdeaText    string          `json:"idea_text"`
	Analysis    json.RawMessage `json:"analysis"`
	Platform    string          `json:"platform,omitempty"`
	BuildPlan   json.RawMessage `json:"build_plan,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

type ListParams struct {
	Page     int
	PageSize int
}

func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}
