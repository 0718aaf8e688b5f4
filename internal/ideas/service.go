package ideas

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create persists a generated research artifact for the owner. Title falls
// back to a trimmed prefix of the idea text.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, title, ideaText string, analysis any) (*Idea, error) {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("marshaling analysis: %w", err)
	}

	if title == "" {
		title = deriveTitle(ideaText)
	}

	now := time.Now()
	idea := &Idea{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Title:       title,
		IdeaText:    ideaText,
		Analysis:    analysisJSON,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, idea); err != nil {
		return nil, err
	}
	return idea, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Idea, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID, params ListParams) ([]*Idea, int64, error) {
	offset := (params.Page - 1) * params.PageSize

	list, err := s.repo.ListByOwner(ctx, ownerID, params.PageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// AttachPlan stores the generated build plan and chosen platform on the idea.
func (s *Service) AttachPlan(ctx context.Context, id uuid.UUID, platform string, buildPlan any) error {
	planJSON, err := json.Marshal(buildPlan)
	if err != nil {
		return fmt.Errorf("marshaling build plan: %w", err)
	}
	return s.repo.AttachPlan(ctx, id, platform, planJSON)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id)
}

func deriveTitle(ideaText string) string {
	const maxTitle = 80
	t := strings.TrimSpace(ideaText)
	if i := strings.IndexAny(t, "\n.!?"); i > 0 && i < maxTitle {
		return t[:i]
	}
	if len(t) > maxTitle {
		return t[:maxTitle]
	}
	return t
}
