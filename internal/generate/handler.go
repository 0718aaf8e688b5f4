package generate

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ideaboard-app/ideaboard/internal/api"
	"github.com/ideaboard-app/ideaboard/internal/auth"
	"github.com/ideaboard-app/ideaboard/internal/ideas"
)

type Handler struct {
	svc      *Service
	ideas    *ideas.Service
	validate *validator.Validate
}

func NewHandler(svc *Service, ideaSvc *ideas.Service) *Handler {
	return &Handler{
		svc:      svc,
		ideas:    ideaSvc,
		validate: validator.New(),
	}
}

type GenerateRequest struct {
	Title    string `json:"title" validate:"max=120"`
	IdeaText string `json:"idea_text" validate:"required,min=10,max=4000"`
}

type PlanRequest struct {
	Platform string `json:"platform" validate:"required,min=2,max=60"`
}

// Generate runs a quota-metered market-research generation and persists
// the resulting idea record for the caller.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	result, err := h.svc.Analyze(r.Context(), userID, req.IdeaText)
	if err != nil {
		h.handleGenerationError(w, err)
		return
	}

	idea, err := h.ideas.Create(r.Context(), userID, req.Title, req.IdeaText, result.Analysis)
	if err != nil {
		slog.Error("persisting idea", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, map[string]any{
		"idea":      idea,
		"plan":      result.Plan,
		"remaining": result.Remaining,
	})
}

// GeneratePlan runs a quota-metered build-plan generation for an idea the
// caller owns (ownership enforced by middleware) and stores the plan.
func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	idea := ideas.GetIdeaFromContext(r.Context())
	if idea == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	result, err := h.svc.PlanBuild(r.Context(), userID, idea.IdeaText, req.Platform)
	if err != nil {
		h.handleGenerationError(w, err)
		return
	}

	if err := h.ideas.AttachPlan(r.Context(), idea.ID, req.Platform, result.BuildPlan); err != nil {
		slog.Error("storing build plan", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"build_plan": result.BuildPlan,
		"plan":       result.Plan,
		"remaining":  result.Remaining,
	})
}

// Usage returns the caller's credit meter.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	status, err := h.svc.Usage(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			api.HandleError(w, api.NewNotFoundError("profile not found"))
			return
		}
		slog.Error("loading usage", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}

func (h *Handler) handleGenerationError(w http.ResponseWriter, err error) {
	var quotaErr *QuotaExceededError
	switch {
	case errors.As(err, &quotaErr):
		// Expected condition, not an error log.
		api.JSONError(w, http.StatusForbidden, quotaErr)
	case errors.Is(err, ErrBurstLimited):
		api.JSONErrorMessage(w, http.StatusTooManyRequests, "too many requests, try again shortly")
	case errors.Is(err, ErrProfileNotFound):
		slog.Error("generation for user without profile")
		api.HandleError(w, api.NewNotFoundError("profile not found"))
	default:
		// Upstream AI failures land here: retryable for the caller.
		slog.Error("generation failed", "error", err)
		api.JSONErrorMessage(w, http.StatusBadGateway, "generation temporarily unavailable, please retry")
	}
}

func requesterID(r *http.Request) (uuid.UUID, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
