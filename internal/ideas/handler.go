package ideas

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ideaboard-app/ideaboard/internal/api"
	"github.com/ideaboard-app/ideaboard/internal/auth"
)

type contextKey string

const ideaContextKey contextKey = "idea"

func SetIdeaInContext(ctx context.Context, idea *Idea) context.Context {
	return context.WithValue(ctx, ideaContextKey, idea)
}

func GetIdeaFromContext(ctx context.Context) *Idea {
	idea, _ := ctx.Value(ideaContextKey).(*Idea)
	return idea
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	ownerID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	params := DefaultListParams()
	if p := r.URL.Query().Get("page"); p != "" {
		if page, err := strconv.Atoi(p); err == nil && page > 0 {
			params.Page = page
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if pageSize, err := strconv.Atoi(ps); err == nil && pageSize > 0 && pageSize <= 100 {
			params.PageSize = pageSize
		}
	}

	list, totalCount, err := h.svc.ListByOwner(r.Context(), ownerID, params)
	if err != nil {
		slog.Error("listing ideas", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, list, totalCount, params.Page, params.PageSize)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	idea := GetIdeaFromContext(r.Context())
	if idea == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	api.JSON(w, http.StatusOK, idea)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	idea := GetIdeaFromContext(r.Context())
	if idea == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	if err := h.svc.Delete(r.Context(), idea.ID); err != nil {
		slog.Error("deleting idea", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "idea deleted successfully")
}

// OwnershipMiddleware verifies idea ownership before allowing access.
func (h *Handler) OwnershipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil {
			api.HandleError(w, api.ErrUnauthorized)
			return
		}

		ideaIDStr := chi.URLParam(r, "ideaID")
		ideaID, err := uuid.Parse(ideaIDStr)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("invalid idea ID"))
			return
		}

		idea, err := h.svc.GetByID(r.Context(), ideaID)
		if err != nil {
			slog.Error("fetching idea for ownership check", "error", err)
			api.HandleError(w, api.ErrInternalServer)
			return
		}
		if idea == nil {
			api.HandleError(w, api.NewNotFoundError("idea not found"))
			return
		}

		if idea.OwnerUserID.String() != claims.UserID {
			slog.Warn("ownership violation attempt",
				"idea_id", ideaID,
				"idea_owner", idea.OwnerUserID,
				"requester", claims.UserID,
				"path", r.URL.Path,
				"method", r.Method,
			)
			api.HandleError(w, api.ErrOwnershipViolation)
			return
		}

		ctx := SetIdeaInContext(r.Context(), idea)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
