package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ideaboard-app/ideaboard/internal/api"
	"github.com/ideaboard-app/ideaboard/internal/auth"
)

// SignatureHeader is the header Razorpay signs webhook deliveries with.
const SignatureHeader = "X-Razorpay-Signature"

const maxWebhookBody = 1 << 20

type Handler struct {
	reconciler *Reconciler
	subs       SubscriptionStore
	payments   PaymentStore
	coupons    CouponStore
}

func NewHandler(reconciler *Reconciler, subs SubscriptionStore, payments PaymentStore, coupons CouponStore) *Handler {
	return &Handler{
		reconciler: reconciler,
		subs:       subs,
		payments:   payments,
		coupons:    coupons,
	}
}

// Webhook receives payment-gateway deliveries. 200 acknowledges (including
// idempotent no-ops), 400 rejects bad signatures permanently, 500 asks the
// provider to redeliver.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	err = h.reconciler.HandleWebhook(r.Context(), body, r.Header.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			api.HandleError(w, api.ErrInvalidSignature)
			return
		}
		slog.Error("processing webhook", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "ok")
}

func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	sub, err := h.subs.GetActiveByUser(r.Context(), userID)
	if err != nil {
		slog.Error("getting subscription", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if sub == nil {
		api.HandleError(w, api.NewNotFoundError("no active subscription"))
		return
	}

	api.JSON(w, http.StatusOK, sub)
}

func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	canceled, err := h.subs.Cancel(r.Context(), userID)
	if err != nil {
		slog.Error("canceling subscription", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if !canceled {
		api.HandleError(w, api.NewNotFoundError("no active subscription"))
		return
	}

	api.JSONMessage(w, http.StatusOK, "subscription will not renew")
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	page, pageSize := 1, 20
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	payments, err := h.payments.ListByUser(r.Context(), userID, pageSize, (page-1)*pageSize)
	if err != nil {
		slog.Error("listing payments", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	total, err := h.payments.CountByUser(r.Context(), userID)
	if err != nil {
		slog.Error("counting payments", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, payments, total, page, pageSize)
}

func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		api.HandleError(w, api.NewBadRequestError("missing coupon code"))
		return
	}

	coupon, err := h.coupons.GetByCode(r.Context(), code)
	if err != nil {
		slog.Error("looking up coupon", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	now := time.Now()
	if coupon == nil || !coupon.IsActive || coupon.CurrentUses >= coupon.MaxUses ||
		now.Before(coupon.ValidFrom) || now.After(coupon.ValidUntil) {
		api.HandleError(w, api.NewNotFoundError("coupon not available"))
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"code":             coupon.Code,
		"discount_percent": coupon.DiscountPercent,
		"plan_restriction": coupon.PlanRestriction,
	})
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
