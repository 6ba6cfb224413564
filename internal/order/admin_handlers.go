package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/auroramart/backend-mart/internal/common"
	"github.com/auroramart/backend-mart/internal/repo"
)

// AdminHandler serves staff-side fulfillment endpoints. Routing puts it
// behind the staff role guard.
type AdminHandler struct {
	Svc   *Service
	Store Store
}

// PatchStatus advances an order through the fulfillment state machine.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	to := Status(strings.ToLower(strings.TrimSpace(body.Status)))
	if !ValidStatus(to) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status", nil)
		return
	}
	ord, err := h.Svc.Transition(r.Context(), id, to)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		case errors.Is(err, ErrPaymentRequired):
			common.JSONError(w, http.StatusConflict, "PAYMENT_REQUIRED", "order payment not settled", nil)
		case errors.Is(err, ErrInvalidTransition):
			common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order status", nil)
		}
		return
	}
	common.JSONData(w, http.StatusOK, FromRow(ord, nil))
}

// PatchLocation updates the advisory tracking location.
func (h *AdminHandler) PatchLocation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var body struct {
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	loc := Location(strings.ToLower(strings.TrimSpace(body.Location)))
	if err := h.Svc.SetLocation(r.Context(), id, loc); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		case errors.Is(err, ErrInvalidTransition):
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown location", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order location", nil)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PatchTracking records the carrier tracking number.
func (h *AdminHandler) PatchTracking(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var body struct {
		TrackingNumber string `json:"tracking_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	number := strings.TrimSpace(body.TrackingNumber)
	if number == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "tracking_number is required", nil)
		return
	}
	if err := h.Store.SetTracking(r.Context(), id, number); err != nil {
		if repo.IsNotFound(err) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update tracking number", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get returns any order with its lines, regardless of owner.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	ord, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if repo.IsNotFound(err) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	items, err := h.Store.Items(r.Context(), ord.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	common.JSONData(w, http.StatusOK, FromRow(ord, items))
}

// WebhookHandler receives asynchronous payment gateway callbacks.
type WebhookHandler struct {
	Svc *Service
}

// Payment applies a gateway outcome to the referenced order. The endpoint is
// idempotent from the gateway's point of view: replays of a settled outcome
// resolve to the same final state.
func (h *WebhookHandler) Payment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID string `json:"order_id"`
		Outcome string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	outcome := PaymentStatus(strings.ToLower(strings.TrimSpace(body.Outcome)))
	if body.OrderID == "" || !ValidPaymentStatus(outcome) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "order_id and outcome are required", nil)
		return
	}
	ord, err := h.Svc.HandlePaymentOutcome(r.Context(), body.OrderID, outcome)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Ack unknown orders so the gateway stops retrying.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to process payment callback", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]string{
		"order_id":       ord.ID,
		"status":         ord.Status,
		"payment_status": ord.PaymentStatus,
	})
}
