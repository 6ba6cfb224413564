package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/auroramart/backend-mart/internal/common"
	"github.com/auroramart/backend-mart/internal/voucher"
)

// HeaderAnonID carries the anonymous cart identity for guests.
const HeaderAnonID = "X-Anon-Id"

// Handler exposes the cart endpoints. Carts work for both authenticated
// users and guests carrying an anonymous id header.
type Handler struct {
	Svc *Service
}

func identity(r *http.Request) (userID, anonID string) {
	userID, _ = common.UserID(r.Context())
	anonID = strings.TrimSpace(r.Header.Get(HeaderAnonID))
	return userID, anonID
}

func (h *Handler) ensure(w http.ResponseWriter, r *http.Request) (cartID, userID string, ok bool) {
	userID, anonID := identity(r)
	cart, err := h.Svc.Ensure(r.Context(), userID, anonID)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "user identity or anonymous cart id required", nil)
			return "", "", false
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load cart", nil)
		return "", "", false
	}
	return cart.ID, userID, true
}

// Get returns the caller's cart with live totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, anonID := identity(r)
	cart, err := h.Svc.Ensure(r.Context(), userID, anonID)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "user identity or anonymous cart id required", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load cart", nil)
		return
	}
	quote, err := h.Svc.View(r.Context(), cart, userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to price cart", nil)
		return
	}
	common.JSONData(w, http.StatusOK, quote)
}

// AddItem inserts or increments a cart line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, _, ok := h.ensure(w, r)
	if !ok {
		return
	}
	var body struct {
		VariantID string `json:"variant_id"`
		Qty       int32  `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.VariantID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "variant_id and qty are required", nil)
		return
	}
	if err := h.Svc.Add(r.Context(), cartID, body.VariantID, body.Qty); err != nil {
		h.writeItemError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateItem pins a cart line to an exact quantity. Zero removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, _, ok := h.ensure(w, r)
	if !ok {
		return
	}
	variantID := strings.TrimSpace(chi.URLParam(r, "variantID"))
	var body struct {
		Qty int32 `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Svc.SetQty(r.Context(), cartID, variantID, body.Qty); err != nil {
		h.writeItemError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveItem drops one line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, _, ok := h.ensure(w, r)
	if !ok {
		return
	}
	variantID := strings.TrimSpace(chi.URLParam(r, "variantID"))
	if err := h.Svc.Remove(r.Context(), cartID, variantID); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to remove item", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	cartID, _, ok := h.ensure(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Clear(r.Context(), cartID); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to clear cart", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyVoucher validates and attaches a voucher code to the cart.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	cartID, userID, ok := h.ensure(w, r)
	if !ok {
		return
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Code) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	quote, err := h.Svc.ApplyVoucher(r.Context(), cartID, userID, body.Code)
	if err != nil {
		if voucher.IsEligibilityError(err) {
			common.JSONError(w, http.StatusUnprocessableEntity, voucher.ReasonCode(err), err.Error(), nil)
			return
		}
		if errors.Is(err, ErrInvalidInput) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to apply voucher", nil)
		return
	}
	common.JSONData(w, http.StatusOK, quote)
}

// RemoveVoucher detaches the applied voucher.
func (h *Handler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	cartID, _, ok := h.ensure(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveVoucher(r.Context(), cartID); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to remove voucher", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Merge folds the caller's anonymous cart into their user cart after login.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	userID, anonID := identity(r)
	if userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	cart, err := h.Svc.MergeOnLogin(r.Context(), userID, anonID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to merge carts", nil)
		return
	}
	quote, err := h.Svc.View(r.Context(), cart, userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to price cart", nil)
		return
	}
	common.JSONData(w, http.StatusOK, quote)
}

func (h *Handler) writeItemError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrOutOfStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update cart", nil)
	}
}
