package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/auroramart/backend-mart/internal/common"
	"github.com/auroramart/backend-mart/internal/order"
	"github.com/auroramart/backend-mart/internal/voucher"
)

// Handler serves the checkout endpoint.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Create turns the caller's cart into a pending order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			fields := map[string]string{}
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					fields[fe.Field()] = fe.Tag()
				}
			}
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "invalid checkout payload", fields)
			return
		}
	}

	created, err := h.Svc.Create(r.Context(), userID, in)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyCart):
			common.JSONError(w, http.StatusConflict, "EMPTY_CART", "cart is empty", nil)
		case voucher.IsEligibilityError(err):
			common.JSONError(w, http.StatusUnprocessableEntity, voucher.ReasonCode(err), err.Error(), nil)
		default:
			if stockErr, ok := order.AsInsufficientStock(err); ok {
				details := make([]map[string]any, 0, len(stockErr.Shortfalls))
				for _, s := range stockErr.Shortfalls {
					details = append(details, map[string]any{
						"variant_id": s.VariantID,
						"requested":  s.Requested,
						"available":  s.Available,
					})
				}
				common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", "not enough stock for some items", details)
				return
			}
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
		}
		return
	}
	common.JSONData(w, http.StatusCreated, order.FromRow(created, nil))
}
