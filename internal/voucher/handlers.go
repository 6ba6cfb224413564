package voucher

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/auroramart/backend-mart/internal/common"
	"github.com/auroramart/backend-mart/internal/repo"
)

// Handler exposes administrative voucher management endpoints. All routes
// sit behind the staff role guard; wiring decides the exact policy.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Create inserts a new voucher.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher service not configured", nil)
		return
	}
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	row, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "voucher code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create voucher", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, FromRow(row))
}

// Update rewrites an existing voucher.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "id is required", nil)
		return
	}
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	row, err := h.Svc.Update(r.Context(), id, in)
	if err != nil {
		if repo.IsNotFound(err) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "voucher not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update voucher", nil)
		return
	}
	common.JSONData(w, http.StatusOK, FromRow(row))
}

// Deactivate disables a voucher without touching its usage history.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "id is required", nil)
		return
	}
	if err := h.Svc.Deactivate(r.Context(), id); err != nil {
		if repo.IsNotFound(err) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "voucher not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to deactivate voucher", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get returns one voucher.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	row, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		if repo.IsNotFound(err) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "voucher not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load voucher", nil)
		return
	}
	common.JSONData(w, http.StatusOK, FromRow(row))
}

// List returns a paginated voucher listing.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	rows, total, err := h.Svc.List(r.Context(), page, perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list vouchers", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       rows,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return Input{}, false
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
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "invalid voucher payload", fields)
			return Input{}, false
		}
	}
	if !ValidKind(in.Kind) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid kind", nil)
		return Input{}, false
	}
	return in, true
}
