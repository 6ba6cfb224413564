package catalog

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/auroramart/backend-mart/internal/common"
)

// Handler exposes the public browse endpoints.
type Handler struct {
	Svc *Service
}

// Products handles GET /products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	result, err := h.Svc.List(r.Context(), query, page, perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not list products", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: result.Total},
	})
}

// Product handles GET /products/{slug}.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	detail, err := h.Svc.Get(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not load product", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}
