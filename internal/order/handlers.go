package order

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/common"
	"github.com/auroramart/backend-mart/internal/repo"
)

// View is the API shape of an order.
type View struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	Location      string          `json:"location"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	VoucherCode   string          `json:"voucher_code,omitempty"`

	ReceiverName  string `json:"receiver_name"`
	ContactNumber string `json:"contact_number"`
	AddressLine1  string `json:"address_line1"`
	AddressLine2  string `json:"address_line2,omitempty"`
	City          string `json:"city"`
	Province      string `json:"province"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`

	TrackingNumber string `json:"tracking_number,omitempty"`
	CustomerNotes  string `json:"customer_notes,omitempty"`

	Items []ItemView `json:"items,omitempty"`

	CreatedAt            time.Time  `json:"created_at"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	ShippedAt            *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt          *time.Time `json:"delivered_at,omitempty"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
}

// ItemView is one order line in API responses.
type ItemView struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id"`
	Qty       int32           `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// FromRow converts a storage row into the API shape.
func FromRow(ord repo.Order, items []repo.OrderItem) View {
	v := View{
		ID:                   ord.ID,
		OrderNumber:          ord.OrderNumber,
		Status:               ord.Status,
		PaymentStatus:        ord.PaymentStatus,
		Location:             ord.Location,
		Subtotal:             ord.Subtotal,
		Tax:                  ord.Tax,
		ShippingFee:          ord.Shipping,
		Discount:             ord.Discount,
		Total:                ord.Total,
		VoucherCode:          ord.VoucherCode,
		ReceiverName:         ord.ReceiverName,
		ContactNumber:        ord.ContactNumber,
		AddressLine1:         ord.AddressLine1,
		AddressLine2:         ord.AddressLine2,
		City:                 ord.City,
		Province:             ord.Province,
		PostalCode:           ord.PostalCode,
		Country:              ord.Country,
		TrackingNumber:       ord.TrackingNumber,
		CustomerNotes:        ord.CustomerNotes,
		CreatedAt:            ord.CreatedAt,
		PaidAt:               ord.PaidAt,
		ShippedAt:            ord.ShippedAt,
		DeliveredAt:          ord.DeliveredAt,
		ExpectedDeliveryDate: ord.ExpectedDeliveryDate,
	}
	for _, it := range items {
		v.Items = append(v.Items, ItemView{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
		})
	}
	return v
}

// Handler serves the customer-facing order endpoints.
type Handler struct {
	Svc   *Service
	Store Store
}

// List returns the caller's orders, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	rows, err := h.Store.ListByUser(r.Context(), userID, perPage, common.Offset(page, perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	total, err := h.Store.CountByUser(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	views := make([]View, 0, len(rows))
	for _, row := range rows {
		views = append(views, FromRow(row, nil))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       views,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// Get returns one of the caller's orders with its lines.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	ord, ok := h.loadOwned(w, r, userID)
	if !ok {
		return
	}
	items, err := h.Store.Items(r.Context(), ord.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	common.JSONData(w, http.StatusOK, FromRow(ord, items))
}

// Cancel cancels one of the caller's pending orders and restores its stock.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	ord, err := h.Svc.CancelByCustomer(r.Context(), id, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		case errors.Is(err, ErrNotCancellable):
			common.JSONError(w, http.StatusConflict, "NOT_CANCELLABLE", "order can no longer be cancelled", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to cancel order", nil)
		}
		return
	}
	common.JSONData(w, http.StatusOK, FromRow(ord, nil))
}

func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request, userID string) (repo.Order, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	ord, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if repo.IsNotFound(err) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return repo.Order{}, false
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return repo.Order{}, false
	}
	// Hide other customers' orders rather than acknowledging them.
	if ord.UserID != userID {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return repo.Order{}, false
	}
	return ord, true
}
