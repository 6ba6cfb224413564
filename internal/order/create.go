package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/obs"
	"github.com/auroramart/backend-mart/internal/repo"
)

// ErrInsufficientStock carries the variants that could not be reserved.
type ErrInsufficientStock struct {
	Shortfalls []repo.StockShortfall
}

func (e *ErrInsufficientStock) Error() string {
	ids := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		ids = append(ids, s.VariantID)
	}
	return fmt.Sprintf("insufficient stock for variants %s", strings.Join(ids, ", "))
}

// AsInsufficientStock unwraps err into an *ErrInsufficientStock if it is one.
func AsInsufficientStock(err error) (*ErrInsufficientStock, bool) {
	var e *ErrInsufficientStock
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ShippingAddress is the snapshot frozen onto the order at creation.
type ShippingAddress struct {
	ReceiverName  string
	ContactNumber string
	AddressLine1  string
	AddressLine2  string
	City          string
	Province      string
	PostalCode    string
	Country       string
}

// DraftItem is one line of a draft order.
type DraftItem struct {
	ProductID string
	VariantID string
	Qty       int32
	UnitPrice decimal.Decimal
}

// Draft holds everything needed to create an order inside the caller's
// transaction.
type Draft struct {
	UserID        string
	Items         []DraftItem
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	ShippingFee   decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	VoucherCode   string
	Address       ShippingAddress
	CustomerNotes string
}

// Creator builds orders. It runs inside a transaction owned by the caller so
// that stock reservation, order insertion and voucher redemption commit or
// roll back together.
type Creator struct {
	Orders   repo.OrderRepo
	Variants repo.VariantRepo
}

// CreateInTx reserves stock for every draft item and inserts the order with
// its lines, all on db. Any shortfall aborts the whole reservation and
// surfaces as *ErrInsufficientStock.
func (c Creator) CreateInTx(ctx context.Context, db repo.DB, draft Draft) (repo.Order, error) {
	if len(draft.Items) == 0 {
		return repo.Order{}, errors.New("order draft has no items")
	}
	reqs := make([]repo.StockRequest, 0, len(draft.Items))
	for _, item := range draft.Items {
		reqs = append(reqs, repo.StockRequest{VariantID: item.VariantID, Qty: item.Qty})
	}
	shortfalls, err := c.Variants.Reserve(ctx, db, reqs)
	if err != nil {
		return repo.Order{}, fmt.Errorf("reserve stock: %w", err)
	}
	if len(shortfalls) > 0 {
		if obs.StockConflictsTotal != nil {
			obs.StockConflictsTotal.Inc()
		}
		return repo.Order{}, &ErrInsufficientStock{Shortfalls: shortfalls}
	}

	ord := repo.Order{
		OrderNumber:   NewOrderNumber(),
		UserID:        draft.UserID,
		Status:        string(StatusPending),
		PaymentStatus: string(PaymentPending),
		Location:      string(LocationWarehouse),
		Subtotal:      draft.Subtotal,
		Tax:           draft.Tax,
		Shipping:      draft.ShippingFee,
		Discount:      draft.Discount,
		Total:         draft.Total,
		VoucherCode:   draft.VoucherCode,
		ReceiverName:  draft.Address.ReceiverName,
		ContactNumber: draft.Address.ContactNumber,
		AddressLine1:  draft.Address.AddressLine1,
		AddressLine2:  draft.Address.AddressLine2,
		City:          draft.Address.City,
		Province:      draft.Address.Province,
		PostalCode:    draft.Address.PostalCode,
		Country:       draft.Address.Country,
		CustomerNotes: draft.CustomerNotes,
	}
	created, err := c.Orders.Insert(ctx, db, ord)
	if err != nil {
		return repo.Order{}, fmt.Errorf("insert order: %w", err)
	}

	items := make([]repo.OrderItem, 0, len(draft.Items))
	for _, item := range draft.Items {
		items = append(items, repo.OrderItem{
			OrderID:   created.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
		})
	}
	if err := c.Orders.InsertItems(ctx, db, created.ID, items); err != nil {
		return repo.Order{}, fmt.Errorf("insert order items: %w", err)
	}
	return created, nil
}
