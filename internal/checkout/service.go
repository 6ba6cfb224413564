package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/cart"
	"github.com/auroramart/backend-mart/internal/events"
	"github.com/auroramart/backend-mart/internal/obs"
	"github.com/auroramart/backend-mart/internal/order"
	"github.com/auroramart/backend-mart/internal/pricing"
	"github.com/auroramart/backend-mart/internal/repo"
	"github.com/auroramart/backend-mart/internal/voucher"
)

// ErrEmptyCart rejects checkouts over a cart with no lines.
var ErrEmptyCart = errors.New("cart is empty")

// Input is the checkout payload.
type Input struct {
	Address       Address `json:"address" validate:"required"`
	VoucherCode   string  `json:"voucher_code"`
	CustomerNotes string  `json:"customer_notes" validate:"max=1000"`
}

// Address is the shipping destination frozen onto the order.
type Address struct {
	ReceiverName  string `json:"receiver_name" validate:"required,max=120"`
	ContactNumber string `json:"contact_number" validate:"required,max=32"`
	AddressLine1  string `json:"address_line1" validate:"required,max=255"`
	AddressLine2  string `json:"address_line2" validate:"max=255"`
	City          string `json:"city" validate:"required,max=120"`
	Province      string `json:"province" validate:"required,max=120"`
	PostalCode    string `json:"postal_code" validate:"required,max=16"`
	Country       string `json:"country" validate:"required,max=64"`
}

// Committer executes the transactional tail of a checkout: stock
// reservation, order insertion, voucher redemption and cart teardown commit
// or roll back together.
type Committer interface {
	Commit(ctx context.Context, cartID string, draft order.Draft, vch *repo.Voucher, discount decimal.Decimal) (repo.Order, error)
}

// PGCommitter backs Committer with a single Postgres transaction.
type PGCommitter struct {
	Pool    *pgxpool.Pool
	Creator order.Creator
	Ledger  voucher.Ledger
	Carts   repo.CartRepo
}

func (c *PGCommitter) Commit(ctx context.Context, cartID string, draft order.Draft, vch *repo.Voucher, discount decimal.Decimal) (repo.Order, error) {
	var created repo.Order
	err := repo.WithTx(ctx, c.Pool, func(tx pgx.Tx) error {
		var err error
		created, err = c.Creator.CreateInTx(ctx, tx, draft)
		if err != nil {
			return err
		}
		if vch != nil {
			if err := c.Ledger.Claim(ctx, tx, *vch, draft.UserID, created.ID, discount); err != nil {
				return err
			}
		}
		if err := c.Carts.Clear(ctx, tx, cartID); err != nil {
			return err
		}
		return c.Carts.SetVoucher(ctx, tx, cartID, "")
	})
	return created, err
}

// Service turns a cart into a pending order.
type Service struct {
	CartSvc   *cart.Service
	Committer Committer
	Validator *voucher.Validator
	Rules     pricing.Rules
	Bus       *events.Bus
	Log       zerolog.Logger
}

// Create prices the user's cart, validates the voucher if one applies, and
// commits the order. The voucher code in the input wins over one already
// attached to the cart.
func (s *Service) Create(ctx context.Context, userID string, in Input) (repo.Order, error) {
	started := time.Now()
	ord, err := s.create(ctx, userID, in)
	if obs.CheckoutDuration != nil {
		obs.CheckoutDuration.Observe(float64(time.Since(started).Milliseconds()))
	}
	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.WithLabelValues(createResult(err)).Inc()
	}
	return ord, err
}

func createResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isStockErr(err):
		return "insufficient_stock"
	case voucher.IsEligibilityError(err):
		return "voucher_rejected"
	default:
		return "error"
	}
}

func isStockErr(err error) bool {
	_, ok := order.AsInsufficientStock(err)
	return ok
}

func (s *Service) create(ctx context.Context, userID string, in Input) (repo.Order, error) {
	if userID == "" {
		return repo.Order{}, errors.New("user is required for checkout")
	}
	cartRow, err := s.CartSvc.Ensure(ctx, userID, "")
	if err != nil {
		return repo.Order{}, err
	}
	lines, err := s.CartSvc.Store.Lines(ctx, cartRow.ID)
	if err != nil {
		return repo.Order{}, err
	}
	if len(lines) == 0 {
		return repo.Order{}, ErrEmptyCart
	}

	items, vlines := cart.Split(lines)
	subtotal := s.Rules.Subtotal(items)
	shipping := s.Rules.ShippingFee(subtotal)

	code := voucher.NormalizeCode(in.VoucherCode)
	if code == "" {
		code = voucher.NormalizeCode(cartRow.VoucherCode)
	}
	var (
		applied       *repo.Voucher
		merchDiscount decimal.Decimal
		shipDiscount  decimal.Decimal
		discount      decimal.Decimal
	)
	if code != "" {
		vch, err := s.Validator.Validate(ctx, code, userID, vlines, subtotal)
		if err != nil {
			return repo.Order{}, err
		}
		discount = voucher.Compute(vch, subtotal, shipping)
		if voucher.AppliesToMerchandise(vch.Kind) {
			merchDiscount = discount
		} else {
			shipDiscount = discount
		}
		applied = &vch
	}
	totals := s.Rules.Totals(items, merchDiscount, shipDiscount)

	draft := order.Draft{
		UserID:      userID,
		Subtotal:    totals.Subtotal,
		Tax:         totals.Tax,
		ShippingFee: totals.Shipping,
		Discount:    totals.Discount,
		Total:       totals.Total,
		VoucherCode: code,
		Address: order.ShippingAddress{
			ReceiverName:  in.Address.ReceiverName,
			ContactNumber: in.Address.ContactNumber,
			AddressLine1:  in.Address.AddressLine1,
			AddressLine2:  in.Address.AddressLine2,
			City:          in.Address.City,
			Province:      in.Address.Province,
			PostalCode:    in.Address.PostalCode,
			Country:       in.Address.Country,
		},
		CustomerNotes: in.CustomerNotes,
	}
	for i, line := range lines {
		draft.Items = append(draft.Items, order.DraftItem{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Qty:       line.Qty,
			UnitPrice: s.Rules.EffectivePrice(items[i]),
		})
	}

	created, err := s.Committer.Commit(ctx, cartRow.ID, draft, applied, discount)
	if err != nil {
		return repo.Order{}, fmt.Errorf("commit checkout: %w", err)
	}
	s.emitCreated(ctx, created)
	return created, nil
}

func (s *Service) emitCreated(ctx context.Context, ord repo.Order) {
	if s.Bus == nil {
		return
	}
	payload := map[string]any{
		"order_id":     ord.ID,
		"order_number": ord.OrderNumber,
		"user_id":      ord.UserID,
		"total":        ord.Total,
	}
	if _, err := s.Bus.Emit(ctx, events.TopicOrderCreated, ord.ID, payload); err != nil {
		s.Log.Warn().Err(err).Str("order_id", ord.ID).Msg("order.created emit failed")
	}
}
