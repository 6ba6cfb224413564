package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/pricing"
	"github.com/auroramart/backend-mart/internal/repo"
	"github.com/auroramart/backend-mart/internal/voucher"
)

// ErrNotFound indicates the requested cart or line could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrOutOfStock rejects adding more units than the variant has on hand.
// The check is advisory; the authoritative reservation happens at checkout.
var ErrOutOfStock = errors.New("requested quantity exceeds available stock")

// Store is the persistence surface the cart service needs.
type Store interface {
	EnsureForUser(ctx context.Context, userID string, ttl time.Duration) (repo.Cart, error)
	EnsureAnonymous(ctx context.Context, anonID string, ttl time.Duration) (repo.Cart, error)
	Lines(ctx context.Context, cartID string) ([]repo.CartLine, error)
	UpsertItem(ctx context.Context, cartID, productID, variantID string, qty int32) error
	SetItemQty(ctx context.Context, cartID, variantID string, qty int32) error
	RemoveItem(ctx context.Context, cartID, variantID string) error
	Clear(ctx context.Context, cartID string) error
	SetVoucher(ctx context.Context, cartID, code string) error
	Merge(ctx context.Context, fromCartID, intoCartID string) error
	Variant(ctx context.Context, variantID string) (repo.Variant, error)
}

// PGStore backs Store with Postgres.
type PGStore struct {
	Pool     repo.DB
	Carts    repo.CartRepo
	Variants repo.VariantRepo
}

func (s *PGStore) EnsureForUser(ctx context.Context, userID string, ttl time.Duration) (repo.Cart, error) {
	return s.Carts.EnsureForUser(ctx, s.Pool, userID, ttl)
}

func (s *PGStore) EnsureAnonymous(ctx context.Context, anonID string, ttl time.Duration) (repo.Cart, error) {
	return s.Carts.EnsureAnonymous(ctx, s.Pool, anonID, ttl)
}

func (s *PGStore) Lines(ctx context.Context, cartID string) ([]repo.CartLine, error) {
	return s.Carts.Lines(ctx, s.Pool, cartID)
}

func (s *PGStore) UpsertItem(ctx context.Context, cartID, productID, variantID string, qty int32) error {
	return s.Carts.UpsertItem(ctx, s.Pool, cartID, productID, variantID, qty)
}

func (s *PGStore) SetItemQty(ctx context.Context, cartID, variantID string, qty int32) error {
	return s.Carts.SetItemQty(ctx, s.Pool, cartID, variantID, qty)
}

func (s *PGStore) RemoveItem(ctx context.Context, cartID, variantID string) error {
	return s.Carts.RemoveItem(ctx, s.Pool, cartID, variantID)
}

func (s *PGStore) Clear(ctx context.Context, cartID string) error {
	return s.Carts.Clear(ctx, s.Pool, cartID)
}

func (s *PGStore) SetVoucher(ctx context.Context, cartID, code string) error {
	return s.Carts.SetVoucher(ctx, s.Pool, cartID, code)
}

func (s *PGStore) Merge(ctx context.Context, fromCartID, intoCartID string) error {
	return s.Carts.Merge(ctx, s.Pool, fromCartID, intoCartID)
}

func (s *PGStore) Variant(ctx context.Context, variantID string) (repo.Variant, error) {
	return s.Variants.GetByID(ctx, s.Pool, variantID)
}

// Service encapsulates cart domain operations.
type Service struct {
	Store     Store
	Validator *voucher.Validator
	Rules     pricing.Rules
	TTL       time.Duration
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

// Ensure loads or creates the active cart for the caller. An authenticated
// user identity wins over an anonymous cart id.
func (s *Service) Ensure(ctx context.Context, userID, anonID string) (repo.Cart, error) {
	switch {
	case userID != "":
		return s.Store.EnsureForUser(ctx, userID, s.ttl())
	case anonID != "":
		return s.Store.EnsureAnonymous(ctx, anonID, s.ttl())
	default:
		return repo.Cart{}, ErrInvalidInput
	}
}

// Add inserts or increments a cart line after an advisory stock check.
func (s *Service) Add(ctx context.Context, cartID, variantID string, qty int32) error {
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	variant, err := s.Store.Variant(ctx, variantID)
	if err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("variant %s: %w", variantID, ErrNotFound)
		}
		return err
	}
	if qty > variant.Stock {
		return fmt.Errorf("variant %s has %d in stock: %w", variantID, variant.Stock, ErrOutOfStock)
	}
	return s.Store.UpsertItem(ctx, cartID, variant.ProductID, variant.ID, qty)
}

// SetQty pins a line to an exact quantity. Zero removes the line.
func (s *Service) SetQty(ctx context.Context, cartID, variantID string, qty int32) error {
	if qty < 0 {
		return fmt.Errorf("qty must not be negative: %w", ErrInvalidInput)
	}
	if qty == 0 {
		return s.Store.RemoveItem(ctx, cartID, variantID)
	}
	variant, err := s.Store.Variant(ctx, variantID)
	if err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("variant %s: %w", variantID, ErrNotFound)
		}
		return err
	}
	if qty > variant.Stock {
		return fmt.Errorf("variant %s has %d in stock: %w", variantID, variant.Stock, ErrOutOfStock)
	}
	return s.Store.SetItemQty(ctx, cartID, variantID, qty)
}

// Remove drops one line from the cart.
func (s *Service) Remove(ctx context.Context, cartID, variantID string) error {
	return s.Store.RemoveItem(ctx, cartID, variantID)
}

// Clear empties the cart and detaches any applied voucher.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	if err := s.Store.Clear(ctx, cartID); err != nil {
		return err
	}
	return s.Store.SetVoucher(ctx, cartID, "")
}

// ApplyVoucher validates the code against the cart's current contents and
// attaches it. Validation failures surface unchanged so the handler can
// report the precise reason.
func (s *Service) ApplyVoucher(ctx context.Context, cartID, userID, code string) (Quote, error) {
	code = voucher.NormalizeCode(code)
	if code == "" {
		return Quote{}, fmt.Errorf("code is required: %w", ErrInvalidInput)
	}
	lines, err := s.Store.Lines(ctx, cartID)
	if err != nil {
		return Quote{}, err
	}
	items, vlines := Split(lines)
	subtotal := s.Rules.Subtotal(items)
	if _, err := s.Validator.Validate(ctx, code, userID, vlines, subtotal); err != nil {
		return Quote{}, err
	}
	if err := s.Store.SetVoucher(ctx, cartID, code); err != nil {
		return Quote{}, err
	}
	return s.quote(ctx, cartID, userID, code, lines)
}

// RemoveVoucher detaches the applied voucher, if any.
func (s *Service) RemoveVoucher(ctx context.Context, cartID string) error {
	return s.Store.SetVoucher(ctx, cartID, "")
}

// LineView is one cart line in API responses, priced live.
type LineView struct {
	ProductID      string          `json:"product_id"`
	VariantID      string          `json:"variant_id"`
	Qty            int32           `json:"qty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	LineTotal      decimal.Decimal `json:"line_total"`
	Stock          int32           `json:"stock"`
}

// Quote is the cart with its live totals.
type Quote struct {
	CartID       string          `json:"cart_id"`
	Lines        []LineView      `json:"lines"`
	VoucherCode  string          `json:"voucher_code,omitempty"`
	VoucherError string          `json:"voucher_error,omitempty"`
	Totals       pricing.Summary `json:"totals"`
}

// View prices the cart as it stands. A previously applied voucher that has
// since stopped validating is reported but not counted.
func (s *Service) View(ctx context.Context, cart repo.Cart, userID string) (Quote, error) {
	lines, err := s.Store.Lines(ctx, cart.ID)
	if err != nil {
		return Quote{}, err
	}
	return s.quote(ctx, cart.ID, userID, cart.VoucherCode, lines)
}

func (s *Service) quote(ctx context.Context, cartID, userID, code string, lines []repo.CartLine) (Quote, error) {
	items, vlines := Split(lines)
	q := Quote{CartID: cartID, VoucherCode: code}
	for i, line := range lines {
		effective := s.Rules.EffectivePrice(items[i])
		q.Lines = append(q.Lines, LineView{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Qty:            line.Qty,
			UnitPrice:      line.Price,
			EffectivePrice: effective,
			LineTotal:      effective.Mul(decimal.NewFromInt(int64(line.Qty))).Round(2),
			Stock:          line.Stock,
		})
	}

	var merchDiscount, shipDiscount decimal.Decimal
	if code != "" {
		subtotal := s.Rules.Subtotal(items)
		vch, err := s.Validator.Validate(ctx, code, userID, vlines, subtotal)
		if err != nil {
			if voucher.IsEligibilityError(err) {
				q.VoucherError = err.Error()
			} else {
				return Quote{}, err
			}
		} else {
			shipping := s.Rules.ShippingFee(subtotal)
			amount := voucher.Compute(vch, subtotal, shipping)
			if voucher.AppliesToMerchandise(vch.Kind) {
				merchDiscount = amount
			} else {
				shipDiscount = amount
			}
		}
	}
	q.Totals = s.Rules.Totals(items, merchDiscount, shipDiscount)
	return q, nil
}

// MergeOnLogin folds an anonymous cart into the user's cart, summing
// quantities on shared variants. The user cart's voucher, if any, survives.
func (s *Service) MergeOnLogin(ctx context.Context, userID, anonID string) (repo.Cart, error) {
	if userID == "" {
		return repo.Cart{}, ErrInvalidInput
	}
	userCart, err := s.Store.EnsureForUser(ctx, userID, s.ttl())
	if err != nil {
		return repo.Cart{}, err
	}
	if anonID == "" {
		return userCart, nil
	}
	anonCart, err := s.Store.EnsureAnonymous(ctx, anonID, s.ttl())
	if err != nil {
		return repo.Cart{}, err
	}
	if anonCart.ID == userCart.ID {
		return userCart, nil
	}
	if err := s.Store.Merge(ctx, anonCart.ID, userCart.ID); err != nil {
		return repo.Cart{}, err
	}
	return userCart, nil
}

// Split converts storage lines into pricing items and voucher lines in one
// pass, preserving order so indexes line up.
func Split(lines []repo.CartLine) ([]pricing.Item, []voucher.Line) {
	items := make([]pricing.Item, 0, len(lines))
	vlines := make([]voucher.Line, 0, len(lines))
	for _, line := range lines {
		item := pricing.Item{
			Qty:          line.Qty,
			Price:        line.Price,
			ComparePrice: line.ComparePrice,
			Stock:        line.Stock,
		}
		items = append(items, item)
		vlines = append(vlines, voucher.Line{
			ProductID:  line.ProductID,
			CategoryID: line.CategoryID,
			OnSale:     item.OnSale(),
		})
	}
	return items, vlines
}
