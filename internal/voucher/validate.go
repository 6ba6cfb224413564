package voucher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/money"
	"github.com/auroramart/backend-mart/internal/repo"
)

// Line is one cart position as seen by the eligibility checks.
type Line struct {
	ProductID  string
	CategoryID string
	OnSale     bool
}

// Data captures the reads the validator performs. All checks are pure reads;
// mutation happens only at claim time in the Ledger.
type Data interface {
	VoucherByCode(ctx context.Context, code string) (repo.Voucher, error)
	OrderCount(ctx context.Context, userID string) (int64, error)
	UsageCount(ctx context.Context, voucherID, userID string) (int64, error)
}

// Validator decides whether a voucher may be applied to a cart.
type Validator struct {
	Data Data
	Now  func() time.Time
}

// NormalizeCode trims and upper-cases a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Validate runs the eligibility checks in order, failing fast with a
// distinct reason for each. userID may be empty for anonymous carts.
func (v *Validator) Validate(ctx context.Context, code, userID string, lines []Line, subtotal decimal.Decimal) (repo.Voucher, error) {
	if v == nil || v.Data == nil {
		return repo.Voucher{}, errors.New("voucher validator not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return repo.Voucher{}, fmt.Errorf("empty code: %w", ErrCodeNotFound)
	}

	vch, err := v.Data.VoucherByCode(ctx, normalized)
	if err != nil {
		if repo.IsNotFound(err) {
			return repo.Voucher{}, fmt.Errorf("code %q: %w", normalized, ErrCodeNotFound)
		}
		return repo.Voucher{}, err
	}

	now := v.now()
	if !vch.IsActive || now.Before(vch.StartsAt) || !now.Before(vch.EndsAt) {
		return repo.Voucher{}, fmt.Errorf("code %q valid %s to %s: %w",
			normalized, vch.StartsAt.Format("2006-01-02"), vch.EndsAt.Format("2006-01-02"), ErrNotCurrentlyValid)
	}

	if vch.MaxUses != nil && vch.CurrentUses >= *vch.MaxUses {
		return repo.Voucher{}, fmt.Errorf("code %q used %d of %d times: %w",
			normalized, vch.CurrentUses, *vch.MaxUses, ErrGloballyExhausted)
	}

	if vch.UserID != "" && vch.UserID != userID {
		return repo.Voucher{}, fmt.Errorf("code %q: %w", normalized, ErrNotYours)
	}

	if vch.FirstTimeOnly && userID != "" {
		orders, err := v.Data.OrderCount(ctx, userID)
		if err != nil {
			return repo.Voucher{}, err
		}
		if orders > 0 {
			return repo.Voucher{}, fmt.Errorf("code %q, %d prior orders: %w", normalized, orders, ErrNotFirstTime)
		}
	}

	if userID != "" && vch.MaxUsesPerUser > 0 {
		used, err := v.Data.UsageCount(ctx, vch.ID, userID)
		if err != nil {
			return repo.Voucher{}, err
		}
		if used >= int64(vch.MaxUsesPerUser) {
			return repo.Voucher{}, fmt.Errorf("code %q used %d of %d allowed: %w",
				normalized, used, vch.MaxUsesPerUser, ErrPerUserExhausted)
		}
	}

	if subtotal.LessThan(vch.MinPurchase) {
		return repo.Voucher{}, fmt.Errorf("minimum purchase of %s required, cart subtotal is %s: %w",
			money.Format(vch.MinPurchase), money.Format(subtotal), ErrBelowMinimumPurchase)
	}

	eligible := EligibleLines(vch, lines)
	if (len(vch.ProductIDs) > 0 || len(vch.CategoryIDs) > 0) && len(eligible) == 0 {
		return repo.Voucher{}, fmt.Errorf("code %q: %w", normalized, ErrNoEligibleItems)
	}

	if vch.ExcludeSaleItems {
		for _, line := range eligible {
			if line.OnSale {
				return repo.Voucher{}, fmt.Errorf("code %q: %w", normalized, ErrSaleItemsExcluded)
			}
		}
	}

	return vch, nil
}

// EligibleLines filters the cart lines down to those the voucher may touch.
// A line matches when its product id or its product's category id is in the
// voucher's allow-lists; an unscoped voucher touches every line.
func EligibleLines(vch repo.Voucher, lines []Line) []Line {
	if len(vch.ProductIDs) == 0 && len(vch.CategoryIDs) == 0 {
		return lines
	}
	var out []Line
	for _, line := range lines {
		if containsID(vch.ProductIDs, line.ProductID) || containsID(vch.CategoryIDs, line.CategoryID) {
			out = append(out, line)
		}
	}
	return out
}

func containsID(ids []string, id string) bool {
	if id == "" {
		return false
	}
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
