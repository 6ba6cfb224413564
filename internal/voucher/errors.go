package voucher

import "errors"

// Discount kinds.
const (
	KindPercent      = "percent"
	KindFixed        = "fixed_amount"
	KindFreeShipping = "free_shipping"
)

// ValidKind reports whether kind names a supported discount kind.
func ValidKind(kind string) bool {
	switch kind {
	case KindPercent, KindFixed, KindFreeShipping:
		return true
	}
	return false
}

// Eligibility failure reasons, ordered to match the validation sequence.
// Each is wrapped with interpolated detail before surfacing to the client.
var (
	// ErrCodeNotFound is returned when no voucher carries the given code.
	ErrCodeNotFound = errors.New("voucher code not found")
	// ErrNotCurrentlyValid covers inactive vouchers and out-of-window use.
	ErrNotCurrentlyValid = errors.New("voucher not currently valid")
	// ErrGloballyExhausted indicates the global usage cap is spent.
	ErrGloballyExhausted = errors.New("voucher usage limit reached")
	// ErrNotYours is returned for a user-scoped voucher used by someone else.
	ErrNotYours = errors.New("voucher belongs to another customer")
	// ErrNotFirstTime rejects first-time-only vouchers for returning customers.
	ErrNotFirstTime = errors.New("voucher is for first-time customers only")
	// ErrPerUserExhausted indicates the caller spent the per-user allowance.
	ErrPerUserExhausted = errors.New("voucher per-user usage limit reached")
	// ErrBelowMinimumPurchase indicates the subtotal is under the floor.
	ErrBelowMinimumPurchase = errors.New("minimum purchase not met")
	// ErrNoEligibleItems means no cart line matches the voucher's allow-lists.
	ErrNoEligibleItems = errors.New("no eligible items in cart")
	// ErrSaleItemsExcluded rejects carts whose eligible lines are on sale.
	ErrSaleItemsExcluded = errors.New("voucher cannot be used on sale items")
)

// ReasonCode maps an eligibility error to its machine-readable code.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrCodeNotFound):
		return "CODE_NOT_FOUND"
	case errors.Is(err, ErrNotCurrentlyValid):
		return "NOT_CURRENTLY_VALID"
	case errors.Is(err, ErrGloballyExhausted):
		return "GLOBALLY_EXHAUSTED"
	case errors.Is(err, ErrNotYours):
		return "NOT_YOURS_TO_USE"
	case errors.Is(err, ErrNotFirstTime):
		return "NOT_FIRST_TIME_CUSTOMER"
	case errors.Is(err, ErrPerUserExhausted):
		return "PER_USER_EXHAUSTED"
	case errors.Is(err, ErrBelowMinimumPurchase):
		return "BELOW_MINIMUM_PURCHASE"
	case errors.Is(err, ErrNoEligibleItems):
		return "NO_ELIGIBLE_ITEMS"
	case errors.Is(err, ErrSaleItemsExcluded):
		return "SALE_ITEMS_EXCLUDED"
	}
	return ""
}

// IsEligibilityError reports whether err is one of the validation failures
// that should surface to the end user as a 422 rather than a 500.
func IsEligibilityError(err error) bool {
	return ReasonCode(err) != ""
}
