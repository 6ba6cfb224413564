package voucher

import (
	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/money"
	"github.com/auroramart/backend-mart/internal/repo"
)

// Compute returns the discount a validated voucher yields, rounded to cents.
// Merchandise discounts never exceed the subtotal; a free-shipping discount
// equals the shipping cost and touches nothing else.
func Compute(vch repo.Voucher, subtotal, shippingCost decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch vch.Kind {
	case KindFixed:
		discount = money.Min(vch.Value, subtotal)
	case KindPercent:
		discount = money.Percent(subtotal, vch.Value)
		if vch.MaxDiscount != nil {
			discount = money.Min(discount, *vch.MaxDiscount)
		}
		discount = money.Min(discount, subtotal)
	case KindFreeShipping:
		discount = shippingCost
	default:
		return decimal.Zero
	}
	return money.Clamp(money.RoundCents(discount))
}

// AppliesToMerchandise reports whether the voucher discounts merchandise
// rather than shipping. Tax is computed after merchandise discounts only.
func AppliesToMerchandise(kind string) bool {
	return kind == KindFixed || kind == KindPercent
}
