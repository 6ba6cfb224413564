// Package pricing computes effective per-item prices and cart totals.
// Prices are never stored on cart items; every call reads the variant's
// current state, so totals can change between views as stock moves.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/money"
)

// Rules carries the configured pricing knobs.
type Rules struct {
	TaxRate               decimal.Decimal
	ShippingFlatFee       decimal.Decimal
	FreeShippingThreshold decimal.Decimal

	DynamicEnabled  bool
	LowStockAt      int32
	MarkdownPercent decimal.Decimal
}

// Item is one cart line as seen by the pricing engine.
type Item struct {
	Qty          int32
	Price        decimal.Decimal
	ComparePrice *decimal.Decimal
	Stock        int32
}

// OnSale reports whether the item carries a manual sale price.
func (it Item) OnSale() bool {
	return it.ComparePrice != nil && it.ComparePrice.GreaterThan(it.Price)
}

// Summary aggregates computed cart totals.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

var floorPrice = decimal.New(1, -2)

// EffectivePrice returns the item's live unit price. Manual sales pass
// through untouched; otherwise, when dynamic pricing is on and stock is at
// or below the low-stock mark, the configured markdown applies, floored at
// one cent.
func (r Rules) EffectivePrice(it Item) decimal.Decimal {
	if !r.DynamicEnabled || it.OnSale() || it.Stock > r.LowStockAt {
		return it.Price
	}
	marked := it.Price.Sub(money.Percent(it.Price, r.MarkdownPercent))
	return money.Max(money.RoundCents(marked), floorPrice)
}

// Subtotal sums effective price times quantity, each line rounded to cents
// before summing.
func (r Rules) Subtotal(items []Item) decimal.Decimal {
	subtotal := decimal.Zero
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		line := money.RoundCents(r.EffectivePrice(it).Mul(decimal.NewFromInt(int64(it.Qty))))
		subtotal = subtotal.Add(line)
	}
	return subtotal
}

// ShippingFee applies the flat fee unless the subtotal earns free shipping.
// A zero threshold disables free shipping.
func (r Rules) ShippingFee(subtotal decimal.Decimal) decimal.Decimal {
	if r.FreeShippingThreshold.IsPositive() && subtotal.GreaterThanOrEqual(r.FreeShippingThreshold) {
		return decimal.Zero
	}
	return r.ShippingFlatFee
}

// Totals composes the final summary. merchandiseDiscount reduces the taxable
// base; shippingDiscount only offsets the shipping fee. Tax is computed after
// merchandise discount and never after shipping discount. The grand total is
// floored at zero.
func (r Rules) Totals(items []Item, merchandiseDiscount, shippingDiscount decimal.Decimal) Summary {
	subtotal := r.Subtotal(items)
	shipping := r.ShippingFee(subtotal)

	merchandiseDiscount = money.Clamp(money.Min(merchandiseDiscount, subtotal))
	shippingDiscount = money.Clamp(money.Min(shippingDiscount, shipping))

	taxable := subtotal.Sub(merchandiseDiscount)
	tax := money.RoundCents(taxable.Mul(r.TaxRate))

	total := taxable.Add(tax).Add(shipping.Sub(shippingDiscount))
	return Summary{
		Subtotal: subtotal,
		Discount: money.RoundCents(merchandiseDiscount.Add(shippingDiscount)),
		Tax:      tax,
		Shipping: shipping,
		Total:    money.Clamp(money.RoundCents(total)),
	}
}
