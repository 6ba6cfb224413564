package voucher

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/obs"
	"github.com/auroramart/backend-mart/internal/repo"
)

// usageClaimer is the slice of the voucher repository the ledger needs.
type usageClaimer interface {
	ClaimUsage(ctx context.Context, db repo.DB, voucherID, userID, orderID string, amount decimal.Decimal) (bool, error)
}

// Ledger records redemptions atomically. Claim must run inside the same
// transaction as the order insert so a crash never leaves a counted usage
// without its order.
type Ledger struct {
	Vouchers usageClaimer
}

// Claim takes one usage slot of the voucher for the given order. The
// underlying claim locks the voucher row and bumps the counter only while
// below the global cap, so two concurrent claims on a max_uses=1 voucher
// resolve to exactly one winner. A duplicate (voucher, order) insert maps
// to already-claimed; note that when Claim runs inside a transaction the
// unique violation has already aborted it, so the mapping only matters for
// standalone claims.
func (l Ledger) Claim(ctx context.Context, db repo.DB, vch repo.Voucher, userID, orderID string, amount decimal.Decimal) error {
	claimer := l.Vouchers
	if claimer == nil {
		claimer = repo.VoucherRepo{}
	}
	ok, err := claimer.ClaimUsage(ctx, db, vch.ID, userID, orderID, amount)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			redemptionMetric("duplicate")
			return nil
		}
		redemptionMetric("error")
		return fmt.Errorf("claim voucher %s: %w", vch.Code, err)
	}
	if !ok {
		redemptionMetric("exhausted")
		return fmt.Errorf("code %q: %w", vch.Code, ErrGloballyExhausted)
	}
	redemptionMetric("ok")
	return nil
}

func redemptionMetric(result string) {
	if obs.VoucherRedemptionsTotal != nil {
		obs.VoucherRedemptionsTotal.WithLabelValues(result).Inc()
	}
}
