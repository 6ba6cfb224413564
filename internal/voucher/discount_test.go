package voucher

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/repo"
)

func TestComputeFixed(t *testing.T) {
	v := repo.Voucher{Kind: KindFixed, Value: dec("10.00")}
	if got := Compute(v, dec("50.00"), dec("10.00")); !got.Equal(dec("10.00")) {
		t.Fatalf("got %s", got)
	}
	// Fixed discounts never exceed the subtotal.
	if got := Compute(v, dec("7.50"), dec("10.00")); !got.Equal(dec("7.50")) {
		t.Fatalf("got %s", got)
	}
}

func TestComputePercentWithCap(t *testing.T) {
	maxDiscount := dec("50.00")
	v := repo.Voucher{Kind: KindPercent, Value: dec("20"), MaxDiscount: &maxDiscount}
	if got := Compute(v, dec("400.00"), dec("10.00")); !got.Equal(dec("50.00")) {
		t.Fatalf("20%% of 400 capped at 50: got %s", got)
	}
	v.MaxDiscount = nil
	if got := Compute(v, dec("400.00"), dec("10.00")); !got.Equal(dec("80.00")) {
		t.Fatalf("uncapped: got %s", got)
	}
}

func TestComputePercentRounding(t *testing.T) {
	v := repo.Voucher{Kind: KindPercent, Value: dec("15")}
	// 15% of 33.33 = 4.9995, rounds half-up to 5.00.
	if got := Compute(v, dec("33.33"), decimal.Zero); !got.Equal(dec("5.00")) {
		t.Fatalf("got %s", got)
	}
}

func TestComputePercentNeverExceedsSubtotal(t *testing.T) {
	v := repo.Voucher{Kind: KindPercent, Value: dec("150")}
	if got := Compute(v, dec("40.00"), decimal.Zero); !got.Equal(dec("40.00")) {
		t.Fatalf("got %s", got)
	}
}

func TestComputeFreeShipping(t *testing.T) {
	v := repo.Voucher{Kind: KindFreeShipping, Value: decimal.Zero}
	if got := Compute(v, dec("50.00"), dec("10.00")); !got.Equal(dec("10.00")) {
		t.Fatalf("got %s", got)
	}
	if AppliesToMerchandise(KindFreeShipping) {
		t.Fatal("free shipping must not be a merchandise discount")
	}
	if !AppliesToMerchandise(KindPercent) || !AppliesToMerchandise(KindFixed) {
		t.Fatal("merchandise kinds misclassified")
	}
}

func TestComputeUnknownKind(t *testing.T) {
	v := repo.Voucher{Kind: "mystery", Value: dec("10.00")}
	if got := Compute(v, dec("50.00"), dec("10.00")); !got.IsZero() {
		t.Fatalf("got %s", got)
	}
}
