package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/pricing"
	"github.com/auroramart/backend-mart/internal/repo"
	"github.com/auroramart/backend-mart/internal/voucher"
)

type fakeStore struct {
	carts    map[string]repo.Cart
	lines    map[string][]repo.CartLine
	variants map[string]repo.Variant
	merged   [][2]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		carts:    map[string]repo.Cart{},
		lines:    map[string][]repo.CartLine{},
		variants: map[string]repo.Variant{},
	}
}

func (f *fakeStore) EnsureForUser(_ context.Context, userID string, _ time.Duration) (repo.Cart, error) {
	id := "cart-" + userID
	cart, ok := f.carts[id]
	if !ok {
		cart = repo.Cart{ID: id, UserID: userID}
		f.carts[id] = cart
	}
	return cart, nil
}

func (f *fakeStore) EnsureAnonymous(_ context.Context, anonID string, _ time.Duration) (repo.Cart, error) {
	id := "cart-anon-" + anonID
	cart, ok := f.carts[id]
	if !ok {
		cart = repo.Cart{ID: id, AnonID: anonID}
		f.carts[id] = cart
	}
	return cart, nil
}

func (f *fakeStore) Lines(_ context.Context, cartID string) ([]repo.CartLine, error) {
	return f.lines[cartID], nil
}

func (f *fakeStore) UpsertItem(_ context.Context, cartID, productID, variantID string, qty int32) error {
	for i, line := range f.lines[cartID] {
		if line.VariantID == variantID {
			f.lines[cartID][i].Qty += qty
			return nil
		}
	}
	v := f.variants[variantID]
	f.lines[cartID] = append(f.lines[cartID], repo.CartLine{
		CartID: cartID, ProductID: productID, VariantID: variantID,
		Qty: qty, Price: v.Price, ComparePrice: v.ComparePrice, Stock: v.Stock,
	})
	return nil
}

func (f *fakeStore) SetItemQty(_ context.Context, cartID, variantID string, qty int32) error {
	for i, line := range f.lines[cartID] {
		if line.VariantID == variantID {
			f.lines[cartID][i].Qty = qty
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeStore) RemoveItem(_ context.Context, cartID, variantID string) error {
	out := f.lines[cartID][:0]
	for _, line := range f.lines[cartID] {
		if line.VariantID != variantID {
			out = append(out, line)
		}
	}
	f.lines[cartID] = out
	return nil
}

func (f *fakeStore) Clear(_ context.Context, cartID string) error {
	delete(f.lines, cartID)
	return nil
}

func (f *fakeStore) SetVoucher(_ context.Context, cartID, code string) error {
	cart := f.carts[cartID]
	cart.VoucherCode = code
	f.carts[cartID] = cart
	return nil
}

func (f *fakeStore) Merge(_ context.Context, from, into string) error {
	f.merged = append(f.merged, [2]string{from, into})
	f.lines[into] = append(f.lines[into], f.lines[from]...)
	delete(f.lines, from)
	delete(f.carts, from)
	return nil
}

func (f *fakeStore) Variant(_ context.Context, variantID string) (repo.Variant, error) {
	v, ok := f.variants[variantID]
	if !ok {
		return repo.Variant{}, pgx.ErrNoRows
	}
	return v, nil
}

type fakeVoucherData struct {
	vouchers map[string]repo.Voucher
}

func (f *fakeVoucherData) VoucherByCode(_ context.Context, code string) (repo.Voucher, error) {
	v, ok := f.vouchers[code]
	if !ok {
		return repo.Voucher{}, pgx.ErrNoRows
	}
	return v, nil
}

func (f *fakeVoucherData) OrderCount(context.Context, string) (int64, error) { return 3, nil }

func (f *fakeVoucherData) UsageCount(context.Context, string, string) (int64, error) { return 0, nil }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func activeVoucher(code string, kind string, value decimal.Decimal) repo.Voucher {
	now := time.Now()
	return repo.Voucher{
		ID: "v-" + code, Code: code, Kind: kind, Value: value,
		MaxUsesPerUser: 1, IsActive: true,
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour),
	}
}

func newTestService(store *fakeStore, data voucher.Data) *Service {
	return &Service{
		Store:     store,
		Validator: &voucher.Validator{Data: data},
		Rules: pricing.Rules{
			TaxRate:         dec("0.10"),
			ShippingFlatFee: dec("10.00"),
		},
	}
}

func seedVariant(store *fakeStore, id string, price string, stock int32) {
	store.variants[id] = repo.Variant{ID: id, ProductID: "p-" + id, Price: dec(price), Stock: stock}
}

func TestAddChecksStockAdvisory(t *testing.T) {
	store := newFakeStore()
	seedVariant(store, "v1", "25.00", 3)
	svc := newTestService(store, &fakeVoucherData{})

	if err := svc.Add(context.Background(), "c1", "v1", 5); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if err := svc.Add(context.Background(), "c1", "v1", 3); err != nil {
		t.Fatal(err)
	}
	if got := store.lines["c1"][0]; got.ProductID != "p-v1" || got.Qty != 3 {
		t.Fatalf("unexpected line %+v", got)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeVoucherData{})

	if err := svc.Add(context.Background(), "c1", "v1", 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero qty, got %v", err)
	}
	if err := svc.Add(context.Background(), "c1", "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown variant, got %v", err)
	}
}

func TestSetQtyZeroRemovesLine(t *testing.T) {
	store := newFakeStore()
	seedVariant(store, "v1", "25.00", 10)
	svc := newTestService(store, &fakeVoucherData{})

	if err := svc.Add(context.Background(), "c1", "v1", 2); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetQty(context.Background(), "c1", "v1", 0); err != nil {
		t.Fatal(err)
	}
	if len(store.lines["c1"]) != 0 {
		t.Fatalf("expected empty cart, got %+v", store.lines["c1"])
	}
}

func TestApplyVoucherAttachesValidCode(t *testing.T) {
	store := newFakeStore()
	seedVariant(store, "v1", "50.00", 10)
	data := &fakeVoucherData{vouchers: map[string]repo.Voucher{
		"SAVE10": activeVoucher("SAVE10", voucher.KindFixed, dec("10.00")),
	}}
	svc := newTestService(store, data)

	if _, err := svc.Ensure(context.Background(), "u1", ""); err != nil {
		t.Fatal(err)
	}
	if err := svc.Add(context.Background(), "cart-u1", "v1", 2); err != nil {
		t.Fatal(err)
	}
	quote, err := svc.ApplyVoucher(context.Background(), "cart-u1", "u1", "save10")
	if err != nil {
		t.Fatal(err)
	}
	if store.carts["cart-u1"].VoucherCode != "SAVE10" {
		t.Fatalf("expected normalized code attached, got %q", store.carts["cart-u1"].VoucherCode)
	}
	// 100 subtotal, 10 off, 10% tax on 90, 10 shipping.
	if !quote.Totals.Total.Equal(dec("109.00")) {
		t.Fatalf("got total %s", quote.Totals.Total)
	}
}

func TestApplyVoucherSurfacesEligibilityErrors(t *testing.T) {
	store := newFakeStore()
	seedVariant(store, "v1", "5.00", 10)
	v := activeVoucher("BIG", voucher.KindFixed, dec("10.00"))
	v.MinPurchase = dec("100.00")
	data := &fakeVoucherData{vouchers: map[string]repo.Voucher{"BIG": v}}
	svc := newTestService(store, data)

	if err := svc.Add(context.Background(), "cart-u1", "v1", 1); err != nil {
		t.Fatal(err)
	}
	_, err := svc.ApplyVoucher(context.Background(), "cart-u1", "u1", "BIG")
	if !errors.Is(err, voucher.ErrBelowMinimumPurchase) {
		t.Fatalf("expected ErrBelowMinimumPurchase, got %v", err)
	}
	if store.carts["cart-u1"].VoucherCode != "" {
		t.Fatal("failed validation must not attach the code")
	}
}

func TestViewReportsStaleVoucherWithoutDiscount(t *testing.T) {
	store := newFakeStore()
	seedVariant(store, "v1", "50.00", 10)
	expired := activeVoucher("OLD", voucher.KindFixed, dec("10.00"))
	expired.EndsAt = time.Now().Add(-time.Minute)
	data := &fakeVoucherData{vouchers: map[string]repo.Voucher{"OLD": expired}}
	svc := newTestService(store, data)

	cart, _ := store.EnsureForUser(context.Background(), "u1", 0)
	if err := svc.Add(context.Background(), cart.ID, "v1", 2); err != nil {
		t.Fatal(err)
	}
	cart.VoucherCode = "OLD"

	quote, err := svc.View(context.Background(), cart, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if quote.VoucherError == "" {
		t.Fatal("expected stale voucher to be reported")
	}
	if !quote.Totals.Discount.IsZero() {
		t.Fatalf("stale voucher must not discount, got %s", quote.Totals.Discount)
	}
}

func TestFreeShippingVoucherDiscountsShippingOnly(t *testing.T) {
	store := newFakeStore()
	seedVariant(store, "v1", "100.00", 10)
	data := &fakeVoucherData{vouchers: map[string]repo.Voucher{
		"SHIPFREE": activeVoucher("SHIPFREE", voucher.KindFreeShipping, decimal.Zero),
	}}
	svc := newTestService(store, data)

	if err := svc.Add(context.Background(), "cart-u1", "v1", 1); err != nil {
		t.Fatal(err)
	}
	quote, err := svc.ApplyVoucher(context.Background(), "cart-u1", "u1", "SHIPFREE")
	if err != nil {
		t.Fatal(err)
	}
	// Tax still applies to the full 100; only shipping is waived.
	if !quote.Totals.Tax.Equal(dec("10.00")) {
		t.Fatalf("got tax %s", quote.Totals.Tax)
	}
	if !quote.Totals.Total.Equal(dec("110.00")) {
		t.Fatalf("got total %s", quote.Totals.Total)
	}
}

func TestMergeOnLogin(t *testing.T) {
	store := newFakeStore()
	seedVariant(store, "v1", "10.00", 10)
	svc := newTestService(store, &fakeVoucherData{})

	anonCart, _ := store.EnsureAnonymous(context.Background(), "anon-1", 0)
	if err := svc.Add(context.Background(), anonCart.ID, "v1", 2); err != nil {
		t.Fatal(err)
	}

	userCart, err := svc.MergeOnLogin(context.Background(), "u1", "anon-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(store.merged) != 1 {
		t.Fatalf("expected one merge, got %v", store.merged)
	}
	if len(store.lines[userCart.ID]) != 1 || store.lines[userCart.ID][0].Qty != 2 {
		t.Fatalf("expected merged line, got %+v", store.lines[userCart.ID])
	}
}
