package voucher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/repo"
)

type stubData struct {
	vouchers   map[string]repo.Voucher
	orderCount int64
	usageCount int64
}

func (s *stubData) VoucherByCode(_ context.Context, code string) (repo.Voucher, error) {
	v, ok := s.vouchers[code]
	if !ok {
		return repo.Voucher{}, pgx.ErrNoRows
	}
	return v, nil
}

func (s *stubData) OrderCount(context.Context, string) (int64, error) {
	return s.orderCount, nil
}

func (s *stubData) UsageCount(context.Context, string, string) (int64, error) {
	return s.usageCount, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func baseVoucher() repo.Voucher {
	return repo.Voucher{
		ID:             "00000000-0000-0000-0000-000000000001",
		Code:           "SAVE10",
		Kind:           KindFixed,
		Value:          dec("10.00"),
		MinPurchase:    dec("0"),
		MaxUsesPerUser: 1,
		IsActive:       true,
		StartsAt:       time.Now().Add(-time.Hour),
		EndsAt:         time.Now().Add(time.Hour),
	}
}

func validatorWith(v repo.Voucher, data *stubData) *Validator {
	if data == nil {
		data = &stubData{}
	}
	if data.vouchers == nil {
		data.vouchers = map[string]repo.Voucher{}
	}
	data.vouchers[v.Code] = v
	return &Validator{Data: data}
}

func TestValidateNormalizesCode(t *testing.T) {
	val := validatorWith(baseVoucher(), nil)
	got, err := val.Validate(context.Background(), "  save10 ", "u-1", nil, dec("50.00"))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.Code != "SAVE10" {
		t.Fatalf("code = %s", got.Code)
	}
}

func TestValidateCodeNotFound(t *testing.T) {
	val := validatorWith(baseVoucher(), nil)
	_, err := val.Validate(context.Background(), "NOPE", "u-1", nil, dec("50.00"))
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateWindow(t *testing.T) {
	v := baseVoucher()
	v.EndsAt = time.Now().Add(-time.Minute)
	val := validatorWith(v, nil)
	_, err := val.Validate(context.Background(), v.Code, "u-1", nil, dec("50.00"))
	if !errors.Is(err, ErrNotCurrentlyValid) {
		t.Fatalf("err = %v", err)
	}

	v2 := baseVoucher()
	v2.IsActive = false
	val = validatorWith(v2, nil)
	if _, err := val.Validate(context.Background(), v2.Code, "u-1", nil, dec("50.00")); !errors.Is(err, ErrNotCurrentlyValid) {
		t.Fatalf("inactive err = %v", err)
	}
}

func TestValidateGlobalCap(t *testing.T) {
	v := baseVoucher()
	limit := int32(5)
	v.MaxUses = &limit
	v.CurrentUses = 5
	val := validatorWith(v, nil)
	_, err := val.Validate(context.Background(), v.Code, "u-1", nil, dec("50.00"))
	if !errors.Is(err, ErrGloballyExhausted) {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateUserScoped(t *testing.T) {
	v := baseVoucher()
	v.UserID = "owner-1"
	val := validatorWith(v, nil)
	if _, err := val.Validate(context.Background(), v.Code, "someone-else", nil, dec("50.00")); !errors.Is(err, ErrNotYours) {
		t.Fatalf("err = %v", err)
	}
	if _, err := val.Validate(context.Background(), v.Code, "owner-1", nil, dec("50.00")); err != nil {
		t.Fatalf("owner should pass: %v", err)
	}
}

func TestValidateFirstTimeOnly(t *testing.T) {
	v := baseVoucher()
	v.FirstTimeOnly = true
	data := &stubData{}
	val := validatorWith(v, data)
	if _, err := val.Validate(context.Background(), v.Code, "u-1", nil, dec("50.00")); err != nil {
		t.Fatalf("zero prior orders should pass: %v", err)
	}
	data.orderCount = 1
	if _, err := val.Validate(context.Background(), v.Code, "u-1", nil, dec("50.00")); !errors.Is(err, ErrNotFirstTime) {
		t.Fatalf("err = %v", err)
	}
}

func TestValidatePerUserCap(t *testing.T) {
	v := baseVoucher()
	data := &stubData{usageCount: 1}
	val := validatorWith(v, data)
	if _, err := val.Validate(context.Background(), v.Code, "u-1", nil, dec("50.00")); !errors.Is(err, ErrPerUserExhausted) {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateMinPurchaseBoundary(t *testing.T) {
	v := baseVoucher()
	v.MinPurchase = dec("100.00")
	val := validatorWith(v, nil)

	_, err := val.Validate(context.Background(), v.Code, "u-1", nil, dec("99.99"))
	if !errors.Is(err, ErrBelowMinimumPurchase) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "100.00") || !strings.Contains(err.Error(), "99.99") {
		t.Fatalf("message must include required and actual amounts: %q", err)
	}

	if _, err := val.Validate(context.Background(), v.Code, "u-1", nil, dec("100.00")); err != nil {
		t.Fatalf("exact threshold must pass: %v", err)
	}
}

func TestValidateAllowLists(t *testing.T) {
	v := baseVoucher()
	v.ProductIDs = []string{"p-1"}
	v.CategoryIDs = []string{"c-9"}
	val := validatorWith(v, nil)

	lines := []Line{{ProductID: "p-2", CategoryID: "c-1"}}
	if _, err := val.Validate(context.Background(), v.Code, "u-1", lines, dec("50.00")); !errors.Is(err, ErrNoEligibleItems) {
		t.Fatalf("err = %v", err)
	}

	byProduct := []Line{{ProductID: "p-1", CategoryID: "c-1"}}
	if _, err := val.Validate(context.Background(), v.Code, "u-1", byProduct, dec("50.00")); err != nil {
		t.Fatalf("product match should pass: %v", err)
	}

	byCategory := []Line{{ProductID: "p-2", CategoryID: "c-9"}}
	if _, err := val.Validate(context.Background(), v.Code, "u-1", byCategory, dec("50.00")); err != nil {
		t.Fatalf("category match should pass: %v", err)
	}
}

func TestValidateExcludeSaleItems(t *testing.T) {
	v := baseVoucher()
	v.ExcludeSaleItems = true
	v.ProductIDs = []string{"p-1"}
	val := validatorWith(v, nil)

	// An on-sale line outside the allow-list must not trip the check.
	lines := []Line{
		{ProductID: "p-1", CategoryID: "c-1", OnSale: false},
		{ProductID: "p-2", CategoryID: "c-2", OnSale: true},
	}
	if _, err := val.Validate(context.Background(), v.Code, "u-1", lines, dec("50.00")); err != nil {
		t.Fatalf("sale item outside scope should pass: %v", err)
	}

	onSale := []Line{{ProductID: "p-1", CategoryID: "c-1", OnSale: true}}
	if _, err := val.Validate(context.Background(), v.Code, "u-1", onSale, dec("50.00")); !errors.Is(err, ErrSaleItemsExcluded) {
		t.Fatalf("err = %v", err)
	}
}

func TestReasonCodes(t *testing.T) {
	if ReasonCode(ErrBelowMinimumPurchase) != "BELOW_MINIMUM_PURCHASE" {
		t.Fatal("reason code mismatch")
	}
	if ReasonCode(errors.New("unrelated")) != "" {
		t.Fatal("unrelated errors must not map to a reason")
	}
	if !IsEligibilityError(ErrSaleItemsExcluded) || IsEligibilityError(errors.New("boom")) {
		t.Fatal("eligibility classification broken")
	}
}
