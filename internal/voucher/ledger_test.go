package voucher

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/repo"
)

type stubClaimer struct {
	granted bool
	err     error
	calls   int
}

func (s *stubClaimer) ClaimUsage(_ context.Context, _ repo.DB, _, _, _ string, _ decimal.Decimal) (bool, error) {
	s.calls++
	return s.granted, s.err
}

func TestClaimGrantsSlot(t *testing.T) {
	claimer := &stubClaimer{granted: true}
	l := Ledger{Vouchers: claimer}

	err := l.Claim(context.Background(), nil, repo.Voucher{ID: "v1", Code: "SAVE10"}, "u1", "o1", dec("10.00"))
	if err != nil {
		t.Fatal(err)
	}
	if claimer.calls != 1 {
		t.Fatalf("expected one claim attempt, got %d", claimer.calls)
	}
}

func TestClaimSurfacesExhaustion(t *testing.T) {
	l := Ledger{Vouchers: &stubClaimer{granted: false}}

	err := l.Claim(context.Background(), nil, repo.Voucher{ID: "v1", Code: "ONEUSE"}, "u1", "o1", dec("10.00"))
	if !errors.Is(err, ErrGloballyExhausted) {
		t.Fatalf("expected ErrGloballyExhausted, got %v", err)
	}
}

func TestClaimTreatsDuplicateOrderAsClaimed(t *testing.T) {
	claimer := &stubClaimer{err: &pgconn.PgError{Code: "23505", ConstraintName: "voucher_usages_voucher_id_order_id_key"}}
	l := Ledger{Vouchers: claimer}

	if err := l.Claim(context.Background(), nil, repo.Voucher{ID: "v1", Code: "SAVE10"}, "u1", "o1", dec("10.00")); err != nil {
		t.Fatalf("duplicate claim should report success, got %v", err)
	}
}

func TestClaimWrapsStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	l := Ledger{Vouchers: &stubClaimer{err: boom}}

	err := l.Claim(context.Background(), nil, repo.Voucher{ID: "v1", Code: "SAVE10"}, "u1", "o1", dec("10.00"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if errors.Is(err, ErrGloballyExhausted) {
		t.Fatal("store error must not read as exhaustion")
	}
}
