package order

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auroramart/backend-mart/internal/repo"
)

// Tx is the transactional slice of the store. Every mutation that must be
// atomic with a stock movement goes through here.
type Tx interface {
	OrderForUpdate(ctx context.Context, orderID string) (repo.Order, error)
	Items(ctx context.Context, orderID string) ([]repo.OrderItem, error)
	SetStatus(ctx context.Context, orderID string, status Status) error
	SetPaymentStatus(ctx context.Context, orderID string, status PaymentStatus) error
	SetExpectedDelivery(ctx context.Context, orderID string, date time.Time) error
	RestoreStock(ctx context.Context, reqs []repo.StockRequest) error
	DeleteOrder(ctx context.Context, orderID string) error
}

// Store is the persistence surface the order service needs.
type Store interface {
	Get(ctx context.Context, orderID string) (repo.Order, error)
	GetByNumber(ctx context.Context, number string) (repo.Order, error)
	Items(ctx context.Context, orderID string) ([]repo.OrderItem, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]repo.Order, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	SetLocation(ctx context.Context, orderID string, location Location) error
	SetTracking(ctx context.Context, orderID, trackingNumber string) error
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// PGStore backs Store with Postgres.
type PGStore struct {
	Pool     *pgxpool.Pool
	Orders   repo.OrderRepo
	Variants repo.VariantRepo
}

type pgTx struct {
	tx       pgx.Tx
	orders   repo.OrderRepo
	variants repo.VariantRepo
}

func (s *PGStore) Get(ctx context.Context, orderID string) (repo.Order, error) {
	return s.Orders.GetByID(ctx, s.Pool, orderID)
}

func (s *PGStore) GetByNumber(ctx context.Context, number string) (repo.Order, error) {
	return s.Orders.GetByNumber(ctx, s.Pool, number)
}

func (s *PGStore) Items(ctx context.Context, orderID string) ([]repo.OrderItem, error) {
	return s.Orders.Items(ctx, s.Pool, orderID)
}

func (s *PGStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]repo.Order, error) {
	return s.Orders.ListByUser(ctx, s.Pool, userID, limit, offset)
}

func (s *PGStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	return s.Orders.CountByUser(ctx, s.Pool, userID)
}

func (s *PGStore) SetLocation(ctx context.Context, orderID string, location Location) error {
	return s.Orders.SetLocation(ctx, s.Pool, orderID, string(location))
}

func (s *PGStore) SetTracking(ctx context.Context, orderID, trackingNumber string) error {
	return s.Orders.SetTracking(ctx, s.Pool, orderID, trackingNumber)
}

func (s *PGStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	return repo.WithTx(ctx, s.Pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx, orders: s.Orders, variants: s.Variants})
	})
}

func (t *pgTx) OrderForUpdate(ctx context.Context, orderID string) (repo.Order, error) {
	return t.orders.GetByIDForUpdate(ctx, t.tx, orderID)
}

func (t *pgTx) Items(ctx context.Context, orderID string) ([]repo.OrderItem, error) {
	return t.orders.Items(ctx, t.tx, orderID)
}

func (t *pgTx) SetStatus(ctx context.Context, orderID string, status Status) error {
	return t.orders.SetStatus(ctx, t.tx, orderID, string(status))
}

func (t *pgTx) SetPaymentStatus(ctx context.Context, orderID string, status PaymentStatus) error {
	return t.orders.SetPaymentStatus(ctx, t.tx, orderID, string(status))
}

func (t *pgTx) SetExpectedDelivery(ctx context.Context, orderID string, date time.Time) error {
	return t.orders.SetExpectedDelivery(ctx, t.tx, orderID, date)
}

func (t *pgTx) RestoreStock(ctx context.Context, reqs []repo.StockRequest) error {
	return t.variants.Restore(ctx, t.tx, reqs)
}

func (t *pgTx) DeleteOrder(ctx context.Context, orderID string) error {
	return t.orders.Delete(ctx, t.tx, orderID)
}
