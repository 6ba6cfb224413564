package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/repo"
)

// memStore implements Store and Tx over in-memory maps.
type memStore struct {
	orders   map[string]repo.Order
	items    map[string][]repo.OrderItem
	stock    map[string]int32
	delivery map[string]time.Time
	deleted  map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		orders:   map[string]repo.Order{},
		items:    map[string][]repo.OrderItem{},
		stock:    map[string]int32{},
		delivery: map[string]time.Time{},
		deleted:  map[string]bool{},
	}
}

func (m *memStore) Get(_ context.Context, id string) (repo.Order, error) {
	ord, ok := m.orders[id]
	if !ok {
		return repo.Order{}, pgx.ErrNoRows
	}
	return ord, nil
}

func (m *memStore) GetByNumber(_ context.Context, number string) (repo.Order, error) {
	for _, ord := range m.orders {
		if ord.OrderNumber == number {
			return ord, nil
		}
	}
	return repo.Order{}, pgx.ErrNoRows
}

func (m *memStore) Items(_ context.Context, id string) ([]repo.OrderItem, error) {
	return m.items[id], nil
}

func (m *memStore) ListByUser(_ context.Context, userID string, _, _ int) ([]repo.Order, error) {
	var out []repo.Order
	for _, ord := range m.orders {
		if ord.UserID == userID {
			out = append(out, ord)
		}
	}
	return out, nil
}

func (m *memStore) CountByUser(_ context.Context, userID string) (int64, error) {
	rows, _ := m.ListByUser(context.Background(), userID, 0, 0)
	return int64(len(rows)), nil
}

func (m *memStore) SetLocation(_ context.Context, id string, location Location) error {
	ord, ok := m.orders[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ord.Location = string(location)
	m.orders[id] = ord
	return nil
}

func (m *memStore) SetTracking(_ context.Context, id, number string) error {
	ord, ok := m.orders[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ord.TrackingNumber = number
	m.orders[id] = ord
	return nil
}

func (m *memStore) WithinTx(_ context.Context, fn func(Tx) error) error {
	return fn(m)
}

func (m *memStore) OrderForUpdate(ctx context.Context, id string) (repo.Order, error) {
	return m.Get(ctx, id)
}

func (m *memStore) SetStatus(_ context.Context, id string, status Status) error {
	ord := m.orders[id]
	ord.Status = string(status)
	m.orders[id] = ord
	return nil
}

func (m *memStore) SetPaymentStatus(_ context.Context, id string, status PaymentStatus) error {
	ord := m.orders[id]
	ord.PaymentStatus = string(status)
	m.orders[id] = ord
	return nil
}

func (m *memStore) SetExpectedDelivery(_ context.Context, id string, date time.Time) error {
	m.delivery[id] = date
	return nil
}

func (m *memStore) RestoreStock(_ context.Context, reqs []repo.StockRequest) error {
	for _, req := range reqs {
		m.stock[req.VariantID] += req.Qty
	}
	return nil
}

func (m *memStore) DeleteOrder(_ context.Context, id string) error {
	delete(m.orders, id)
	m.deleted[id] = true
	return nil
}

type recordingHook struct {
	users []string
}

func (r *recordingHook) OnQualifyingOrder(_ context.Context, userID string) {
	r.users = append(r.users, userID)
}

func seedOrder(m *memStore, id string, status Status, payment PaymentStatus) {
	m.orders[id] = repo.Order{
		ID:            id,
		OrderNumber:   "ORD-AB12CD34",
		UserID:        "u1",
		Status:        string(status),
		PaymentStatus: string(payment),
		Location:      string(LocationWarehouse),
		Total:         decimal.NewFromInt(50),
	}
	m.items[id] = []repo.OrderItem{
		{OrderID: id, VariantID: "v1", Qty: 2},
		{OrderID: id, VariantID: "v2", Qty: 1},
	}
}

func newService(m *memStore, hook RewardHook) *Service {
	return &Service{
		Store:   m,
		Rewards: hook,
		Log:     zerolog.Nop(),
		Now:     func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestTransitionRejectsSkips(t *testing.T) {
	m := newMemStore()
	seedOrder(m, "o1", StatusPending, PaymentPending)
	svc := newService(m, nil)

	_, err := svc.Transition(context.Background(), "o1", StatusShipped)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if m.orders["o1"].Status != string(StatusPending) {
		t.Fatalf("status must not change on rejection, got %s", m.orders["o1"].Status)
	}
}

func TestTransitionGatesOnPayment(t *testing.T) {
	m := newMemStore()
	seedOrder(m, "o1", StatusConfirmed, PaymentPending)
	svc := newService(m, nil)

	_, err := svc.Transition(context.Background(), "o1", StatusProcessing)
	if !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}

	if err := m.SetPaymentStatus(context.Background(), "o1", PaymentPaid); err != nil {
		t.Fatal(err)
	}
	ord, err := svc.Transition(context.Background(), "o1", StatusProcessing)
	if err != nil {
		t.Fatalf("expected transition to succeed once paid, got %v", err)
	}
	if ord.Status != string(StatusProcessing) {
		t.Fatalf("got status %s", ord.Status)
	}
}

func TestTransitionToConfirmedStampsExpectedDelivery(t *testing.T) {
	m := newMemStore()
	seedOrder(m, "o1", StatusPending, PaymentPending)
	svc := newService(m, nil)

	if _, err := svc.Transition(context.Background(), "o1", StatusConfirmed); err != nil {
		t.Fatal(err)
	}
	date, ok := m.delivery["o1"]
	if !ok {
		t.Fatal("expected delivery date to be stamped")
	}
	days := int(date.Sub(svc.Now()).Hours() / 24)
	if days < 3 || days > 7 {
		t.Fatalf("expected delivery within 3..7 days, got %d", days)
	}
}

func TestDeliveredInvokesRewardHook(t *testing.T) {
	m := newMemStore()
	seedOrder(m, "o1", StatusShipped, PaymentPaid)
	hook := &recordingHook{}
	svc := newService(m, hook)

	if _, err := svc.Transition(context.Background(), "o1", StatusDelivered); err != nil {
		t.Fatal(err)
	}
	if len(hook.users) != 1 || hook.users[0] != "u1" {
		t.Fatalf("expected one reward call for u1, got %v", hook.users)
	}
}

func TestAdminCancelRestoresStock(t *testing.T) {
	m := newMemStore()
	seedOrder(m, "o1", StatusProcessing, PaymentPaid)
	svc := newService(m, nil)

	if _, err := svc.Transition(context.Background(), "o1", StatusCancelled); err != nil {
		t.Fatal(err)
	}
	if m.stock["v1"] != 2 || m.stock["v2"] != 1 {
		t.Fatalf("expected stock restored, got %v", m.stock)
	}
	if m.orders["o1"].Status != string(StatusCancelled) {
		t.Fatalf("got status %s", m.orders["o1"].Status)
	}
}

func TestCustomerCancelOnlyPending(t *testing.T) {
	m := newMemStore()
	seedOrder(m, "o1", StatusConfirmed, PaymentPaid)
	svc := newService(m, nil)

	_, err := svc.CancelByCustomer(context.Background(), "o1", "u1")
	if !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("expected ErrNotCancellable, got %v", err)
	}

	seedOrder(m, "o2", StatusPending, PaymentPending)
	ord, err := svc.CancelByCustomer(context.Background(), "o2", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if ord.Status != string(StatusCancelled) {
		t.Fatalf("got status %s", ord.Status)
	}
	if m.stock["v1"] != 2 {
		t.Fatalf("expected stock restored, got %v", m.stock)
	}
}

func TestCustomerCancelHidesForeignOrders(t *testing.T) {
	m := newMemStore()
	seedOrder(m, "o1", StatusPending, PaymentPending)
	svc := newService(m, nil)

	_, err := svc.CancelByCustomer(context.Background(), "o1", "someone-else")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign order, got %v", err)
	}
}

func TestPaymentPaidConfirmsPendingOrder(t *testing.T) {
	m := newMemStore()
	seedOrder(m, "o1", StatusPending, PaymentPending)
	hook := &recordingHook{}
	svc := newService(m, hook)

	ord, err := svc.HandlePaymentOutcome(context.Background(), "o1", PaymentPaid)
	if err != nil {
		t.Fatal(err)
	}
	if ord.Status != string(StatusConfirmed) || ord.PaymentStatus != string(PaymentPaid) {
		t.Fatalf("got %s/%s", ord.Status, ord.PaymentStatus)
	}
	if _, ok := m.delivery["o1"]; !ok {
		t.Fatal("expected delivery date to be stamped on confirmation")
	}
	if len(hook.users) != 1 {
		t.Fatalf("confirmed order must qualify for rewards, calls=%v", hook.users)
	}
}

func TestPaymentFailedBeforeConfirmationDeletesOrder(t *testing.T) {
	m := newMemStore()
	seedOrder(m, "o1", StatusPending, PaymentPending)
	svc := newService(m, nil)

	if _, err := svc.HandlePaymentOutcome(context.Background(), "o1", PaymentFailed); err != nil {
		t.Fatal(err)
	}
	if !m.deleted["o1"] {
		t.Fatal("expected order to be deleted")
	}
	if m.stock["v1"] != 2 || m.stock["v2"] != 1 {
		t.Fatalf("expected stock restored before deletion, got %v", m.stock)
	}
}

func TestPaymentFailedAfterConfirmationKeepsOrder(t *testing.T) {
	m := newMemStore()
	seedOrder(m, "o1", StatusConfirmed, PaymentPaid)
	svc := newService(m, nil)

	if _, err := svc.HandlePaymentOutcome(context.Background(), "o1", PaymentFailed); err != nil {
		t.Fatal(err)
	}
	if m.deleted["o1"] {
		t.Fatal("confirmed orders must survive a failed callback")
	}
	if m.orders["o1"].PaymentStatus != string(PaymentFailed) {
		t.Fatalf("got payment status %s", m.orders["o1"].PaymentStatus)
	}
}

func TestPaymentRefundMovesOrderToRefunded(t *testing.T) {
	m := newMemStore()
	seedOrder(m, "o1", StatusDelivered, PaymentPaid)
	svc := newService(m, nil)

	ord, err := svc.HandlePaymentOutcome(context.Background(), "o1", PaymentRefunded)
	if err != nil {
		t.Fatal(err)
	}
	if ord.PaymentStatus != string(PaymentRefunded) {
		t.Fatalf("got payment status %s", ord.PaymentStatus)
	}
	if m.orders["o1"].Status != string(StatusRefunded) {
		t.Fatalf("got status %s", m.orders["o1"].Status)
	}
}

func TestSetLocationIsAdvisory(t *testing.T) {
	m := newMemStore()
	seedOrder(m, "o1", StatusPending, PaymentPending)
	svc := newService(m, nil)

	// A pending order may already report a location; no cross-check applies.
	if err := svc.SetLocation(context.Background(), "o1", LocationOutForDelivery); err != nil {
		t.Fatal(err)
	}
	if m.orders["o1"].Location != string(LocationOutForDelivery) {
		t.Fatalf("got location %s", m.orders["o1"].Location)
	}
	if err := svc.SetLocation(context.Background(), "o1", Location("moon")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected unknown location rejection, got %v", err)
	}
}
