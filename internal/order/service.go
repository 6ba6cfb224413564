package order

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/auroramart/backend-mart/internal/events"
	"github.com/auroramart/backend-mart/internal/obs"
	"github.com/auroramart/backend-mart/internal/repo"
)

var (
	// ErrInvalidTransition rejects moves the state machine does not allow.
	ErrInvalidTransition = errors.New("order status transition not allowed")
	// ErrPaymentRequired gates fulfillment past confirmed on settled payment.
	ErrPaymentRequired = errors.New("order payment not settled")
	// ErrNotCancellable rejects customer cancellations outside pending.
	ErrNotCancellable = errors.New("order can no longer be cancelled")
	// ErrNotFound is returned when the order does not exist.
	ErrNotFound = errors.New("order not found")
)

// RewardHook is invoked synchronously after an order commits into a
// qualifying status. Implementations own their error handling; the order
// service never fails a fulfillment transition because of the hook.
type RewardHook interface {
	OnQualifyingOrder(ctx context.Context, userID string)
}

// Service drives the fulfillment state machine.
type Service struct {
	Store   Store
	Bus     *events.Bus
	Rewards RewardHook
	Log     zerolog.Logger

	// Expected delivery window stamped at confirmation, in days.
	DeliveryMinDays int
	DeliveryMaxDays int

	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Transition moves an order to a new fulfillment status, enforcing the
// transition table and the payment gate, restoring stock on cancellation,
// and firing post-commit side effects.
func (s *Service) Transition(ctx context.Context, orderID string, to Status) (repo.Order, error) {
	if !ValidStatus(to) {
		return repo.Order{}, fmt.Errorf("status %q: %w", to, ErrInvalidTransition)
	}
	var ord repo.Order
	err := s.Store.WithinTx(ctx, func(tx Tx) error {
		var err error
		ord, err = tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if !CanTransition(Status(ord.Status), to) {
			return fmt.Errorf("%s -> %s: %w", ord.Status, to, ErrInvalidTransition)
		}
		if RequiresPayment(to) && PaymentStatus(ord.PaymentStatus) != PaymentPaid {
			return fmt.Errorf("payment status %s: %w", ord.PaymentStatus, ErrPaymentRequired)
		}
		if to == StatusCancelled {
			if err := s.restoreStock(ctx, tx, ord.ID); err != nil {
				return err
			}
		}
		if to == StatusConfirmed {
			if err := tx.SetExpectedDelivery(ctx, ord.ID, s.expectedDelivery()); err != nil {
				return err
			}
		}
		return tx.SetStatus(ctx, ord.ID, to)
	})
	if err != nil {
		if obs.OrderTransitionsTotal != nil {
			obs.OrderTransitionsTotal.WithLabelValues(string(to), "rejected").Inc()
		}
		return repo.Order{}, err
	}
	if obs.OrderTransitionsTotal != nil {
		obs.OrderTransitionsTotal.WithLabelValues(string(to), "ok").Inc()
	}
	s.afterTransition(ctx, ord, to)
	ord.Status = string(to)
	return ord, nil
}

// CancelByCustomer cancels the caller's own order. Customers may only cancel
// while the order is still pending; anything later goes through staff.
func (s *Service) CancelByCustomer(ctx context.Context, orderID, userID string) (repo.Order, error) {
	var ord repo.Order
	err := s.Store.WithinTx(ctx, func(tx Tx) error {
		var err error
		ord, err = tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if ord.UserID != userID {
			return ErrNotFound
		}
		if Status(ord.Status) != StatusPending {
			return fmt.Errorf("status %s: %w", ord.Status, ErrNotCancellable)
		}
		if err := s.restoreStock(ctx, tx, ord.ID); err != nil {
			return err
		}
		return tx.SetStatus(ctx, ord.ID, StatusCancelled)
	})
	if err != nil {
		return repo.Order{}, err
	}
	if obs.OrdersCancelledTotal != nil {
		obs.OrdersCancelledTotal.WithLabelValues("customer").Inc()
	}
	s.emit(ctx, events.TopicOrderCanceled, ord)
	ord.Status = string(StatusCancelled)
	return ord, nil
}

// HandlePaymentOutcome reconciles a gateway callback with the order.
// A paid outcome confirms a pending order; a failed outcome before
// confirmation restores stock and deletes the order entirely, since an
// unpaid, never-confirmed order has no customer-visible identity yet.
func (s *Service) HandlePaymentOutcome(ctx context.Context, orderID string, outcome PaymentStatus) (repo.Order, error) {
	if !ValidPaymentStatus(outcome) {
		return repo.Order{}, fmt.Errorf("payment status %q: %w", outcome, ErrInvalidTransition)
	}
	var (
		ord     repo.Order
		deleted bool
	)
	err := s.Store.WithinTx(ctx, func(tx Tx) error {
		var err error
		ord, err = tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		switch outcome {
		case PaymentPaid:
			if err := tx.SetPaymentStatus(ctx, ord.ID, PaymentPaid); err != nil {
				return err
			}
			if Status(ord.Status) == StatusPending {
				if err := tx.SetExpectedDelivery(ctx, ord.ID, s.expectedDelivery()); err != nil {
					return err
				}
				return tx.SetStatus(ctx, ord.ID, StatusConfirmed)
			}
			return nil
		case PaymentFailed:
			if Status(ord.Status) == StatusPending {
				if err := s.restoreStock(ctx, tx, ord.ID); err != nil {
					return err
				}
				deleted = true
				return tx.DeleteOrder(ctx, ord.ID)
			}
			return tx.SetPaymentStatus(ctx, ord.ID, PaymentFailed)
		case PaymentRefunded:
			if err := tx.SetPaymentStatus(ctx, ord.ID, PaymentRefunded); err != nil {
				return err
			}
			if CanTransition(Status(ord.Status), StatusRefunded) {
				return tx.SetStatus(ctx, ord.ID, StatusRefunded)
			}
			return nil
		default:
			return tx.SetPaymentStatus(ctx, ord.ID, outcome)
		}
	})
	if err != nil {
		return repo.Order{}, err
	}
	switch outcome {
	case PaymentPaid:
		s.emit(ctx, events.TopicOrderPaid, ord)
		if Status(ord.Status) == StatusPending {
			ord.Status = string(StatusConfirmed)
			s.emit(ctx, events.TopicOrderConfirmed, ord)
			s.invokeRewards(ctx, ord.UserID)
		}
		ord.PaymentStatus = string(PaymentPaid)
	case PaymentFailed:
		s.emit(ctx, events.TopicPaymentFailed, ord)
		if deleted {
			s.Log.Info().Str("order_id", ord.ID).Str("order_number", ord.OrderNumber).
				Msg("unconfirmed order deleted after payment failure")
		}
		ord.PaymentStatus = string(PaymentFailed)
	case PaymentRefunded:
		s.emit(ctx, events.TopicOrderRefunded, ord)
		ord.PaymentStatus = string(PaymentRefunded)
	}
	return ord, nil
}

// SetLocation updates the advisory tracking location. No cross-check against
// fulfillment status by design.
func (s *Service) SetLocation(ctx context.Context, orderID string, location Location) error {
	if !ValidLocation(location) {
		return fmt.Errorf("location %q: %w", location, ErrInvalidTransition)
	}
	err := s.Store.SetLocation(ctx, orderID, location)
	if err != nil && repo.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (s *Service) restoreStock(ctx context.Context, tx Tx, orderID string) error {
	items, err := tx.Items(ctx, orderID)
	if err != nil {
		return err
	}
	reqs := make([]repo.StockRequest, 0, len(items))
	for _, item := range items {
		reqs = append(reqs, repo.StockRequest{VariantID: item.VariantID, Qty: item.Qty})
	}
	return tx.RestoreStock(ctx, reqs)
}

func (s *Service) expectedDelivery() time.Time {
	minDays := s.DeliveryMinDays
	maxDays := s.DeliveryMaxDays
	if minDays <= 0 {
		minDays = 3
	}
	if maxDays < minDays {
		maxDays = minDays + 4
	}
	days := minDays + rand.Intn(maxDays-minDays+1)
	return s.now().AddDate(0, 0, days)
}

func (s *Service) afterTransition(ctx context.Context, ord repo.Order, to Status) {
	switch to {
	case StatusConfirmed:
		s.emit(ctx, events.TopicOrderConfirmed, ord)
	case StatusDelivered:
		s.emit(ctx, events.TopicOrderDelivered, ord)
	case StatusCancelled:
		if obs.OrdersCancelledTotal != nil {
			obs.OrdersCancelledTotal.WithLabelValues("staff").Inc()
		}
		s.emit(ctx, events.TopicOrderCanceled, ord)
	case StatusRefunded:
		s.emit(ctx, events.TopicOrderRefunded, ord)
	}
	if Qualifying(to) {
		s.invokeRewards(ctx, ord.UserID)
	}
}

// invokeRewards calls the milestone engine synchronously after commit.
// Failures are the hook's problem; fulfillment never rolls back for them.
func (s *Service) invokeRewards(ctx context.Context, userID string) {
	if s.Rewards == nil || userID == "" {
		return
	}
	s.Rewards.OnQualifyingOrder(ctx, userID)
}

func (s *Service) emit(ctx context.Context, topic string, ord repo.Order) {
	if s.Bus == nil {
		return
	}
	payload := map[string]any{
		"order_id":     ord.ID,
		"order_number": ord.OrderNumber,
		"user_id":      ord.UserID,
		"total":        ord.Total,
	}
	if _, err := s.Bus.Emit(ctx, topic, ord.ID, payload); err != nil {
		s.Log.Warn().Err(err).Str("topic", topic).Str("order_id", ord.ID).Msg("event emit failed")
	}
}
