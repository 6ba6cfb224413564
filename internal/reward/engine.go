package reward

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/config"
	"github.com/auroramart/backend-mart/internal/events"
	"github.com/auroramart/backend-mart/internal/lock"
	"github.com/auroramart/backend-mart/internal/obs"
	"github.com/auroramart/backend-mart/internal/repo"
	"github.com/auroramart/backend-mart/internal/voucher"
)

// CodePrefix returns the reward voucher code prefix for a user. Earned
// milestones are detected by this prefix plus payout equality, so the engine
// stays idempotent without a separate grant table.
func CodePrefix(userID string) string {
	return "REWARD-" + userID + "-"
}

// Data is the persistence slice the engine needs.
type Data interface {
	QualifyingSubtotal(ctx context.Context, userID string) (decimal.Decimal, error)
	RewardsByUser(ctx context.Context, userID string) ([]repo.Voucher, error)
	MintReward(ctx context.Context, v repo.Voucher) (repo.Voucher, error)
}

// PGData backs Data with Postgres.
type PGData struct {
	Pool     repo.DB
	Vouchers repo.VoucherRepo
	Orders   repo.OrderRepo
}

func (d *PGData) QualifyingSubtotal(ctx context.Context, userID string) (decimal.Decimal, error) {
	return d.Orders.SumQualifyingSubtotal(ctx, d.Pool, userID, []string{"confirmed", "delivered"})
}

func (d *PGData) RewardsByUser(ctx context.Context, userID string) ([]repo.Voucher, error) {
	return d.Vouchers.ListByUserPrefix(ctx, d.Pool, userID, CodePrefix(userID))
}

func (d *PGData) MintReward(ctx context.Context, v repo.Voucher) (repo.Voucher, error) {
	return d.Vouchers.Create(ctx, d.Pool, v)
}

const mintRetries = 10

// Engine grants milestone reward vouchers from cumulative qualifying spend.
// It is safe to invoke repeatedly for the same user; at most the single
// highest unearned threshold is granted per evaluation.
type Engine struct {
	Data Data
	Cfg  *config.Config
	Lock lock.Locker
	Bus  *events.Bus
	Log  zerolog.Logger

	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// OnQualifyingOrder is the fulfillment hook. Errors are logged, never
// propagated; milestone evaluation must not block order state changes.
func (e *Engine) OnQualifyingOrder(ctx context.Context, userID string) {
	if _, err := e.Evaluate(ctx, userID); err != nil {
		e.Log.Error().Err(err).Str("user_id", userID).Msg("milestone evaluation failed")
	}
}

// Evaluate checks the user's cumulative qualifying spend against the
// configured thresholds and mints a reward voucher for the highest threshold
// not yet earned. Returns nil when nothing new was earned.
func (e *Engine) Evaluate(ctx context.Context, userID string) (*repo.Voucher, error) {
	if userID == "" || len(e.Cfg.RewardThresholds) == 0 {
		return nil, nil
	}
	var granted *repo.Voucher
	run := func(ctx context.Context) error {
		var err error
		granted, err = e.evaluate(ctx, userID)
		return err
	}
	if e.Lock.R != nil {
		if err := e.Lock.WithLock(ctx, "reward:"+userID, 10*time.Second, run); err != nil {
			return nil, err
		}
		return granted, nil
	}
	return granted, run(ctx)
}

func (e *Engine) evaluate(ctx context.Context, userID string) (*repo.Voucher, error) {
	total, err := e.Data.QualifyingSubtotal(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("qualifying subtotal: %w", err)
	}
	earned, err := e.Data.RewardsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list earned rewards: %w", err)
	}
	earnedPayouts := make(map[string]bool, len(earned))
	for _, v := range earned {
		earnedPayouts[v.Value.StringFixed(2)] = true
	}

	thresholds := e.Cfg.SortedRewardThresholds()
	for i := len(thresholds) - 1; i >= 0; i-- {
		threshold := thresholds[i]
		if total.LessThan(threshold) {
			continue
		}
		payout, ok := e.Cfg.RewardPayout(threshold)
		if !ok || earnedPayouts[payout.StringFixed(2)] {
			continue
		}
		return e.mint(ctx, userID, threshold, payout)
	}
	return nil, nil
}

// mint creates the reward voucher, retrying on code collisions. After the
// retry budget the grant is skipped and logged; the next qualifying order
// re-evaluates from scratch.
func (e *Engine) mint(ctx context.Context, userID string, threshold, payout decimal.Decimal) (*repo.Voucher, error) {
	now := e.now()
	years := e.Cfg.RewardVoucherValidYears
	if years <= 0 {
		years = 10
	}
	for attempt := 0; attempt < mintRetries; attempt++ {
		row := repo.Voucher{
			Code:           newRewardCode(userID),
			Name:           fmt.Sprintf("Milestone reward %s", threshold.StringFixed(2)),
			Description:    fmt.Sprintf("Thank-you voucher for reaching %s in qualifying purchases", threshold.StringFixed(2)),
			Kind:           voucher.KindFixed,
			Value:          payout,
			MinPurchase:    e.Cfg.RewardVoucherMinSpend,
			UserID:         userID,
			// no global cap; the per-user limit is the real guard on a
			// user-scoped voucher
			MaxUses:        nil,
			MaxUsesPerUser: 1,
			IsActive:       true,
			StartsAt:       now,
			EndsAt:         now.AddDate(years, 0, 0),
		}
		created, err := e.Data.MintReward(ctx, row)
		if err != nil {
			if repo.IsUniqueViolation(err) {
				continue
			}
			return nil, fmt.Errorf("mint reward voucher: %w", err)
		}
		e.afterGrant(ctx, userID, created, threshold, payout)
		return &created, nil
	}
	e.Log.Warn().Str("user_id", userID).Str("threshold", threshold.StringFixed(2)).
		Msg("reward code collisions exhausted retry budget, grant skipped")
	return nil, nil
}

func (e *Engine) afterGrant(ctx context.Context, userID string, v repo.Voucher, threshold, payout decimal.Decimal) {
	if obs.RewardsGrantedTotal != nil {
		obs.RewardsGrantedTotal.WithLabelValues(threshold.StringFixed(2)).Inc()
	}
	e.Log.Info().Str("user_id", userID).Str("voucher_code", v.Code).
		Str("amount", payout.StringFixed(2)).Msg("milestone reward granted")
	if e.Bus == nil {
		return
	}
	payload := map[string]any{
		"user_id":      userID,
		"voucher_code": v.Code,
		"amount":       payout,
	}
	if _, err := e.Bus.Emit(ctx, events.TopicRewardGranted, userID, payload); err != nil {
		e.Log.Warn().Err(err).Str("user_id", userID).Msg("milestone event emit failed")
	}
}

// newRewardCode builds REWARD-{userID}-{8 uppercase hex chars}.
func newRewardCode(userID string) string {
	var raw [4]byte
	_, _ = rand.Read(raw[:])
	return CodePrefix(userID) + strings.ToUpper(hex.EncodeToString(raw[:]))
}
