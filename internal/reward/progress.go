package reward

import (
	"context"

	"github.com/shopspring/decimal"
)

// Milestone describes one configured threshold and the user's standing
// against it.
type Milestone struct {
	Threshold decimal.Decimal `json:"threshold"`
	Payout    decimal.Decimal `json:"payout"`
	Badge     string          `json:"badge,omitempty"`
	Earned    bool            `json:"earned"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Progress is the user's full milestone standing.
type Progress struct {
	QualifyingTotal decimal.Decimal `json:"qualifying_total"`
	Milestones      []Milestone     `json:"milestones"`
}

// Badge is a presentation label attached to a reached threshold.
type Badge struct {
	Name      string          `json:"name"`
	Threshold decimal.Decimal `json:"threshold"`
}

// ProgressFor reports the user's cumulative qualifying spend against every
// configured threshold. Earned here means reached; whether the voucher grant
// went through is the engine's concern.
func (e *Engine) ProgressFor(ctx context.Context, userID string) (Progress, error) {
	total, err := e.Data.QualifyingSubtotal(ctx, userID)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{QualifyingTotal: total}
	for _, threshold := range e.Cfg.SortedRewardThresholds() {
		payout, _ := e.Cfg.RewardPayout(threshold)
		badge, _ := e.Cfg.BadgeName(threshold)
		m := Milestone{
			Threshold: threshold,
			Payout:    payout,
			Badge:     badge,
			Earned:    !total.LessThan(threshold),
			Remaining: decimal.Zero,
		}
		if total.LessThan(threshold) {
			m.Remaining = threshold.Sub(total)
		}
		p.Milestones = append(p.Milestones, m)
	}
	return p, nil
}

// BadgesFor returns the badges for every threshold the user has reached.
func (e *Engine) BadgesFor(ctx context.Context, userID string) ([]Badge, error) {
	progress, err := e.ProgressFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	badges := []Badge{}
	for _, m := range progress.Milestones {
		if m.Earned && m.Badge != "" {
			badges = append(badges, Badge{Name: m.Badge, Threshold: m.Threshold})
		}
	}
	return badges, nil
}
