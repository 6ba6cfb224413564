package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadParsesRewardThresholds(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":      "postgres://localhost/auroramart",
		"REDIS_URL":         "redis://localhost:6379",
		"REWARD_THRESHOLDS": "100:5, 500:25",
		"REWARD_BADGES":     "100:Bronze Shopper,500:Silver Shopper",
	})
	require.NoError(t, err)

	sorted := cfg.SortedRewardThresholds()
	require.Len(t, sorted, 2)
	require.Equal(t, "100", sorted[0].String())
	require.Equal(t, "500", sorted[1].String())

	payout, ok := cfg.RewardPayout(sorted[1])
	require.True(t, ok)
	require.Equal(t, "25", payout.String())

	badge, ok := cfg.BadgeName(sorted[0])
	require.True(t, ok)
	require.Equal(t, "Bronze Shopper", badge)
}

func TestLoadRejectsMalformedThresholds(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL":      "postgres://localhost/auroramart",
		"REDIS_URL":         "redis://localhost:6379",
		"REWARD_THRESHOLDS": "100=5",
	})
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":      "postgres://localhost/auroramart",
		"REDIS_URL":         "redis://localhost:6379",
		"REWARD_THRESHOLDS": "",
	})
	require.NoError(t, err)
	require.Equal(t, "0.1", cfg.TaxRate.String())
	require.Equal(t, "10", cfg.ShippingFlatFee.String())
	require.Equal(t, 10, cfg.LowStockThreshold)
	require.True(t, cfg.DynamicPricingEnabled)
	require.Equal(t, 1, cfg.VoucherPerUserLimit)
	require.Empty(t, cfg.RewardThresholds)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}
