package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	CurrencyCode       string

	// Pricing
	TaxRate               decimal.Decimal // e.g. 0.10 for 10%
	ShippingFlatFee       decimal.Decimal
	FreeShippingThreshold decimal.Decimal // 0 disables free shipping

	// Dynamic low-stock pricing
	DynamicPricingEnabled  bool
	LowStockThreshold      int
	DynamicDiscountPercent decimal.Decimal

	// Vouchers
	VoucherPerUserLimit int

	// Rewards. Thresholds map cumulative spend to voucher payout;
	// badges map the same thresholds to display names. An empty map
	// disables the feature rather than failing startup.
	RewardThresholds        map[string]decimal.Decimal
	RewardBadges            map[string]string
	RewardVoucherMinSpend   decimal.Decimal
	RewardVoucherValidYears int

	CartTTL        time.Duration
	IdempotencyTTL time.Duration
	LockTTL        time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       valueOrDefault(k.String("CURRENCY_CODE"), "USD"),

		TaxRate:               parseDecimal(k.String("PRICING_TAX_RATE"), "0.10"),
		ShippingFlatFee:       parseDecimal(k.String("PRICING_SHIPPING_FLAT_FEE"), "10.00"),
		FreeShippingThreshold: parseDecimal(k.String("PRICING_FREE_SHIPPING_THRESHOLD"), "0"),

		DynamicPricingEnabled:  parseBool(valueOrDefault(k.String("DYNAMIC_PRICING_ENABLED"), "true")),
		LowStockThreshold:      parseInt(k.String("DYNAMIC_PRICING_LOW_STOCK_THRESHOLD"), 10),
		DynamicDiscountPercent: parseDecimal(k.String("DYNAMIC_PRICING_DISCOUNT_PERCENT"), "15"),

		VoucherPerUserLimit: parseInt(k.String("VOUCHER_PER_USER_LIMIT"), 1),

		RewardVoucherMinSpend:   parseDecimal(k.String("REWARD_VOUCHER_MIN_PURCHASE"), "0"),
		RewardVoucherValidYears: parseInt(k.String("REWARD_VOUCHER_VALID_YEARS"), 10),

		CartTTL:        parseDuration(k.String("CART_TTL"), "168h"),
		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		LockTTL:        parseDuration(k.String("LOCK_TTL"), "30s"),
	}

	var err error
	cfg.RewardThresholds, err = parseThresholds(k.String("REWARD_THRESHOLDS"))
	if err != nil {
		return nil, fmt.Errorf("REWARD_THRESHOLDS: %w", err)
	}
	cfg.RewardBadges = parseBadges(k.String("REWARD_BADGES"))

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// SortedRewardThresholds returns the configured thresholds in ascending
// order so callers can walk milestones deterministically.
func (c *Config) SortedRewardThresholds() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(c.RewardThresholds))
	for key := range c.RewardThresholds {
		out = append(out, decimalOrZero(key))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

// RewardPayout returns the voucher payout for a threshold, if configured.
func (c *Config) RewardPayout(threshold decimal.Decimal) (decimal.Decimal, bool) {
	v, ok := c.RewardThresholds[canonicalAmount(threshold)]
	return v, ok
}

// BadgeName returns the badge label for a threshold, if configured.
func (c *Config) BadgeName(threshold decimal.Decimal) (string, bool) {
	v, ok := c.RewardBadges[canonicalAmount(threshold)]
	return v, ok
}

// parseThresholds parses "100:5,500:25" into {"100.00": 5, "500.00": 25}.
func parseThresholds(value string) (map[string]decimal.Decimal, error) {
	out := map[string]decimal.Decimal{}
	for _, pair := range splitAndTrim(value) {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed entry %q, want threshold:payout", pair)
		}
		threshold, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("threshold %q: %w", parts[0], err)
		}
		payout, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("payout %q: %w", parts[1], err)
		}
		out[canonicalAmount(threshold)] = payout
	}
	return out, nil
}

// parseBadges parses "100:Bronze Shopper,500:Silver Shopper". Malformed
// entries are skipped; badges are presentation metadata only.
func parseBadges(value string) map[string]string {
	out := map[string]string{}
	for _, pair := range splitAndTrim(value) {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		threshold, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		out[canonicalAmount(threshold)] = strings.TrimSpace(parts[1])
	}
	return out
}

func canonicalAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func decimalOrZero(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseDecimal(value, fallback string) decimal.Decimal {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil {
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
