package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/auroramart/backend-mart/internal/account"
	"github.com/auroramart/backend-mart/internal/cart"
	"github.com/auroramart/backend-mart/internal/catalog"
	"github.com/auroramart/backend-mart/internal/checkout"
	"github.com/auroramart/backend-mart/internal/common"
	"github.com/auroramart/backend-mart/internal/config"
	"github.com/auroramart/backend-mart/internal/events"
	"github.com/auroramart/backend-mart/internal/health"
	"github.com/auroramart/backend-mart/internal/lock"
	"github.com/auroramart/backend-mart/internal/notify"
	"github.com/auroramart/backend-mart/internal/obs"
	"github.com/auroramart/backend-mart/internal/order"
	"github.com/auroramart/backend-mart/internal/pricing"
	"github.com/auroramart/backend-mart/internal/repo"
	"github.com/auroramart/backend-mart/internal/reward"
	"github.com/auroramart/backend-mart/internal/voucher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "mart")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "mart-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "mart-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	validate := validator.New()

	notifiers := []events.Notifier{
		&notify.Publisher{R: redisClient, Log: logger},
	}
	if sinkURL := envOrDefault("NOTIFY_WEBHOOK_URL", ""); sinkURL != "" {
		notifiers = append(notifiers, &notify.Webhook{
			URL:    sinkURL,
			Secret: envOrDefault("NOTIFY_WEBHOOK_SECRET", ""),
			Client: notify.HTTPClient(envDurationMillis("NOTIFY_WEBHOOK_TIMEOUT_MS", 5000)),
			Log:    logger,
		})
	}
	bus := &events.Bus{
		Store:     &repo.EventRepo{Pool: pool},
		Notifiers: notifiers,
	}

	rules := pricing.Rules{
		TaxRate:               cfg.TaxRate,
		ShippingFlatFee:       cfg.ShippingFlatFee,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		DynamicEnabled:        cfg.DynamicPricingEnabled,
		LowStockAt:            int32(cfg.LowStockThreshold),
		MarkdownPercent:       cfg.DynamicDiscountPercent,
	}

	catalogSvc := &catalog.Service{
		Data:  &catalog.PGData{Pool: pool},
		Cache: &catalog.Cache{R: redisClient, TTL: envDurationMillis("CATALOG_CACHE_TTL_MS", 60000)},
		Rules: rules,
	}
	catalogHandler := &catalog.Handler{Svc: catalogSvc}

	voucherSvc := voucher.NewService(pool)
	voucherHandler := &voucher.Handler{Svc: voucherSvc, Validate: validate}
	voucherValidator := &voucher.Validator{Data: voucherSvc}

	locker := lock.Locker{R: redisClient, Prefix: "mart"}

	rewardEngine := &reward.Engine{
		Data: &reward.PGData{Pool: pool},
		Cfg:  cfg,
		Lock: locker,
		Bus:  bus,
		Log:  logger,
	}
	rewardHandler := &reward.Handler{Engine: rewardEngine}

	orderStore := &order.PGStore{Pool: pool}
	orderSvc := &order.Service{
		Store:   orderStore,
		Bus:     bus,
		Rewards: rewardEngine,
		Log:     logger,
	}
	orderHandler := &order.Handler{Svc: orderSvc, Store: orderStore}
	orderAdmin := &order.AdminHandler{Svc: orderSvc, Store: orderStore}
	paymentWebhook := &order.WebhookHandler{Svc: orderSvc}

	cartSvc := &cart.Service{
		Store:     &cart.PGStore{Pool: pool},
		Validator: voucherValidator,
		Rules:     rules,
		TTL:       cfg.CartTTL,
	}
	cartHandler := &cart.Handler{Svc: cartSvc}

	checkoutSvc := &checkout.Service{
		CartSvc:   cartSvc,
		Committer: &checkout.PGCommitter{Pool: pool},
		Validator: voucherValidator,
		Rules:     rules,
		Bus:       bus,
		Log:       logger,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Validate: validate}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", account.HeaderUserID, account.HeaderRole, cart.HeaderAnonID},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(account.Identity)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Probe{Pool: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{slug}", catalogHandler.Product)

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", cartHandler.Get)
			c.Delete("/", cartHandler.Clear)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/items", cartHandler.AddItem)
				g.Put("/items/{variantID}", cartHandler.UpdateItem)
				g.Delete("/items/{variantID}", cartHandler.RemoveItem)
				g.Post("/voucher", cartHandler.ApplyVoucher)
				g.Delete("/voucher", cartHandler.RemoveVoucher)
				g.With(account.RequireAuth).Post("/merge", cartHandler.Merge)
			})
		})

		v.With(account.RequireAuth, idem.Middleware).Post("/checkout", checkoutHandler.Create)

		v.Group(func(authed chi.Router) {
			authed.Use(account.RequireAuth)
			authed.Get("/orders", orderHandler.List)
			authed.Get("/orders/{id}", orderHandler.Get)
			authed.With(idem.Middleware).Post("/orders/{id}/cancel", orderHandler.Cancel)
			authed.Get("/users/me/milestones", rewardHandler.Milestones)
			authed.Get("/users/me/badges", rewardHandler.Badges)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(account.RequireAuth)
			admin.Use(account.RequireRole(account.RoleStaff))
			admin.Post("/vouchers", voucherHandler.Create)
			admin.Get("/vouchers", voucherHandler.List)
			admin.Get("/vouchers/{id}", voucherHandler.Get)
			admin.Put("/vouchers/{id}", voucherHandler.Update)
			admin.Delete("/vouchers/{id}", voucherHandler.Deactivate)
			admin.Get("/orders/{id}", orderAdmin.Get)
			admin.Patch("/orders/{id}/status", orderAdmin.PatchStatus)
			admin.Patch("/orders/{id}/location", orderAdmin.PatchLocation)
			admin.Patch("/orders/{id}/tracking", orderAdmin.PatchTracking)
		})

		v.Post("/webhooks/payment", paymentWebhook.Payment)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	health.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
