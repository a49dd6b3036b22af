// Package app wires the whole service together: storage, domain services,
// HTTP surface, telemetry, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/franchiseos/supply-api/internal/api"
	"github.com/franchiseos/supply-api/internal/domain/cart"
	"github.com/franchiseos/supply-api/internal/domain/delivery"
	"github.com/franchiseos/supply-api/internal/domain/loyalty"
	"github.com/franchiseos/supply-api/internal/domain/notification"
	"github.com/franchiseos/supply-api/internal/domain/order"
	"github.com/franchiseos/supply-api/internal/domain/payment"
	"github.com/franchiseos/supply-api/internal/gateway"
	"github.com/franchiseos/supply-api/internal/storage/postgres"
	redisstore "github.com/franchiseos/supply-api/internal/storage/redis"
	"github.com/franchiseos/supply-api/pkg/health"
	"github.com/franchiseos/supply-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis client for cart storage.
	redisOpts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "parse redis url")
	}
	redisClient := goredis.NewClient(redisOpts)
	defer redisClient.Close()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	franchiseRepo := postgres.NewFranchiseRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	packingRepo := postgres.NewPackingRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)
	feeRepo := postgres.NewFeeScheduleRepository(pool)
	loyaltyRepo := postgres.NewLoyaltyRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	cartStore := redisstore.NewCartStore(redisClient)

	// Domain services.
	carts := cart.NewEngine(cartStore)
	ledger := loyalty.NewLedger(loyaltyRepo)
	resolver := delivery.NewResolver(feeRepo,
		decimal.NewFromFloat(cfg.Delivery.DefaultFee),
		decimal.NewFromFloat(cfg.Delivery.DefaultFreeThreshold))
	notifier := notification.NewDispatcher(notificationRepo)
	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.Secret)

	orderService, err := order.NewService(order.Deps{
		Orders:         orderRepo,
		Carts:          carts,
		Franchises:     franchiseRepo,
		Ledger:         ledger,
		Fees:           resolver,
		Payments:       paymentRepo,
		PayAdapter:     payment.NewAdapter(gw, cfg.Gateway.Currency),
		Packing:        packingRepo,
		Notifier:       notifier,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// Change feed: surface order and notification events in the logs; admin
	// dashboards subscribed to the same channels re-fetch on each poke.
	listener := postgres.NewListener(pool, func(ev postgres.Event) {
		zctx.From(ctx).Debug("change feed event",
			zap.String("channel", ev.Channel), zap.String("payload", ev.Payload))
	}, postgres.ChannelOrderEvents, postgres.ChannelNotificationEvents)
	go func() {
		if err := listener.Run(ctx); err != nil {
			lg.Error("change feed listener stopped", zap.Error(err))
		}
	}()

	// HTTP surface.
	h := api.NewHandler(productRepo, carts, orderService, ledger, packingRepo, notificationRepo, apikeyRepo)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", otelhttp.NewHandler(h.Routes(), "supply-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
