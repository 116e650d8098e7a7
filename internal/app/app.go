package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/sellergate/storefront/internal/domain/cart"
	"github.com/sellergate/storefront/internal/domain/checkout"
	"github.com/sellergate/storefront/internal/gateway"
	"github.com/sellergate/storefront/internal/handler"
	"github.com/sellergate/storefront/internal/notify"
	"github.com/sellergate/storefront/internal/session"
	"github.com/sellergate/storefront/internal/storage/postgres"
	storageredis "github.com/sellergate/storefront/internal/storage/redis"
	"github.com/sellergate/storefront/pkg/health"
	"github.com/sellergate/storefront/pkg/httpmiddleware"
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

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCPauseCheck(2*time.Second))

	// Cart storage: Redis when configured, in-memory otherwise. The memory
	// fallback loses carts on restart but keeps single-node deployments
	// working without extra infrastructure.
	var cartStorage cart.Storage
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis URL")
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		cartStorage = storageredis.NewCartStorage(rdb, 7*24*time.Hour)
	} else {
		lg.Warn("no redis URL configured, carts are stored in memory")
		cartStorage = cart.NewMemStorage()
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	buyerRepo := postgres.NewBuyerRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// Domain services.
	sessions := session.NewManager([]byte(cfg.Session.Secret), cfg.Session.TTL)
	guard := checkout.NewGuard(cfg.Session.LoginPath, cfg.Session.ProfilePath)
	notifier := notify.NewEmailNotifier(cfg.Email.SendgridKey, cfg.Email.FromName, cfg.Email.FromEmail, lg)
	orchestrator := checkout.NewOrchestrator(guard, orderRepo, notifier, lg)

	// Payment gateway.
	gatewayClient := gateway.NewHTTPClient(gateway.Config{
		BaseURL:      cfg.Gateway.BaseURL,
		PublicKey:    cfg.Gateway.PublicKey,
		PrivateKey:   cfg.Gateway.PrivateKey,
		TokenTimeout: cfg.Gateway.TokenTimeout,
		SaleTimeout:  cfg.Gateway.SaleTimeout,
	})
	nonces := gateway.NewNonceGuard(cfg.Gateway.NonceCapacity, cfg.Gateway.NonceFPRate)

	// HTTP handlers.
	h := handler.NewHandler(
		buyerRepo,
		productRepo,
		orderRepo,
		sessions,
		guard,
		orchestrator,
		gatewayClient,
		nonces,
		cartStorage,
		lg,
	)

	// Mux: health endpoints + API routes on one server, instrumented as a
	// whole.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	instrumented := otelhttp.NewHandler(mux, "storefront-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
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
