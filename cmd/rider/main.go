package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/pricechek-rider/internal/catalog"
	"github.com/Proton-105/pricechek-rider/internal/customer"
	"github.com/Proton-105/pricechek-rider/internal/database"
	apperrors "github.com/Proton-105/pricechek-rider/internal/errors"
	"github.com/Proton-105/pricechek-rider/internal/health"
	"github.com/Proton-105/pricechek-rider/internal/httpapi"
	"github.com/Proton-105/pricechek-rider/internal/idempotency"
	"github.com/Proton-105/pricechek-rider/internal/lifecycle"
	"github.com/Proton-105/pricechek-rider/internal/notify"
	"github.com/Proton-105/pricechek-rider/internal/ordering"
	"github.com/Proton-105/pricechek-rider/internal/pricing"
	"github.com/Proton-105/pricechek-rider/internal/ratelimit"
	"github.com/Proton-105/pricechek-rider/internal/repository"
	"github.com/Proton-105/pricechek-rider/internal/session"
	"github.com/Proton-105/pricechek-rider/internal/sms"
	"github.com/Proton-105/pricechek-rider/internal/ussd"
	"github.com/Proton-105/pricechek-rider/pkg/config"
	"github.com/Proton-105/pricechek-rider/pkg/graceful"
	"github.com/Proton-105/pricechek-rider/pkg/logger"
	"github.com/Proton-105/pricechek-rider/pkg/redis"
)

const (
	rateLimitCleanupInterval = time.Minute
	rateLimitBucketMaxAge    = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pricechek-rider: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			SampleRate:       cfg.Sentry.SampleRate,
			AttachStacktrace: true,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	rootLogger := logger.New(*cfg)
	defer func() { _ = rootLogger.Close() }()
	log := rootLogger.Logger
	slog.SetDefault(log)

	config.Watch(v, log, func(next *config.Config) {
		rootLogger.SetLevel(next.Logger.Level)
	})

	log.Info("starting pricechek-rider",
		slog.String("env", cfg.AppEnv),
		slog.Int("port", cfg.Server.Port),
		slog.String("database", cfg.Database.Driver),
		slog.String("notifier", cfg.Notifier.Driver),
	)

	shutdown := lifecycle.NewShutdown(log)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.New(ctx, cfg.Redis)
		if err != nil {
			_ = db.Close()
			return err
		}
	}

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		_ = db.Close()
		_ = rdb.Close()
		return err
	}

	source, err := catalog.LoadFixture(cfg.Commerce.CatalogFile, log)
	if err != nil {
		_ = db.Close()
		_ = rdb.Close()
		return err
	}

	errHandler := apperrors.NewHandler(log)

	orders := repository.NewOrderRepository(db, log)
	customers := customer.NewService(repository.NewCustomerRepository(db, log), orders, log)

	deliveryFee := decimal.NewFromInt(cfg.Commerce.DeliveryFee)
	aggregator := pricing.NewAggregator(source, deliveryFee, cfg.Commerce.Currency, log)
	builder := ordering.NewBuilder(orders, ordering.Options{
		DeliveryFee:     deliveryFee,
		DeliveryETA:     cfg.Commerce.DeliveryETA,
		RiderName:       cfg.Commerce.RiderName,
		RiderContact:    cfg.Commerce.RiderContact,
		TrackingBaseURL: cfg.Commerce.TrackingBaseURL,
		CancelWindow:    cfg.Commerce.CancelWindow,
	}, log)

	ussdEngine := ussd.NewEngine(customers, notifier, errHandler, ussd.Options{
		Sender:       cfg.AfricasTalking.Sender(),
		RecentOrders: cfg.Commerce.RecentOrders,
	}, log)

	var locker sms.Locker
	if cfg.SMS.SerializePerPhone {
		if rdb == nil {
			log.Warn("sms.serialize_per_phone requires redis; messages will not be serialized")
		} else {
			locker = session.NewLocker(rdb.Client, cfg.SMS.LockTTL, log)
		}
	}
	smsEngine := sms.NewEngine(customers, aggregator, builder, notifier, locker, log)

	guard, err := newGuard(ctx, cfg, rdb, log)
	if err != nil {
		_ = db.Close()
		_ = rdb.Close()
		return err
	}

	var dedupe idempotency.Manager
	if cfg.Idempotency.Enabled && rdb != nil {
		dedupe = idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), log)
	}

	checker := health.NewChecker(log, 2*time.Second)
	checker.AddCheck("database", health.NewDBChecker(db))
	if rdb != nil {
		checker.AddCheck("redis", health.NewRedisChecker(rdb))
	}
	probes := lifecycle.NewProbes(checker, log)

	router := httpapi.NewRouter(httpapi.Deps{
		USSD:           ussdEngine,
		SMS:            smsEngine,
		Admin:          customers,
		Probes:         probes,
		Guard:          guard,
		Idempotency:    dedupe,
		IdempotencyTTL: cfg.Idempotency.TTL,
		Errors:         errHandler,
		Log:            log,
	})

	srv := graceful.NewServer(log, &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}, cfg.Server.ShutdownTimeout)

	shutdown.Register("readiness", probes.Drain)
	if rdb != nil {
		shutdown.Register("redis", func(context.Context) error { return rdb.Close() })
	}
	shutdown.Register("database", func(context.Context) error { return db.Close() })

	serveErr := srv.ListenAndServe(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("pricechek-rider stopped")
	return serveErr
}

func newNotifier(cfg *config.Config, log *slog.Logger) (notify.Notifier, error) {
	switch cfg.Notifier.Driver {
	case "log":
		log.Warn("using log notifier; SMS replies are not delivered")
		return notify.NewLogNotifier(cfg.Notifier.DefaultCountryCode, log), nil
	case "africastalking":
		client, err := notify.NewAfricasTalking(cfg.AfricasTalking, cfg.Notifier.DefaultCountryCode, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown notifier driver %q", cfg.Notifier.Driver)
	}
}

// newGuard prefers the shared Redis window and keeps an in-memory limiter as fallback.
func newGuard(ctx context.Context, cfg *config.Config, rdb *redis.Client, log *slog.Logger) (*ratelimit.Guard, error) {
	rules, err := ratelimit.NewRules(cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	memory := ratelimit.NewMemoryLimiter(log)
	go ratelimit.NewCleaner(memory, log, rateLimitCleanupInterval, rateLimitBucketMaxAge).Run(ctx)

	var primary ratelimit.Limiter
	if rdb != nil {
		primary = ratelimit.NewRedisLimiter(rdb.Client, log)
	}

	return ratelimit.NewGuard(rules, ratelimit.NewAdaptiveLimiter(primary, memory, log)), nil
}
