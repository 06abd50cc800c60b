package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/tarot-bot/internal/bot"
	"github.com/Proton-105/tarot-bot/internal/bot/handlers"
	"github.com/Proton-105/tarot-bot/internal/bot/keyboard"
	"github.com/Proton-105/tarot-bot/internal/database"
	apperrors "github.com/Proton-105/tarot-bot/internal/errors"
	"github.com/Proton-105/tarot-bot/internal/health"
	"github.com/Proton-105/tarot-bot/internal/i18n"
	"github.com/Proton-105/tarot-bot/internal/idempotency"
	"github.com/Proton-105/tarot-bot/internal/lifecycle"
	"github.com/Proton-105/tarot-bot/internal/middleware"
	"github.com/Proton-105/tarot-bot/internal/question"
	"github.com/Proton-105/tarot-bot/internal/ratelimit"
	"github.com/Proton-105/tarot-bot/internal/repository"
	"github.com/Proton-105/tarot-bot/internal/state"
	"github.com/Proton-105/tarot-bot/internal/user"
	"github.com/Proton-105/tarot-bot/internal/usercache"
	"github.com/Proton-105/tarot-bot/pkg/config"
	"github.com/Proton-105/tarot-bot/pkg/graceful"
	"github.com/Proton-105/tarot-bot/pkg/logger"
	"github.com/Proton-105/tarot-bot/pkg/metrics"
	"github.com/Proton-105/tarot-bot/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tarot-bot: %v\n", err)
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
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.AppEnv}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
	}

	log := logger.New(*cfg)
	config.Watch(v, func(next *config.Config) {
		logger.SetLevel(next.Logger.Level)
		log.Info("log level reloaded", slog.String("level", logger.Level().String()))
	})

	log.Info("starting tarot bot",
		slog.String("mode", cfg.Bot.Mode),
		slog.String("db_driver", cfg.Database.Driver),
		slog.Bool("redis", cfg.Redis.Enabled()),
	)

	shutdown := lifecycle.NewShutdown(log)
	if cfg.Sentry.Enabled {
		shutdown.Register(lifecycle.PhaseTelemetry, "sentry", func(context.Context) error {
			sentry.Flush(2 * time.Second)
			return nil
		})
	}

	if err := database.NewMigrator(cfg.Database, log).Up(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	shutdown.Register(lifecycle.PhaseStorage, "database", func(context.Context) error { return db.Close() })

	// releases whatever was opened so far when startup fails
	abort := func(err error) error {
		_ = shutdown.Execute(context.Background())
		return err
	}

	var rdb *goredis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.New(ctx, cfg.Redis)
		if err != nil {
			return abort(err)
		}
		shutdown.Register(lifecycle.PhaseStorage, "redis", func(context.Context) error { return rdb.Close() })
	}

	catalog, err := i18n.Load(cfg.I18n.DefaultLang)
	if err != nil {
		return abort(fmt.Errorf("load translations: %w", err))
	}

	workers, stopWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	spawn := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(workers)
		}()
	}
	shutdown.Register(lifecycle.PhaseWorkers, "workers", func(ctx context.Context) error {
		stopWorkers()
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	var (
		storage   state.Storage
		idemStore idempotency.Store
		limiter   ratelimit.Limiter
	)
	memLimiter := ratelimit.NewMemoryLimiter(log)
	if rdb != nil {
		storage = state.NewRedisStorage(rdb, cfg.Session.TTL, log)
		idemStore = idempotency.NewRedisStore(rdb, log)
		limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb, log), memLimiter, log)
	} else {
		storage = state.NewMemoryStorage()
		memStore := idempotency.NewMemoryStore()
		idemStore = memStore
		limiter = memLimiter
		spawn(idempotency.NewCleaner(memStore, log, time.Hour))
	}
	spawn(ratelimit.NewCleaner(memLimiter, 10*time.Minute, 5*time.Minute, log))

	fsm := state.NewStateMachine(storage, log, rdb)
	spawn(metrics.NewStateCollector(fsm).Run)

	tb, err := bot.NewTelebot(cfg.Bot, log)
	if err != nil {
		return abort(err)
	}

	kb := keyboard.NewBuilder(log)

	var breaker *apperrors.CircuitBreaker
	if cfg.Bot.NotifyBreaker {
		breakerCfg := apperrors.DefaultBreakerConfig()
		breakerCfg.OnStateChange = func(from, to apperrors.State) {
			log.Warn("notification breaker state changed", slog.String("from", from.String()), slog.String("to", to.String()))
		}
		breaker = apperrors.NewCircuitBreaker(breakerCfg)
	}
	notifier := bot.NewTelegramNotifier(tb, catalog, kb, breaker, log)

	userRepo := repository.NewUserRepository(db, log)
	questionRepo := repository.NewQuestionRepository(db, log)

	users := user.NewService(userRepo, cfg.Bot.AdminID, log)
	if rdb != nil {
		users.WithCache(usercache.NewCache(rdb), usercache.DefaultTTL)
	}
	questions := question.NewService(questionRepo, userRepo, notifier, cfg.Bot.AdminID, cfg.Bot.QuestionMaxLen, log)

	var rateLimit *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rules := ratelimit.NewRules(cfg.RateLimit, cfg.Bot.AdminID)
		rateLimit = middleware.NewRateLimitMiddleware(limiter, rules, catalog, log)
	}

	b := bot.New(tb, bot.Options{
		Deps: handlers.Deps{
			Questions: questions,
			Users:     users,
			FSM:       fsm,
			Keyboard:  kb,
			I18n:      catalog,
			Log:       log,
		},
		ErrHandler:  apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Idempotency: idempotency.NewManager(idemStore, idempotency.DefaultTTL, log),
		RateLimit:   rateLimit,
	})
	shutdown.Register(lifecycle.PhaseIngress, "telegram", func(context.Context) error {
		b.Stop()
		return nil
	})

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("telegram", health.NewTelegramChecker(tb))
	if rdb != nil {
		checker.AddCheck("redis", health.NewRedisChecker(rdb))
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", checker.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := graceful.NewServer(log, &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           logger.Middleware(middleware.New(log)(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.Server.ShutdownTimeout)

	httpCtx, stopHTTP := context.WithCancel(context.Background())
	httpDone := make(chan error, 1)
	go func() { httpDone <- httpServer.ListenAndServe(httpCtx) }()
	shutdown.Register(lifecycle.PhaseIngress, "http", func(ctx context.Context) error {
		stopHTTP()
		select {
		case err := <-httpDone:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	go b.Start()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-httpDone:
		// the ingress hook must not wait for a server that already exited
		httpDone <- err
		log.Error("http server stopped unexpectedly", slog.Any("error", err))
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return shutdown.Execute(shutdownCtx)
}
