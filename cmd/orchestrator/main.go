package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"ai_orchestrator/internal/cache"
	"ai_orchestrator/internal/catalog"
	"ai_orchestrator/internal/config"
	"ai_orchestrator/internal/cost"
	"ai_orchestrator/internal/execution"
	"ai_orchestrator/internal/httpapi"
	"ai_orchestrator/internal/metrics"
	"ai_orchestrator/internal/notify"
	"ai_orchestrator/internal/orchestrator"
	"ai_orchestrator/internal/prompt"
	"ai_orchestrator/internal/providers"
	"ai_orchestrator/internal/queue"
	"ai_orchestrator/internal/ratelimit"
	"ai_orchestrator/internal/router"
	"ai_orchestrator/internal/storage"
	"ai_orchestrator/internal/utils"
)

// requestStore is what both record backends provide
type requestStore interface {
	orchestrator.RequestStore
	cost.Ledger
}

// app holds the wired services and everything that needs shutting down
type app struct {
	handler http.Handler

	starters []func(ctx context.Context)
	stoppers []func() error
}

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to read .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := build(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build orchestrator: %v", err)
	}
	for _, start := range a.starters {
		start(ctx)
	}

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:        addr,
		Handler:     a.handler,
		ReadTimeout: 30 * time.Second,
		// sync requests wait for the execution deadline
		WriteTimeout: cfg.Execution.Deadline + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("AI orchestrator listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// workers finish in-flight jobs before the stores close
	cancel()
	for i := len(a.stoppers) - 1; i >= 0; i-- {
		if err := a.stoppers[i](); err != nil {
			log.Printf("Shutdown step failed: %v", err)
		}
	}

	log.Println("Server exited")
}

func (a *app) onStart(fn func(ctx context.Context)) { a.starters = append(a.starters, fn) }
func (a *app) onStop(fn func() error)              { a.stoppers = append(a.stoppers, fn) }

// build wires the orchestrator from configuration
func build(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := utils.NewLogger("main")
	a := &app{}
	var healthChecks []func(ctx context.Context) error

	var recorder metrics.Recorder = metrics.Noop{}
	var prom *metrics.Prometheus
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		recorder = prom
	}

	// Redis backs the response cache, rate counters, queue and pub/sub
	var rdb *redis.Client
	if needsRedis(cfg) {
		rc, err := storage.NewRedisClient(storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.onStop(rc.Close)
		healthChecks = append(healthChecks, rc.Health)
		rdb = rc.Client()
	}

	// Request records and dynamic routing overrides
	var (
		store     requestStore
		overrides catalog.OverrideStore
		admin     httpapi.OverrideAdmin
	)
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := storage.NewDB(storage.DBConfig{
			URL:               cfg.Database.URL,
			MaxOpenConns:      cfg.Database.MaxOpenConns,
			MaxIdleConns:      cfg.Database.MaxIdleConns,
			ConnMaxLifetime:   cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime:   cfg.Database.ConnMaxIdleTime,
			OverrideCacheSize: cfg.Cache.OverrideCacheSize,
			OverrideCacheTTL:  cfg.Cache.OverrideCacheTTL,
		})
		if err != nil {
			return nil, err
		}
		a.onStop(db.Close)
		healthChecks = append(healthChecks, db.Health)

		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				return nil, err
			}
			logger.Info("Database schema ready")
		}
		repo := storage.NewRoutingOverrideRepository(db)
		store, overrides, admin = storage.NewRequestRepository(db), repo, repo
	default:
		logger.Warn("Using in-memory request store; records are lost on restart")
		store = storage.NewMemoryRequestStore()
	}

	// Routing, pricing and prompt tables
	tables := catalog.Defaults()
	if cfg.Catalog.Path != "" {
		loaded, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		tables = loaded
	}
	cat, err := catalog.New(tables, overrides)
	if err != nil {
		return nil, err
	}
	if cfg.Catalog.Path != "" && cfg.Catalog.Watch {
		watcher, err := catalog.NewWatcher(cfg.Catalog.Path, cat)
		if err != nil {
			return nil, err
		}
		a.onStart(watcher.Start)
		a.onStop(watcher.Stop)
	}

	tracker := cost.NewTracker(cat, store)

	var counter ratelimit.Counter = ratelimit.NewMemoryCounter(ratelimit.DefaultWindow)
	if rdb != nil {
		counter = ratelimit.NewRedisCounter(rdb, ratelimit.DefaultWindow)
	}
	rt := router.New(cat, counter, tracker, router.Options{
		Budget: router.Budget{
			DailyLimitCents:     cfg.Budget.DailyLimitCents,
			UserDailyLimitCents: cfg.Budget.UserDailyLimitCents,
		},
		Metrics: recorder,
	})

	var backend cache.Backend = cache.NewMemoryBackend(cfg.Cache.MemorySize)
	if cfg.Cache.Backend == "redis" {
		backend = cache.NewRedisBackend(rdb)
	}
	responses := cache.New(backend, cat)

	registry, err := providers.NewRegistryFromConfig(cfg.Provider)
	if err != nil {
		return nil, err
	}
	a.onStop(registry.Close)
	logger.Info("Providers registered", "prefixes", registry.Prefixes())

	// Observers of terminal records
	notifiers := notify.Multi{notify.NewLogNotifier()}
	var publisher *notify.RedisPublisher
	if cfg.Notify.RedisChannel != "" {
		publisher = notify.NewRedisPublisher(rdb, cfg.Notify.RedisChannel)
		notifiers = append(notifiers, publisher)
	}
	if cfg.Notify.ArchiveEnabled {
		archiver, err := notify.NewS3Archiver(ctx, cfg.Notify.S3Region, notify.ArchiveConfig{
			Bucket:        cfg.Notify.S3Bucket,
			Prefix:        cfg.Notify.S3Prefix,
			PodName:       cfg.Notify.PodName,
			BufferSize:    cfg.Notify.ArchiveBufferSize,
			FlushSize:     cfg.Notify.ArchiveFlushSize,
			FlushInterval: cfg.Notify.ArchiveFlushInterval,
		})
		if err != nil {
			return nil, err
		}
		a.onStart(archiver.Start)
		a.onStop(archiver.Stop)
		notifiers = append(notifiers, archiver)
	}

	thresholds := cost.Thresholds{
		DailyCents:     cfg.Budget.DailyAlertCents,
		MonthlyCents:   cfg.Budget.MonthlyAlertCents,
		UserDailyCents: cfg.Budget.UserDailyAlertCents,
	}
	if thresholds != (cost.Thresholds{}) {
		var sink cost.AlertSink
		if publisher != nil {
			sink = publisher
		}
		alerter := cost.NewAlerter(tracker, thresholds, cfg.Budget.AlertInterval, sink)
		a.onStart(alerter.Start)
		a.onStop(alerter.Stop)
	}

	exec := execution.NewExecutor(store, responses, rt, tracker, registry, execution.Options{
		Deadline: cfg.Execution.Deadline,
		Policies: execution.PoliciesFromConfig(cfg.Execution),
		Notifier: notifiers,
		Metrics:  recorder,
	})

	// Async execution queue
	qcfg := &queue.Config{
		QueueName:    cfg.Queue.Name,
		BatchSize:    cfg.Queue.BatchSize,
		PollInterval: cfg.Queue.PollInterval,
		MaxSize:      cfg.Queue.MaxSize,
	}
	var (
		q   queue.Queue
		dlq queue.DeadLetterQueue
	)
	if cfg.Queue.Backend == "redis" {
		rq, err := queue.NewRedisQueue(rdb, qcfg)
		if err != nil {
			return nil, err
		}
		rdlq, err := queue.NewRedisDeadLetterQueue(rdb, qcfg)
		if err != nil {
			return nil, err
		}
		q, dlq = rq, rdlq
	} else {
		logger.Warn("Using in-memory job queue; pending jobs are lost on restart")
		q, dlq = queue.NewMemoryQueue(qcfg), queue.NewMemoryDeadLetterQueue()
	}
	a.onStop(dlq.Close)
	a.onStop(q.Close)

	pool := execution.NewPool(q, dlq, exec, cfg.Queue.Workers, qcfg, recorder)
	a.onStart(pool.Start)
	// registered after q.Close so workers stop first
	a.onStop(pool.Stop)

	deps := &httpapi.Dependencies{
		Orchestrator: orchestrator.New(prompt.NewRenderer(cat), rt, store, exec, pool),
		Costs:        tracker,
		Catalog:      cat,
		DeadLetters:  pool,
		Overrides:    admin,
		Health:       healthCheck(healthChecks),
	}
	if prom != nil {
		deps.Metrics = prom.Handler()
	}
	a.handler = httpapi.NewRouter(deps, cfg)

	logger.Info("Orchestrator ready",
		"storage", cfg.Storage.Backend, "cache", cfg.Cache.Backend, "queue", cfg.Queue.Backend,
		"workers", cfg.Queue.Workers, "task_types", len(cat.TaskTypes()))
	return a, nil
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Cache.Backend == "redis" || cfg.Queue.Backend == "redis" || cfg.Notify.RedisChannel != ""
}

func healthCheck(checks []func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return fmt.Errorf("dependency unhealthy: %w", err)
			}
		}
		return nil
	}
}
