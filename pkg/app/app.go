package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/matsecom/pkg/api"
	"github.com/platinummonkey/matsecom/pkg/billing"
	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/config"
	"github.com/platinummonkey/matsecom/pkg/lock"
	"github.com/platinummonkey/matsecom/pkg/middleware"
	"github.com/platinummonkey/matsecom/pkg/observability"
	"github.com/platinummonkey/matsecom/pkg/registry"
	"github.com/platinummonkey/matsecom/pkg/session"
	"github.com/platinummonkey/matsecom/pkg/storage"
	"github.com/platinummonkey/matsecom/pkg/storage/memory"
	"github.com/platinummonkey/matsecom/pkg/storage/objectstore"
	"github.com/platinummonkey/matsecom/pkg/storage/sqlstore"
	"github.com/platinummonkey/matsecom/pkg/throughput"
)

// dbStatsInterval is how often pool statistics are copied into the metrics.
const dbStatsInterval = 15 * time.Second

// App holds every service of a running process, built from one Config.
type App struct {
	Config   *config.Config
	Logger   *observability.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	Store   storage.Store
	Catalog *catalog.Store
	Locker  lock.Locker
	Redis   *redis.Client
	Archive *objectstore.Archive

	// RateLimiter is nil unless API rate limiting is enabled.
	RateLimiter middleware.Limiter

	Subscribers *registry.Service
	Simulator   *session.Simulator
	Generator   *billing.Generator
	Health      *observability.HealthChecker

	sql          *sqlstore.Store
	localLimiter *middleware.RateLimiter
	closers      []func() error
}

// New connects the backends selected by cfg and builds the services on top of
// them. On error everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger, version string) (_ *App, err error) {
	if logger == nil {
		logger = observability.NewLogger(cfg.Observability.LogLevel, nil)
	}
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Observability.MetricsEnabled {
		a.Registry = prometheus.NewRegistry()
		a.Metrics = observability.NewMetrics(a.Registry)
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if err := a.openCatalog(); err != nil {
		return nil, err
	}
	if err := a.openLocker(ctx); err != nil {
		return nil, err
	}
	a.openRateLimiter()
	if cfg.Storage.S3Enabled {
		a.Archive, err = objectstore.NewArchive(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to open invoice archive: %w", err)
		}
	}

	policy, err := throughput.ParsePolicy(cfg.Simulation.Policy, cfg.Simulation.StreamName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse selection policy: %w", err)
	}

	regOpts := []registry.Option{registry.WithMetrics(a.Metrics)}
	if cfg.Storage.CacheEnabled {
		regOpts = append(regOpts, registry.WithCache(cfg.Storage.CacheSize, cfg.Storage.CacheTTL))
	}
	a.Subscribers = registry.NewService(a.Store, a.Catalog, logger, regOpts...)

	a.Simulator = session.NewSimulator(a.Store, a.Catalog, policy, logger,
		session.WithLocker(a.Locker), session.WithMetrics(a.Metrics))

	genOpts := []billing.Option{billing.WithLocker(a.Locker), billing.WithMetrics(a.Metrics)}
	if a.Archive != nil {
		genOpts = append(genOpts, billing.WithArchive(a.Archive))
	}
	a.Generator = billing.NewGenerator(a.Store, a.Catalog, logger, genOpts...)

	a.Health = observability.NewHealthChecker(version, a.Store, a.Redis)
	if a.Archive != nil {
		a.Health.AddOptional("archive", a.Archive)
	}

	logger.WithFields(map[string]interface{}{
		"storage": cfg.Storage.Type,
		"lock":    cfg.Lock.Backend,
		"policy":  policy.Name(),
		"archive": a.Archive != nil,
	}).Info("Services initialized")

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	if a.Config.Storage.Type == "memory" {
		a.Store = memory.New()
		a.Logger.Warn("Using in-memory storage; data is lost on restart")
		return nil
	}

	s, err := sqlstore.Open(ctx, a.Config.Storage, a.Logger.Logrus())
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", a.Config.Storage.Type, err)
	}
	a.sql = s
	a.Store = s
	a.closers = append(a.closers, s.Close)
	return nil
}

func (a *App) openCatalog() error {
	var (
		c   *catalog.Catalog
		err error
	)
	if path := a.Config.Catalog.Path; path != "" {
		c, err = catalog.LoadFile(path)
	} else {
		c, err = catalog.Default()
	}
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	a.Catalog = catalog.NewStore(c)
	return nil
}

func (a *App) openLocker(ctx context.Context) error {
	if a.Config.Lock.Backend != "redis" {
		a.Locker = lock.NewKeyedMutex()
		return nil
	}

	s := a.Config.Storage
	client, err := lock.NewRedisClient(ctx, s.RedisURL, s.RedisPassword, s.RedisDB, s.RedisMaxRetries, s.RedisPoolSize)
	if err != nil {
		return err
	}
	a.Redis = client
	a.closers = append(a.closers, client.Close)

	rc := lock.DefaultRedisConfig()
	rc.TTL = a.Config.Lock.TTL
	a.Locker = lock.NewRedisLocker(client, rc)
	return nil
}

func (a *App) openRateLimiter() {
	rl := a.Config.RateLimit
	if !rl.Enabled {
		return
	}
	config := middleware.RateLimitConfig{
		RequestsPerWindow: rl.RequestsPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         rl.Burst,
	}
	if a.Redis != nil {
		a.RateLimiter = middleware.NewDistributedRateLimiter(a.Redis, config, "")
		return
	}
	a.localLimiter = middleware.NewRateLimiter(config)
	a.RateLimiter = a.localLimiter
}

// Start launches the background routines that run until ctx ends.
func (a *App) Start(ctx context.Context) {
	if a.Config.Catalog.Reload {
		go func() {
			if err := catalog.Watch(ctx, a.Config.Catalog.Path, a.Catalog, a.Logger.Logrus()); err != nil {
				a.Logger.WithError(err).Error("Catalog watcher stopped")
			}
		}()
	}
	if a.localLimiter != nil {
		a.localLimiter.StartCleanup(ctx)
	}

	if a.sql == nil {
		return
	}
	cm := a.sql.ConnectionManager()
	cm.StartHealthCheckRoutine(ctx, 30*time.Second)

	if a.Metrics == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(dbStatsInterval)
		defer ticker.Stop()
		for {
			a.Metrics.ObserveDBStats(cm.Stats().Primary)
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
}

// APIDependencies returns the services behind the HTTP API.
func (a *App) APIDependencies() api.Dependencies {
	return api.Dependencies{
		Subscribers: a.Subscribers,
		Simulator:   a.Simulator,
		Invoicer:    a.Generator,
		Usage:       a.Store,
		Catalog:     a.Catalog,
		Logger:      a.Logger,
		Metrics:     a.Metrics,
		RateLimiter: a.RateLimiter,
	}
}

// NewCycle returns a billing cycle over every subscriber, led through the
// configured locker.
func (a *App) NewCycle() *billing.Cycle {
	return billing.NewCycle(a.Generator, a.Store, a.Locker, a.Config.Billing.Concurrency, a.Logger, a.Metrics)
}

// Close releases the backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
