// -----------------------------------------------------------------------------
// Bootstrap Package
// -----------------------------------------------------------------------------
// Bu paket, config.Config'ten tam kurulmuş bir *database.DB üretir: MySQL
// bağlantısı, cache store (memory/redis), event dispatcher ve sorgu loglama
// tek yerde birleştirilir. Uygulamaların main fonksiyonu sadece Open ve
// Close çağırır.
// -----------------------------------------------------------------------------

package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/biyonik/fluent-orm/internal/config"
	"github.com/biyonik/fluent-orm/pkg/cache"
	"github.com/biyonik/fluent-orm/pkg/database"
	"github.com/biyonik/fluent-orm/pkg/events"
)

// Logger, log interface'i. *log.Logger bu interface'i karşılar.
type Logger interface {
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// dispatcherShutdownTimeout, Close sırasında async listener'lar için
// beklenecek en uzun süre.
const dispatcherShutdownTimeout = 5 * time.Second

// Runtime, kurulmuş ORM bileşenlerini bir arada tutar.
type Runtime struct {
	DB         *database.DB
	Store      cache.Store // cache driver "none" ise nil
	Dispatcher *events.Dispatcher

	logger  Logger
	closers []func() error
}

// Open, MySQL'e bağlanır ve Runtime'ı kurar.
//
// Parametreler:
//   - ctx: Bağlantı ve Redis ping'i için context
//   - cfg: Yüklenmiş yapılandırma
//   - logger: nil ise log.Default()
//   - opts: Ek database seçenekleri (örn: database.WithRegistry)
//
// Örnek:
//
//	cfg, _ := config.Load("")
//	rt, err := bootstrap.Open(ctx, cfg, nil, database.WithRegistry(models))
//	if err != nil {
//	    log.Fatalf("❌ ORM başlatılamadı: %v", err)
//	}
//	defer rt.Close()
//	users, err := rt.DB.Model("User").With("posts").Get(ctx)
func Open(ctx context.Context, cfg *config.Config, logger Logger, opts ...database.Option) (*Runtime, error) {
	if logger == nil {
		logger = log.Default()
	}

	conn, err := database.Connect(ctx, ConnectionConfig(cfg.Database), logger)
	if err != nil {
		return nil, err
	}

	rt, err := Build(ctx, cfg, conn, logger, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return rt, nil
}

// Build, hazır bir *sql.DB üzerinde Runtime'ı kurar. Testlerde sqlmock
// bağlantısı ile kullanılır.
func Build(ctx context.Context, cfg *config.Config, conn *sql.DB, logger Logger, opts ...database.Option) (*Runtime, error) {
	if logger == nil {
		logger = log.Default()
	}

	rt := &Runtime{logger: logger}

	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.Store = store
	if closeStore != nil {
		rt.closers = append(rt.closers, closeStore)
	}

	rt.Dispatcher = events.NewDispatcher(logger)
	if cfg.Log.Queries {
		rt.Dispatcher.Listen(events.EventQueryExecuted, events.NewQueryLogger(logger, cfg.Log.SlowThreshold))
	}
	rt.closers = append(rt.closers, func() error {
		return rt.Dispatcher.ShutdownWithTimeout(dispatcherShutdownTimeout)
	})

	base := []database.Option{
		database.WithLogger(logger),
		database.WithDispatcher(rt.Dispatcher),
		database.WithEagerConcurrency(cfg.Eager.Concurrency),
	}
	if store != nil {
		base = append(base, database.WithCache(store))
	}
	if cfg.Executor.RateLimit > 0 {
		base = append(base, database.WithExecutorOptions(
			database.WithRateLimit(cfg.Executor.RateLimit, cfg.Executor.Burst),
		))
	}

	rt.DB = database.Open(conn, append(base, opts...)...)

	logger.Printf("✅ ORM hazır (cache: %s, eager concurrency: %d)", cfg.Cache.Driver, cfg.Eager.Concurrency)
	return rt, nil
}

// newStore, cache driver'ına göre store üretir. İkinci dönüş değeri
// store'un kapatma fonksiyonudur.
func newStore(ctx context.Context, cfg *config.Config, logger Logger) (cache.Store, func() error, error) {
	switch cfg.Cache.Driver {
	case config.CacheDriverNone, "":
		return nil, nil, nil

	case config.CacheDriverMemory:
		store := cache.NewMemoryStore(logger, cfg.Cache.CleanupInterval)
		return store, store.Close, nil

	case config.CacheDriverRedis:
		client, err := cache.NewRedisClient(ctx, RedisConfig(cfg.Redis), logger)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewRedisStore(client, logger, cfg.Cache.Prefix), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown cache driver %q", cfg.Cache.Driver)
	}
}

// Close, cache, dispatcher ve bağlantı havuzunu kapatır. Tüm kapatma
// adımları çalıştırılır, hatalar birleştirilerek döner.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.DB != nil {
		if err := rt.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	rt.logger.Println("✅ ORM kapatıldı")
	return nil
}

// ConnectionConfig, config.DatabaseConfig'i database.ConnectionConfig'e
// çevirir.
func ConnectionConfig(c config.DatabaseConfig) database.ConnectionConfig {
	return database.ConnectionConfig{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Name,
		Params:          c.Params,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		DialTimeout:     c.DialTimeout,
	}
}

// RedisConfig, config.RedisConfig'i cache.RedisConfig'e çevirir.
func RedisConfig(c config.RedisConfig) *cache.RedisConfig {
	return &cache.RedisConfig{
		Host:         c.Host,
		Port:         c.Port,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}
