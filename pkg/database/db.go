package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/biyonik/fluent-orm/pkg/cache"
	"github.com/biyonik/fluent-orm/pkg/events"
)

// -----------------------------------------------------------------------------
// DB FACADE
// -----------------------------------------------------------------------------
// DB; executor zincirini, grammar'ı, registry'yi ve eager loader'ı bir araya
// getirir. Uygulama kodu builder'ları buradan başlatır:
//
//	db := database.Open(conn, database.WithRegistry(registry), database.WithLogger(logger))
//	users, err := db.Model("user").With("posts").Get(ctx)
//
// Executor zinciri (dıştan içe): CachingExecutor → EventExecutor → SQLExecutor.
// Transaction içindeki DB'ler cache'i atlar.
// -----------------------------------------------------------------------------

// DB, veritabanı erişiminin giriş noktasıdır. Eşzamanlı kullanım için
// güvenlidir; her Table/Model çağrısı yeni bir builder döndürür.
type DB struct {
	conn        *sql.DB
	tx          *sql.Tx
	executor    Executor
	grammar     Grammar
	registry    *Registry
	logger      Logger
	dispatcher  *events.Dispatcher
	store       cache.Store
	sqlOpts     []SQLExecutorOption
	concurrency int
	loader      *Loader
}

// Option, DB yapılandırma fonksiyonudur.
type Option func(*DB)

// WithGrammar, SQL dialect'ini belirler (varsayılan MySQL).
func WithGrammar(g Grammar) Option { return func(db *DB) { db.grammar = g } }

// WithRegistry, model ve ilişki tanımlarını belirler.
func WithRegistry(r *Registry) Option { return func(db *DB) { db.registry = r } }

// WithLogger, logger'ı belirler.
func WithLogger(l Logger) Option { return func(db *DB) { db.logger = l } }

// WithDispatcher, query/cache/transaction event'lerinin yayınlanacağı
// dispatcher'ı belirler.
func WithDispatcher(d *events.Dispatcher) Option { return func(db *DB) { db.dispatcher = d } }

// WithCache, Remember(ttl) sorgularının sonuçlarının saklanacağı store'u belirler.
func WithCache(s cache.Store) Option { return func(db *DB) { db.store = s } }

// WithEagerConcurrency, kardeş ilişkilerin aynı anda kaç tanesinin
// çekileceğini belirler (varsayılan 4).
func WithEagerConcurrency(n int) Option { return func(db *DB) { db.concurrency = n } }

// WithExecutorOptions, Open'ın oluşturduğu SQLExecutor'a ayar geçirir
// (örn: WithRateLimit).
func WithExecutorOptions(opts ...SQLExecutorOption) Option {
	return func(db *DB) { db.sqlOpts = append(db.sqlOpts, opts...) }
}

// Open, *sql.DB üzerinde executor zincirini kurar.
func Open(conn *sql.DB, opts ...Option) *DB {
	db := &DB{conn: conn}
	db.apply(opts)
	db.executor = db.chain(NewSQLExecutor(conn, db.sqlOpts...), true)
	db.loader = NewLoader(db.executor, db.grammar, db.registry, db.logger).WithConcurrency(db.concurrency)
	return db
}

// New, hazır bir Executor ile DB üretir. Testlerde sahte executor ile
// kullanılır. Transaction desteklenmez.
func New(executor Executor, opts ...Option) *DB {
	db := &DB{}
	db.apply(opts)
	db.executor = db.chain(executor, true)
	db.loader = NewLoader(db.executor, db.grammar, db.registry, db.logger).WithConcurrency(db.concurrency)
	return db
}

func (db *DB) apply(opts []Option) {
	db.concurrency = 4
	for _, opt := range opts {
		opt(db)
	}
	if db.grammar == nil {
		db.grammar = NewMySQLGrammar()
	}
	if db.registry == nil {
		db.registry = NewRegistry()
	}
	db.logger = loggerOrNop(db.logger)
}

func (db *DB) chain(base Executor, cached bool) Executor {
	exec := base
	if db.dispatcher != nil {
		exec = NewEventExecutor(exec, db.dispatcher)
	}
	if cached && db.store != nil {
		exec = NewCachingExecutor(exec, db.store, db.dispatcher, db.logger)
	}
	return exec
}

// Table, tablo üzerinde yeni bir builder başlatır.
func (db *DB) Table(name string) *QueryBuilder {
	return db.builder().Table(name)
}

// Model, registry'deki bir model üzerinde yeni bir builder başlatır.
// Model kayıtlı değilse hata terminal metotta ErrModelNotFound olarak döner.
func (db *DB) Model(name string) *QueryBuilder {
	return db.builder().Model(name)
}

// Query, tablosuz boş bir builder döndürür (FromSub/FromRaw için).
func (db *DB) Query() *QueryBuilder {
	return db.builder()
}

func (db *DB) builder() *QueryBuilder {
	return &QueryBuilder{
		executor: db.executor,
		grammar:  db.grammar,
		registry: db.registry,
		logger:   db.logger,
		loader:   db.loader,
	}
}

// Load, daha önce çekilmiş entity'lere ilişki yükler.
//
// Örnek:
//
//	err := db.Load(ctx, users, "posts.comments", map[string]any{"roles": nil})
func (db *DB) Load(ctx context.Context, parents []Entity, specs ...any) error {
	return db.loader.Load(ctx, parents, specs...)
}

// LoadAggregates, daha önce çekilmiş entity'lere aggregate attribute'ları ekler.
func (db *DB) LoadAggregates(ctx context.Context, parents []Entity, requests ...AggregateRequest) error {
	return db.loader.LoadAggregates(ctx, parents, requests...)
}

// Registry, model tanımlarını döndürür.
func (db *DB) Registry() *Registry { return db.registry }

// Executor, zincirin dış halkasını döndürür.
func (db *DB) Executor() Executor { return db.executor }

// Grammar, SQL dialect'ini döndürür.
func (db *DB) Grammar() Grammar { return db.grammar }

// Conn, altta yatan *sql.DB'yi döndürür (New ile oluşturulduysa nil).
func (db *DB) Conn() *sql.DB { return db.conn }

// Close, bağlantı havuzunu kapatır. Transaction DB'lerinde etkisizdir.
func (db *DB) Close() error {
	if db.conn == nil || db.tx != nil {
		return nil
	}
	return db.conn.Close()
}

// ErrNoConnection, transaction başlatılacak *sql.DB olmadığında döner.
var ErrNoConnection = errors.New("database: transaction requires a *sql.DB connection")

// Transaction, fn'i bir transaction içinde çalıştırır. fn hata dönerse veya
// panic atarsa rollback yapılır; aksi halde commit edilir.
//
// fn'e verilen DB aynı bağlantıyı kullanır: cache atlanır ve eager
// loading sıralı yapılır (tek bağlantı üzerinde eşzamanlı sorgu olmaz).
//
// Örnek:
//
//	err := db.Transaction(ctx, func(tx *database.DB) error {
//	    if _, err := tx.Table("accounts").Where("id", "=", from).Decrement(ctx, "balance", 100); err != nil {
//	        return err
//	    }
//	    _, err := tx.Table("accounts").Where("id", "=", to).Increment(ctx, "balance", 100)
//	    return err
//	})
func (db *DB) Transaction(ctx context.Context, fn func(tx *DB) error) (err error) {
	t, err := db.Begin(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = t.Rollback()
			panic(p)
		}
	}()

	if err := fn(t.DB()); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return t.Commit()
}
