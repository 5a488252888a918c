package database

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/biyonik/fluent-orm/pkg/cache"
	"github.com/biyonik/fluent-orm/pkg/events"
)

// -----------------------------------------------------------------------------
// RESULT CACHE
// -----------------------------------------------------------------------------
// Remember(ttl) ile işaretlenen okuma sorgularının sonuçları bir cache.Store'da
// msgpack olarak saklanır. Anahtar; SQL metni ve binding'lerin (tür + değer)
// hash'idir. Kilitli okumalar (FOR UPDATE, LOCK IN SHARE MODE) ve yazma
// ifadeleri cache'e hiç uğramaz.
//
// Cache hataları sorguyu düşürmez: loglanır ve executor'a düşülür.
// -----------------------------------------------------------------------------

type cacheTTLKey struct{}

// WithCacheTTL, context'e sonuç cache süresini ekler. ttl <= 0 ise ctx
// olduğu gibi döner.
func WithCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	if ttl <= 0 {
		return ctx
	}
	return context.WithValue(ctx, cacheTTLKey{}, ttl)
}

func cacheTTLFrom(ctx context.Context) time.Duration {
	ttl, _ := ctx.Value(cacheTTLKey{}).(time.Duration)
	return ttl
}

// CachingExecutor, Remember(ttl) sorgularını store'dan sunan Executor
// dekoratörüdür.
type CachingExecutor struct {
	next       Executor
	store      cache.Store
	dispatcher *events.Dispatcher
	logger     Logger
	prefix     string
}

// NewCachingExecutor, yeni bir CachingExecutor üretir.
//
// Parametreler:
//   - next: Asıl executor
//   - store: Sonuçların saklanacağı store (Redis, Memory)
//   - dispatcher: cache.hit / cache.miss event'leri için (nil olabilir)
//   - logger: Cache hataları için (nil olabilir)
func NewCachingExecutor(next Executor, store cache.Store, dispatcher *events.Dispatcher, logger Logger) *CachingExecutor {
	return &CachingExecutor{
		next:       next,
		store:      store,
		dispatcher: dispatcher,
		logger:     loggerOrNop(logger),
		prefix:     "query:",
	}
}

type cachedResult struct {
	Rows []Row `msgpack:"rows"`
}

func (c *CachingExecutor) Execute(ctx context.Context, query string, bindings []Value) (*Result, error) {
	ttl := cacheTTLFrom(ctx)
	if ttl <= 0 || !isCacheableRead(query) {
		return c.next.Execute(ctx, query, bindings)
	}

	key := c.prefix + cacheKey(query, bindings)

	payload, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Printf("⚠️ Cache okuma hatası (%s): %v", key, err)
	}
	if ok {
		res, err := decodeResult(payload)
		if err == nil {
			c.dispatch(true, key)
			return res, nil
		}
		c.logger.Printf("⚠️ Bozuk cache kaydı siliniyor (%s): %v", key, err)
		_ = c.store.Delete(ctx, key)
	}
	c.dispatch(false, key)

	res, err := c.next.Execute(ctx, query, bindings)
	if err != nil {
		return nil, err
	}

	encoded, err := msgpack.Marshal(cachedResult{Rows: res.Rows})
	if err != nil {
		c.logger.Printf("⚠️ Sonuç cache'e yazılamadı (%s): %v", key, err)
		return res, nil
	}
	if err := c.store.Set(ctx, key, encoded, ttl); err != nil {
		c.logger.Printf("⚠️ Cache yazma hatası (%s): %v", key, err)
	}
	return res, nil
}

func (c *CachingExecutor) dispatch(hit bool, key string) {
	if c.dispatcher == nil {
		return
	}
	name := events.EventCacheMiss
	if hit {
		name = events.EventCacheHit
	}
	if c.dispatcher.HasListeners(name) {
		_ = c.dispatcher.Dispatch(events.NewCacheEvent(hit, key))
	}
}

func decodeResult(payload []byte) (*Result, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.UseLooseInterfaceDecoding(true)

	var cached cachedResult
	if err := dec.Decode(&cached); err != nil {
		return nil, err
	}
	if cached.Rows == nil {
		cached.Rows = []Row{}
	}
	return &Result{Rows: cached.Rows}, nil
}

// cacheKey, SQL ve binding'lerden kararlı bir anahtar üretir. Her binding
// "kind:uzunluk:değer" olarak yazılır; Int(1) ile String("1") farklı
// anahtarlara düşer ve bir string değer komşu binding'lerin sınırını taklit
// edemez.
func cacheKey(query string, bindings []Value) string {
	d := xxhash.New()
	_, _ = d.WriteString(query)
	_, _ = d.WriteString("\x00" + strconv.Itoa(len(bindings)))
	for _, b := range bindings {
		v := b.String()
		_, _ = d.WriteString("\x00" + b.Kind().String() + ":" + strconv.Itoa(len(v)) + ":")
		_, _ = d.WriteString(v)
	}
	return strconv.FormatUint(d.Sum64(), 16) + "-" + strconv.Itoa(len(query))
}

func isCacheableRead(query string) bool {
	if !isReadStatement(query) {
		return false
	}
	upper := strings.ToUpper(query)
	return !strings.Contains(upper, " FOR UPDATE") && !strings.Contains(upper, "LOCK IN SHARE MODE")
}
