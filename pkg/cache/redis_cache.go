// -----------------------------------------------------------------------------
// Redis Cache Driver
// -----------------------------------------------------------------------------
// Redis-based cache implementation.
//
// Production ortamı için önerilen cache driver. Birden fazla uygulama
// instance'ı aynı sorgu sonuçlarını paylaşabilir.
//
// Özellikler:
// - TTL support
// - Key prefix (namespace)
// - Prefix'e göre Flush (SCAN, KEYS değil)
// -----------------------------------------------------------------------------

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig, Redis bağlantı yapılandırması.
type RedisConfig struct {
	Host         string        // Redis sunucu adresi
	Port         int           // Redis port
	Password     string        // Redis şifresi (opsiyonel)
	DB           int           // Database numarası (0-15)
	PoolSize     int           // Connection pool boyutu
	MinIdleConns int           // Minimum idle connection sayısı
	MaxRetries   int           // Maksimum retry sayısı
	DialTimeout  time.Duration // Bağlantı timeout süresi
	ReadTimeout  time.Duration // Okuma timeout süresi
	WriteTimeout time.Duration // Yazma timeout süresi
}

// DefaultRedisConfig, varsayılan Redis yapılandırması.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:         "127.0.0.1",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewRedisClient, yeni bir Redis client oluşturur ve bağlantıyı test eder.
//
// Parametreler:
//   - ctx: Ping için context (timeout çağıranın sorumluluğunda)
//   - config: Redis yapılandırması (nil ise DefaultRedisConfig)
//   - logger: Log instance
//
// Döndürür:
//   - *redis.Client: Redis client instance
//   - error: Bağlantı hatası
//
// Güvenlik Notu:
// - Redis şifresi environment variable'dan okunmalı (ORM_REDIS_PASSWORD)
func NewRedisClient(ctx context.Context, config *RedisConfig, logger Logger) (*redis.Client, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Printf("❌ Redis bağlantı hatası: %v", err)
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Printf("✅ Redis bağlantısı başarılı: %s:%d (DB: %d)", config.Host, config.Port, config.DB)
	return client, nil
}

// RedisStore, Redis-based Store implementation.
type RedisStore struct {
	client redis.UniversalClient
	logger Logger
	prefix string // Key prefix (namespace)
}

// NewRedisStore, yeni bir Redis store oluşturur.
//
// Örnek:
//
//	store := NewRedisStore(client, logger, "orm:")
//	store.Set(ctx, "query:ab12", payload, time.Minute)
//	// Gerçek key: "orm:query:ab12"
func NewRedisStore(client redis.UniversalClient, logger Logger, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger,
		prefix: prefix,
	}
}

func (r *RedisStore) prefixKey(key string) string {
	return r.prefix + key
}

// Get, cache'den veri okur. redis.Nil miss olarak döner.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.prefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return value, true, nil
}

// Set, cache'e veri yazar.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefixKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete, cache'den veri siler.
func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = r.prefixKey(key)
	}
	if err := r.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Flush, prefix'e ait tüm anahtarları siler.
//
// Prefix boşsa tüm DB temizlenir (FLUSHDB).
//
// UYARI: Bu operasyon geri alınamaz!
func (r *RedisStore) Flush(ctx context.Context) error {
	if r.prefix == "" {
		if err := r.client.FlushDB(ctx).Err(); err != nil {
			return fmt.Errorf("redis flush failed: %w", err)
		}
		r.logger.Println("⚠️ Redis DB temizlendi")
		return nil
	}

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis flush failed: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis flush failed: %w", err)
		}
	}

	r.logger.Printf("⚠️ Redis cache temizlendi (prefix: %s)", r.prefix)
	return nil
}

// Stats, Redis pool istatistiklerini döndürür.
func (r *RedisStore) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"driver": "redis",
		"prefix": r.prefix,
	}
	if c, ok := r.client.(*redis.Client); ok {
		ps := c.PoolStats()
		stats["hits"] = ps.Hits
		stats["misses"] = ps.Misses
		stats["total_conns"] = ps.TotalConns
		stats["idle_conns"] = ps.IdleConns
	}
	return stats
}
