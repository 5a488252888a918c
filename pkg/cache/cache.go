// -----------------------------------------------------------------------------
// Cache Interface
// -----------------------------------------------------------------------------
// Sorgu sonuçlarını saklayan byte-tabanlı cache sözleşmesi. Değerlerin
// serileştirilmesi çağıranın işidir (database paketi msgpack kullanır);
// driver'lar sadece byte saklar.
//
// Driver'lar: Redis, Memory
// -----------------------------------------------------------------------------

package cache

import (
	"context"
	"time"
)

// Store, tüm cache driver'ların implement etmesi gereken interface.
//
// Örnek kullanım:
//
//	var store cache.Store = cache.NewRedisStore(client, logger, "orm:")
//	store.Set(ctx, "query:ab12", payload, time.Minute)
type Store interface {
	// Get, anahtarın değerini okur. Anahtar yoksa veya süresi dolmuşsa
	// ok=false döner, hata vermez.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set, değeri ttl süresince saklar. ttl = 0 süresiz demektir.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete, verilen anahtarları siler. Olmayan anahtarlar hata değildir.
	Delete(ctx context.Context, keys ...string) error

	// Flush, bu store'un yönettiği tüm anahtarları siler.
	//
	// UYARI: Bu operasyon geri alınamaz!
	Flush(ctx context.Context) error
}

// Stats, cache istatistikleri interface. Driver'lar opsiyonel olarak
// implement eder.
//
//	if s, ok := store.(cache.Stats); ok {
//	    log.Printf("Cache stats: %+v", s.Stats())
//	}
type Stats interface {
	Stats() map[string]interface{}
}

// Logger, log interface'i (dependency injection için).
type Logger interface {
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}
