// -----------------------------------------------------------------------------
// Config Package
// -----------------------------------------------------------------------------
// Bu dosya, ORM'in merkezi konfigürasyon yönetimini sağlar. Laravel'deki
// config/database.php ve .env ikilisine benzer şekilde ayarlar varsayılan
// değerler, opsiyonel bir YAML dosyası ve ORM_ önekli ortam değişkenleri
// üzerinden okunur.
//
// Öncelik sırası (yüksekten düşüğe):
//  1. Ortam değişkenleri (ORM_DATABASE_HOST, ORM_CACHE_DRIVER ...)
//  2. Config dosyası (fluent-orm.yaml)
//  3. Varsayılan değerler
// -----------------------------------------------------------------------------

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix, ortam değişkenlerinin öneki.
const EnvPrefix = "ORM"

// Cache driver isimleri.
const (
	CacheDriverNone   = "none"
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

// Config, ORM'in merkezi yapılandırma nesnesidir.
//
// Nested struct yapısı kullanılarak ilgili ayarlar gruplandırılmıştır:
//   - Database: MySQL bağlantı ve havuz ayarları
//   - Cache: Remember() sonuçlarının saklandığı store
//   - Redis: Redis bağlantı ayarları (cache driver redis ise)
//   - Executor: SQL executor throttling ayarları
//   - Eager: Eager loader eşzamanlılığı
//   - Log: Sorgu loglama
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Eager    EagerConfig    `mapstructure:"eager"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig, MySQL bağlantı ayarları.
type DatabaseConfig struct {
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	User            string            `mapstructure:"user"`
	Password        string            `mapstructure:"password"` // ORM_DATABASE_PASSWORD ile verilmeli
	Name            string            `mapstructure:"name"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration     `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration     `mapstructure:"conn_max_idle_time"`
	DialTimeout     time.Duration     `mapstructure:"dial_timeout"`
}

// CacheConfig, sorgu cache ayarları.
type CacheConfig struct {
	Driver          string        `mapstructure:"driver"` // none, memory, redis
	Prefix          string        `mapstructure:"prefix"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"` // memory driver için
}

// RedisConfig, Redis bağlantı ayarları.
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ExecutorConfig, SQL executor ayarları. RateLimit sıfır ise sınırsızdır.
type ExecutorConfig struct {
	RateLimit float64 `mapstructure:"rate_limit"` // saniye başına sorgu
	Burst     int     `mapstructure:"burst"`
}

// EagerConfig, eager loader ayarları.
type EagerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// LogConfig, sorgu loglama ayarları.
type LogConfig struct {
	Queries       bool          `mapstructure:"queries"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// setDefaults, tüm anahtarlar için varsayılan değerleri tanımlar.
//
// Her anahtarın bir varsayılanı olmalıdır; viper ortam değişkenlerini
// Unmarshal sırasında sadece bilinen anahtarlar için okur.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.params", map[string]string{"charset": "utf8mb4"})
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 0)
	v.SetDefault("database.dial_timeout", 5*time.Second)

	v.SetDefault("cache.driver", CacheDriverMemory)
	v.SetDefault("cache.prefix", "orm:")
	v.SetDefault("cache.cleanup_interval", time.Minute)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("executor.rate_limit", 0)
	v.SetDefault("executor.burst", 1)

	v.SetDefault("eager.concurrency", 4)

	v.SetDefault("log.queries", false)
	v.SetDefault("log.slow_threshold", 0)
}

// Load, yapılandırmayı okur ve doğrular.
//
// Parametreler:
//   - path: Config dosyası yolu. Boşsa "fluent-orm.yaml" çalışma dizininde
//     ve $HOME/.fluent-orm altında aranır; bulunamaması hata değildir.
//
// Döndürür:
//   - *Config: Yapılandırma nesnesi
//   - error: Dosya okunamazsa veya değerler geçersizse
//
// Örnek kullanım:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatalf("❌ Config yüklenemedi: %v", err)
//	}
//	log.Printf("Cache Driver: %s", cfg.Cache.Driver)
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fluent-orm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.fluent-orm")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// ORM_DATABASE_MAX_OPEN_CONNS -> database.max_open_conns
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate, birbirine bağlı alanları kontrol eder.
func (c *Config) Validate() error {
	var errs []error

	switch c.Cache.Driver {
	case CacheDriverNone, CacheDriverMemory, CacheDriverRedis:
	default:
		errs = append(errs, fmt.Errorf("cache.driver: unknown driver %q", c.Cache.Driver))
	}

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Errorf("database.port: out of range: %d", c.Database.Port))
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns && c.Database.MaxOpenConns > 0 {
		errs = append(errs, fmt.Errorf("database.max_idle_conns (%d) exceeds max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns))
	}
	if c.Executor.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("executor.rate_limit: must not be negative"))
	}
	if c.Executor.RateLimit > 0 && c.Executor.Burst < 1 {
		errs = append(errs, fmt.Errorf("executor.burst: must be at least 1 when rate_limit is set"))
	}
	if c.Eager.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("eager.concurrency: must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
