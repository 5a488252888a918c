// -----------------------------------------------------------------------------
// Database Package
// -----------------------------------------------------------------------------
// Bu dosya, MySQL veritabanına bağlanmayı sağlayan merkezi bağlantı
// fonksiyonunu içerir. DSN elle birleştirilmez; go-sql-driver/mysql'in
// Config tipiyle üretilir, böylece şifredeki özel karakterler doğru escape
// edilir.
// -----------------------------------------------------------------------------

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ConnectionConfig, MySQL bağlantı yapılandırması.
type ConnectionConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	Params          map[string]string // ek DSN parametreleri (örn: "charset": "utf8mb4")
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	DialTimeout     time.Duration
}

// DefaultConnectionConfig, varsayılan havuz ayarlarını döndürür.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Host:            "127.0.0.1",
		Port:            3306,
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
	}
}

// DSN, yapılandırmadan driver DSN'i üretir. parseTime her zaman açıktır;
// DATETIME kolonları time.Time olarak döner.
func (c ConnectionConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Timeout = c.DialTimeout
	if len(c.Params) > 0 {
		cfg.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN()
}

// Connect, MySQL veritabanına bağlanır ve *sql.DB nesnesini döndürür.
//
// Adımlar:
//  1. sql.Open ile bağlantı nesnesi oluşturulur.
//  2. Bağlantı havuzu ayarları uygulanır.
//  3. PingContext ile veritabanının ulaşılabilirliği kontrol edilir.
//  4. Hata varsa bağlantı kapatılır ve error döner.
//
// Örnek:
//
//	cfg := database.DefaultConnectionConfig()
//	cfg.User, cfg.Password, cfg.Database = "app", secret, "shop"
//	conn, err := database.Connect(ctx, cfg, logger)
func Connect(ctx context.Context, cfg ConnectionConfig, logger Logger) (*sql.DB, error) {
	logger = loggerOrNop(logger)

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("mysql open failed: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	logger.Println("Veritabanına bağlanılıyor...")
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping failed: %w", err)
	}

	logger.Printf("✅ Veritabanı bağlantısı başarılı: %s/%s", cfg.Host, cfg.Database)
	return db, nil
}

// mysqlDuplicateEntry, ER_DUP_ENTRY hata kodu.
const mysqlDuplicateEntry = 1062

// IsDuplicateKey, hatanın unique/primary key ihlali olup olmadığını söyler.
// Insert sonrası "zaten var" durumunu ayırt etmek için kullanılır.
func IsDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
