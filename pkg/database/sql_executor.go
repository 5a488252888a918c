package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

// -----------------------------------------------------------------------------
// DATABASE/SQL EXECUTOR
// -----------------------------------------------------------------------------
// Executor arayüzünün database/sql üzerindeki implementasyonu. *sql.DB,
// *sql.Tx ve *sql.Conn aynı Querier arayüzünü sağladığı için builder
// transaction içinde de aynı kodla çalışır.
//
// Okuma ifadeleri (SELECT, WITH, SHOW...) QueryContext ile, geri kalanı
// ExecContext ile çalıştırılır.
// -----------------------------------------------------------------------------

// Querier, *sql.DB, *sql.Tx ve *sql.Conn'un ortak alt kümesidir.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLExecutor, Querier'ı Executor'a çevirir.
type SQLExecutor struct {
	db      Querier
	limiter *rate.Limiter
}

// SQLExecutorOption, SQLExecutor yapılandırma fonksiyonudur.
type SQLExecutorOption func(*SQLExecutor)

// WithRateLimit, saniyede en fazla r ifade çalıştırılacak şekilde executor'u
// yavaşlatır. Chunk/Lazy ile yürüyen uzun batch işlerinin veritabanını
// boğmaması içindir. r <= 0 ise limit uygulanmaz.
//
// Örnek:
//
//	exec := NewSQLExecutor(db, WithRateLimit(50, 10))
func WithRateLimit(r float64, burst int) SQLExecutorOption {
	return func(e *SQLExecutor) {
		if r <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// NewSQLExecutor, yeni bir SQLExecutor üretir.
//
// Parametreler:
//   - db: *sql.DB, *sql.Tx veya *sql.Conn
//   - opts: Opsiyonel ayarlar (WithRateLimit)
func NewSQLExecutor(db Querier, opts ...SQLExecutorOption) *SQLExecutor {
	e := &SQLExecutor{db: db}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute, ifadeyi çalıştırır. Limiter varsa önce izin bekler; bekleme
// context iptaliyle kesilebilir.
func (e *SQLExecutor) Execute(ctx context.Context, query string, bindings []Value) (*Result, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	args := Args(bindings)

	if isReadStatement(query) {
		rows, err := e.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
		defer rows.Close()

		converted, err := rowsToMaps(rows)
		if err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}
		return &Result{Rows: converted}, nil
	}

	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec failed: %w", err)
	}

	out := &Result{}
	// MySQL driver ikisini de destekler; desteklemeyen driver'larda sıfır kalır.
	if id, err := res.LastInsertId(); err == nil {
		out.InsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		out.AffectedRows = n
	}
	return out, nil
}

var readKeywords = []string{"SELECT", "WITH", "SHOW", "EXPLAIN", "DESCRIBE"}

// isReadStatement, ifadenin satır döndürüp döndürmediğini ilk anahtar
// kelimeye bakarak belirler. Union'lar "(" ile başlayabilir.
func isReadStatement(query string) bool {
	q := strings.TrimLeft(query, " \t\r\n(")
	for _, kw := range readKeywords {
		if len(q) >= len(kw) && strings.EqualFold(q[:len(kw)], kw) {
			return true
		}
	}
	return false
}
