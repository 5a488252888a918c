// pkg/database/transaction.go
//
// Bu dosya, bir grup veritabanı işleminin ya tamamen başarılı olmasını ya
// da hiçbirinin uygulanmamış kabul edilmesini sağlayan transaction
// sarmalayıcısını içerir.
//
// Transaction, sql.Tx'i saklar ve ona bağlı bir DB üretir. Bu DB ile
// başlatılan tüm builder'lar (eager loading sorguları dahil) aynı
// transaction üzerinde çalışır.
//
// Örnek kullanım:
//
//   tx, _ := db.Begin(ctx, nil)
//   tx.DB().Table("users").Where("id", "=", 1).Update(ctx, map[string]any{"active": false})
//   tx.Commit()
//
// Eğer işlem sırasında hata olursa:
//   tx.Rollback()

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/biyonik/fluent-orm/pkg/events"
)

// Transaction, veritabanı transaction yapısını temsil eder.
type Transaction struct {
	Tx *sql.Tx
	db *DB
}

// Begin, yeni bir transaction başlatır. Dönen Transaction mutlaka Commit()
// veya Rollback() ile sonlandırılmalıdır.
//
// Parametreler:
//   - ctx: Transaction ömrü boyunca geçerli context
//   - opts: İzolasyon seviyesi / read-only (nil olabilir)
func (db *DB) Begin(ctx context.Context, opts *sql.TxOptions) (*Transaction, error) {
	if db.conn == nil {
		return nil, ErrNoConnection
	}

	tx, err := db.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction failed: %w", err)
	}

	txDB := &DB{
		conn:        db.conn,
		tx:          tx,
		grammar:     db.grammar,
		registry:    db.registry,
		logger:      db.logger,
		dispatcher:  db.dispatcher,
		concurrency: 1,
	}
	txDB.executor = txDB.chain(NewSQLExecutor(tx, db.sqlOpts...), false)
	txDB.loader = NewLoader(txDB.executor, txDB.grammar, txDB.registry, txDB.logger).WithConcurrency(1)

	db.logger.Println("🔄 Transaction başladı.")
	db.dispatchTx(events.EventTransactionBegan)
	return &Transaction{Tx: tx, db: txDB}, nil
}

// DB, transaction'a bağlı DB'yi döndürür.
func (t *Transaction) DB() *DB { return t.db }

// NewBuilder, transaction'a bağlı yeni bir QueryBuilder oluşturur.
func (t *Transaction) NewBuilder() *QueryBuilder { return t.db.builder() }

// Commit, transaction'ı başarılı şekilde sonlandırır.
func (t *Transaction) Commit() error {
	if err := t.Tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	t.db.logger.Println("✅ Transaction commit edildi.")
	t.db.dispatchTx(events.EventTransactionCommitted)
	return nil
}

// Rollback, yapılmış tüm değişiklikleri geri alır.
func (t *Transaction) Rollback() error {
	if err := t.Tx.Rollback(); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	t.db.logger.Println("❌ Transaction geri alındı.")
	t.db.dispatchTx(events.EventTransactionRolledBack)
	return nil
}

func (db *DB) dispatchTx(name string) {
	if db.dispatcher != nil && db.dispatcher.HasListeners(name) {
		_ = db.dispatcher.Dispatch(events.NewBaseEvent(name, nil))
	}
}
