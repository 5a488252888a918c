package database

import "context"

// Executor, parametreli bir SQL ifadesini çalıştıran dış bileşendir.
//
// Builder *sql.DB'ye kilitlenmek yerine bu arayüze kilitlenir. Bu sayede
// hem normal sorgularda hem transaction içinde, hem de testlerde sahte bir
// executor ile çalışabilir. Timeout, retry ve iptal bu arayüzün
// implementasyonuna aittir; builder hiçbirini kendisi uygulamaz.
type Executor interface {
	Execute(ctx context.Context, query string, bindings []Value) (*Result, error)
}

// ExecutorFunc, sıradan bir fonksiyonu Executor'a çevirir.
type ExecutorFunc func(ctx context.Context, query string, bindings []Value) (*Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, query string, bindings []Value) (*Result, error) {
	return f(ctx, query, bindings)
}

// Result, bir ifadenin sonucudur. SELECT için Rows dolar; INSERT/UPDATE/DELETE
// için InsertID ve AffectedRows.
type Result struct {
	Rows         []Row
	InsertID     int64
	AffectedRows int64
}
