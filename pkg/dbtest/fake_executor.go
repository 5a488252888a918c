// Package dbtest, database paketini gerçek bir veritabanı olmadan test
// etmek için sahte executor sağlar.
//
// FakeExecutor gönderilen her ifadeyi kaydeder ve SQL içinde geçen bir
// parçaya göre önceden tanımlanmış cevap döner. Eager loading testlerinde
// sorgu sayısını (N+1 olmaması) doğrulamak için kullanılır.
//
//	fake := dbtest.NewFakeExecutor()
//	fake.On("FROM `users`", database.Row{"id": int64(1)})
//	fake.On("FROM `posts`", database.Row{"id": int64(10), "user_id": int64(1)})
//
//	db := database.New(fake, database.WithRegistry(registry))
//	users, _ := db.Model("user").With("posts").Get(ctx)
//	fake.Count() // 2
package dbtest

import (
	"context"
	"maps"
	"strings"
	"sync"

	"github.com/biyonik/fluent-orm/pkg/database"
)

// Statement, executor'a gönderilmiş tek bir ifadedir.
type Statement struct {
	SQL      string
	Bindings []database.Value
}

// Args, binding'leri ham Go değerleri olarak döndürür.
func (s Statement) Args() []any {
	return database.Args(s.Bindings)
}

// Responder, bir ifadeye cevap üreten fonksiyondur.
type Responder func(sql string, bindings []database.Value) (*database.Result, error)

type handler struct {
	fragment string
	respond  Responder
}

// FakeExecutor, database.Executor'ın kayıt tutan sahte implementasyonudur.
// Eşzamanlı kullanım için güvenlidir.
type FakeExecutor struct {
	mu         sync.Mutex
	handlers   []handler
	statements []Statement
}

// NewFakeExecutor, boş bir sahte executor üretir. Eşleşmeyen okuma
// ifadeleri boş sonuç, yazma ifadeleri sıfır etkilenen satır döner.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{}
}

// On, SQL'inde fragment geçen ifadeler için verilen satırları döndürür.
// Her çağrıda satırların kopyası verilir. İlk eşleşen kayıt kazanır.
func (f *FakeExecutor) On(fragment string, rows ...database.Row) *FakeExecutor {
	return f.OnFunc(fragment, func(string, []database.Value) (*database.Result, error) {
		out := make([]database.Row, len(rows))
		for i, r := range rows {
			out[i] = maps.Clone(r)
		}
		return &database.Result{Rows: out}, nil
	})
}

// OnExec, yazma ifadeleri için etkilenen satır ve insert id döndürür.
func (f *FakeExecutor) OnExec(fragment string, affected, insertID int64) *FakeExecutor {
	return f.OnFunc(fragment, func(string, []database.Value) (*database.Result, error) {
		return &database.Result{AffectedRows: affected, InsertID: insertID}, nil
	})
}

// OnError, eşleşen ifadeler için hata döndürür.
func (f *FakeExecutor) OnError(fragment string, err error) *FakeExecutor {
	return f.OnFunc(fragment, func(string, []database.Value) (*database.Result, error) {
		return nil, err
	})
}

// OnFunc, eşleşen ifadeler için özel cevap üreticisi tanımlar.
func (f *FakeExecutor) OnFunc(fragment string, respond Responder) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler{fragment: fragment, respond: respond})
	return f
}

// Execute, ifadeyi kaydeder ve cevabı döndürür.
func (f *FakeExecutor) Execute(ctx context.Context, sql string, bindings []database.Value) (*database.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.statements = append(f.statements, Statement{SQL: sql, Bindings: append([]database.Value(nil), bindings...)})
	var respond Responder
	for _, h := range f.handlers {
		if strings.Contains(sql, h.fragment) {
			respond = h.respond
			break
		}
	}
	f.mu.Unlock()

	if respond == nil {
		return &database.Result{Rows: []database.Row{}}, nil
	}
	return respond(sql, bindings)
}

// Statements, kaydedilmiş ifadelerin kopyasını gönderim sırasıyla döndürür.
func (f *FakeExecutor) Statements() []Statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Statement(nil), f.statements...)
}

// Count, çalıştırılan ifade sayısını döndürür.
func (f *FakeExecutor) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.statements)
}

// Matching, SQL'inde fragment geçen ifadeleri döndürür.
func (f *FakeExecutor) Matching(fragment string) []Statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Statement
	for _, s := range f.statements {
		if strings.Contains(s.SQL, fragment) {
			out = append(out, s)
		}
	}
	return out
}

// Last, son ifadeyi döndürür; hiç ifade yoksa sıfır değer.
func (f *FakeExecutor) Last() Statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statements) == 0 {
		return Statement{}
	}
	return f.statements[len(f.statements)-1]
}

// Reset, kayıtlı ifadeleri siler; cevap tanımları kalır.
func (f *FakeExecutor) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = nil
}
