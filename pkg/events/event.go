// -----------------------------------------------------------------------------
// Event System - Core Interfaces
// -----------------------------------------------------------------------------
// ORM katmanında meydana gelen olayları (sorgu çalıştırıldı, cache isabet
// etti, transaction commit edildi...) dinleyicilere taşıyan temel yapılar.
//
// Kullanım:
//
//	dispatcher.Listen(events.EventQueryExecuted, events.NewQueryLogger(logger, 200*time.Millisecond))
// -----------------------------------------------------------------------------

package events

import (
	"time"
)

// Event, tüm event'lerin implement etmesi gereken interface.
type Event interface {
	// Name, event'in benzersiz adını döndürür. Örnek: "query.executed"
	Name() string

	// OccurredAt, event'in gerçekleşme zamanını döndürür.
	OccurredAt() time.Time

	// Payload, event ile taşınan veriyi döndürür.
	Payload() interface{}
}

// BaseEvent, tüm custom event'ler için temel yapıdır.
//
//	type TicketReserved struct {
//	    events.BaseEvent
//	    TicketID int64
//	}
type BaseEvent struct {
	name       string
	occurredAt time.Time
	payload    interface{}
}

// NewBaseEvent, yeni bir BaseEvent oluşturur.
//
// Parametreler:
//   - name: Event adı (örn: "query.executed")
//   - payload: Event verisi (nil olabilir)
func NewBaseEvent(name string, payload interface{}) *BaseEvent {
	return &BaseEvent{
		name:       name,
		occurredAt: time.Now(),
		payload:    payload,
	}
}

// Name, event adını döndürür.
func (e *BaseEvent) Name() string {
	return e.name
}

// OccurredAt, event zamanını döndürür.
func (e *BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

// Payload, event verisini döndürür.
func (e *BaseEvent) Payload() interface{} {
	return e.payload
}

// SetPayload, event verisini günceller.
func (e *BaseEvent) SetPayload(payload interface{}) {
	e.payload = payload
}

// -----------------------------------------------------------------------------
// ORM Event Types
// -----------------------------------------------------------------------------

const (
	// Query Events
	EventQueryExecuted = "query.executed"

	// Cache Events
	EventCacheHit  = "cache.hit"
	EventCacheMiss = "cache.miss"

	// Transaction Events
	EventTransactionBegan      = "transaction.began"
	EventTransactionCommitted  = "transaction.committed"
	EventTransactionRolledBack = "transaction.rolled_back"
)

// QueryExecuted, bir SQL ifadesi executor'dan döndüğünde yayınlanır.
//
// Alanlar:
//   - SQL: Gönderilen ifade
//   - Bindings: Sürücüye verilen parametreler
//   - Duration: Çalışma süresi
//   - Rows: SELECT için satır sayısı, diğerleri için etkilenen satır
//   - Err: Executor hatası (varsa)
type QueryExecuted struct {
	BaseEvent
	SQL      string
	Bindings []interface{}
	Duration time.Duration
	Rows     int64
	Err      error
}

// NewQueryExecutedEvent, QueryExecuted event'i oluşturur.
func NewQueryExecutedEvent(sql string, bindings []interface{}, duration time.Duration, rows int64, err error) *QueryExecuted {
	e := &QueryExecuted{
		SQL:      sql,
		Bindings: bindings,
		Duration: duration,
		Rows:     rows,
		Err:      err,
	}
	e.BaseEvent = *NewBaseEvent(EventQueryExecuted, nil)
	e.SetPayload(e)
	return e
}

// NewCacheEvent, cache isabet/ıskalama event'i oluşturur. Payload cache anahtarıdır.
func NewCacheEvent(hit bool, key string) Event {
	if hit {
		return NewBaseEvent(EventCacheHit, key)
	}
	return NewBaseEvent(EventCacheMiss, key)
}
