// -----------------------------------------------------------------------------
// Event Listeners
// -----------------------------------------------------------------------------
// Listener, bir event gerçekleştiğinde çalışacak kod bloğudur. Event dispatch
// edildiğinde, o event'e kayıtlı tüm listener'lar sırayla çalıştırılır.
// -----------------------------------------------------------------------------

package events

import (
	"time"
)

// Listener, event'leri dinleyen ve işleyen interface.
type Listener interface {
	// Handle, event'i işler. Hata dönerse dispatcher loglar; diğer
	// listener'lar çalışmaya devam eder.
	Handle(event Event) error
}

// ListenerFunc, fonksiyonları Listener interface'ine çevirir.
//
//	dispatcher.Listen(events.EventQueryExecuted, events.ListenerFunc(func(e events.Event) error {
//	    q := e.(*events.QueryExecuted)
//	    metrics.Observe(q.Duration)
//	    return nil
//	}))
type ListenerFunc func(Event) error

// Handle, ListenerFunc'ı Listener interface'ine uyumlu hale getirir.
func (f ListenerFunc) Handle(event Event) error {
	return f(event)
}

// Logger, log interface'i (dependency injection için).
type Logger interface {
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// -----------------------------------------------------------------------------
// Query Logger
// -----------------------------------------------------------------------------

// QueryLogger, query.executed event'lerini loglar.
//
// SlowThreshold sıfırdan büyükse sadece bu süreyi aşan sorgular ve hatalı
// sorgular loglanır; sıfırsa tüm sorgular loglanır.
type QueryLogger struct {
	logger        Logger
	SlowThreshold time.Duration
}

// NewQueryLogger, yeni bir QueryLogger oluşturur.
//
// Örnek:
//
//	dispatcher.Listen(events.EventQueryExecuted, events.NewQueryLogger(log.Default(), 0))
func NewQueryLogger(logger Logger, slowThreshold time.Duration) *QueryLogger {
	return &QueryLogger{logger: logger, SlowThreshold: slowThreshold}
}

// Handle, sorguyu SQL, binding sayısı, süre ve sonuçla birlikte yazar.
func (l *QueryLogger) Handle(event Event) error {
	q, ok := event.(*QueryExecuted)
	if !ok {
		return nil
	}
	if q.Err != nil {
		l.logger.Printf("❌ [SQL] %s | bindings=%d | %v | error: %v", q.SQL, len(q.Bindings), q.Duration, q.Err)
		return nil
	}
	if l.SlowThreshold > 0 {
		if q.Duration >= l.SlowThreshold {
			l.logger.Printf("🐢 [SQL] slow query (%v >= %v): %s | bindings=%d | rows=%d", q.Duration, l.SlowThreshold, q.SQL, len(q.Bindings), q.Rows)
		}
		return nil
	}
	l.logger.Printf("[SQL] %s | bindings=%d | %v | rows=%d", q.SQL, len(q.Bindings), q.Duration, q.Rows)
	return nil
}

// -----------------------------------------------------------------------------
// Conditional Listener
// -----------------------------------------------------------------------------

// ConditionalListener, sadece belirli koşullarda çalışan listener.
//
// Kullanım:
//
//	writesOnly := events.NewConditionalListener(auditListener, func(e events.Event) bool {
//	    q := e.(*events.QueryExecuted)
//	    return !strings.HasPrefix(q.SQL, "SELECT")
//	})
type ConditionalListener struct {
	listener  Listener
	condition func(Event) bool
}

// NewConditionalListener, yeni bir ConditionalListener oluşturur.
func NewConditionalListener(listener Listener, condition func(Event) bool) *ConditionalListener {
	return &ConditionalListener{
		listener:  listener,
		condition: condition,
	}
}

// Handle, koşul sağlanıyorsa listener'ı çalıştırır.
func (c *ConditionalListener) Handle(event Event) error {
	if c.condition(event) {
		return c.listener.Handle(event)
	}
	return nil
}
