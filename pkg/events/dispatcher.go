// -----------------------------------------------------------------------------
// Event Dispatcher
// -----------------------------------------------------------------------------
// Event'leri dispatch eden ve listener'ları yöneten merkezi yapı. Executor
// decorator'ı her sorgudan sonra buraya bir QueryExecuted event'i gönderir;
// bu yüzden dispatch yolu listener yoksa hiçbir iş yapmaz ve loglamaz.
//
// Kullanım:
//
//	dispatcher := events.NewDispatcher(logger)
//	defer dispatcher.Shutdown()
//
//	dispatcher.Listen(events.EventQueryExecuted, events.NewQueryLogger(logger, 0))
//	dispatcher.Dispatch(events.NewQueryExecutedEvent(sql, args, d, n, err))
// -----------------------------------------------------------------------------

package events

import (
	"fmt"
	"sync"
	"time"
)

// Dispatcher, event'leri yöneten merkezi yapıdır.
//
// Özellikler:
// - Thread-safe (concurrent kullanım için güvenli)
// - Event başına birden fazla listener
// - Senkron ve asenkron dispatch
// - Graceful shutdown (kabul edilen async event'ler beklenir)
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	logger    Logger
	wg        sync.WaitGroup // Async event'leri takip etmek için

	// asyncMu, closed ve wg.Add'i Shutdown'ın wg.Wait'iyle sıralar.
	asyncMu sync.Mutex
	closed  bool
}

// NewDispatcher, yeni bir Dispatcher oluşturur.
//
// Shutdown:
// Dispatcher kullanımı bittiğinde Shutdown() çağrılmalıdır:
//
//	defer dispatcher.Shutdown()
func NewDispatcher(logger Logger) *Dispatcher {
	return &Dispatcher{
		listeners: make(map[string][]Listener),
		logger:    logger,
	}
}

// Listen, belirtilen event'e bir listener kaydeder.
//
// Örnek:
//
//	dispatcher.Listen(events.EventQueryExecuted, events.NewQueryLogger(logger, 0))
func (d *Dispatcher) Listen(eventName string, listener Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.listeners[eventName] = append(d.listeners[eventName], listener)
	d.logger.Printf("✅ Listener registered for event: %s", eventName)
}

// Subscribe, bir listener'ı birden fazla event'e aynı anda kaydeder.
//
//	dispatcher.Subscribe(
//	    []string{events.EventTransactionCommitted, events.EventTransactionRolledBack},
//	    auditListener,
//	)
func (d *Dispatcher) Subscribe(eventNames []string, listener Listener) {
	for _, eventName := range eventNames {
		d.Listen(eventName, listener)
	}
}

// Dispatch, bir event'i tüm kayıtlı listener'lara sırayla gönderir.
//
// Döndürür:
//   - error: Listener'lardan herhangi biri hata dönerse son hatayı döner
//
// Hata Yönetimi:
// Bir listener hata dönerse log'a yazılır ama diğer listener'lar
// çalışmaya devam eder.
func (d *Dispatcher) Dispatch(event Event) error {
	d.mu.RLock()
	listeners := d.listeners[event.Name()]
	d.mu.RUnlock()

	var lastError error
	for _, listener := range listeners {
		if err := listener.Handle(event); err != nil {
			lastError = err
			d.logger.Printf("❌ Listener error for '%s': %v", event.Name(), err)
		}
	}
	return lastError
}

// DispatchAsync, event'i goroutine'de dispatch eder ve hemen döner.
//
// GÜVENLİK NOTU:
// Shutdown() çağrıldıktan sonra async event'ler dispatch edilmez. Shutdown'dan
// önce kabul edilen event'ler ise tamamlanır; Shutdown onları bekler.
func (d *Dispatcher) DispatchAsync(event Event) {
	d.asyncMu.Lock()
	if d.closed {
		d.asyncMu.Unlock()
		d.logger.Printf("⚠️  Dispatcher is shutting down, async event '%s' ignored", event.Name())
		return
	}
	d.wg.Add(1)
	d.asyncMu.Unlock()

	go func() {
		defer d.wg.Done()

		if err := d.Dispatch(event); err != nil {
			d.logger.Printf("❌ Async dispatch error for '%s': %v", event.Name(), err)
		}
	}()
}

// close, yeni async event kabulünü durdurur. Birden fazla çağrılabilir.
func (d *Dispatcher) close() {
	d.asyncMu.Lock()
	d.closed = true
	d.asyncMu.Unlock()
}

// Forget, belirtilen event için tüm listener'ları kaldırır.
func (d *Dispatcher) Forget(eventName string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.listeners, eventName)
}

// HasListeners, belirtilen event için listener olup olmadığını söyler.
// Executor decorator'ı event nesnesini oluşturmadan önce bunu kontrol eder.
func (d *Dispatcher) HasListeners(eventName string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.listeners[eventName]) > 0
}

// Clear, tüm listener'ları temizler. Testlerde kullanılır.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.listeners = make(map[string][]Listener)
}

// Stats, event adı → listener sayısı haritasını döndürür.
func (d *Dispatcher) Stats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[string]int, len(d.listeners))
	for event, listeners := range d.listeners {
		stats[event] = len(listeners)
	}
	return stats
}

// Shutdown, yeni async event'leri engeller ve bekleyenlerin bitmesini bekler.
func (d *Dispatcher) Shutdown() {
	d.close()
	d.wg.Wait()
	d.logger.Println("✅ Event dispatcher shutdown complete")
}

// ShutdownWithTimeout, Shutdown'ın süre sınırlı halidir. Süre aşılırsa hata döner.
func (d *Dispatcher) ShutdownWithTimeout(timeout time.Duration) error {
	d.close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Println("✅ Event dispatcher shutdown complete")
		return nil
	case <-time.After(timeout):
		d.logger.Println("⚠️  Event dispatcher shutdown timeout - some events may not have completed")
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
