// -----------------------------------------------------------------------------
// Event Dispatcher Tests
// -----------------------------------------------------------------------------
// Testler:
// - Query event'lerinin listener'lara ulaşması
// - Graceful shutdown
// - Async dispatch ve context iptali
// - Concurrent dispatch
// - QueryLogger eşik davranışı
// -----------------------------------------------------------------------------

package events

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// MockLogger, test için basit logger.
type MockLogger struct {
	mu   sync.Mutex
	logs []string
}

func NewMockLogger() *MockLogger {
	return &MockLogger{logs: make([]string, 0)}
}

func (m *MockLogger) Printf(format string, v ...interface{}) {
	m.mu.Lock()
	m.logs = append(m.logs, fmt.Sprintf(format, v...))
	m.mu.Unlock()
}

func (m *MockLogger) Println(v ...interface{}) {
	m.mu.Lock()
	m.logs = append(m.logs, fmt.Sprint(v...))
	m.mu.Unlock()
}

func (m *MockLogger) GetLogs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.logs...)
}

func (m *MockLogger) Contains(substr string) bool {
	for _, l := range m.GetLogs() {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// TestListener, test için basit listener.
type TestListener struct {
	handled *atomic.Int32
	delay   time.Duration
	err     error
	last    atomic.Value
}

func NewTestListener() *TestListener {
	return &TestListener{handled: &atomic.Int32{}}
}

func (l *TestListener) Handle(event Event) error {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.handled.Add(1)
	l.last.Store(eventBox{event})
	return l.err
}

type eventBox struct{ event Event }

func (l *TestListener) Last() Event {
	box, _ := l.last.Load().(eventBox)
	return box.event
}

func (l *TestListener) HandledCount() int {
	return int(l.handled.Load())
}

func TestDispatcher_QueryExecutedReachesListener(t *testing.T) {
	dispatcher := NewDispatcher(NewMockLogger())
	defer dispatcher.Shutdown()

	listener := NewTestListener()
	dispatcher.Listen(EventQueryExecuted, listener)

	event := NewQueryExecutedEvent("SELECT * FROM `users` WHERE `id` = ?", []interface{}{int64(1)}, 3*time.Millisecond, 1, nil)
	if err := dispatcher.Dispatch(event); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if listener.HandledCount() != 1 {
		t.Fatalf("Expected listener to be called once, got: %d", listener.HandledCount())
	}
	got, ok := listener.Last().(*QueryExecuted)
	if !ok {
		t.Fatalf("Expected *QueryExecuted, got %T", listener.Last())
	}
	if got.SQL != event.SQL || got.Rows != 1 {
		t.Errorf("Unexpected event payload: %+v", got)
	}
	if got.Payload() != event {
		t.Errorf("Payload should be the event itself")
	}
}

func TestDispatcher_NoListenersIsSilent(t *testing.T) {
	logger := NewMockLogger()
	dispatcher := NewDispatcher(logger)
	defer dispatcher.Shutdown()

	before := len(logger.GetLogs())
	if err := dispatcher.Dispatch(NewBaseEvent(EventQueryExecuted, nil)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(logger.GetLogs()) != before {
		t.Errorf("Dispatch without listeners should not log")
	}
	if dispatcher.HasListeners(EventQueryExecuted) {
		t.Errorf("HasListeners should be false")
	}
}

func TestDispatcher_MultipleListeners(t *testing.T) {
	dispatcher := NewDispatcher(NewMockLogger())
	defer dispatcher.Shutdown()

	listeners := []*TestListener{NewTestListener(), NewTestListener(), NewTestListener()}
	for _, l := range listeners {
		dispatcher.Listen(EventCacheHit, l)
	}

	dispatcher.Dispatch(NewCacheEvent(true, "query:abc"))

	for i, l := range listeners {
		if l.HandledCount() != 1 {
			t.Errorf("Listener %d: expected 1 call, got %d", i+1, l.HandledCount())
		}
	}
	if dispatcher.Stats()[EventCacheHit] != 3 {
		t.Errorf("Stats mismatch: %v", dispatcher.Stats())
	}
}

func TestDispatcher_AsyncDispatch(t *testing.T) {
	dispatcher := NewDispatcher(NewMockLogger())
	defer dispatcher.Shutdown()

	listener := NewTestListener()
	listener.delay = 100 * time.Millisecond
	dispatcher.Listen("test.event", listener)

	start := time.Now()
	dispatcher.DispatchAsync(NewBaseEvent("test.event", "async-data"))
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("DispatchAsync blocked for %v, expected < 50ms", elapsed)
	}

	time.Sleep(200 * time.Millisecond)
	if listener.HandledCount() != 1 {
		t.Errorf("Expected listener to be called once, got: %d", listener.HandledCount())
	}
}

func TestDispatcher_Shutdown(t *testing.T) {
	dispatcher := NewDispatcher(NewMockLogger())

	listener := NewTestListener()
	listener.delay = 100 * time.Millisecond
	dispatcher.Listen("test.event", listener)

	for i := 0; i < 10; i++ {
		dispatcher.DispatchAsync(NewBaseEvent("test.event", fmt.Sprintf("data-%d", i)))
	}

	start := time.Now()
	dispatcher.Shutdown()
	elapsed := time.Since(start)

	if listener.HandledCount() != 10 {
		t.Errorf("Expected 10 listener calls, got: %d", listener.HandledCount())
	}
	if elapsed < 100*time.Millisecond {
		t.Errorf("Shutdown completed too quickly: %v", elapsed)
	}
}

func TestDispatcher_ShutdownWithTimeout(t *testing.T) {
	dispatcher := NewDispatcher(NewMockLogger())

	listener := NewTestListener()
	listener.delay = 500 * time.Millisecond
	dispatcher.Listen("test.event", listener)

	dispatcher.DispatchAsync(NewBaseEvent("test.event", "data"))

	if err := dispatcher.ShutdownWithTimeout(100 * time.Millisecond); err == nil {
		t.Error("Expected timeout error, got nil")
	}
}

func TestDispatcher_AsyncAfterShutdown(t *testing.T) {
	dispatcher := NewDispatcher(NewMockLogger())

	listener := NewTestListener()
	dispatcher.Listen("test.event", listener)

	dispatcher.Shutdown()
	dispatcher.DispatchAsync(NewBaseEvent("test.event", "ignored-data"))

	time.Sleep(100 * time.Millisecond)
	if listener.HandledCount() != 0 {
		t.Errorf("Expected 0 listener calls after shutdown, got: %d", listener.HandledCount())
	}
}

func TestDispatcher_AsyncRacingShutdown(t *testing.T) {
	logger := NewMockLogger()
	dispatcher := NewDispatcher(logger)

	listener := NewTestListener()
	dispatcher.Listen("test.event", listener)

	const producers, perProducer = 8, 50
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < perProducer; j++ {
				dispatcher.DispatchAsync(NewBaseEvent("test.event", j))
			}
		}()
	}

	close(start)
	dispatcher.Shutdown()
	wg.Wait()

	ignored := 0
	for _, line := range logger.GetLogs() {
		if strings.Contains(line, "ignored") {
			ignored++
		}
	}

	// Shutdown döndükten sonra kabul edilmiş her event işlenmiş olmalı
	if got, want := listener.HandledCount(), producers*perProducer-ignored; got != want {
		t.Errorf("Expected %d handled events (ignored %d), got: %d", want, ignored, got)
	}
}

func TestDispatcher_ConcurrentDispatch(t *testing.T) {
	dispatcher := NewDispatcher(NewMockLogger())
	defer dispatcher.Shutdown()

	listener := NewTestListener()
	dispatcher.Listen(EventQueryExecuted, listener)

	var wg sync.WaitGroup
	numGoroutines := 50
	eventsPerGoroutine := 20

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				dispatcher.Dispatch(NewQueryExecutedEvent(fmt.Sprintf("SELECT %d", id), nil, 0, int64(j), nil))
			}
		}(i)
	}
	wg.Wait()

	if expected := numGoroutines * eventsPerGoroutine; listener.HandledCount() != expected {
		t.Errorf("Expected %d listener calls, got: %d", expected, listener.HandledCount())
	}
}

func TestDispatcher_ListenerError(t *testing.T) {
	dispatcher := NewDispatcher(NewMockLogger())
	defer dispatcher.Shutdown()

	listener1 := NewTestListener()
	listener2 := NewTestListener()
	listener2.err = fmt.Errorf("simulated error")
	listener3 := NewTestListener()

	dispatcher.Subscribe([]string{"test.event"}, listener1)
	dispatcher.Listen("test.event", listener2)
	dispatcher.Listen("test.event", listener3)

	if err := dispatcher.Dispatch(NewBaseEvent("test.event", "test-data")); err == nil {
		t.Error("Expected error from listener2, got nil")
	}
	for i, l := range []*TestListener{listener1, listener2, listener3} {
		if l.HandledCount() != 1 {
			t.Errorf("Listener %d: expected 1 call, got %d", i+1, l.HandledCount())
		}
	}
}

func TestDispatcher_ConditionalListener(t *testing.T) {
	dispatcher := NewDispatcher(NewMockLogger())
	defer dispatcher.Shutdown()

	listener := NewTestListener()
	writesOnly := NewConditionalListener(listener, func(e Event) bool {
		q, ok := e.(*QueryExecuted)
		return ok && !strings.HasPrefix(q.SQL, "SELECT")
	})
	dispatcher.Listen(EventQueryExecuted, writesOnly)

	dispatcher.Dispatch(NewQueryExecutedEvent("UPDATE `users` SET `name` = ? WHERE `id` = ?", nil, 0, 1, nil))
	dispatcher.Dispatch(NewQueryExecutedEvent("SELECT * FROM `users`", nil, 0, 10, nil))

	if listener.HandledCount() != 1 {
		t.Errorf("Expected 1 listener call, got: %d", listener.HandledCount())
	}
}

func TestQueryLogger_LogsEveryQueryWithoutThreshold(t *testing.T) {
	logger := NewMockLogger()
	ql := NewQueryLogger(logger, 0)

	ql.Handle(NewQueryExecutedEvent("SELECT * FROM `posts` WHERE `user_id` IN (?, ?)", []interface{}{1, 2}, time.Millisecond, 4, nil))

	if !logger.Contains("SELECT * FROM `posts`") || !logger.Contains("bindings=2") {
		t.Errorf("Expected query to be logged, got: %v", logger.GetLogs())
	}
}

func TestQueryLogger_SlowThreshold(t *testing.T) {
	logger := NewMockLogger()
	ql := NewQueryLogger(logger, 100*time.Millisecond)

	ql.Handle(NewQueryExecutedEvent("SELECT 1", nil, 5*time.Millisecond, 1, nil))
	if len(logger.GetLogs()) != 0 {
		t.Fatalf("Fast query should not be logged: %v", logger.GetLogs())
	}

	ql.Handle(NewQueryExecutedEvent("SELECT SLEEP(1)", nil, time.Second, 1, nil))
	if !logger.Contains("slow query") {
		t.Errorf("Expected slow query log, got: %v", logger.GetLogs())
	}

	ql.Handle(NewQueryExecutedEvent("SELECT bad", nil, time.Millisecond, 0, errors.New("syntax error")))
	if !logger.Contains("syntax error") {
		t.Errorf("Failed queries are always logged, got: %v", logger.GetLogs())
	}
}

func BenchmarkDispatcher_QueryExecuted(b *testing.B) {
	dispatcher := NewDispatcher(NewMockLogger())
	defer dispatcher.Shutdown()

	dispatcher.Listen(EventQueryExecuted, NewTestListener())
	event := NewQueryExecutedEvent("SELECT 1", nil, 0, 1, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dispatcher.Dispatch(event)
	}
}
