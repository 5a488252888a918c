package database

import (
	"context"
	"time"

	"github.com/biyonik/fluent-orm/pkg/events"
)

// EventExecutor, her ifadeden sonra "query.executed" event'i yayınlayan
// Executor dekoratörüdür.
//
// Dinleyici yoksa event nesnesi hiç oluşturulmaz. Listener hataları
// sorgunun sonucunu etkilemez; dispatcher tarafından loglanır.
//
// Örnek:
//
//	dispatcher := events.NewDispatcher(logger)
//	dispatcher.Listen(events.EventQueryExecuted, events.NewQueryLogger(logger, 200*time.Millisecond))
//	exec := NewEventExecutor(NewSQLExecutor(db), dispatcher)
type EventExecutor struct {
	next       Executor
	dispatcher *events.Dispatcher
}

// NewEventExecutor, next'i event yayını ile sarar.
func NewEventExecutor(next Executor, dispatcher *events.Dispatcher) *EventExecutor {
	return &EventExecutor{next: next, dispatcher: dispatcher}
}

func (e *EventExecutor) Execute(ctx context.Context, query string, bindings []Value) (*Result, error) {
	start := time.Now()
	res, err := e.next.Execute(ctx, query, bindings)

	if e.dispatcher == nil || !e.dispatcher.HasListeners(events.EventQueryExecuted) {
		return res, err
	}

	var rows int64
	if res != nil {
		rows = int64(len(res.Rows))
		if res.Rows == nil {
			rows = res.AffectedRows
		}
	}
	_ = e.dispatcher.Dispatch(events.NewQueryExecutedEvent(query, Args(bindings), time.Since(start), rows, err))

	return res, err
}
