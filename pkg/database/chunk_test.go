package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biyonik/fluent-orm/pkg/database"
	"github.com/biyonik/fluent-orm/pkg/dbtest"
)

// idPages, "id > ?" binding'ine göre sıradaki sayfayı döndürür.
func idPages(total, size int64) dbtest.Responder {
	return func(_ string, bindings []database.Value) (*database.Result, error) {
		var after int64
		if len(bindings) > 0 {
			after, _ = bindings[len(bindings)-1].Any().(int64)
		}
		rows := []database.Row{}
		for id := after + 1; id <= total && id <= after+size; id++ {
			rows = append(rows, database.Row{"id": id})
		}
		return &database.Result{Rows: rows}, nil
	}
}

func TestChunkByID_AdvancesByLastKey(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.OnFunc("FROM `orders`", idPages(5, 2))

	var seen []any
	err := database.New(fake).Table("orders").ChunkByID(context.Background(), 2, "id", func(batch []database.Entity) error {
		for _, e := range batch {
			v, _ := e.Attribute("id")
			seen = append(seen, v)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4), int64(5)}, seen)
	stmts := fake.Statements()
	require.Len(t, stmts, 3)
	assert.Equal(t, "SELECT * FROM `orders` ORDER BY `id` ASC LIMIT 2", stmts[0].SQL)
	assert.Equal(t, "SELECT * FROM `orders` WHERE `id` > ? ORDER BY `id` ASC LIMIT 2", stmts[1].SQL)
	assert.Equal(t, []any{int64(4)}, stmts[2].Args())
}

func TestChunk_UsesOffsetsAndLeavesBuilderUntouched(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.OnFunc("FROM `users`", func(sql string, _ []database.Value) (*database.Result, error) {
		if sql == "SELECT * FROM `users` LIMIT 2" {
			return &database.Result{Rows: []database.Row{{"id": int64(1)}, {"id": int64(2)}}}, nil
		}
		return &database.Result{Rows: []database.Row{{"id": int64(3)}}}, nil
	})

	qb := database.New(fake).Table("users")
	batches := 0
	require.NoError(t, qb.Chunk(context.Background(), 2, func(batch []database.Entity) error {
		batches++
		return nil
	}))
	assert.Equal(t, 2, batches)
	assert.Equal(t, "SELECT * FROM `users` LIMIT 2 OFFSET 2", fake.Last().SQL)

	sql, _, err := qb.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users`", sql)
}

func TestChunk_StopIteration(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.OnFunc("FROM `orders`", idPages(10, 2))

	calls := 0
	err := database.New(fake).Table("orders").ChunkByID(context.Background(), 2, "", func([]database.Entity) error {
		calls++
		return database.ErrStopIteration
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestChunk_CallbackErrorPropagates(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.OnFunc("FROM `orders`", idPages(10, 2))
	boom := errors.New("boom")

	err := database.New(fake).Table("orders").Chunk(context.Background(), 2, func([]database.Entity) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestChunk_InvalidSize(t *testing.T) {
	err := database.New(dbtest.NewFakeExecutor()).Table("orders").Chunk(context.Background(), 0, nil)
	assert.Error(t, err)
}

func TestLazyByID_BreakStopsQuerying(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.OnFunc("FROM `orders`", idPages(100, 10))

	count := 0
	for e, err := range database.New(fake).Table("orders").LazyByID(context.Background(), 10, "id") {
		require.NoError(t, err)
		require.NotNil(t, e)
		count++
		if count == 15 {
			break
		}
	}
	assert.Equal(t, 15, count)
	assert.Equal(t, 2, fake.Count())
}

func TestChunk_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := database.New(dbtest.NewFakeExecutor()).Table("orders").Chunk(ctx, 5, func([]database.Entity) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
