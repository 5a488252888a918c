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

func TestInsert_SortedColumns(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.OnExec("INSERT INTO `users`", 1, 42)

	id, err := database.New(fake).Table("users").Insert(context.Background(), map[string]any{
		"name":  "Ada",
		"email": "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	last := fake.Last()
	assert.Equal(t, "INSERT INTO `users` (`email`, `name`) VALUES (?, ?)", last.SQL)
	assert.Equal(t, []any{"ada@example.com", "Ada"}, last.Args())
}

func TestInsertMany_MissingKeysBecomeNull(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.OnExec("INSERT INTO", 2, 0)

	n, err := database.New(fake).Table("tags").InsertMany(context.Background(), []map[string]any{
		{"name": "go"},
		{"name": "sql", "color": "blue"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	last := fake.Last()
	assert.Equal(t, "INSERT INTO `tags` (`color`, `name`) VALUES (?, ?), (?, ?)", last.SQL)
	assert.Equal(t, []any{nil, "go", "blue", "sql"}, last.Args())
}

func TestUpsert(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	db := database.New(fake)

	_, err := db.Table("stocks").Upsert(context.Background(),
		[]map[string]any{{"sku": "A1", "qty": 5}},
		[]string{"sku"}, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO `stocks` (`qty`, `sku`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `qty` = VALUES(`qty`)",
		fake.Last().SQL)

	_, err = db.Table("stocks").Upsert(context.Background(), []map[string]any{{"qty": 5}}, []string{"sku"}, nil)
	assert.Error(t, err)
}

func TestUpdate_SetBindingsPrecedeWhere(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.OnExec("UPDATE `users`", 3, 0)

	n, err := database.New(fake).Table("users").
		Where("active", "=", false).
		Update(context.Background(), map[string]any{"status": "archived", "score": database.Raw("`score` * 2")})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	last := fake.Last()
	assert.Equal(t, "UPDATE `users` SET `score` = `score` * 2, `status` = ? WHERE `active` = ?", last.SQL)
	assert.Equal(t, []any{"archived", false}, last.Args())
}

func TestIncrementAndDecrement(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	db := database.New(fake)

	_, err := db.Table("events").Where("id", "=", 1).Increment(context.Background(), "sold", 2, map[string]any{"status": "selling"})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `events` SET `sold` = `sold` + ?, `status` = ? WHERE `id` = ?", fake.Last().SQL)
	assert.Equal(t, []any{int64(2), "selling", int64(1)}, fake.Last().Args())

	_, err = db.Table("events").Where("id", "=", 1).Decrement(context.Background(), "sold", 1)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `events` SET `sold` = `sold` - ? WHERE `id` = ?", fake.Last().SQL)
}

func TestDelete(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.OnExec("DELETE FROM", 4, 0)

	n, err := database.New(fake).Table("sessions").Where("expires_at", "<", "2024-01-01").Delete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, "DELETE FROM `sessions` WHERE `expires_at` < ?", fake.Last().SQL)
}

func TestMutations_RequireWhere(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	db := database.New(fake)
	ctx := context.Background()

	_, errUpdate := db.Table("users").Update(ctx, map[string]any{"a": 1})
	_, errDelete := db.Table("users").Delete(ctx)
	_, errInc := db.Table("users").Increment(ctx, "a", 1)
	_, errDec := db.Table("users").Decrement(ctx, "a", 1)

	for _, err := range []error{errUpdate, errDelete, errInc, errDec} {
		require.Error(t, err)
		assert.True(t, errors.Is(err, database.ErrMissingWhere))

		var guard *database.GuardError
		require.True(t, errors.As(err, &guard))
		assert.Equal(t, "users", guard.Table)
	}
	assert.Zero(t, fake.Count())
}

func TestInsert_DeferredBuilderError(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	_, err := database.New(fake).Model("ghost").Insert(context.Background(), map[string]any{"a": 1})
	assert.ErrorIs(t, err, database.ErrModelNotFound)
	assert.Zero(t, fake.Count())
}
