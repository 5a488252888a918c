package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// SQL SYNTHESIS TESTS
// -----------------------------------------------------------------------------
// Clause sırası, binding sırası ve render'ın yan etkisiz olması.
// -----------------------------------------------------------------------------

func newTestBuilder() *QueryBuilder {
	return NewBuilder(nil, NewMySQLGrammar())
}

func argsOf(values []Value) []any {
	return Args(values)
}

func TestToSQL_ClauseOrderAndBindingOrder(t *testing.T) {
	sub := newTestBuilder().Table("orders").Select("user_id").Where("status", "=", "paid")

	qb := newTestBuilder().
		Table("users").
		Select("users.id", "users.email").
		SelectRaw("? AS tag", "vip").
		Join("profiles", "profiles.user_id", "=", "users.id").
		Where("users.active", "=", true).
		WhereInSub("users.id", sub).
		GroupBy("users.id").
		Having("users.id", ">", 10).
		OrderBy("users.id", "desc").
		Limit(5).
		Offset(10)

	sql, bindings, err := qb.ToSQL()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT `users`.`id`, `users`.`email`, ? AS tag FROM `users`"+
			" INNER JOIN `profiles` ON `profiles`.`user_id` = `users`.`id`"+
			" WHERE `users`.`active` = ? AND `users`.`id` IN (SELECT `user_id` FROM `orders` WHERE `status` = ?)"+
			" GROUP BY `users`.`id` HAVING `users`.`id` > ? ORDER BY `users`.`id` DESC LIMIT 5 OFFSET 10",
		sql)
	assert.Equal(t, []any{"vip", true, "paid", int64(10)}, argsOf(bindings))
}

func TestToSQL_IsIdempotent(t *testing.T) {
	qb := newTestBuilder().Table("users").Where("a", "=", 1).OrWhere("b", "=", 2)

	sql1, b1, err1 := qb.ToSQL()
	sql2, b2, err2 := qb.ToSQL()

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, sql1, sql2)
	assert.Equal(t, argsOf(b1), argsOf(b2))
}

func TestToSQL_PlaceholdersMatchBindings(t *testing.T) {
	qb := newTestBuilder().
		Table("events").
		WhereIn("id", []any{1, 2, 3}).
		WhereBetween("price", 10, 20).
		WhereNull("deleted_at").
		WhereJSONContains("tags", "music", "meta.tags").
		WhereJSONLength("tags", ">", 1).
		WhereDate("starts_at", "2024-05-01").
		WhereRaw("capacity - sold > ?", 0)

	sql, bindings, err := qb.ToSQL()
	require.NoError(t, err)

	placeholders := 0
	for _, r := range sql {
		if r == '?' {
			placeholders++
		}
	}
	assert.Equal(t, placeholders, len(bindings))
}

func TestWhere_FirstConnectiveIsOmitted(t *testing.T) {
	sql, _, err := newTestBuilder().Table("users").OrWhere("a", "=", 1).Where("b", "=", 2).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `a` = ? AND `b` = ?", sql)
}

func TestWhere_NilValueBecomesIsNull(t *testing.T) {
	sql, bindings, err := newTestBuilder().Table("users").Where("deleted_at", "=", nil).Where("banned_at", "!=", nil).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `deleted_at` IS NULL AND `banned_at` IS NOT NULL", sql)
	assert.Empty(t, bindings)
}

func TestWhereNested_GroupsOrConditions(t *testing.T) {
	qb := newTestBuilder().
		Table("users").
		Where("active", "=", true).
		WhereNested(func(q *QueryBuilder) {
			q.Where("role", "=", "admin").OrWhere("role", "=", "editor")
		})

	sql, bindings, err := qb.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `active` = ? AND (`role` = ? OR `role` = ?)", sql)
	assert.Equal(t, []any{true, "admin", "editor"}, argsOf(bindings))
}

func TestWhereNested_EmptyGroupIsDropped(t *testing.T) {
	sql, _, err := newTestBuilder().Table("users").WhereNested(func(q *QueryBuilder) {}).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users`", sql)
}

func TestWhereAnyAllNone(t *testing.T) {
	cases := []struct {
		name     string
		apply    func(q *QueryBuilder)
		expected string
	}{
		{"any", func(q *QueryBuilder) { q.WhereAny([]string{"name", "email"}, "LIKE", "%a%") },
			"SELECT * FROM `users` WHERE (`name` LIKE ? OR `email` LIKE ?)"},
		{"all", func(q *QueryBuilder) { q.WhereAll([]string{"name", "email"}, "LIKE", "%a%") },
			"SELECT * FROM `users` WHERE (`name` LIKE ? AND `email` LIKE ?)"},
		{"none", func(q *QueryBuilder) { q.WhereNone([]string{"name", "email"}, "LIKE", "%a%") },
			"SELECT * FROM `users` WHERE NOT (`name` LIKE ? OR `email` LIKE ?)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			qb := newTestBuilder().Table("users")
			tc.apply(qb)
			sql, bindings, err := qb.ToSQL()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, sql)
			assert.Len(t, bindings, 2)
		})
	}
}

func TestWhere_InvalidOperatorIsDeferredError(t *testing.T) {
	qb := newTestBuilder().Table("users").Where("id", "; DROP", 1)
	_, _, err := qb.ToSQL()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQL operator")
}

func TestWhere_UnsupportedBindingIsDeferredError(t *testing.T) {
	qb := newTestBuilder().Table("users").Where("id", "=", struct{}{})
	_, _, err := qb.ToSQL()
	require.Error(t, err)
}

func TestClone_IsIndependent(t *testing.T) {
	base := newTestBuilder().Table("users").Where("active", "=", true)
	admins := base.Clone().Where("role", "=", "admin").OrderBy("id", "ASC")

	baseSQL, baseBindings, err := base.ToSQL()
	require.NoError(t, err)
	adminSQL, _, err := admins.ToSQL()
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM `users` WHERE `active` = ?", baseSQL)
	assert.Len(t, baseBindings, 1)
	assert.Equal(t, "SELECT * FROM `users` WHERE `active` = ? AND `role` = ? ORDER BY `id` ASC", adminSQL)
}

func TestOffsetWithoutLimit(t *testing.T) {
	sql, _, err := newTestBuilder().Table("users").Offset(20).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` LIMIT 18446744073709551615 OFFSET 20", sql)
}

func TestLocks(t *testing.T) {
	sql, _, err := newTestBuilder().Table("seats").Where("id", "=", 1).LockForUpdate().ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `seats` WHERE `id` = ? FOR UPDATE", sql)

	sql, _, err = newTestBuilder().Table("seats").SharedLock().ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `seats` LOCK IN SHARE MODE", sql)
}

func TestUnion_BindingsFollowMainQuery(t *testing.T) {
	admins := newTestBuilder().Table("admins").Select("email").Where("level", ">", 2)
	qb := newTestBuilder().Table("users").Select("email").Where("active", "=", true).Union(admins)

	sql, bindings, err := qb.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `email` FROM `users` WHERE `active` = ? UNION (SELECT `email` FROM `admins` WHERE `level` > ?)", sql)
	assert.Equal(t, []any{true, int64(2)}, argsOf(bindings))
}

func TestFromSub_BindingsComeFirst(t *testing.T) {
	inner := newTestBuilder().Table("posts").Select("user_id").Where("published", "=", true)
	qb := newTestBuilder().FromSub(inner, "p").Where("p.user_id", ">", 5)

	sql, bindings, err := qb.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM (SELECT `user_id` FROM `posts` WHERE `published` = ?) AS `p` WHERE `p`.`user_id` > ?", sql)
	assert.Equal(t, []any{true, int64(5)}, argsOf(bindings))
}

func TestFromRaw_PlaceholderMismatch(t *testing.T) {
	_, _, err := newTestBuilder().FromRaw("(SELECT * FROM `users` WHERE `id` > ?) AS `u`").ToSQL()
	require.Error(t, err)
}

func TestWhereJSON(t *testing.T) {
	sql, bindings, err := newTestBuilder().
		Table("events").
		WhereJSONContains("tags", []string{"rock"}).
		OrWhereJSONDoesntContain("meta", 3, "seats.vip").
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `events` WHERE JSON_CONTAINS(`tags`, ?) OR NOT JSON_CONTAINS(`meta`, ?, ?)", sql)
	assert.Equal(t, []any{`["rock"]`, "3", "$.seats.vip"}, argsOf(bindings))
}

func TestCrossAndLeftJoin(t *testing.T) {
	sql, _, err := newTestBuilder().
		Table("users").
		LeftJoin("posts", "posts.user_id", "=", "users.id").
		CrossJoin("sizes").
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` LEFT JOIN `posts` ON `posts`.`user_id` = `users`.`id` CROSS JOIN `sizes`", sql)
}

func TestAddSelect_ExpandsImplicitWildcard(t *testing.T) {
	sql, _, err := newTestBuilder().Table("users").AddSelect("score").ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `users`.*, `score` FROM `users`", sql)
}
