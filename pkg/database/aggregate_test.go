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

func TestWithCount_BelongsToManyDefaultsToZero(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `roles`",
		database.Row{"pivot_parent_key": int64(2), "aggregate": int64(2)},
		database.Row{"pivot_parent_key": int64(3), "aggregate": []byte("5")},
	)
	threeUsers(fake)

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	users, err := db.Model("user").WithCount("roles").Get(context.Background())
	require.NoError(t, err)

	roles := fake.Matching("FROM `roles`")
	require.Len(t, roles, 1)
	assert.Equal(t,
		"SELECT `role_user`.`user_id` AS `pivot_parent_key`, COUNT(*) AS `aggregate` FROM `roles`"+
			" INNER JOIN `role_user` ON `role_user`.`role_id` = `roles`.`id`"+
			" WHERE `role_user`.`user_id` IN (?, ?, ?) GROUP BY `role_user`.`user_id`",
		roles[0].SQL)

	var counts []any
	for _, u := range users {
		counts = append(counts, record(t, u).Get("rolesCount"))
	}
	assert.Equal(t, []any{int64(0), int64(2), int64(5)}, counts)
}

func TestWithCount_HasManySQL(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `posts`", database.Row{"user_id": int64(1), "aggregate": int64(4)})
	threeUsers(fake)

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	users, err := db.Model("user").WithCount("posts").Get(context.Background())
	require.NoError(t, err)

	posts := fake.Matching("FROM `posts`")
	require.Len(t, posts, 1)
	assert.Equal(t,
		"SELECT `posts`.`user_id`, COUNT(*) AS `aggregate` FROM `posts` WHERE `posts`.`user_id` IN (?, ?, ?) GROUP BY `posts`.`user_id`",
		posts[0].SQL)
	assert.Equal(t, int64(4), record(t, users[0]).Get("postsCount"))
	assert.Equal(t, int64(0), record(t, users[1]).Get("postsCount"))
}

func TestWithSum_MissingGroupIsNil(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("SUM(`posts`.`amount`)", database.Row{"user_id": int64(1), "aggregate": []byte("12.50")})
	threeUsers(fake)

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	users, err := db.Model("user").WithSum("posts", "amount").Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12.5, record(t, users[0]).Get("postsAmountSum"))

	value, present := record(t, users[1]).Attribute("postsAmountSum")
	assert.True(t, present)
	assert.Nil(t, value)
}

func TestWithCountWhere_AliasAndConstraint(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("COUNT(*) AS `aggregate` FROM `posts`", database.Row{"user_id": int64(3), "aggregate": int64(1)})
	threeUsers(fake)

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	users, err := db.Model("user").
		WithCountWhere("posts as publishedTotal", func(q *database.QueryBuilder) {
			q.Where("published", "=", true)
		}).
		Get(context.Background())
	require.NoError(t, err)

	stmt := fake.Matching("FROM `posts`")
	require.Len(t, stmt, 1)
	assert.Contains(t, stmt[0].SQL, "WHERE (`published` = ?) AND `posts`.`user_id` IN (?, ?, ?)")
	assert.Equal(t, []any{true, int64(1), int64(2), int64(3)}, stmt[0].Args())
	assert.Equal(t, int64(1), record(t, users[2]).Get("publishedTotal"))
}

func TestWithAggregates_CombineWithEagerLoads(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("MAX(`posts`.`id`)", database.Row{"user_id": int64(1), "aggregate": int64(12)})
	fake.On("COUNT(*) AS `aggregate` FROM `posts`", database.Row{"user_id": int64(1), "aggregate": int64(2)})
	fake.On("FROM `posts`", database.Row{"id": int64(11), "user_id": int64(1)}, database.Row{"id": int64(12), "user_id": int64(1)})
	threeUsers(fake)

	db := database.New(fake, database.WithRegistry(blogRegistry()), database.WithEagerConcurrency(2))
	users, err := db.Model("user").With("posts").WithCount("posts").WithMax("posts", "id").Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, fake.Count())
	u := record(t, users[0])
	assert.Len(t, u.Many("posts"), 2)
	assert.Equal(t, int64(2), u.Get("postsCount"))
	assert.Equal(t, int64(12), u.Get("postsIdMax"))
}

func TestLoadAggregates_Errors(t *testing.T) {
	db := database.New(dbtest.NewFakeExecutor(), database.WithRegistry(blogRegistry()))
	users := []database.Entity{database.NewRecord("user", database.Row{"id": int64(1)})}

	err := db.LoadAggregates(context.Background(), users, database.AggregateRequest{Function: database.AggregateCount, Relation: "invoices"})
	assert.True(t, errors.Is(err, database.ErrRelationNotFound))

	err = db.LoadAggregates(context.Background(), users, database.AggregateRequest{Function: database.AggregateSum, Relation: "posts"})
	assert.Error(t, err)

	images := []database.Entity{database.NewRecord("image", database.Row{"id": int64(1)})}
	err = db.LoadAggregates(context.Background(), images, database.AggregateRequest{Function: database.AggregateCount, Relation: "imageable"})
	assert.True(t, errors.Is(err, database.ErrUnsupportedRelation))
}

func TestLoadAggregates_EmptyParents(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	db := database.New(fake, database.WithRegistry(blogRegistry()))

	require.NoError(t, db.LoadAggregates(context.Background(), nil, database.AggregateRequest{Function: database.AggregateCount, Relation: "posts"}))
	assert.Equal(t, 0, fake.Count())
}
