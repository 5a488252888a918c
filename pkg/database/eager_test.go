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

// -----------------------------------------------------------------------------
// EAGER LOADING TESTS
// -----------------------------------------------------------------------------
// Her ilişki seviyesi tek sorgu (belongsToMany için iki) çalıştırmalıdır;
// parent sayısı sorgu sayısını etkilememelidir.
// -----------------------------------------------------------------------------

func blogRegistry(postDefaults ...string) *database.Registry {
	return database.NewRegistry().MustRegister(
		database.ModelDefinition{
			Name: "user",
			Relations: map[string]database.RelationDefinition{
				"posts":   database.HasMany("post"),
				"profile": database.HasOne("profile"),
				"roles":   database.BelongsToMany("role"),
				"images":  database.MorphMany("image", "imageable"),
			},
		},
		database.ModelDefinition{
			Name: "post",
			With: postDefaults,
			Relations: map[string]database.RelationDefinition{
				"author":   database.BelongsTo("user", "user_id", "id"),
				"comments": database.HasMany("comment"),
			},
		},
		database.ModelDefinition{Name: "comment"},
		database.ModelDefinition{Name: "profile"},
		database.ModelDefinition{Name: "role"},
		database.ModelDefinition{
			Name: "image",
			Relations: map[string]database.RelationDefinition{
				"imageable": database.MorphTo("imageable"),
			},
		},
	)
}

func threeUsers(fake *dbtest.FakeExecutor) {
	fake.On("FROM `users`",
		database.Row{"id": int64(1), "name": "Ada"},
		database.Row{"id": int64(2), "name": "Linus"},
		database.Row{"id": int64(3), "name": "Grace"},
	)
}

func record(t *testing.T, e database.Entity) *database.Record {
	t.Helper()
	r, ok := e.(*database.Record)
	require.True(t, ok, "expected *database.Record, got %T", e)
	return r
}

func TestEager_HasManyRunsOneQueryPerLevel(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `posts`",
		database.Row{"id": int64(10), "user_id": int64(1)},
		database.Row{"id": int64(11), "user_id": int64(1)},
		database.Row{"id": int64(12), "user_id": int64(3)},
	)
	threeUsers(fake)

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	users, err := db.Model("user").With("posts").Get(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)

	assert.Equal(t, 2, fake.Count())
	posts := fake.Matching("FROM `posts`")
	require.Len(t, posts, 1)
	assert.Equal(t, "SELECT * FROM `posts` WHERE `posts`.`user_id` IN (?, ?, ?)", posts[0].SQL)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, posts[0].Args())

	assert.Len(t, record(t, users[0]).Many("posts"), 2)
	assert.Len(t, record(t, users[2]).Many("posts"), 1)

	empty, loaded := record(t, users[1]).Relation("posts")
	assert.True(t, loaded)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestEager_NestedRelations(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `comments`",
		database.Row{"id": int64(100), "post_id": int64(10)},
		database.Row{"id": int64(101), "post_id": int64(12)},
	)
	fake.On("FROM `posts`",
		database.Row{"id": int64(10), "user_id": int64(1)},
		database.Row{"id": int64(12), "user_id": int64(3)},
	)
	threeUsers(fake)

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	users, err := db.Model("user").With("posts.comments", "posts").Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, fake.Count())
	comments := fake.Matching("FROM `comments`")
	require.Len(t, comments, 1)
	assert.Equal(t, []any{int64(10), int64(12)}, comments[0].Args())

	post := record(t, record(t, users[0]).Many("posts")[0])
	assert.Len(t, post.Many("comments"), 1)
}

func TestEager_HasOneAndBelongsTo(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `users`", database.Row{"id": int64(1)})
	fake.On("FROM `posts`",
		database.Row{"id": int64(10), "user_id": int64(1)},
		database.Row{"id": int64(11), "user_id": nil},
	)

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	posts, err := db.Model("post").With("author").Get(context.Background())
	require.NoError(t, err)

	users := fake.Matching("FROM `users`")
	require.Len(t, users, 1)
	assert.Equal(t, "SELECT * FROM `users` WHERE `users`.`id` IN (?)", users[0].SQL)

	author := record(t, posts[0]).One("author")
	require.NotNil(t, author)
	assert.Equal(t, int64(1), record(t, author).Get("id"))

	assert.True(t, record(t, posts[1]).RelationLoaded("author"))
	assert.Nil(t, record(t, posts[1]).One("author"))
}

func TestEager_BelongsToManyUsesPivot(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `role_user`",
		database.Row{"user_id": int64(1), "role_id": int64(7)},
		database.Row{"user_id": int64(2), "role_id": int64(7)},
		database.Row{"user_id": int64(2), "role_id": int64(8)},
	)
	fake.On("FROM `roles`",
		database.Row{"id": int64(7), "name": "editor"},
		database.Row{"id": int64(8), "name": "admin"},
	)
	threeUsers(fake)

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	users, err := db.Model("user").With("roles").Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, fake.Count())
	pivot := fake.Matching("FROM `role_user`")
	require.Len(t, pivot, 1)
	assert.Equal(t, "SELECT `user_id`, `role_id` FROM `role_user` WHERE `user_id` IN (?, ?, ?)", pivot[0].SQL)

	roles := fake.Matching("FROM `roles`")
	require.Len(t, roles, 1)
	assert.Equal(t, "SELECT * FROM `roles` WHERE `roles`.`id` IN (?, ?)", roles[0].SQL)

	assert.Len(t, record(t, users[0]).Many("roles"), 1)
	assert.Len(t, record(t, users[1]).Many("roles"), 2)
	assert.Empty(t, record(t, users[2]).Many("roles"))
}

func TestEager_BelongsToManySkipsRelatedQueryWithoutPivotRows(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	threeUsers(fake)

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	_, err := db.Model("user").With("roles").Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, fake.Count())
	assert.Empty(t, fake.Matching("FROM `roles`"))
}

func TestEager_MorphManyFiltersByType(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `images`", database.Row{"id": int64(5), "imageable_id": int64(2), "imageable_type": "user"})
	threeUsers(fake)

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	users, err := db.Model("user").With("images").Get(context.Background())
	require.NoError(t, err)

	images := fake.Matching("FROM `images`")
	require.Len(t, images, 1)
	assert.Equal(t,
		"SELECT * FROM `images` WHERE `images`.`imageable_type` = ? AND `images`.`imageable_id` IN (?, ?, ?)",
		images[0].SQL)
	assert.Equal(t, []any{"user", int64(1), int64(2), int64(3)}, images[0].Args())
	assert.Len(t, record(t, users[1]).Many("images"), 1)
}

func TestEager_MorphToIsRejected(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `images`", database.Row{"id": int64(5), "imageable_id": int64(2)})

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	_, err := db.Model("image").With("imageable").Get(context.Background())
	assert.True(t, errors.Is(err, database.ErrUnsupportedRelation))
}

func TestEager_ConstraintStaysInsideKeyFilter(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `users`", database.Row{"id": int64(1)})

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	_, err := db.Model("user").With(map[string]func(q *database.QueryBuilder){
		"posts": func(q *database.QueryBuilder) {
			q.Where("published", "=", true).OrWhere("featured", "=", true).OrderByDesc("id")
		},
	}).Get(context.Background())
	require.NoError(t, err)

	posts := fake.Matching("FROM `posts`")
	require.Len(t, posts, 1)
	assert.Equal(t,
		"SELECT * FROM `posts` WHERE (`published` = ? OR `featured` = ?) AND `posts`.`user_id` IN (?) ORDER BY `id` DESC",
		posts[0].SQL)
	assert.Equal(t, []any{true, true, int64(1)}, posts[0].Args())
}

func TestEager_PaginatedRelation(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("AS `ranked`",
		database.Row{"id": int64(3), "post_id": int64(1), "__row_number": int64(3)},
		database.Row{"id": int64(4), "post_id": int64(1), "__row_number": int64(4)},
	)
	fake.On("COUNT(*) AS `aggregate` FROM `comments`", database.Row{"post_id": int64(1), "aggregate": int64(5)})
	fake.On("FROM `posts`", database.Row{"id": int64(1)}, database.Row{"id": int64(2)})

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	posts, err := db.Model("post").With("comments:paginated:page=2:perPage=2").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, fake.Count())

	counts := fake.Matching("COUNT(*)")
	require.Len(t, counts, 1)
	assert.Equal(t,
		"SELECT `post_id`, COUNT(*) AS `aggregate` FROM `comments` WHERE `comments`.`post_id` IN (?, ?) GROUP BY `post_id`",
		counts[0].SQL)

	ranked := fake.Matching("AS `ranked`")
	require.Len(t, ranked, 1)
	assert.Equal(t,
		"SELECT * FROM (SELECT `comments`.*, ROW_NUMBER() OVER (PARTITION BY `comments`.`post_id` ORDER BY `comments`.`id` ASC) AS `__row_number`"+
			" FROM `comments` WHERE `comments`.`post_id` IN (?, ?)) AS `ranked` WHERE `__row_number` BETWEEN ? AND ? ORDER BY `__row_number` ASC",
		ranked[0].SQL)
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4)}, ranked[0].Args())

	raw, _ := record(t, posts[0]).Relation("comments")
	page, ok := raw.(*database.RelationPage)
	require.True(t, ok)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, database.PageMeta{Page: 2, PerPage: 2, Total: 5, LastPage: 3}, page.Meta)
	_, hasRowNumber := record(t, page.Data[0]).Attribute("__row_number")
	assert.False(t, hasRowNumber)

	raw, _ = record(t, posts[1]).Relation("comments")
	empty := raw.(*database.RelationPage)
	assert.Empty(t, empty.Data)
	assert.NotNil(t, empty.Data)
	assert.Equal(t, database.PageMeta{Page: 2, PerPage: 2, Total: 0, LastPage: 1}, empty.Meta)
}

func TestEager_PaginatedNodeWithZeroValuesUsesDefaults(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("AS `ranked`", database.Row{"id": int64(3), "post_id": int64(1), "__row_number": int64(1)})
	fake.On("COUNT(*) AS `aggregate` FROM `comments`", database.Row{"post_id": int64(1), "aggregate": int64(20)})
	fake.On("FROM `posts`", database.Row{"id": int64(1)}, database.Row{"id": int64(2)})

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	posts, err := db.Model("post").
		With(&database.RelationNode{Name: "comments", Paginate: true}).
		Get(context.Background())
	require.NoError(t, err)

	ranked := fake.Matching("AS `ranked`")
	require.Len(t, ranked, 1)
	assert.Equal(t, []any{int64(1), int64(2), int64(1), int64(15)}, ranked[0].Args())

	raw, _ := record(t, posts[0]).Relation("comments")
	page, ok := raw.(*database.RelationPage)
	require.True(t, ok)
	assert.Equal(t, database.PageMeta{Page: 1, PerPage: 15, Total: 20, LastPage: 2}, page.Meta)

	raw, _ = record(t, posts[1]).Relation("comments")
	assert.Equal(t, database.PageMeta{Page: 1, PerPage: 15, Total: 0, LastPage: 1}, raw.(*database.RelationPage).Meta)
}

func TestEager_PaginatedSkipsPageQueryWithoutChildren(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `posts`", database.Row{"id": int64(1)})

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	_, err := db.Model("post").With("comments:paginated").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Count())
	assert.Empty(t, fake.Matching("ranked"))
}

func TestEager_DefaultRelationsAndWithout(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `users`", database.Row{"id": int64(1)})
	fake.On("FROM `posts`", database.Row{"id": int64(10), "user_id": int64(1)})
	db := database.New(fake, database.WithRegistry(blogRegistry("author")))

	_, err := db.Model("post").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Count())

	fake.Reset()
	_, err = db.Model("post").Without("author").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Count())

	fake.Reset()
	_, err = db.Model("post").WithOnly("comments").Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fake.Matching("FROM `users`"))
	assert.Len(t, fake.Matching("FROM `comments`"), 1)
}

func TestEager_DefaultRelationsOfNestedModel(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `comments`", database.Row{"id": int64(100), "post_id": int64(10)})
	fake.On("FROM `posts`", database.Row{"id": int64(10), "user_id": int64(1)})
	fake.On("FROM `users`", database.Row{"id": int64(1)})

	db := database.New(fake, database.WithRegistry(blogRegistry("comments")))
	_, err := db.Model("user").With("posts").Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, fake.Matching("FROM `comments`"), 1)
}

func TestEager_UnknownRelationIsSkipped(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	threeUsers(fake)

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	users, err := db.Model("user").With("invoices").Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 3)
	assert.Equal(t, 1, fake.Count())
}

func TestEager_NoParentsNoQueries(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	db := database.New(fake, database.WithRegistry(blogRegistry()))

	users, err := db.Model("user").With("posts", "roles").Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, 1, fake.Count())
}

func TestEager_ErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	fake := dbtest.NewFakeExecutor()
	fake.OnError("FROM `posts`", boom)
	threeUsers(fake)

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	_, err := db.Model("user").With("posts", "profile").Get(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestLoad_OnExistingRecords(t *testing.T) {
	fake := dbtest.NewFakeExecutor()
	fake.On("FROM `profiles`", database.Row{"id": int64(9), "user_id": []byte("1")})

	db := database.New(fake, database.WithRegistry(blogRegistry()))
	users := []database.Entity{
		database.NewRecord("user", database.Row{"id": int64(1)}),
		database.NewRecord("user", database.Row{"id": int64(2)}),
	}
	require.NoError(t, db.Load(context.Background(), users, "profile"))

	assert.NotNil(t, record(t, users[0]).One("profile"))
	assert.Nil(t, record(t, users[1]).One("profile"))
}
