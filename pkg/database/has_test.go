package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relationRegistry() *Registry {
	return NewRegistry().MustRegister(
		ModelDefinition{
			Name: "user",
			Relations: map[string]RelationDefinition{
				"posts": HasMany("post"),
				"publishedPosts": HasMany("post").Where(func(q *QueryBuilder) {
					q.Where("published", "=", true)
				}),
				"profile": HasOne("profile"),
				"roles":   BelongsToMany("role"),
				"images":  MorphMany("image", "imageable"),
			},
		},
		ModelDefinition{
			Name: "post",
			Relations: map[string]RelationDefinition{
				"author":   BelongsTo("user", "user_id", "id"),
				"comments": HasMany("comment"),
			},
		},
		ModelDefinition{Name: "comment"},
		ModelDefinition{Name: "profile"},
		ModelDefinition{Name: "role"},
		ModelDefinition{Name: "image"},
	)
}

func modelQuery(reg *Registry, name string) *QueryBuilder {
	qb := NewBuilder(nil, NewMySQLGrammar())
	qb.registry = reg
	return qb.Model(name)
}

func TestHas_CorrelatedCount(t *testing.T) {
	sql, bindings, err := modelQuery(relationRegistry(), "user").Has("posts").ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` WHERE (SELECT COUNT(*) FROM `posts` WHERE `posts`.`user_id` = `users`.`id`) >= ?",
		sql)
	assert.Equal(t, []any{int64(1)}, argsOf(bindings))
}

func TestWhereHas_CallbackBindingsPrecedeCount(t *testing.T) {
	qb := modelQuery(relationRegistry(), "user").
		Where("active", "=", true).
		WhereHasCount("posts", func(q *QueryBuilder) {
			q.Where("published", "=", true).OrWhere("featured", "=", true)
		}, ">", 3)

	sql, bindings, err := qb.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` WHERE `active` = ? AND (SELECT COUNT(*) FROM `posts` WHERE `posts`.`user_id` = `users`.`id`"+
			" AND (`published` = ? OR `featured` = ?)) > ?",
		sql)
	assert.Equal(t, []any{true, true, true, int64(3)}, argsOf(bindings))
}

func TestWhereHas_RelationConstraintIsApplied(t *testing.T) {
	sql, _, err := modelQuery(relationRegistry(), "user").Has("publishedPosts").ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` WHERE (SELECT COUNT(*) FROM `posts` WHERE `posts`.`user_id` = `users`.`id` AND `published` = ?) >= ?",
		sql)
}

func TestWhereHas_BelongsTo(t *testing.T) {
	sql, _, err := modelQuery(relationRegistry(), "post").WhereRelation("author", "email", "=", "a@b.c").ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `posts` WHERE (SELECT COUNT(*) FROM `users` WHERE `users`.`id` = `posts`.`user_id` AND (`email` = ?)) >= ?",
		sql)
}

func TestWhereHas_NestedPath(t *testing.T) {
	qb := modelQuery(relationRegistry(), "user").WhereHas("posts.comments", func(q *QueryBuilder) {
		q.Where("approved", "=", true)
	})

	sql, bindings, err := qb.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` WHERE (SELECT COUNT(*) FROM `posts` WHERE `posts`.`user_id` = `users`.`id`"+
			" AND (SELECT COUNT(*) FROM `comments` WHERE `comments`.`post_id` = `posts`.`id` AND (`approved` = ?)) >= ?) >= ?",
		sql)
	assert.Equal(t, []any{true, int64(1), int64(1)}, argsOf(bindings))
}

func TestHasCount_NestedPathComparesInnermostCount(t *testing.T) {
	sql, bindings, err := modelQuery(relationRegistry(), "user").HasCount("posts.comments", ">=", 3).ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` WHERE (SELECT COUNT(*) FROM `posts` WHERE `posts`.`user_id` = `users`.`id`"+
			" AND (SELECT COUNT(*) FROM `comments` WHERE `comments`.`post_id` = `posts`.`id`) >= ?) >= ?",
		sql)
	// 3 yorum sayısına, 1 yazı varlığına uygulanır
	assert.Equal(t, []any{int64(3), int64(1)}, argsOf(bindings))
}

func TestWhereHasCount_NestedPathKeepsCallbackAtLeaf(t *testing.T) {
	qb := modelQuery(relationRegistry(), "user").WhereHasCount("posts.comments", func(q *QueryBuilder) {
		q.Where("approved", "=", true)
	}, "<", 2)

	sql, bindings, err := qb.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` WHERE (SELECT COUNT(*) FROM `posts` WHERE `posts`.`user_id` = `users`.`id`"+
			" AND (SELECT COUNT(*) FROM `comments` WHERE `comments`.`post_id` = `posts`.`id` AND (`approved` = ?)) < ?) >= ?",
		sql)
	assert.Equal(t, []any{true, int64(2), int64(1)}, argsOf(bindings))
}

func categoryRegistry() *Registry {
	return NewRegistry().MustRegister(ModelDefinition{
		Name: "category",
		Relations: map[string]RelationDefinition{
			"children": HasMany("category", "parent_id", "id"),
			"parent":   BelongsTo("category", "parent_id", "id"),
		},
	})
}

func TestHas_SelfReferentialRelationIsAliased(t *testing.T) {
	sql, bindings, err := modelQuery(categoryRegistry(), "category").Has("children").ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `categories` WHERE (SELECT COUNT(*) FROM `categories` AS `has_0` WHERE `has_0`.`parent_id` = `categories`.`id`) >= ?",
		sql)
	assert.Equal(t, []any{int64(1)}, argsOf(bindings))
}

func TestHas_SelfReferentialBelongsTo(t *testing.T) {
	sql, _, err := modelQuery(categoryRegistry(), "category").WhereRelation("parent", "name", "=", "root").ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `categories` WHERE (SELECT COUNT(*) FROM `categories` AS `has_0` WHERE `has_0`.`id` = `categories`.`parent_id` AND (`name` = ?)) >= ?",
		sql)
}

func TestHasCount_SelfReferentialNestedPath(t *testing.T) {
	sql, bindings, err := modelQuery(categoryRegistry(), "category").HasCount("children.children", ">", 2).ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `categories` WHERE (SELECT COUNT(*) FROM `categories` AS `has_0` WHERE `has_0`.`parent_id` = `categories`.`id`"+
			" AND (SELECT COUNT(*) FROM `categories` WHERE `categories`.`parent_id` = `has_0`.`id`) > ?) >= ?",
		sql)
	assert.Equal(t, []any{int64(2), int64(1)}, argsOf(bindings))
}

func TestDoesntHave_SelfReferential(t *testing.T) {
	sql, _, err := modelQuery(categoryRegistry(), "category").DoesntHave("children").ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `categories` WHERE NOT EXISTS (SELECT 1 FROM `categories` AS `has_0` WHERE `has_0`.`parent_id` = `categories`.`id` LIMIT 1)",
		sql)
}

func TestDoesntHave_NotExists(t *testing.T) {
	sql, bindings, err := modelQuery(relationRegistry(), "user").DoesntHave("posts").ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` WHERE NOT EXISTS (SELECT 1 FROM `posts` WHERE `posts`.`user_id` = `users`.`id` LIMIT 1)",
		sql)
	assert.Empty(t, bindings)
}

func TestOrHas_UsesOrConnective(t *testing.T) {
	sql, _, err := modelQuery(relationRegistry(), "user").Where("admin", "=", true).OrHas("profile").ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` WHERE `admin` = ? OR (SELECT COUNT(*) FROM `profiles` WHERE `profiles`.`user_id` = `users`.`id`) >= ?",
		sql)
}

func TestWhereHas_UnsupportedKinds(t *testing.T) {
	for _, rel := range []string{"roles", "images"} {
		_, _, err := modelQuery(relationRegistry(), "user").Has(rel).ToSQL()
		require.Error(t, err, rel)
		assert.True(t, errors.Is(err, ErrUnsupportedRelation), rel)

		var relErr *RelationError
		require.True(t, errors.As(err, &relErr))
		assert.Equal(t, rel, relErr.Relation)
	}
}

func TestWhereHas_UnknownRelation(t *testing.T) {
	_, _, err := modelQuery(relationRegistry(), "user").Has("invoices").ToSQL()
	assert.True(t, errors.Is(err, ErrRelationNotFound))
}

func TestWhereHas_RequiresModel(t *testing.T) {
	_, _, err := newTestBuilder().Table("users").Has("posts").ToSQL()
	assert.True(t, errors.Is(err, ErrModelNotFound))
}

func TestRegistry_ResolvesNamingConventions(t *testing.T) {
	reg := relationRegistry()

	posts, ok := reg.Relation("user", "posts")
	require.True(t, ok)
	assert.Equal(t, "posts", posts.Table)
	assert.Equal(t, "user_id", posts.ForeignKey)
	assert.Equal(t, "id", posts.LocalKey)

	roles, ok := reg.Relation("user", "roles")
	require.True(t, ok)
	assert.Equal(t, "role_user", roles.PivotTable)
	assert.Equal(t, "user_id", roles.ForeignPivotKey)
	assert.Equal(t, "role_id", roles.RelatedPivotKey)

	images, ok := reg.Relation("user", "images")
	require.True(t, ok)
	assert.Equal(t, "imageable_id", images.ForeignKey)
	assert.Equal(t, "imageable_type", images.MorphType)

	_, ok = reg.Relation("user", "missing")
	assert.False(t, ok)
}

func TestRegistry_DuplicateModel(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(ModelDefinition{Name: "user"}))
	assert.Error(t, reg.Register(ModelDefinition{Name: "user"}))
	assert.Error(t, reg.Register(ModelDefinition{Name: " "}))
}
