package database

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// SUBQUERY & UNION OPERATIONS
// -----------------------------------------------------------------------------
// Alt sorgular çağrı anında render edilir ve SQL metni binding'leriyle
// birlikte dış sorguya gömülür. Sonradan alt builder'a yapılan değişiklikler
// dış sorguyu etkilemez.
// -----------------------------------------------------------------------------

// compileSub, bir alt builder'ı render eder; hatayı dış builder'a taşır.
func (qb *QueryBuilder) compileSub(sub *QueryBuilder) (string, []Value, bool) {
	sql, bindings, err := sub.ToSQL()
	if err != nil {
		qb.addError(fmt.Errorf("subquery compilation failed: %w", err))
		return "", nil, false
	}
	return sql, bindings, true
}

// FromSub, FROM hedefini bir alt sorgu ile ezer.
//
// Örnek:
//
//	latest := db.Table("posts").Select("user_id").GroupBy("user_id")
//	qb.FromSub(latest, "p")
//	→ SQL: SELECT * FROM (SELECT `user_id` FROM `posts` GROUP BY `user_id`) AS `p`
func (qb *QueryBuilder) FromSub(sub *QueryBuilder, alias string) *QueryBuilder {
	validateIdentifier(alias, "alias")
	sql, bindings, ok := qb.compileSub(sub)
	if !ok {
		return qb
	}
	qb.from = &fromClause{
		sql:      fmt.Sprintf("(%s) AS %s", sql, qb.wrap(alias)),
		alias:    alias,
		bindings: bindings,
	}
	return qb
}

// FromRaw, FROM hedefini raw bir ifade ile ezer.
//
// Örnek:
//
//	qb.FromRaw("(SELECT * FROM `users` WHERE `id` > ?) AS `u`", 10)
func (qb *QueryBuilder) FromRaw(expression string, bindings ...any) *QueryBuilder {
	validateExpression(expression)
	if n := strings.Count(expression, "?"); n != len(bindings) {
		qb.addError(fmt.Errorf("raw from %q has %d placeholders but %d bindings", expression, n, len(bindings)))
		return qb
	}
	qb.from = &fromClause{sql: expression, bindings: qb.bindAll(bindings)}
	return qb
}

// SelectSub, projeksiyona alias'lı bir alt sorgu ekler.
//
// Örnek:
//
//	last := db.Table("posts").Select("title").WhereColumn("posts.user_id", "=", "users.id").Latest().Limit(1)
//	qb.Table("users").Select("id").SelectSub(last, "last_post")
//	→ SQL: SELECT `id`, (SELECT `title` FROM `posts` WHERE ... LIMIT 1) AS `last_post` FROM `users`
func (qb *QueryBuilder) SelectSub(sub *QueryBuilder, alias string) *QueryBuilder {
	validateIdentifier(alias, "alias")
	sql, bindings, ok := qb.compileSub(sub)
	if !ok {
		return qb
	}
	if len(qb.columns) == 0 {
		qb.columns = append(qb.columns, selectColumn{expr: qb.wildcard()})
	}
	qb.columns = append(qb.columns, selectColumn{
		expr:     fmt.Sprintf("(%s) AS %s", sql, qb.wrap(alias)),
		raw:      true,
		bindings: bindings,
	})
	return qb
}

// WhereInSub, kolonun alt sorgu sonucunda olmasını ister.
//
// Örnek:
//
//	active := db.Table("orders").Select("user_id").Where("status", "=", "paid")
//	qb.WhereInSub("id", active)
//	→ SQL: WHERE `id` IN (SELECT `user_id` FROM `orders` WHERE `status` = ?)
func (qb *QueryBuilder) WhereInSub(column string, sub *QueryBuilder) *QueryBuilder {
	return qb.whereInSub("AND", column, sub, false)
}

// OrWhereInSub, OR bağlaçlı WhereInSub.
func (qb *QueryBuilder) OrWhereInSub(column string, sub *QueryBuilder) *QueryBuilder {
	return qb.whereInSub("OR", column, sub, false)
}

// WhereNotInSub, kolonun alt sorgu sonucunda olmamasını ister.
func (qb *QueryBuilder) WhereNotInSub(column string, sub *QueryBuilder) *QueryBuilder {
	return qb.whereInSub("AND", column, sub, true)
}

func (qb *QueryBuilder) whereInSub(boolean, column string, sub *QueryBuilder, not bool) *QueryBuilder {
	sql, bindings, ok := qb.compileSub(sub)
	if !ok {
		return qb
	}
	op := "IN"
	if not {
		op = "NOT IN"
	}
	return qb.addWhere(boolean, fmt.Sprintf("%s %s (%s)", qb.wrap(column), op, sql), bindings...)
}

// WhereExists, alt sorgunun en az bir satır döndürmesini ister.
//
// Örnek:
//
//	qb.Table("users").WhereExists(
//	    db.Table("orders").SelectRaw("1").WhereColumn("orders.user_id", "=", "users.id"),
//	)
//	→ SQL: WHERE EXISTS (SELECT 1 FROM `orders` WHERE `orders`.`user_id` = `users`.`id`)
func (qb *QueryBuilder) WhereExists(sub *QueryBuilder) *QueryBuilder {
	return qb.whereExists("AND", sub, false)
}

// OrWhereExists, OR bağlaçlı WhereExists.
func (qb *QueryBuilder) OrWhereExists(sub *QueryBuilder) *QueryBuilder {
	return qb.whereExists("OR", sub, false)
}

// WhereNotExists, alt sorgunun hiç satır döndürmemesini ister.
func (qb *QueryBuilder) WhereNotExists(sub *QueryBuilder) *QueryBuilder {
	return qb.whereExists("AND", sub, true)
}

// OrWhereNotExists, OR bağlaçlı WhereNotExists.
func (qb *QueryBuilder) OrWhereNotExists(sub *QueryBuilder) *QueryBuilder {
	return qb.whereExists("OR", sub, true)
}

func (qb *QueryBuilder) whereExists(boolean string, sub *QueryBuilder, not bool) *QueryBuilder {
	sql, bindings, ok := qb.compileSub(sub)
	if !ok {
		return qb
	}
	op := "EXISTS"
	if not {
		op = "NOT EXISTS"
	}
	return qb.addWhere(boolean, fmt.Sprintf("%s (%s)", op, sql), bindings...)
}

// Union, başka bir sorgunun sonucunu UNION ile ekler. Segment ORDER BY,
// LIMIT ve kilit ifadesinden sonra yazılır.
//
// Örnek:
//
//	admins := db.Table("admins").Select("email")
//	qb.Table("users").Select("email").Union(admins)
//	→ SQL: SELECT `email` FROM `users` UNION (SELECT `email` FROM `admins`)
func (qb *QueryBuilder) Union(other *QueryBuilder) *QueryBuilder {
	return qb.union(other, false)
}

// UnionAll, tekrar eden satırları koruyarak UNION ALL ekler.
func (qb *QueryBuilder) UnionAll(other *QueryBuilder) *QueryBuilder {
	return qb.union(other, true)
}

func (qb *QueryBuilder) union(other *QueryBuilder, all bool) *QueryBuilder {
	sql, bindings, ok := qb.compileSub(other)
	if !ok {
		return qb
	}
	qb.unions = append(qb.unions, UnionClause{All: all, SQL: sql, Bindings: bindings})
	return qb
}
