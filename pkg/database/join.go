package database

// -----------------------------------------------------------------------------
// JOIN OPERATIONS
// -----------------------------------------------------------------------------
// Join'ler çağrı sırasıyla, WHERE'den önce render edilir. ON koşulları
// kolon-kolon karşılaştırmasıdır; binding taşımazlar.
// -----------------------------------------------------------------------------

// Join, INNER JOIN ekler.
//
// Örnek:
//
//	qb.Table("users").Join("posts", "users.id", "=", "posts.user_id")
//	→ SQL: SELECT * FROM `users` INNER JOIN `posts` ON `users`.`id` = `posts`.`user_id`
func (qb *QueryBuilder) Join(table, first, operator, second string) *QueryBuilder {
	return qb.join(InnerJoin, table, first, operator, second)
}

// LeftJoin, LEFT JOIN ekler.
func (qb *QueryBuilder) LeftJoin(table, first, operator, second string) *QueryBuilder {
	return qb.join(LeftJoin, table, first, operator, second)
}

// RightJoin, RIGHT JOIN ekler.
func (qb *QueryBuilder) RightJoin(table, first, operator, second string) *QueryBuilder {
	return qb.join(RightJoin, table, first, operator, second)
}

// CrossJoin, CROSS JOIN ekler.
func (qb *QueryBuilder) CrossJoin(table string) *QueryBuilder {
	validateIdentifier(table, "table")
	qb.joins = append(qb.joins, JoinClause{Type: CrossJoin, Table: table})
	return qb
}

func (qb *QueryBuilder) join(typ JoinType, table, first, operator, second string) *QueryBuilder {
	validateIdentifier(table, "table")
	validateIdentifier(first, "column")
	validateIdentifier(second, "column")

	qb.joins = append(qb.joins, JoinClause{
		Type:     typ,
		Table:    table,
		First:    first,
		Operator: operator,
		Second:   second,
	})
	return qb
}
