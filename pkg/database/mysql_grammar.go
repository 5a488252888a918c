package database

import (
	"fmt"
	"regexp"
	"strings"
)

// -----------------------------------------------------------------------------
// MySQL Grammar
// -----------------------------------------------------------------------------
// Wrap() panic yerine error döner; compile metotları builder state'ini
// sadece okur. Clause sırası sabittir:
//
//	SELECT [DISTINCT] cols FROM (subquery|table) [JOIN...] [WHERE...]
//	[GROUP BY] [HAVING] [ORDER BY] [LIMIT] [OFFSET] [lock] [UNION...]
// -----------------------------------------------------------------------------

type MySQLGrammar struct{}

func NewMySQLGrammar() *MySQLGrammar {
	return &MySQLGrammar{}
}

var validIdentifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// aliasPattern, "col as alias" ifadesini yakalar (büyük/küçük harf duyarsız).
var aliasPattern = regexp.MustCompile(`(?i)^(.+?)\s+as\s+(.+)$`)

// mysqlMaxRows, OFFSET'in LIMIT'siz kullanılamaması nedeniyle kullanılan
// MySQL dokümantasyonundaki "sınırsız" değeridir.
const mysqlMaxRows = "18446744073709551615"

var allowedOperators = map[string]bool{
	"=":           true,
	"!=":          true,
	"<>":          true,
	"<":           true,
	">":           true,
	"<=":          true,
	">=":          true,
	"<=>":         true,
	"LIKE":        true,
	"NOT LIKE":    true,
	"IN":          true,
	"NOT IN":      true,
	"BETWEEN":     true,
	"NOT BETWEEN": true,
	"IS":          true,
	"IS NOT":      true,
	"REGEXP":      true,
	"NOT REGEXP":  true,
}

// Wrap, kolon ve tablo isimlerini MySQL backtick'leri ile sarmalar.
//
// Kurallar:
//   - "*" olduğu gibi kalır, "users.*" → `users`.*
//   - "users.id" → `users`.`id`
//   - "id as user_id" → `id` AS `user_id`
//   - Parantez içeren ifadeler (COUNT(*) gibi) wrap edilmez
func (g *MySQLGrammar) Wrap(value string) (string, error) {
	value = strings.TrimSpace(value)

	// Wildcard için özel durum
	if value == "*" {
		return value, nil
	}

	// Tek seviyeli fonksiyon çağrıları (COUNT(*), SUM(price)) olduğu gibi yazılır
	if strings.ContainsAny(value, "()") {
		if !functionColumnRegex.MatchString(value) {
			return "", fmt.Errorf("invalid SQL expression: %s (suspicious content)", value)
		}
		return value, nil
	}

	// Alias
	if m := aliasPattern.FindStringSubmatch(value); m != nil {
		left, err := g.Wrap(m[1])
		if err != nil {
			return "", err
		}
		right, err := g.wrapSegment(strings.TrimSpace(m[2]))
		if err != nil {
			return "", err
		}
		return left + " AS " + right, nil
	}

	// Tablo.kolon formatını handle et
	if strings.Contains(value, ".") {
		parts := strings.Split(value, ".")
		if len(parts) > 2 {
			return "", fmt.Errorf("invalid SQL identifier: %s (too many dots)", value)
		}
		wrappedParts := make([]string, len(parts))
		for i, part := range parts {
			if part == "*" && i == len(parts)-1 {
				wrappedParts[i] = part
				continue
			}
			w, err := g.wrapSegment(part)
			if err != nil {
				return "", err
			}
			wrappedParts[i] = w
		}
		return strings.Join(wrappedParts, "."), nil
	}

	return g.wrapSegment(value)
}

func (g *MySQLGrammar) wrapSegment(part string) (string, error) {
	if !validIdentifierPattern.MatchString(part) {
		return "", fmt.Errorf("invalid SQL identifier: %s (contains unsafe characters)", part)
	}
	return "`" + part + "`", nil
}

// ValidateOperator, verilen operatörün whitelist'te olup olmadığını kontrol eder.
func (g *MySQLGrammar) ValidateOperator(operator string) (string, error) {
	op := strings.ToUpper(strings.TrimSpace(operator))
	if !allowedOperators[op] {
		return "", fmt.Errorf("invalid SQL operator: %s (not in whitelist)", operator)
	}
	return op, nil
}

// CompileSelect, QueryBuilder'dan SELECT sorgusu üretir.
func (g *MySQLGrammar) CompileSelect(qb *QueryBuilder) (string, []Value, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}

	var sb strings.Builder
	var args []Value

	sb.WriteString("SELECT ")
	if qb.distinct {
		sb.WriteString("DISTINCT ")
	}

	// Kolonları wrap et
	cols := qb.columns
	if len(cols) == 0 {
		cols = []selectColumn{{expr: "*"}}
	}
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		if col.raw {
			sb.WriteString(col.expr)
			args = append(args, col.bindings...)
			continue
		}
		wrapped, err := g.Wrap(col.expr)
		if err != nil {
			return "", nil, fmt.Errorf("column wrap error: %w", err)
		}
		sb.WriteString(wrapped)
	}

	// FROM: alt sorgu binding'leri WHERE'den önce gelir
	sb.WriteString(" FROM ")
	if qb.from != nil {
		sb.WriteString(qb.from.sql)
		args = append(args, qb.from.bindings...)
	} else {
		if qb.table == "" {
			return "", nil, fmt.Errorf("select compilation failed: no table specified")
		}
		wrappedTable, err := g.Wrap(qb.table)
		if err != nil {
			return "", nil, fmt.Errorf("table wrap error: %w", err)
		}
		sb.WriteString(wrappedTable)
	}

	joins, err := g.compileJoins(qb.joins)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(joins)

	if len(qb.wheres) > 0 {
		where, whereArgs := compileConditions(qb.wheres)
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		args = append(args, whereArgs...)
	}

	if len(qb.groups) > 0 {
		groups := make([]string, len(qb.groups))
		for i, col := range qb.groups {
			wrapped, err := g.Wrap(col)
			if err != nil {
				return "", nil, fmt.Errorf("group column wrap error: %w", err)
			}
			groups[i] = wrapped
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(groups, ", "))
	}

	if len(qb.havings) > 0 {
		having, havingArgs := compileConditions(qb.havings)
		sb.WriteString(" HAVING ")
		sb.WriteString(having)
		args = append(args, havingArgs...)
	}

	// ORDER BY clause'ları ekle
	if len(qb.orders) > 0 {
		wrappedOrders := make([]string, len(qb.orders))
		for i, order := range qb.orders {
			if order.Raw != "" {
				wrappedOrders[i] = order.Raw
				continue
			}
			wrappedCol, err := g.Wrap(order.Column)
			if err != nil {
				return "", nil, fmt.Errorf("order column wrap error: %w", err)
			}
			wrappedOrders[i] = fmt.Sprintf("%s %s", wrappedCol, order.Direction)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(wrappedOrders, ", "))
	}

	if qb.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", qb.limit)
	} else if qb.offset > 0 {
		sb.WriteString(" LIMIT " + mysqlMaxRows)
	}
	if qb.offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", qb.offset)
	}

	switch qb.lock {
	case LockShared:
		sb.WriteString(" LOCK IN SHARE MODE")
	case LockExclusive:
		sb.WriteString(" FOR UPDATE")
	}

	for _, u := range qb.unions {
		if u.All {
			sb.WriteString(" UNION ALL (")
		} else {
			sb.WriteString(" UNION (")
		}
		sb.WriteString(u.SQL)
		sb.WriteString(")")
		args = append(args, u.Bindings...)
	}

	return sb.String(), args, nil
}

func (g *MySQLGrammar) compileJoins(joins []JoinClause) (string, error) {
	var sb strings.Builder
	for _, j := range joins {
		table, err := g.Wrap(j.Table)
		if err != nil {
			return "", fmt.Errorf("join table wrap error: %w", err)
		}
		if j.Type == CrossJoin {
			fmt.Fprintf(&sb, " CROSS JOIN %s", table)
			continue
		}
		first, err := g.Wrap(j.First)
		if err != nil {
			return "", fmt.Errorf("join column wrap error: %w", err)
		}
		second, err := g.Wrap(j.Second)
		if err != nil {
			return "", fmt.Errorf("join column wrap error: %w", err)
		}
		op, err := g.ValidateOperator(j.Operator)
		if err != nil {
			return "", fmt.Errorf("join clause error: %w", err)
		}
		fmt.Fprintf(&sb, " %s JOIN %s ON %s %s %s", j.Type, table, first, op, second)
	}
	return sb.String(), nil
}

// compileConditions, render edilmiş fragment'ları AND/OR ile birleştirir.
// İlk fragment'ın bağlacı yazılmaz.
func compileConditions(clauses []WhereClause) (string, []Value) {
	var sb strings.Builder
	var args []Value
	for i, c := range clauses {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(c.Boolean)
			sb.WriteString(" ")
		}
		sb.WriteString(c.SQL)
		args = append(args, c.Bindings...)
	}
	return sb.String(), args
}

// CompileInsert, INSERT sorgusu üretir.
//
// Örnek:
//
//	CompileInsert("users", []string{"email", "name"}, [][]Value{{...}, {...}})
//	→ INSERT INTO `users` (`email`, `name`) VALUES (?, ?), (?, ?)
func (g *MySQLGrammar) CompileInsert(table string, columns []string, rows [][]Value) (string, []Value, error) {
	// Tablo adını wrap et
	wrappedTable, err := g.Wrap(table)
	if err != nil {
		return "", nil, fmt.Errorf("table wrap error: %w", err)
	}
	if len(columns) == 0 || len(rows) == 0 {
		return "", nil, fmt.Errorf("insert compilation failed: no values")
	}

	cols, err := g.WrapMultiple(columns)
	if err != nil {
		return "", nil, fmt.Errorf("column wrap error: %w", err)
	}

	tuple := "(" + placeholders(len(columns)) + ")"
	tuples := make([]string, len(rows))
	args := make([]Value, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("insert compilation failed: row %d has %d values, expected %d", i, len(row), len(columns))
		}
		tuples[i] = tuple
		args = append(args, row...)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		wrappedTable,
		strings.Join(cols, ", "),
		strings.Join(tuples, ", "),
	)
	return sql, args, nil
}

// CompileUpsert, ON DUPLICATE KEY UPDATE ile upsert üretir. MySQL çakışmayı
// tablonun unique index'leri üzerinden tespit eder; uniqueBy kolonlarının
// satırlarda bulunması zorunludur ve update boşsa diğer tüm kolonlar güncellenir.
func (g *MySQLGrammar) CompileUpsert(table string, columns []string, rows [][]Value, uniqueBy []string, update []string) (string, []Value, error) {
	if len(uniqueBy) == 0 {
		return "", nil, fmt.Errorf("upsert compilation failed: uniqueBy columns required")
	}
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	unique := make(map[string]bool, len(uniqueBy))
	for _, c := range uniqueBy {
		if !present[c] {
			return "", nil, fmt.Errorf("upsert compilation failed: unique column %q missing from values", c)
		}
		unique[c] = true
	}

	if len(update) == 0 {
		for _, c := range columns {
			if !unique[c] {
				update = append(update, c)
			}
		}
	}
	if len(update) == 0 {
		return "", nil, fmt.Errorf("upsert compilation failed: nothing to update")
	}

	sql, args, err := g.CompileInsert(table, columns, rows)
	if err != nil {
		return "", nil, err
	}

	sets := make([]string, len(update))
	for i, c := range update {
		w, err := g.Wrap(c)
		if err != nil {
			return "", nil, fmt.Errorf("column wrap error: %w", err)
		}
		sets[i] = fmt.Sprintf("%s = VALUES(%s)", w, w)
	}
	return sql + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", "), args, nil
}

// CompileUpdate, UPDATE sorgusu üretir.
func (g *MySQLGrammar) CompileUpdate(qb *QueryBuilder, sets []SetClause) (string, []Value, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}
	// Tablo adını wrap et
	wrappedTable, err := g.Wrap(qb.table)
	if err != nil {
		return "", nil, fmt.Errorf("table wrap error: %w", err)
	}
	if len(sets) == 0 {
		return "", nil, fmt.Errorf("update compilation failed: no values")
	}

	joins, err := g.compileJoins(qb.joins)
	if err != nil {
		return "", nil, err
	}

	parts := make([]string, len(sets))
	var args []Value
	for i, s := range sets {
		parts[i] = s.SQL
		args = append(args, s.Bindings...)
	}

	sql := fmt.Sprintf("UPDATE %s%s SET %s", wrappedTable, joins, strings.Join(parts, ", "))

	if len(qb.wheres) > 0 {
		where, whereArgs := compileConditions(qb.wheres)
		sql += " WHERE " + where
		args = append(args, whereArgs...)
	}

	return sql, args, nil
}

// CompileDelete, DELETE sorgusu üretir.
func (g *MySQLGrammar) CompileDelete(qb *QueryBuilder) (string, []Value, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}
	// Tablo adını wrap et
	wrappedTable, err := g.Wrap(qb.table)
	if err != nil {
		return "", nil, fmt.Errorf("table wrap error: %w", err)
	}

	sql := fmt.Sprintf("DELETE FROM %s", wrappedTable)
	var args []Value

	if len(qb.wheres) > 0 {
		where, whereArgs := compileConditions(qb.wheres)
		sql += " WHERE " + where
		args = append(args, whereArgs...)
	}

	return sql, args, nil
}

// JSONContains, MySQL JSON_CONTAINS fragment'ı üretir.
func (g *MySQLGrammar) JSONContains(column string, withPath bool) string {
	if withPath {
		return fmt.Sprintf("JSON_CONTAINS(%s, ?, ?)", column)
	}
	return fmt.Sprintf("JSON_CONTAINS(%s, ?)", column)
}

// JSONLength, MySQL JSON_LENGTH fragment'ı üretir.
func (g *MySQLGrammar) JSONLength(column string, withPath bool) string {
	if withPath {
		return fmt.Sprintf("JSON_LENGTH(%s, ?)", column)
	}
	return fmt.Sprintf("JSON_LENGTH(%s)", column)
}

// JSONPath, "options.languages" → "$.options.languages".
func (g *MySQLGrammar) JSONPath(path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$.")
	if path == "" || path == "$" {
		return "$"
	}
	return "$." + path
}

// -----------------------------------------------------------------------------
// ADDITIONAL HELPER METHODS
// -----------------------------------------------------------------------------

// WrapMultiple, birden fazla identifier'ı wrap eder.
func (g *MySQLGrammar) WrapMultiple(values []string) ([]string, error) {
	wrapped := make([]string, len(values))
	for i, value := range values {
		w, err := g.Wrap(value)
		if err != nil {
			return nil, fmt.Errorf("failed to wrap '%s': %w", value, err)
		}
		wrapped[i] = w
	}
	return wrapped, nil
}
