package database

import (
	"fmt"
	"reflect"
	"strings"
)

// -----------------------------------------------------------------------------
// WHERE OPERATIONS
// -----------------------------------------------------------------------------
// Her predicate metodu tek bir çağrıda bir fragment ve o fragment'ın
// binding'lerini ekler; placeholder sırası binding sırasıyla birlikte ilerler.
//
// Bağlaç kuralları:
//   - Boş listeye eklenen ilk fragment bağlaçsızdır.
//   - Sonrakiler varsayılan olarak AND ile bağlanır.
//   - Or* varyantları OR ile bağlanır; liste boşsa sessizce AND'e düşer.
// -----------------------------------------------------------------------------

// appendCondition, bir fragment'ı bağlacı normalize ederek listeye ekler.
func appendCondition(list []WhereClause, boolean, sql string, bindings []Value) []WhereClause {
	if len(list) == 0 {
		boolean = "AND"
	}
	return append(list, WhereClause{Boolean: boolean, SQL: sql, Bindings: bindings})
}

// addWhere, tüm where varyantlarının ortak giriş noktasıdır.
func (qb *QueryBuilder) addWhere(boolean, sql string, bindings ...Value) *QueryBuilder {
	qb.wheres = appendCondition(qb.wheres, boolean, sql, bindings)
	return qb
}

// Where, sorguya bir WHERE koşulu ekler.
// Tüm değerler prepared statement ile bağlandığı için SQL injection korumalıdır.
//
// Parametreler:
//   - column: Koşul uygulanacak kolon adı
//   - operator: Karşılaştırma operatörü (=, !=, <, >, <=, >=, LIKE, IN, vb.)
//   - value: Karşılaştırılacak değer
//
// Örnek:
//
//	qb.Where("status", "=", "active")
//	qb.Where("age", ">", 18)
//	qb.Where("deleted_at", "=", nil) → `deleted_at` IS NULL
func (qb *QueryBuilder) Where(column string, operator string, value any) *QueryBuilder {
	return qb.where("AND", column, operator, value)
}

// OrWhere, sorguya bir OR WHERE koşulu ekler.
//
// Örnek:
//
//	qb.Where("role", "=", "admin").OrWhere("role", "=", "moderator")
//	→ SQL: WHERE `role` = ? OR `role` = ?
func (qb *QueryBuilder) OrWhere(column string, operator string, value any) *QueryBuilder {
	return qb.where("OR", column, operator, value)
}

func (qb *QueryBuilder) where(boolean, column, operator string, value any) *QueryBuilder {
	op := qb.operator(operator)

	switch op {
	case "IN", "NOT IN":
		return qb.whereIn(boolean, column, toAnySlice(value), op == "NOT IN")
	case "BETWEEN", "NOT BETWEEN":
		bounds := toAnySlice(value)
		if len(bounds) != 2 {
			qb.addError(fmt.Errorf("%s operator requires exactly 2 values, got %d", op, len(bounds)))
			return qb
		}
		return qb.whereBetween(boolean, column, bounds[0], bounds[1], op == "NOT BETWEEN")
	}

	if value == nil {
		switch op {
		case "=", "IS":
			return qb.whereNull(boolean, column, false)
		case "!=", "<>", "IS NOT":
			return qb.whereNull(boolean, column, true)
		}
	}

	return qb.addWhere(boolean, fmt.Sprintf("%s %s ?", qb.wrap(column), op), qb.bind(value))
}

// WhereIn, belirtilen kolonun değerlerinin bir dizide olup olmadığını kontrol eder.
// Boş dizi için hiçbir koşul eklenmez.
//
// Örnek:
//
//	qb.WhereIn("status", []any{"active", "pending", "approved"})
//	→ SQL: WHERE `status` IN (?, ?, ?)
func (qb *QueryBuilder) WhereIn(column string, values []any) *QueryBuilder {
	return qb.whereIn("AND", column, values, false)
}

// OrWhereIn, OR bağlaçlı WhereIn.
func (qb *QueryBuilder) OrWhereIn(column string, values []any) *QueryBuilder {
	return qb.whereIn("OR", column, values, false)
}

// WhereNotIn, belirtilen kolonun değerlerinin bir dizide olmadığını kontrol eder.
//
// Örnek:
//
//	qb.WhereNotIn("role", []any{"banned", "suspended"})
//	→ SQL: WHERE `role` NOT IN (?, ?)
func (qb *QueryBuilder) WhereNotIn(column string, values []any) *QueryBuilder {
	return qb.whereIn("AND", column, values, true)
}

// OrWhereNotIn, OR bağlaçlı WhereNotIn.
func (qb *QueryBuilder) OrWhereNotIn(column string, values []any) *QueryBuilder {
	return qb.whereIn("OR", column, values, true)
}

func (qb *QueryBuilder) whereIn(boolean, column string, values []any, not bool) *QueryBuilder {
	if len(values) == 0 {
		return qb
	}
	op := "IN"
	if not {
		op = "NOT IN"
	}
	sql := fmt.Sprintf("%s %s (%s)", qb.wrap(column), op, placeholders(len(values)))
	return qb.addWhere(boolean, sql, qb.bindAll(values)...)
}

// WhereBetween, belirtilen kolonun değerinin iki değer arasında olup olmadığını kontrol eder.
//
// Örnek:
//
//	qb.WhereBetween("age", 18, 65)
//	→ SQL: WHERE `age` BETWEEN ? AND ?
func (qb *QueryBuilder) WhereBetween(column string, min, max any) *QueryBuilder {
	return qb.whereBetween("AND", column, min, max, false)
}

// OrWhereBetween, OR bağlaçlı WhereBetween.
func (qb *QueryBuilder) OrWhereBetween(column string, min, max any) *QueryBuilder {
	return qb.whereBetween("OR", column, min, max, false)
}

// WhereNotBetween, belirtilen kolonun değerinin iki değer arasında olmadığını kontrol eder.
//
// Örnek:
//
//	qb.WhereNotBetween("score", 0, 50)
//	→ SQL: WHERE `score` NOT BETWEEN ? AND ?
func (qb *QueryBuilder) WhereNotBetween(column string, min, max any) *QueryBuilder {
	return qb.whereBetween("AND", column, min, max, true)
}

// OrWhereNotBetween, OR bağlaçlı WhereNotBetween.
func (qb *QueryBuilder) OrWhereNotBetween(column string, min, max any) *QueryBuilder {
	return qb.whereBetween("OR", column, min, max, true)
}

func (qb *QueryBuilder) whereBetween(boolean, column string, min, max any, not bool) *QueryBuilder {
	op := "BETWEEN"
	if not {
		op = "NOT BETWEEN"
	}
	sql := fmt.Sprintf("%s %s ? AND ?", qb.wrap(column), op)
	return qb.addWhere(boolean, sql, qb.bind(min), qb.bind(max))
}

// WhereNull, belirtilen kolonun NULL olup olmadığını kontrol eder.
//
// Örnek:
//
//	qb.WhereNull("deleted_at")
//	→ SQL: WHERE `deleted_at` IS NULL
func (qb *QueryBuilder) WhereNull(column string) *QueryBuilder {
	return qb.whereNull("AND", column, false)
}

// OrWhereNull, OR bağlaçlı WhereNull.
func (qb *QueryBuilder) OrWhereNull(column string) *QueryBuilder {
	return qb.whereNull("OR", column, false)
}

// WhereNotNull, belirtilen kolonun NULL olmadığını kontrol eder.
//
// Örnek:
//
//	qb.WhereNotNull("email_verified_at")
//	→ SQL: WHERE `email_verified_at` IS NOT NULL
func (qb *QueryBuilder) WhereNotNull(column string) *QueryBuilder {
	return qb.whereNull("AND", column, true)
}

// OrWhereNotNull, OR bağlaçlı WhereNotNull.
func (qb *QueryBuilder) OrWhereNotNull(column string) *QueryBuilder {
	return qb.whereNull("OR", column, true)
}

func (qb *QueryBuilder) whereNull(boolean, column string, not bool) *QueryBuilder {
	op := "IS NULL"
	if not {
		op = "IS NOT NULL"
	}
	return qb.addWhere(boolean, fmt.Sprintf("%s %s", qb.wrap(column), op))
}

// WhereDate, tarih kolonunun gün kısmını karşılaştırır.
//
// Örnek:
//
//	qb.WhereDate("created_at", "2024-01-15")
//	→ SQL: WHERE DATE(`created_at`) = ?
func (qb *QueryBuilder) WhereDate(column string, date any) *QueryBuilder {
	return qb.whereFunc("AND", "DATE", column, "=", date)
}

// OrWhereDate, OR bağlaçlı WhereDate.
func (qb *QueryBuilder) OrWhereDate(column string, date any) *QueryBuilder {
	return qb.whereFunc("OR", "DATE", column, "=", date)
}

// WhereTime, zaman kolonunun saat kısmını karşılaştırır.
//
// Örnek:
//
//	qb.WhereTime("starts_at", ">=", "18:00:00")
//	→ SQL: WHERE TIME(`starts_at`) >= ?
func (qb *QueryBuilder) WhereTime(column, operator string, value any) *QueryBuilder {
	return qb.whereFunc("AND", "TIME", column, operator, value)
}

// WhereYear, tarih kolonunun yılını kontrol eder.
//
// Örnek:
//
//	qb.WhereYear("created_at", 2024)
//	→ SQL: WHERE YEAR(`created_at`) = ?
func (qb *QueryBuilder) WhereYear(column string, year int) *QueryBuilder {
	return qb.whereFunc("AND", "YEAR", column, "=", year)
}

// WhereMonth, tarih kolonunun ayını kontrol eder (1-12).
func (qb *QueryBuilder) WhereMonth(column string, month int) *QueryBuilder {
	return qb.whereFunc("AND", "MONTH", column, "=", month)
}

// WhereDay, tarih kolonunun gününü kontrol eder (1-31).
func (qb *QueryBuilder) WhereDay(column string, day int) *QueryBuilder {
	return qb.whereFunc("AND", "DAY", column, "=", day)
}

func (qb *QueryBuilder) whereFunc(boolean, fn, column, operator string, value any) *QueryBuilder {
	sql := fmt.Sprintf("%s(%s) %s ?", fn, qb.wrap(column), qb.operator(operator))
	return qb.addWhere(boolean, sql, qb.bind(value))
}

// WhereLike, LIKE karşılaştırması ekler. Pattern olduğu gibi bağlanır.
//
// Örnek:
//
//	qb.WhereLike("name", "%john%")
//	→ SQL: WHERE `name` LIKE ?
func (qb *QueryBuilder) WhereLike(column string, pattern string) *QueryBuilder {
	return qb.addWhere("AND", fmt.Sprintf("%s LIKE ?", qb.wrap(column)), String(pattern))
}

// OrWhereLike, OR bağlaçlı WhereLike.
func (qb *QueryBuilder) OrWhereLike(column string, pattern string) *QueryBuilder {
	return qb.addWhere("OR", fmt.Sprintf("%s LIKE ?", qb.wrap(column)), String(pattern))
}

// WhereNotLike, NOT LIKE karşılaştırması ekler.
func (qb *QueryBuilder) WhereNotLike(column string, pattern string) *QueryBuilder {
	return qb.addWhere("AND", fmt.Sprintf("%s NOT LIKE ?", qb.wrap(column)), String(pattern))
}

// OrWhereNotLike, OR bağlaçlı WhereNotLike.
func (qb *QueryBuilder) OrWhereNotLike(column string, pattern string) *QueryBuilder {
	return qb.addWhere("OR", fmt.Sprintf("%s NOT LIKE ?", qb.wrap(column)), String(pattern))
}

// WhereColumn, iki kolonu doğrudan karşılaştırır; binding eklenmez.
//
// Örnek:
//
//	qb.WhereColumn("updated_at", ">", "created_at")
//	→ SQL: WHERE `updated_at` > `created_at`
func (qb *QueryBuilder) WhereColumn(first, operator, second string) *QueryBuilder {
	return qb.whereColumn("AND", first, operator, second)
}

// OrWhereColumn, OR bağlaçlı WhereColumn.
func (qb *QueryBuilder) OrWhereColumn(first, operator, second string) *QueryBuilder {
	return qb.whereColumn("OR", first, operator, second)
}

func (qb *QueryBuilder) whereColumn(boolean, first, operator, second string) *QueryBuilder {
	sql := fmt.Sprintf("%s %s %s", qb.wrap(first), qb.operator(operator), qb.wrap(second))
	return qb.addWhere(boolean, sql)
}

// WhereRaw, raw bir koşul ekler. Placeholder sayısı binding sayısına eşit
// olmalıdır; değilse builder hata kaydeder.
//
// Örnek:
//
//	qb.WhereRaw("price > IF(state = 'TX', ?, 100)", 200)
func (qb *QueryBuilder) WhereRaw(sql string, bindings ...any) *QueryBuilder {
	return qb.whereRaw("AND", sql, bindings)
}

// OrWhereRaw, OR bağlaçlı WhereRaw.
func (qb *QueryBuilder) OrWhereRaw(sql string, bindings ...any) *QueryBuilder {
	return qb.whereRaw("OR", sql, bindings)
}

func (qb *QueryBuilder) whereRaw(boolean, sql string, bindings []any) *QueryBuilder {
	if n := strings.Count(sql, "?"); n != len(bindings) {
		qb.addError(fmt.Errorf("raw where %q has %d placeholders but %d bindings", sql, n, len(bindings)))
		return qb
	}
	return qb.addWhere(boolean, sql, qb.bindAll(bindings)...)
}

// WhereAny, aynı operatör/değeri birden fazla kolona OR ile uygular.
//
// Örnek:
//
//	qb.WhereAny([]string{"name", "email"}, "LIKE", "%john%")
//	→ SQL: WHERE (`name` LIKE ? OR `email` LIKE ?)
func (qb *QueryBuilder) WhereAny(columns []string, operator string, value any) *QueryBuilder {
	return qb.whereColumns("AND", columns, operator, value, "OR", false)
}

// OrWhereAny, OR bağlaçlı WhereAny.
func (qb *QueryBuilder) OrWhereAny(columns []string, operator string, value any) *QueryBuilder {
	return qb.whereColumns("OR", columns, operator, value, "OR", false)
}

// WhereAll, aynı operatör/değerin tüm kolonlar için sağlanmasını ister.
//
// Örnek:
//
//	qb.WhereAll([]string{"status", "payment_status"}, "=", "ok")
//	→ SQL: WHERE (`status` = ? AND `payment_status` = ?)
func (qb *QueryBuilder) WhereAll(columns []string, operator string, value any) *QueryBuilder {
	return qb.whereColumns("AND", columns, operator, value, "AND", false)
}

// OrWhereAll, OR bağlaçlı WhereAll.
func (qb *QueryBuilder) OrWhereAll(columns []string, operator string, value any) *QueryBuilder {
	return qb.whereColumns("OR", columns, operator, value, "AND", false)
}

// WhereNone, kolonların hiçbirinin koşulu sağlamamasını ister.
//
// Örnek:
//
//	qb.WhereNone([]string{"title", "body"}, "LIKE", "%spam%")
//	→ SQL: WHERE NOT (`title` LIKE ? OR `body` LIKE ?)
func (qb *QueryBuilder) WhereNone(columns []string, operator string, value any) *QueryBuilder {
	return qb.whereColumns("AND", columns, operator, value, "OR", true)
}

// OrWhereNone, OR bağlaçlı WhereNone.
func (qb *QueryBuilder) OrWhereNone(columns []string, operator string, value any) *QueryBuilder {
	return qb.whereColumns("OR", columns, operator, value, "OR", true)
}

func (qb *QueryBuilder) whereColumns(boolean string, columns []string, operator string, value any, joiner string, not bool) *QueryBuilder {
	if len(columns) == 0 {
		return qb
	}
	op := qb.operator(operator)
	parts := make([]string, len(columns))
	bindings := make([]Value, len(columns))
	v := qb.bind(value)
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s %s ?", qb.wrap(col), op)
		bindings[i] = v
	}
	sql := "(" + strings.Join(parts, " "+joiner+" ") + ")"
	if not {
		sql = "NOT " + sql
	}
	return qb.addWhere(boolean, sql, bindings...)
}

// WhereNested, callback'i izole bir alt builder üzerinde çalıştırır ve
// biriken koşulları tek bir parantezli grup olarak ekler.
//
// Örnek:
//
//	qb.WhereNested(func(q *QueryBuilder) {
//	    q.Where("a", "=", 1).OrWhere("b", "=", 2)
//	})
//	→ SQL: WHERE (`a` = ? OR `b` = ?)
func (qb *QueryBuilder) WhereNested(fn func(q *QueryBuilder)) *QueryBuilder {
	return qb.whereNested("AND", fn)
}

// OrWhereNested, OR bağlaçlı WhereNested.
func (qb *QueryBuilder) OrWhereNested(fn func(q *QueryBuilder)) *QueryBuilder {
	return qb.whereNested("OR", fn)
}

func (qb *QueryBuilder) whereNested(boolean string, fn func(q *QueryBuilder)) *QueryBuilder {
	sub := qb.newQuery()
	sub.table = qb.table
	sub.model = qb.model
	sub.from = qb.from
	fn(sub)
	qb.addError(sub.err)
	if len(sub.wheres) == 0 {
		return qb
	}
	sql, bindings := compileConditions(sub.wheres)
	return qb.addWhere(boolean, "("+sql+")", bindings...)
}

// toAnySlice, herhangi bir slice/array değerini []any'ye çevirir. Slice
// olmayan değerler tek elemanlı listeye dönüşür; nil boş listedir.
func toAnySlice(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []byte:
		return []any{v}
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{value}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
