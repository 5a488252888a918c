package database

import (
	"context"
	"fmt"
	"sort"
)

// -----------------------------------------------------------------------------
// MUTATIONS
// -----------------------------------------------------------------------------
// Update, Delete, Increment, Decrement ve IncrementEach WHERE koşulu olmadan
// çalışmaz: executor'a hiçbir ifade gönderilmeden *GuardError döner.
// Insert ailesi bu kısıtlamaya tabi değildir.
//
// Map ile verilen kolonlar deterministik SQL için alfabetik sıralanır.
// -----------------------------------------------------------------------------

// guard, WHERE'siz mutation'ı reddeder.
func (qb *QueryBuilder) guard(operation string) error {
	if len(qb.wheres) == 0 {
		return &GuardError{Operation: operation, Table: qb.table}
	}
	return nil
}

// Insert, tek satır ekler ve oluşan auto-increment ID'yi döndürür.
//
// Örnek:
//
//	id, err := db.Table("users").Insert(ctx, map[string]any{
//	    "email": "a@b.com",
//	    "name":  "Ahmet",
//	})
//	→ SQL: INSERT INTO `users` (`email`, `name`) VALUES (?, ?)
func (qb *QueryBuilder) Insert(ctx context.Context, values map[string]any) (int64, error) {
	res, err := qb.insert(ctx, []map[string]any{values}, nil, nil, false)
	if err != nil {
		return 0, err
	}
	return res.InsertID, nil
}

// InsertMany, çok satırı tek bir INSERT ile ekler ve etkilenen satır sayısını
// döndürür. Satırlarda eksik kolonlar NULL olarak yazılır.
//
// Örnek:
//
//	n, err := db.Table("tags").InsertMany(ctx, []map[string]any{
//	    {"name": "go"},
//	    {"name": "sql"},
//	})
//	→ SQL: INSERT INTO `tags` (`name`) VALUES (?), (?)
func (qb *QueryBuilder) InsertMany(ctx context.Context, rows []map[string]any) (int64, error) {
	res, err := qb.insert(ctx, rows, nil, nil, false)
	if err != nil {
		return 0, err
	}
	return res.AffectedRows, nil
}

// Upsert, satırları ekler; uniqueBy kolonlarında çakışma olursa update
// listesindeki kolonları gelen satırdan günceller. update boşsa uniqueBy
// dışındaki tüm kolonlar güncellenir.
//
// Örnek:
//
//	db.Table("seats").Upsert(ctx, rows, []string{"event_id", "code"}, []string{"price"})
//	→ SQL: INSERT INTO `seats` (`code`, `event_id`, `price`) VALUES (?, ?, ?)
//	       ON DUPLICATE KEY UPDATE `price` = VALUES(`price`)
func (qb *QueryBuilder) Upsert(ctx context.Context, rows []map[string]any, uniqueBy, update []string) (int64, error) {
	res, err := qb.insert(ctx, rows, uniqueBy, update, true)
	if err != nil {
		return 0, err
	}
	return res.AffectedRows, nil
}

func (qb *QueryBuilder) insert(ctx context.Context, rows []map[string]any, uniqueBy, update []string, upsert bool) (*Result, error) {
	if qb.err != nil {
		return nil, qb.err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %q: no rows", qb.table)
	}

	columns := unionKeys(rows)
	for _, c := range columns {
		validateIdentifier(c, "column")
	}

	tuples := make([][]Value, len(rows))
	for i, row := range rows {
		tuple := make([]Value, len(columns))
		for j, c := range columns {
			v, err := ValueOf(row[c])
			if err != nil {
				return nil, fmt.Errorf("insert into %q, column %q: %w", qb.table, c, err)
			}
			tuple[j] = v
		}
		tuples[i] = tuple
	}

	var (
		sql      string
		bindings []Value
		err      error
	)
	if upsert {
		sql, bindings, err = qb.grammar.CompileUpsert(qb.table, columns, tuples, uniqueBy, update)
	} else {
		sql, bindings, err = qb.grammar.CompileInsert(qb.table, columns, tuples)
	}
	if err != nil {
		return nil, err
	}
	return qb.run(ctx, sql, bindings)
}

// unionKeys, tüm satırlardaki kolon adlarını sıralı ve tekil döndürür.
func unionKeys(rows []map[string]any) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// Update, eşleşen satırları günceller ve etkilenen satır sayısını döndürür.
// Expression değerler wrap edilmeden yazılır.
//
// Örnek:
//
//	n, err := db.Table("users").Where("id", "=", 1).Update(ctx, map[string]any{
//	    "name":       "Mehmet",
//	    "updated_at": database.Raw("NOW()"),
//	})
//	→ SQL: UPDATE `users` SET `name` = ?, `updated_at` = NOW() WHERE `id` = ?
//
// Güvenlik Notu:
// WHERE koşulu yoksa ErrMissingWhere döner ve sorgu gönderilmez.
func (qb *QueryBuilder) Update(ctx context.Context, values map[string]any) (int64, error) {
	if err := qb.guard("update"); err != nil {
		return 0, err
	}
	sets, err := qb.setClauses(values)
	if err != nil {
		return 0, err
	}
	return qb.runUpdate(ctx, sets)
}

func (qb *QueryBuilder) setClauses(values map[string]any) ([]SetClause, error) {
	columns := make([]string, 0, len(values))
	for c := range values {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	sets := make([]SetClause, 0, len(columns))
	for _, c := range columns {
		validateIdentifier(c, "column")
		if expr, ok := values[c].(Expression); ok {
			sets = append(sets, SetClause{Column: c, SQL: qb.wrap(c) + " = " + string(expr)})
			continue
		}
		v, err := ValueOf(values[c])
		if err != nil {
			return nil, fmt.Errorf("update %q, column %q: %w", qb.table, c, err)
		}
		sets = append(sets, SetClause{Column: c, SQL: qb.wrap(c) + " = ?", Bindings: []Value{v}})
	}
	return sets, nil
}

func (qb *QueryBuilder) runUpdate(ctx context.Context, sets []SetClause) (int64, error) {
	sql, bindings, err := qb.grammar.CompileUpdate(qb, sets)
	if err != nil {
		return 0, err
	}
	res, err := qb.run(ctx, sql, bindings)
	if err != nil {
		return 0, err
	}
	return res.AffectedRows, nil
}

// Delete, eşleşen satırları siler.
//
// Örnek:
//
//	n, err := db.Table("sessions").Where("expires_at", "<", time.Now()).Delete(ctx)
//
// Güvenlik Notu:
// WHERE koşulu yoksa ErrMissingWhere döner ve sorgu gönderilmez.
func (qb *QueryBuilder) Delete(ctx context.Context) (int64, error) {
	if err := qb.guard("delete"); err != nil {
		return 0, err
	}
	sql, bindings, err := qb.grammar.CompileDelete(qb)
	if err != nil {
		return 0, err
	}
	res, err := qb.run(ctx, sql, bindings)
	if err != nil {
		return 0, err
	}
	return res.AffectedRows, nil
}

// Increment, kolonu amount kadar artırır. extra ile aynı ifadede başka
// kolonlar da güncellenebilir.
//
// Örnek:
//
//	db.Table("events").Where("id", "=", 7).Increment(ctx, "sold", 2, map[string]any{"updated_at": database.Raw("NOW()")})
//	→ SQL: UPDATE `events` SET `sold` = `sold` + ?, `updated_at` = NOW() WHERE `id` = ?
func (qb *QueryBuilder) Increment(ctx context.Context, column string, amount int64, extra ...map[string]any) (int64, error) {
	return qb.IncrementEach(ctx, map[string]int64{column: amount}, extra...)
}

// Decrement, kolonu amount kadar azaltır.
func (qb *QueryBuilder) Decrement(ctx context.Context, column string, amount int64, extra ...map[string]any) (int64, error) {
	if err := qb.guard("decrement"); err != nil {
		return 0, err
	}
	return qb.incrementEach(ctx, map[string]int64{column: -amount}, extra)
}

// IncrementEach, birden fazla kolonu tek ifadede artırır (negatif değer azaltır).
//
// Örnek:
//
//	db.Table("stats").Where("day", "=", today).IncrementEach(ctx, map[string]int64{"views": 1, "clicks": 3})
func (qb *QueryBuilder) IncrementEach(ctx context.Context, columns map[string]int64, extra ...map[string]any) (int64, error) {
	if err := qb.guard("increment"); err != nil {
		return 0, err
	}
	return qb.incrementEach(ctx, columns, extra)
}

func (qb *QueryBuilder) incrementEach(ctx context.Context, columns map[string]int64, extra []map[string]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("increment %q: no columns", qb.table)
	}
	names := make([]string, 0, len(columns))
	for c := range columns {
		names = append(names, c)
	}
	sort.Strings(names)

	sets := make([]SetClause, 0, len(names))
	for _, c := range names {
		validateIdentifier(c, "column")
		amount := columns[c]
		op := "+"
		if amount < 0 {
			op, amount = "-", -amount
		}
		w := qb.wrap(c)
		sets = append(sets, SetClause{Column: c, SQL: fmt.Sprintf("%s = %s %s ?", w, w, op), Bindings: []Value{Int(amount)}})
	}
	for _, values := range extra {
		more, err := qb.setClauses(values)
		if err != nil {
			return 0, err
		}
		sets = append(sets, more...)
	}
	return qb.runUpdate(ctx, sets)
}
