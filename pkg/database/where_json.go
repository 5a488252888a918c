package database

import (
	"encoding/json"
	"fmt"
)

// -----------------------------------------------------------------------------
// JSON WHERE OPERATIONS
// -----------------------------------------------------------------------------
// Sürücünün yerel JSON içerme/uzunluk fonksiyonlarını sarmalar. Aranan değer
// JSON metnine çevrilip bağlanır; path verilirse ikinci placeholder olarak
// "$.a.b" sözdiziminde eklenir.
// -----------------------------------------------------------------------------

// WhereJSONContains, JSON kolonunun verilen değeri içermesini ister.
//
// Örnek:
//
//	qb.WhereJSONContains("options", []string{"en", "de"}, "languages")
//	→ SQL: WHERE JSON_CONTAINS(`options`, ?, ?)  args: ["[\"en\",\"de\"]", "$.languages"]
func (qb *QueryBuilder) WhereJSONContains(column string, value any, path ...string) *QueryBuilder {
	return qb.whereJSONContains("AND", column, value, path, false)
}

// OrWhereJSONContains, OR bağlaçlı WhereJSONContains.
func (qb *QueryBuilder) OrWhereJSONContains(column string, value any, path ...string) *QueryBuilder {
	return qb.whereJSONContains("OR", column, value, path, false)
}

// WhereJSONDoesntContain, JSON kolonunun değeri içermemesini ister.
func (qb *QueryBuilder) WhereJSONDoesntContain(column string, value any, path ...string) *QueryBuilder {
	return qb.whereJSONContains("AND", column, value, path, true)
}

// OrWhereJSONDoesntContain, OR bağlaçlı WhereJSONDoesntContain.
func (qb *QueryBuilder) OrWhereJSONDoesntContain(column string, value any, path ...string) *QueryBuilder {
	return qb.whereJSONContains("OR", column, value, path, true)
}

func (qb *QueryBuilder) whereJSONContains(boolean, column string, value any, path []string, not bool) *QueryBuilder {
	encoded, err := json.Marshal(value)
	if err != nil {
		qb.addError(fmt.Errorf("json contains on %q: %w", column, err))
		return qb
	}
	withPath := len(path) > 0 && path[0] != ""
	sql := qb.grammar.JSONContains(qb.wrap(column), withPath)
	if not {
		sql = "NOT " + sql
	}
	bindings := []Value{String(string(encoded))}
	if withPath {
		bindings = append(bindings, String(qb.grammar.JSONPath(path[0])))
	}
	return qb.addWhere(boolean, sql, bindings...)
}

// WhereJSONLength, JSON dizisinin/objesinin uzunluğunu karşılaştırır.
//
// Örnek:
//
//	qb.WhereJSONLength("tags", ">", 2)
//	→ SQL: WHERE JSON_LENGTH(`tags`) > ?
func (qb *QueryBuilder) WhereJSONLength(column, operator string, length int, path ...string) *QueryBuilder {
	return qb.whereJSONLength("AND", column, operator, length, path)
}

// OrWhereJSONLength, OR bağlaçlı WhereJSONLength.
func (qb *QueryBuilder) OrWhereJSONLength(column, operator string, length int, path ...string) *QueryBuilder {
	return qb.whereJSONLength("OR", column, operator, length, path)
}

func (qb *QueryBuilder) whereJSONLength(boolean, column, operator string, length int, path []string) *QueryBuilder {
	withPath := len(path) > 0 && path[0] != ""
	fn := qb.grammar.JSONLength(qb.wrap(column), withPath)
	var bindings []Value
	if withPath {
		bindings = append(bindings, String(qb.grammar.JSONPath(path[0])))
	}
	bindings = append(bindings, Int(int64(length)))
	return qb.addWhere(boolean, fmt.Sprintf("%s %s ?", fn, qb.operator(operator)), bindings...)
}
