package database

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// QUERY BUILDER - TEMEL
// -----------------------------------------------------------------------------
// Bu dosya, QueryBuilder'ın ana gövdesini içerir. Builder; tablo, kolonlar,
// where'lar, join'ler, group/having, order, limit, offset, kilit ve union
// bilgilerini tutar. Terminal metotlar (Get, First, Count, Paginate, Insert,
// Update, Delete...) ayrı dosyalardadır.
//
// EŞZAMANLILIK:
// Builder tek sahipli, tek yazarlı bir akümülatördür. Başka bir goroutine'e
// verilecekse önce Clone() alınmalıdır.
//
// GÜVENLİK:
// - Identifier'lar whitelist regex ile doğrulanır, geçersizse panic atılır
// - Tüm değerler prepared statement parametresi olarak bağlanır
// - OrderBy direction whitelist kontrolünden geçer
// -----------------------------------------------------------------------------

// validIdentifierRegex, güvenli SQL identifier pattern'ini tanımlar.
// Sadece alphanumeric, underscore ve nokta (table.column için) kabul eder.
var validIdentifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_\.]+$`)

// functionColumnRegex, Select/Where/Having'e kolon olarak verilebilen tek
// seviyeli fonksiyon çağrısını tanımlar: FUNC([DISTINCT] arg, ...) [AS alias].
// Argümanlar sadece identifier veya * olabilir; alt sorgu, string literal
// ve iç içe fonksiyon için SelectRaw kullanılır.
var functionColumnRegex = regexp.MustCompile(
	`(?i)^[a-z_][a-z0-9_]*\(\s*(distinct\s+)?(\*|[a-z0-9_]+(\.[a-z0-9_*]+)?(\s*,\s*[a-z0-9_]+(\.[a-z0-9_*]+)?)*)?\s*\)(\s+as\s+[a-z_][a-z0-9_]*)?$`)

type QueryBuilder struct {
	executor Executor
	grammar  Grammar
	registry *Registry
	logger   Logger
	loader   *Loader

	table    string
	model    *ModelDefinition
	columns  []selectColumn
	distinct bool
	from     *fromClause
	joins    []JoinClause
	wheres   []WhereClause
	groups   []string
	havings  []WhereClause
	orders   []OrderClause
	limit    int
	offset   int
	lock     LockMode
	unions   []UnionClause

	eager      []any
	without    []string
	withOnly   bool
	aggregates []AggregateRequest
	cacheTTL   time.Duration

	err error
}

// NewBuilder, executor ve grammar alarak yeni QueryBuilder üretir.
//
// Parametreler:
//   - executor: SQL komutlarını çalıştıracak executor (nil olabilir; sadece ToSQL kullanılacaksa)
//   - grammar: SQL dialect'ini yöneten grammar
//
// Döndürür:
//   - *QueryBuilder: Yeni QueryBuilder instance'ı
func NewBuilder(executor Executor, grammar Grammar) *QueryBuilder {
	if grammar == nil {
		grammar = NewMySQLGrammar()
	}
	return &QueryBuilder{
		executor: executor,
		grammar:  grammar,
		logger:   nopLogger{},
	}
}

// newQuery, aynı bağlantı ayarlarıyla boş bir builder üretir. Nested
// where'lar ve ilişki sorguları izole state için bunu kullanır.
func (qb *QueryBuilder) newQuery() *QueryBuilder {
	return &QueryBuilder{
		executor: qb.executor,
		grammar:  qb.grammar,
		registry: qb.registry,
		logger:   qb.logger,
		loader:   qb.loader,
	}
}

// forModel, registry'deki bir model için temiz builder üretir.
func (qb *QueryBuilder) forModel(model *ModelDefinition) *QueryBuilder {
	q := qb.newQuery()
	q.model = model
	q.table = model.Table
	return q
}

// validateIdentifier, SQL identifier'ı (column/table adı) validate eder.
//
// GÜVENLİK KRİTİK:
// Geçersiz identifier bulunursa panic atar.
//
// İzin verilenler:
//   - ✅ "users", "user_id", "users.id", "users.*"
//   - ✅ "users as u", "id AS user_id"
//   - ❌ "id; DROP TABLE users--" → panic
//   - ❌ "id' OR '1'='1" → panic
func validateIdentifier(identifier string, context string) {
	identifier = strings.TrimSpace(identifier)

	// Wildcard için özel durum
	if identifier == "*" {
		return
	}

	// Boş string kontrolü
	if identifier == "" {
		panic(fmt.Sprintf("Invalid %s name: empty identifier", context))
	}

	if m := aliasPattern.FindStringSubmatch(identifier); m != nil {
		validateIdentifier(m[1], context)
		validateIdentifier(m[2], context+" alias")
		if strings.Contains(m[2], ".") {
			panic(fmt.Sprintf("Invalid %s alias: '%s'", context, m[2]))
		}
		return
	}

	if strings.HasSuffix(identifier, ".*") {
		identifier = strings.TrimSuffix(identifier, ".*")
		if strings.Contains(identifier, ".") {
			panic(fmt.Sprintf("Invalid %s name: '%s.*' (too many dots)", context, identifier))
		}
	}

	// Regex ile validate et
	if !validIdentifierRegex.MatchString(identifier) {
		panic(fmt.Sprintf("Invalid %s name: '%s' (contains unsafe characters)", context, identifier))
	}

	// Nokta varsa, her parçayı ayrı ayrı kontrol et
	if strings.Contains(identifier, ".") {
		parts := strings.Split(identifier, ".")

		// En fazla 2 parça olmalı (table.column)
		if len(parts) > 2 {
			panic(fmt.Sprintf("Invalid %s name: '%s' (too many dots)", context, identifier))
		}

		for _, part := range parts {
			if part == "" {
				panic(fmt.Sprintf("Invalid %s name: '%s' (empty part)", context, identifier))
			}
		}
	}
}

// validateFunctionColumn, Select ve where kolonlarına verilen fonksiyon
// ifadelerini doğrular. Geçersizse panic atar.
//
//   - ✅ "COUNT(*) as total", "SUM(price)", "COUNT(DISTINCT user_id)"
//   - ❌ "id, (SELECT password FROM admin)" → panic
//   - ❌ "MAX((SELECT 1))" → panic
func validateFunctionColumn(expr string) {
	validateExpression(expr)
	if !functionColumnRegex.MatchString(strings.TrimSpace(expr)) {
		panic(fmt.Sprintf("Invalid column expression: '%s' (use SelectRaw for subqueries)", expr))
	}
}

// validateExpression, raw ifadelere (SelectRaw, HavingRaw, FromRaw)
// uygulanan kontroldür: çoklu statement ve SQL yorumu reddedilir.
func validateExpression(expr string) {
	if strings.Contains(expr, ";") || strings.Contains(expr, "--") || strings.Contains(expr, "/*") {
		panic(fmt.Sprintf("Invalid column expression: '%s' (suspicious content)", expr))
	}
}

// addError, builder üzerinde ertelenmiş hata kaydeder. İlk hata korunur ve
// ToSQL ile tüm terminal metotlardan döner.
func (qb *QueryBuilder) addError(err error) {
	if qb.err == nil && err != nil {
		qb.err = err
	}
}

// Err, builder üzerinde biriken ilk hatayı döndürür.
func (qb *QueryBuilder) Err() error {
	return qb.err
}

// wrap, identifier'ı doğrular ve grammar ile sarmalar.
func (qb *QueryBuilder) wrap(identifier string) string {
	if strings.Contains(identifier, "(") {
		validateFunctionColumn(identifier)
	} else {
		validateIdentifier(identifier, "column")
	}
	w, err := qb.grammar.Wrap(identifier)
	if err != nil {
		qb.addError(err)
		return identifier
	}
	return w
}

// bind, bir Go değerini binding'e çevirir.
func (qb *QueryBuilder) bind(value any) Value {
	v, err := ValueOf(value)
	if err != nil {
		qb.addError(err)
	}
	return v
}

// operator, operatörü whitelist'e karşı doğrular.
func (qb *QueryBuilder) operator(op string) string {
	normalized, err := qb.grammar.ValidateOperator(op)
	if err != nil {
		qb.addError(err)
		return op
	}
	return normalized
}

// Table, sorgunun çalışacağı tablo adını belirler.
//
// Örnek:
//
//	qb.Table("users")
//	qb.Table("users as u")
func (qb *QueryBuilder) Table(tableName string) *QueryBuilder {
	validateIdentifier(tableName, "table")
	qb.table = tableName
	return qb
}

// Model, registry'deki bir modeli sorgunun hedefi yapar. Tablo, factory,
// varsayılan eager ilişkiler ve ilişki tanımları modelden gelir.
//
// Örnek:
//
//	users, err := db.Model("user").With("posts").Get(ctx)
func (qb *QueryBuilder) Model(name string) *QueryBuilder {
	model, ok := qb.registry.Model(name)
	if !ok {
		qb.addError(fmt.Errorf("%w: %q", ErrModelNotFound, name))
		return qb
	}
	qb.model = model
	qb.table = model.Table
	return qb
}

// tableReference, correlated alt sorgularda dış tabloyu işaret eden adı
// döndürür (alias varsa alias).
func (qb *QueryBuilder) tableReference() string {
	if qb.from != nil && qb.from.alias != "" {
		return qb.from.alias
	}
	if m := aliasPattern.FindStringSubmatch(qb.table); m != nil {
		return strings.TrimSpace(m[2])
	}
	return qb.table
}

// modelName, builder'ın modelinin adını döndürür (yoksa boş).
func (qb *QueryBuilder) modelName() string {
	if qb.model == nil {
		return ""
	}
	return qb.model.Name
}

// Select, sorgudan döndürülecek kolonları belirler.
//
// Örnek:
//
//	qb.Select("id", "name", "email")
//	qb.Select("COUNT(*) as total")
func (qb *QueryBuilder) Select(columns ...string) *QueryBuilder {
	qb.columns = make([]selectColumn, 0, len(columns))
	qb.appendColumns(columns)
	return qb
}

// AddSelect, mevcut projeksiyona kolon ekler. Projeksiyon henüz örtük "*"
// ise önce açık bir listeye ("tablo.*") çevrilir.
//
// Örnek:
//
//	qb.Table("users").AddSelect("posts_count")
//	→ SELECT `users`.*, `posts_count` FROM `users`
func (qb *QueryBuilder) AddSelect(columns ...string) *QueryBuilder {
	if len(qb.columns) == 0 && len(columns) > 0 {
		qb.columns = append(qb.columns, selectColumn{expr: qb.wildcard()})
	}
	qb.appendColumns(columns)
	return qb
}

func (qb *QueryBuilder) appendColumns(columns []string) {
	for _, col := range columns {
		// SQL fonksiyonları için daha esnek validation
		// Örn: "COUNT(*) as total", "SUM(price)", "MAX(id)"
		if strings.Contains(col, "(") || strings.Contains(col, ")") {
			validateFunctionColumn(col)
			qb.columns = append(qb.columns, selectColumn{expr: col, raw: true})
			continue
		}
		validateIdentifier(col, "column")
		qb.columns = append(qb.columns, selectColumn{expr: col})
	}
}

func (qb *QueryBuilder) wildcard() string {
	if ref := qb.tableReference(); ref != "" {
		return ref + ".*"
	}
	return "*"
}

// SelectRaw, projeksiyona wrap edilmeden yazılacak bir ifade ekler.
//
// Örnek:
//
//	qb.SelectRaw("price * ? AS price_with_tax", 1.18)
func (qb *QueryBuilder) SelectRaw(expression string, bindings ...any) *QueryBuilder {
	validateExpression(expression)
	qb.columns = append(qb.columns, selectColumn{expr: expression, raw: true, bindings: qb.bindAll(bindings)})
	return qb
}

func (qb *QueryBuilder) bindAll(values []any) []Value {
	out := make([]Value, 0, len(values))
	for _, v := range values {
		out = append(out, qb.bind(v))
	}
	return out
}

// Distinct, SELECT DISTINCT üretir.
func (qb *QueryBuilder) Distinct() *QueryBuilder {
	qb.distinct = true
	return qb
}

// OrderBy, sorgu sonuçlarını belirtilen kolona göre sıralar.
//
// Direction whitelist kontrolünden geçer; geçersiz değerler "ASC" olur.
//
// Örnek:
//
//	qb.OrderBy("created_at", "DESC")
//	qb.OrderBy("name", "asc")
func (qb *QueryBuilder) OrderBy(column string, direction string) *QueryBuilder {
	validateIdentifier(column, "column")

	// Direction'ı normalize et ve whitelist kontrolü yap
	var orderDir OrderDirection
	switch strings.ToUpper(strings.TrimSpace(direction)) {
	case "DESC":
		orderDir = OrderDesc
	default:
		orderDir = OrderAsc
	}

	qb.orders = append(qb.orders, OrderClause{
		Column:    column,
		Direction: orderDir,
	})
	return qb
}

// OrderByDesc, OrderBy(column, "DESC") kısayoludur.
func (qb *QueryBuilder) OrderByDesc(column string) *QueryBuilder {
	return qb.OrderBy(column, "DESC")
}

// Latest, kolona göre azalan sıralar (varsayılan "created_at").
func (qb *QueryBuilder) Latest(column ...string) *QueryBuilder {
	return qb.OrderBy(firstOr(column, "created_at"), "DESC")
}

// Oldest, kolona göre artan sıralar (varsayılan "created_at").
func (qb *QueryBuilder) Oldest(column ...string) *QueryBuilder {
	return qb.OrderBy(firstOr(column, "created_at"), "ASC")
}

// InRandomOrder, sonuçları rastgele sıralar.
func (qb *QueryBuilder) InRandomOrder() *QueryBuilder {
	qb.orders = append(qb.orders, OrderClause{Raw: "RAND()"})
	return qb
}

// Reorder, mevcut sıralamaları temizler.
func (qb *QueryBuilder) Reorder() *QueryBuilder {
	qb.orders = nil
	return qb
}

func firstOr(values []string, fallback string) string {
	if len(values) > 0 && values[0] != "" {
		return values[0]
	}
	return fallback
}

// GroupBy, GROUP BY kolonlarını ekler.
func (qb *QueryBuilder) GroupBy(columns ...string) *QueryBuilder {
	for _, col := range columns {
		validateIdentifier(col, "column")
		qb.groups = append(qb.groups, col)
	}
	return qb
}

// Having, HAVING koşulu ekler. Kolon bir aggregate ifadesi olabilir.
//
// Örnek:
//
//	qb.GroupBy("user_id").Having("COUNT(*)", ">", 5)
func (qb *QueryBuilder) Having(column, operator string, value any) *QueryBuilder {
	return qb.having("AND", column, operator, value)
}

// OrHaving, OR bağlaçlı HAVING koşulu ekler.
func (qb *QueryBuilder) OrHaving(column, operator string, value any) *QueryBuilder {
	return qb.having("OR", column, operator, value)
}

func (qb *QueryBuilder) having(boolean, column, operator string, value any) *QueryBuilder {
	sql := fmt.Sprintf("%s %s ?", qb.wrap(column), qb.operator(operator))
	qb.havings = appendCondition(qb.havings, boolean, sql, []Value{qb.bind(value)})
	return qb
}

// HavingRaw, HAVING listesine raw ifade ekler.
func (qb *QueryBuilder) HavingRaw(sql string, bindings ...any) *QueryBuilder {
	validateExpression(sql)
	qb.havings = appendCondition(qb.havings, "AND", sql, qb.bindAll(bindings))
	return qb
}

// Limit, döndürülecek maksimum satır sayısını belirler.
//
// Örnek:
//
//	qb.Limit(10) → LIMIT 10
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	if limit < 0 {
		limit = 0
	}
	qb.limit = limit
	return qb
}

// Offset, atlanacak satır sayısını belirler (pagination için).
//
// Örnek:
//
//	qb.Limit(10).Offset(20) → LIMIT 10 OFFSET 20 (3. sayfa)
func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	if offset < 0 {
		offset = 0
	}
	qb.offset = offset
	return qb
}

// Take, Limit'in takma adıdır.
func (qb *QueryBuilder) Take(n int) *QueryBuilder { return qb.Limit(n) }

// Skip, Offset'in takma adıdır.
func (qb *QueryBuilder) Skip(n int) *QueryBuilder { return qb.Offset(n) }

// ForPage, sayfa numarası ve sayfa boyutundan limit/offset hesaplar.
//
// Örnek:
//
//	qb.ForPage(3, 15) → LIMIT 15 OFFSET 30
func (qb *QueryBuilder) ForPage(page, perPage int) *QueryBuilder {
	if page < 1 {
		page = 1
	}
	return qb.Offset((page - 1) * perPage).Limit(perPage)
}

// SharedLock, seçilen satırlara paylaşımlı kilit koyar (LOCK IN SHARE MODE).
func (qb *QueryBuilder) SharedLock() *QueryBuilder {
	qb.lock = LockShared
	return qb
}

// LockForUpdate, seçilen satırlara özel kilit koyar (FOR UPDATE).
func (qb *QueryBuilder) LockForUpdate() *QueryBuilder {
	qb.lock = LockExclusive
	return qb
}

// Remember, bu builder'ın okuma sorgularının sonucunu ttl süresince cache'den
// sunulabilir olarak işaretler. Executor zincirinde CachingExecutor yoksa
// etkisizdir.
func (qb *QueryBuilder) Remember(ttl time.Duration) *QueryBuilder {
	qb.cacheTTL = ttl
	return qb
}

// Clone, builder'ın bağımsız bir kopyasını döndürür. Kopya üzerinde yapılan
// değişiklikler orijinali etkilemez.
//
// Örnek:
//
//	base := db.Table("users").Where("active", "=", true)
//	admins := base.Clone().Where("role", "=", "admin")
func (qb *QueryBuilder) Clone() *QueryBuilder {
	c := *qb
	c.columns = slices.Clone(qb.columns)
	c.joins = slices.Clone(qb.joins)
	c.wheres = slices.Clone(qb.wheres)
	c.groups = slices.Clone(qb.groups)
	c.havings = slices.Clone(qb.havings)
	c.orders = slices.Clone(qb.orders)
	c.unions = slices.Clone(qb.unions)
	c.eager = slices.Clone(qb.eager)
	c.without = slices.Clone(qb.without)
	c.aggregates = slices.Clone(qb.aggregates)
	if qb.from != nil {
		from := *qb.from
		c.from = &from
	}
	return &c
}

// ToSQL, QueryBuilder'ın state'ini SQL string'e ve parametrelere dönüştürür.
// State'i değiştirmez; arka arkaya çağrılar aynı sonucu verir.
//
// Örnek:
//
//	sql, args, err := qb.ToSQL()
//	// sql: "SELECT `id`, `name` FROM `users` WHERE `status` = ? ORDER BY `created_at` DESC LIMIT 10"
//	// args: [String("active")]
func (qb *QueryBuilder) ToSQL() (string, []Value, error) {
	return qb.grammar.CompileSelect(qb)
}

// Bindings, ToSQL'in ürettiği parametre listesini döndürür.
func (qb *QueryBuilder) Bindings() []Value {
	_, args, _ := qb.ToSQL()
	return args
}
