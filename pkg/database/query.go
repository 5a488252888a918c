package database

import (
	"context"
	"fmt"
	"slices"
)

// -----------------------------------------------------------------------------
// READ TERMINALS
// -----------------------------------------------------------------------------
// Get → render → execute → satırları entity'ye çevir → eager load →
// aggregate'leri bağla. Count/Sum/Avg/Max/Min projeksiyonu ezer; aynı
// builder'ı sonradan orijinal projeksiyonla kullanmak isteyen çağıran önce
// Clone() almalıdır.
// -----------------------------------------------------------------------------

// run, derlenmiş bir ifadeyi executor'a gönderir.
func (qb *QueryBuilder) run(ctx context.Context, sql string, bindings []Value) (*Result, error) {
	if qb.executor == nil {
		return nil, fmt.Errorf("database: builder has no executor")
	}
	if qb.cacheTTL > 0 {
		ctx = WithCacheTTL(ctx, qb.cacheTTL)
	}
	return qb.executor.Execute(ctx, sql, bindings)
}

// Rows, sorguyu çalıştırıp ham satırları döndürür. Eager loading ve
// aggregate istekleri uygulanmaz.
//
// Örnek:
//
//	rows, err := db.Table("users").Select("id", "email").Rows(ctx)
func (qb *QueryBuilder) Rows(ctx context.Context) ([]Row, error) {
	sql, bindings, err := qb.ToSQL()
	if err != nil {
		return nil, err
	}
	res, err := qb.run(ctx, sql, bindings)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Get, sorguyu çalıştırır ve entity listesini döndürür.
//
// Model'e bağlı sorgularda satırlar modelin Factory'si ile, diğerlerinde
// Record ile entity'ye çevrilir. Ardından modelin varsayılan ilişkileri
// (Without ile çıkarılanlar hariç, WithOnly verilmişse hiçbiri) ve With ile
// istenen ilişkiler yüklenir; son olarak WithCount/WithSum... istekleri
// uygulanır.
//
// Örnek:
//
//	users, err := db.Model("user").
//	    With("posts.comments").
//	    WithCount("orders").
//	    Where("active", "=", true).
//	    Get(ctx)
func (qb *QueryBuilder) Get(ctx context.Context) ([]Entity, error) {
	rows, err := qb.Rows(ctx)
	if err != nil {
		return nil, err
	}
	entities := qb.hydrate(rows)
	if err := qb.loadRelations(ctx, entities); err != nil {
		return nil, err
	}
	return entities, nil
}

func (qb *QueryBuilder) hydrate(rows []Row) []Entity {
	factory := RecordFactory(qb.table)
	if qb.model != nil {
		factory = qb.model.Factory
	}
	entities := make([]Entity, len(rows))
	for i, row := range rows {
		entities[i] = factory(row)
	}
	return entities
}

// loadRelations, eager ve aggregate isteklerini uygular.
func (qb *QueryBuilder) loadRelations(ctx context.Context, entities []Entity) error {
	if len(entities) == 0 {
		return nil
	}
	specs := qb.relationSpecs()
	if len(specs) == 0 && len(qb.aggregates) == 0 {
		return nil
	}

	loader := qb.eagerLoader()
	if len(specs) > 0 {
		if err := loader.Load(ctx, entities, specs...); err != nil {
			return err
		}
	}
	return loader.LoadAggregates(ctx, entities, qb.aggregates...)
}

// relationSpecs, modelin varsayılan ilişkileriyle çağıranın isteklerini birleştirir.
func (qb *QueryBuilder) relationSpecs() []any {
	var specs []any
	if qb.model != nil && !qb.withOnly {
		for _, name := range qb.model.With {
			if !slices.Contains(qb.without, name) {
				specs = append(specs, name)
			}
		}
	}
	return append(specs, qb.eager...)
}

func (qb *QueryBuilder) eagerLoader() *Loader {
	if qb.loader != nil {
		return qb.loader
	}
	return NewLoader(qb.executor, qb.grammar, qb.registry, qb.logger)
}

// First, ilk kaydı döndürür; kayıt yoksa nil, nil.
//
// Örnek:
//
//	user, err := db.Model("user").Where("email", "=", email).First(ctx)
func (qb *QueryBuilder) First(ctx context.Context) (Entity, error) {
	entities, err := qb.Clone().Limit(1).Get(ctx)
	if err != nil || len(entities) == 0 {
		return nil, err
	}
	return entities[0], nil
}

// FirstOrFail, kayıt bulunamazsa ErrNoRows döndürür.
func (qb *QueryBuilder) FirstOrFail(ctx context.Context) (Entity, error) {
	e, err := qb.First(ctx)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRows, qb.table)
	}
	return e, nil
}

// Scan, sorguyu Get ile çalıştırır ve sonucu struct slice'ına döker.
// Yüklenen ilişkiler `relation` tag'li alanlara yazılır.
//
// Örnek:
//
//	var users []User
//	err := db.Model("user").With("posts").Scan(ctx, &users)
func (qb *QueryBuilder) Scan(ctx context.Context, dest any) error {
	entities, err := qb.Get(ctx)
	if err != nil {
		return err
	}
	return ScanRecords(entities, dest)
}

// ScanFirst, ilk kaydı struct'a döker; kayıt yoksa ErrNoRows.
func (qb *QueryBuilder) ScanFirst(ctx context.Context, dest any) error {
	e, err := qb.FirstOrFail(ctx)
	if err != nil {
		return err
	}
	return ScanRecord(e, dest)
}

// Find, birincil anahtara göre tek kayıt döndürür.
//
// Örnek:
//
//	user, err := db.Model("user").Find(ctx, 42)
func (qb *QueryBuilder) Find(ctx context.Context, id any) (Entity, error) {
	pk := "id"
	if qb.model != nil {
		pk = qb.model.PrimaryKey
	}
	return qb.Clone().Where(qb.tableReference()+"."+pk, "=", id).First(ctx)
}

// Value, ilk satırın tek bir kolonunu döndürür.
func (qb *QueryBuilder) Value(ctx context.Context, column string) (any, error) {
	rows, err := qb.Clone().Select(column).Limit(1).Rows(ctx)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0][columnKey(column)], nil
}

// Pluck, tek bir kolonun değerlerini liste olarak döndürür.
//
// Örnek:
//
//	emails, err := db.Table("users").Where("active", "=", true).Pluck(ctx, "email")
func (qb *QueryBuilder) Pluck(ctx context.Context, column string) ([]any, error) {
	rows, err := qb.Clone().Select(column).Rows(ctx)
	if err != nil {
		return nil, err
	}
	key := columnKey(column)
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row[key]
	}
	return out, nil
}

// columnKey, "users.email" veya "email as e" için sonuç satırındaki anahtarı bulur.
func columnKey(column string) string {
	if m := aliasPattern.FindStringSubmatch(column); m != nil {
		return m[2]
	}
	for i := len(column) - 1; i >= 0; i-- {
		if column[i] == '.' {
			return column[i+1:]
		}
	}
	return column
}

// Exists, sorgunun en az bir satır döndürüp döndürmediğini söyler.
func (qb *QueryBuilder) Exists(ctx context.Context) (bool, error) {
	probe := qb.Clone()
	probe.columns = nil
	probe.SelectRaw("1").Limit(1)
	probe.orders = nil
	rows, err := probe.Rows(ctx)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// DoesntExist, Exists'in tersidir.
func (qb *QueryBuilder) DoesntExist(ctx context.Context) (bool, error) {
	ok, err := qb.Exists(ctx)
	return !ok, err
}

// Count, satır sayısını döndürür. GROUP BY veya UNION içeren sorgular alt
// sorgu olarak sarılıp dışarıdan sayılır.
//
// Örnek:
//
//	total, err := db.Table("users").Where("active", "=", true).Count(ctx)
//	→ SQL: SELECT COUNT(*) AS `aggregate` FROM `users` WHERE `active` = ?
func (qb *QueryBuilder) Count(ctx context.Context) (int64, error) {
	raw, err := qb.aggregate(ctx, "COUNT(*)")
	if err != nil {
		return 0, err
	}
	return toInt64(raw), nil
}

// Sum, kolon toplamını döndürür; eşleşen satır yoksa 0.
func (qb *QueryBuilder) Sum(ctx context.Context, column string) (float64, error) {
	raw, err := qb.aggregate(ctx, "SUM("+qb.wrap(column)+")")
	if err != nil {
		return 0, err
	}
	return toFloat64(raw), nil
}

// Avg, kolon ortalamasını döndürür; eşleşen satır yoksa 0.
func (qb *QueryBuilder) Avg(ctx context.Context, column string) (float64, error) {
	raw, err := qb.aggregate(ctx, "AVG("+qb.wrap(column)+")")
	if err != nil {
		return 0, err
	}
	return toFloat64(raw), nil
}

// Max, kolonun en büyük değerini sürücünün döndürdüğü tipte verir; satır yoksa nil.
func (qb *QueryBuilder) Max(ctx context.Context, column string) (any, error) {
	raw, err := qb.aggregate(ctx, "MAX("+qb.wrap(column)+")")
	return aggregateValue(AggregateMax, raw), err
}

// Min, kolonun en küçük değerini döndürür; satır yoksa nil.
func (qb *QueryBuilder) Min(ctx context.Context, column string) (any, error) {
	raw, err := qb.aggregate(ctx, "MIN("+qb.wrap(column)+")")
	return aggregateValue(AggregateMin, raw), err
}

// aggregate, projeksiyonu aggregate ifadesiyle değiştirip tek değeri okur.
func (qb *QueryBuilder) aggregate(ctx context.Context, expression string) (any, error) {
	target := qb
	if len(qb.groups) > 0 || len(qb.unions) > 0 || qb.distinct {
		sub := qb.Clone()
		sub.orders = nil
		target = qb.newQuery().FromSub(sub, "aggregate_table")
	}
	target.columns = []selectColumn{{expr: expression + " AS " + qb.wrap("aggregate"), raw: true}}

	rows, err := target.Rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0]["aggregate"], nil
}

// -----------------------------------------------------------------------------
// EAGER / AGGREGATE REQUESTS
// -----------------------------------------------------------------------------

// With, sorgu sonucunda yüklenecek ilişkileri ekler. String, noktalı yol,
// ":paginated" modifier'lı string ve map biçimleri karıştırılabilir.
//
// Örnek:
//
//	db.Model("user").With("posts.comments", "roles")
//	db.Model("post").With("comments:paginated:page=2:perPage=10")
//	db.Model("user").With(map[string]any{
//	    "posts": map[string]any{"paginate": true, "perPage": 5, "with": []string{"tags"}},
//	})
func (qb *QueryBuilder) With(relations ...any) *QueryBuilder {
	qb.eager = append(qb.eager, relations...)
	return qb
}

// Without, modelin varsayılan ilişkilerinden verilenleri çıkarır.
func (qb *QueryBuilder) Without(relations ...string) *QueryBuilder {
	qb.without = append(qb.without, relations...)
	return qb
}

// WithOnly, modelin varsayılan ilişkilerini tamamen yok sayar ve sadece
// verilenleri yükler.
func (qb *QueryBuilder) WithOnly(relations ...any) *QueryBuilder {
	qb.withOnly = true
	qb.eager = append([]any(nil), relations...)
	return qb
}

// WithCount, her kayda "{relation}Count" attribute'u ekler.
// "posts as publishedTotal" biçimi alias verir.
//
// Örnek:
//
//	db.Model("user").WithCount("posts", "roles")
func (qb *QueryBuilder) WithCount(relations ...string) *QueryBuilder {
	for _, rel := range relations {
		qb.aggregates = append(qb.aggregates, newAggregateRequest(AggregateCount, rel, "", nil))
	}
	return qb
}

// WithCountWhere, filtreli ilişki sayısı ekler.
//
// Örnek:
//
//	db.Model("user").WithCountWhere("orders as paidOrders", func(q *database.QueryBuilder) {
//	    q.Where("status", "=", "paid")
//	})
func (qb *QueryBuilder) WithCountWhere(relation string, fn func(q *QueryBuilder)) *QueryBuilder {
	qb.aggregates = append(qb.aggregates, newAggregateRequest(AggregateCount, relation, "", fn))
	return qb
}

// WithSum, "{relation}{Column}Sum" attribute'u ekler.
func (qb *QueryBuilder) WithSum(relation, column string) *QueryBuilder {
	return qb.WithAggregate(newAggregateRequest(AggregateSum, relation, column, nil))
}

// WithAvg, "{relation}{Column}Avg" attribute'u ekler.
func (qb *QueryBuilder) WithAvg(relation, column string) *QueryBuilder {
	return qb.WithAggregate(newAggregateRequest(AggregateAvg, relation, column, nil))
}

// WithMax, "{relation}{Column}Max" attribute'u ekler.
func (qb *QueryBuilder) WithMax(relation, column string) *QueryBuilder {
	return qb.WithAggregate(newAggregateRequest(AggregateMax, relation, column, nil))
}

// WithMin, "{relation}{Column}Min" attribute'u ekler.
func (qb *QueryBuilder) WithMin(relation, column string) *QueryBuilder {
	return qb.WithAggregate(newAggregateRequest(AggregateMin, relation, column, nil))
}

// WithAggregate, hazır bir aggregate isteği ekler.
func (qb *QueryBuilder) WithAggregate(req AggregateRequest) *QueryBuilder {
	if req.Column != "" && req.Column != "*" {
		validateIdentifier(req.Column, "aggregate column")
	}
	qb.aggregates = append(qb.aggregates, req)
	return qb
}
