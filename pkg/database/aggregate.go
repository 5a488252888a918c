package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// -----------------------------------------------------------------------------
// AGGREGATE ATTACHER
// -----------------------------------------------------------------------------
// WithCount/WithSum/... istekleri ilişki başına tek bir GROUP BY sorgusuyla
// hesaplanır ve her parent'a sentetik attribute olarak yazılır:
//
//	posts count        → postsCount
//	orders amount sum  → ordersAmountSum
//	items unit_price max → itemsUnitPriceMax
//
// Grubu olmayan parent'lar count için 0, diğer fonksiyonlar için nil alır.
// Tanımsız bir ilişki için istek yapılması hatadır.
// -----------------------------------------------------------------------------

// AggregateFunc, desteklenen aggregate fonksiyonudur.
type AggregateFunc string

const (
	AggregateCount AggregateFunc = "count"
	AggregateSum   AggregateFunc = "sum"
	AggregateAvg   AggregateFunc = "avg"
	AggregateMax   AggregateFunc = "max"
	AggregateMin   AggregateFunc = "min"
)

// aggregateKeyColumn, belongsToMany aggregate sorgusunda pivot anahtarının alias'ıdır.
const aggregateKeyColumn = "pivot_parent_key"

var titleCaser = cases.Title(language.Und, cases.NoLower)

// AggregateRequest, bir ilişki aggregate isteğidir.
//
// Alanlar:
//   - Function: count/sum/avg/max/min
//   - Relation: İlişki adı
//   - Column: Aggregate kolonu (count için boş olabilir)
//   - Alias: Attribute adı (boşsa isimlendirme kuralı)
//   - Constraint: İlişkili sorguya uygulanacak filtre
type AggregateRequest struct {
	Function   AggregateFunc
	Relation   string
	Column     string
	Alias      string
	Constraint func(q *QueryBuilder)
}

// newAggregateRequest, "posts as published_posts" biçimindeki ilişki adını
// alias ile birlikte ayrıştırır.
func newAggregateRequest(fn AggregateFunc, relation, column string, constraint func(q *QueryBuilder)) AggregateRequest {
	req := AggregateRequest{Function: fn, Relation: strings.TrimSpace(relation), Column: column, Constraint: constraint}
	if m := aliasPattern.FindStringSubmatch(req.Relation); m != nil {
		req.Relation = strings.TrimSpace(m[1])
		req.Alias = strings.TrimSpace(m[2])
	}
	return req
}

// AttributeName, isteğin parent'a yazılacağı attribute adını döndürür.
//
// Örnek:
//
//	AggregateRequest{Function: "count", Relation: "posts"}.AttributeName()                  → "postsCount"
//	AggregateRequest{Function: "sum", Relation: "orders", Column: "amount"}.AttributeName() → "ordersAmountSum"
func (r AggregateRequest) AttributeName() string {
	if r.Alias != "" {
		return r.Alias
	}
	var sb strings.Builder
	sb.WriteString(r.Relation)
	if r.Function != AggregateCount || (r.Column != "" && r.Column != "*") {
		for _, part := range strings.Split(r.Column, "_") {
			sb.WriteString(titleCaser.String(part))
		}
	}
	sb.WriteString(titleCaser.String(string(r.Function)))
	return sb.String()
}

// expression, SQL aggregate ifadesini üretir.
func (r AggregateRequest) expression(q *QueryBuilder, table string) (string, error) {
	switch r.Function {
	case AggregateCount:
		if r.Column == "" || r.Column == "*" {
			return "COUNT(*)", nil
		}
		return "COUNT(" + q.wrap(table+"."+r.Column) + ")", nil
	case AggregateSum, AggregateAvg, AggregateMax, AggregateMin:
		if r.Column == "" {
			return "", fmt.Errorf("aggregate %s on %q requires a column", r.Function, r.Relation)
		}
		return strings.ToUpper(string(r.Function)) + "(" + q.wrap(table+"."+r.Column) + ")", nil
	default:
		return "", fmt.Errorf("unsupported aggregate function %q", r.Function)
	}
}

// LoadAggregates, aggregate isteklerini parent'lara uygular. İstek başına
// tek sorgu çalışır.
//
// Örnek:
//
//	err := loader.LoadAggregates(ctx, users, database.AggregateRequest{Function: database.AggregateCount, Relation: "posts"})
//	users[0].(*database.Record).Get("postsCount") // int64(3)
func (l *Loader) LoadAggregates(ctx context.Context, parents []Entity, requests ...AggregateRequest) error {
	if len(parents) == 0 || len(requests) == 0 {
		return nil
	}

	modelName := parents[0].EntityType()
	parent, ok := l.registry.Model(modelName)
	if !ok {
		return fmt.Errorf("aggregate: %w: %q", ErrModelNotFound, modelName)
	}

	defs := make([]RelationDefinition, len(requests))
	for i, req := range requests {
		def, ok := l.registry.Relation(parent.Name, req.Relation)
		if !ok {
			return &RelationError{Model: parent.Name, Relation: req.Relation, Operation: "aggregate", Err: ErrRelationNotFound}
		}
		if def.Kind == RelationMorphTo {
			return &RelationError{Model: parent.Name, Relation: req.Relation, Kind: def.Kind, Operation: "aggregate", Err: ErrUnsupportedRelation}
		}
		defs[i] = def
	}

	results := make([]map[string]any, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, req := range requests {
		g.Go(func() error {
			values, err := l.aggregate(gctx, parent, defs[i], req, parents)
			if err != nil {
				return err
			}
			results[i] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, req := range requests {
		name := req.AttributeName()
		for _, p := range parents {
			raw, _ := p.Attribute(defs[i].LocalKey)
			key, _ := relationKey(raw)
			value, found := results[i][key]
			if !found && req.Function == AggregateCount {
				value = int64(0)
			}
			p.SetAttribute(name, value)
		}
	}
	return nil
}

// aggregate, tek bir isteğin parent anahtarı → değer haritasını hesaplar.
//
// Örnek üretilen SQL (hasMany):
//
//	SELECT `posts`.`user_id`, COUNT(*) AS `aggregate` FROM `posts`
//	WHERE `posts`.`user_id` IN (?, ?, ?) GROUP BY `posts`.`user_id`
//
// Örnek üretilen SQL (belongsToMany):
//
//	SELECT `role_user`.`user_id` AS `pivot_parent_key`, COUNT(*) AS `aggregate` FROM `roles`
//	INNER JOIN `role_user` ON `role_user`.`role_id` = `roles`.`id`
//	WHERE `role_user`.`user_id` IN (?, ?, ?) GROUP BY `role_user`.`user_id`
func (l *Loader) aggregate(ctx context.Context, parent *ModelDefinition, def RelationDefinition, req AggregateRequest, parents []Entity) (map[string]any, error) {
	values := make(map[string]any)
	keys := collectKeys(parents, def.LocalKey)
	if len(keys) == 0 {
		return values, nil
	}

	q, _ := l.relatedQuery(parent, def, &RelationNode{Name: def.Name, Query: req.Constraint})
	q.orders = nil

	expr, err := req.expression(q, def.Table)
	if err != nil {
		return nil, err
	}

	keyColumn := def.ForeignKey
	groupColumn := def.Table + "." + def.ForeignKey
	if def.Kind == RelationBelongsToMany {
		keyColumn = aggregateKeyColumn
		groupColumn = def.PivotTable + "." + def.ForeignPivotKey
		q.Join(def.PivotTable, def.PivotTable+"."+def.RelatedPivotKey, "=", def.Table+"."+def.RelatedKey)
		q.Select(groupColumn + " as " + aggregateKeyColumn)
	} else {
		q.Select(groupColumn)
	}
	q.SelectRaw(expr+" AS "+q.wrap("aggregate")).
		WhereIn(groupColumn, keys).
		GroupBy(groupColumn)

	rows, err := q.Rows(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		key, ok := relationKey(row[keyColumn])
		if !ok {
			continue
		}
		values[key] = aggregateValue(req.Function, row["aggregate"])
	}
	return values, nil
}

// aggregateValue, sürücüden gelen ham değeri fonksiyona uygun Go tipine çevirir.
func aggregateValue(fn AggregateFunc, raw any) any {
	if raw == nil {
		return nil
	}
	switch fn {
	case AggregateCount:
		return toInt64(raw)
	case AggregateSum, AggregateAvg:
		return toFloat64(raw)
	default:
		if b, ok := raw.([]byte); ok {
			return string(b)
		}
		return raw
	}
}

func toFloat64(raw any) float64 {
	switch n := raw.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case []byte:
		f, _ := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f
	}
	return 0
}
