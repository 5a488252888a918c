package database

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// -----------------------------------------------------------------------------
// EAGER LOADER
// -----------------------------------------------------------------------------
// Bir parent listesi için ilişkileri ilişki başına en fazla iki sorguyla
// yükler; parent sayısı sorgu sayısını etkilemez.
//
//	hasOne/hasMany/morph*: 1 sorgu (related.fk IN (parent keys))
//	belongsTo:             1 sorgu (related.pk IN (child fks))
//	belongsToMany:         2 sorgu (pivot, sonra related)
//	paginated hasMany:     2 sorgu (grouped COUNT, sonra ROW_NUMBER penceresi)
//
// Kardeş ilişkiler errgroup ile eşzamanlı çekilir; parent'lara bağlama
// (SetRelation) tüm çekimler bittikten sonra tek goroutine'de yapılır.
// İç içe ilişkiler, gruplamadan önce yeni gelen kayıtların tamamı üzerinde
// yüklenir (seviye seviye).
// -----------------------------------------------------------------------------

// rowNumberColumn, sayfalı eager loading'de pencere fonksiyonunun alias'ıdır.
const rowNumberColumn = "__row_number"

// RelationPage, sayfalı yüklenmiş bir ilişkinin parent'a bağlanan halidir.
type RelationPage struct {
	Data []Entity `json:"data"`
	Meta PageMeta `json:"meta"`
}

// PageMeta, RelationPage'in sayfa bilgisidir.
type PageMeta struct {
	Page     int   `json:"page"`
	PerPage  int   `json:"perPage"`
	Total    int64 `json:"total"`
	LastPage int   `json:"lastPage"`
}

// Loader, eager loading motorudur. Eşzamanlı kullanım için güvenlidir;
// executor'un da güvenli olması gerekir.
type Loader struct {
	executor    Executor
	grammar     Grammar
	registry    *Registry
	logger      Logger
	concurrency int
}

// NewLoader, yeni bir Loader üretir.
//
// Parametreler:
//   - executor: Sorguları çalıştıracak executor
//   - grammar: SQL dialect'i (nil ise MySQL)
//   - registry: Model ve ilişki tanımları
//   - logger: Atlanan ilişkilerin loglanacağı logger (nil olabilir)
func NewLoader(executor Executor, grammar Grammar, registry *Registry, logger Logger) *Loader {
	if grammar == nil {
		grammar = NewMySQLGrammar()
	}
	return &Loader{
		executor:    executor,
		grammar:     grammar,
		registry:    registry,
		logger:      loggerOrNop(logger),
		concurrency: 4,
	}
}

// WithConcurrency, kardeş ilişkilerin kaç tanesinin aynı anda çekileceğini
// belirler. Transaction gibi tek bağlantılı executor'lar için 1 verilmelidir.
func (l *Loader) WithConcurrency(n int) *Loader {
	c := *l
	if n < 1 {
		n = 1
	}
	c.concurrency = n
	return &c
}

// Load, ham ilişki tariflerini ayrıştırıp parent'lara yükler.
//
// Örnek:
//
//	err := loader.Load(ctx, users, "posts.comments", "roles")
func (l *Loader) Load(ctx context.Context, parents []Entity, specs ...any) error {
	nodes, err := ParseRelations(specs...)
	if err != nil {
		return err
	}
	return l.LoadNodes(ctx, parents, nodes)
}

// LoadNodes, ayrıştırılmış ilişki ağacını parent'lara yükler. Parent listesi
// boşsa hiçbir sorgu çalıştırılmaz.
func (l *Loader) LoadNodes(ctx context.Context, parents []Entity, nodes []*RelationNode) error {
	if len(parents) == 0 || len(nodes) == 0 {
		return nil
	}

	modelName := parents[0].EntityType()
	parent, ok := l.registry.Model(modelName)
	if !ok {
		return fmt.Errorf("eager load: %w: %q", ErrModelNotFound, modelName)
	}

	batches := make([]*relationBatch, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, node := range nodes {
		def, ok := l.registry.Relation(parent.Name, node.Name)
		if !ok {
			l.logger.Printf("[EAGER] relation %q is not declared on model %q, skipping", node.Name, parent.Name)
			continue
		}
		g.Go(func() error {
			batch, err := l.fetch(gctx, parent, def, node, parents)
			if err != nil {
				return err
			}
			batches[i] = batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, batch := range batches {
		if batch != nil {
			batch.attach(parents)
		}
	}
	return nil
}

// relationBatch, bir ilişkinin çekilmiş ve gruplanmış sonucudur.
type relationBatch struct {
	def      RelationDefinition
	localKey string
	groups   map[string][]Entity
	pages    map[string]PageMeta
	paged    bool
	perPage  int
	page     int
}

// attach, grupları parent'lara bağlar. Eşleşmesi olmayan parent'lar boş
// liste (many), nil (one) veya boş sayfa alır.
func (b *relationBatch) attach(parents []Entity) {
	for _, p := range parents {
		raw, _ := p.Attribute(b.localKey)
		key, ok := relationKey(raw)
		var group []Entity
		if ok {
			group = b.groups[key]
		}

		switch {
		case b.paged:
			meta, found := b.pages[key]
			if !found {
				meta = PageMeta{Page: b.page, PerPage: b.perPage, LastPage: 1}
			}
			p.SetRelation(b.def.Name, &RelationPage{Data: nonNil(group), Meta: meta})
		case b.def.Kind.isMany():
			p.SetRelation(b.def.Name, nonNil(group))
		default:
			if len(group) > 0 {
				p.SetRelation(b.def.Name, group[0])
			} else {
				p.SetRelation(b.def.Name, nil)
			}
		}
	}
}

func nonNil(group []Entity) []Entity {
	if group == nil {
		return []Entity{}
	}
	return group
}

func (l *Loader) fetch(ctx context.Context, parent *ModelDefinition, def RelationDefinition, node *RelationNode, parents []Entity) (*relationBatch, error) {
	switch def.Kind {
	case RelationHasOne, RelationHasMany, RelationMorphOne, RelationMorphMany, RelationBelongsTo:
		if node.Paginate && (def.Kind == RelationHasMany || def.Kind == RelationMorphMany) {
			return l.fetchPaginated(ctx, parent, def, node, parents)
		}
		if node.Paginate {
			l.logger.Printf("[EAGER] pagination is not supported for %s relation %q, loading all", def.Kind, def.Name)
		}
		return l.fetchKeyed(ctx, parent, def, node, parents)
	case RelationBelongsToMany:
		if node.Paginate {
			l.logger.Printf("[EAGER] pagination is not supported for %s relation %q, loading all", def.Kind, def.Name)
		}
		return l.fetchPivot(ctx, def, node, parents)
	default:
		return nil, &RelationError{Model: parent.Name, Relation: def.Name, Kind: def.Kind, Operation: "eager load", Err: ErrUnsupportedRelation}
	}
}

// relatedQuery, ilişkili tablo için varsayılan ve çağıran filtreleri
// uygulanmış bir builder üretir.
func (l *Loader) relatedQuery(parent *ModelDefinition, def RelationDefinition, node *RelationNode) (*QueryBuilder, *ModelDefinition) {
	q := NewBuilder(l.executor, l.grammar)
	q.registry = l.registry
	q.logger = l.logger
	q.table = def.Table
	related, _ := l.registry.Model(def.Related)
	q.model = related

	if def.Kind == RelationMorphOne || def.Kind == RelationMorphMany {
		q.Where(def.Table+"."+def.MorphType, "=", parent.MorphType)
	}
	if def.Constraint != nil {
		def.Constraint(q)
	}
	if node.Query != nil {
		applyConstraint(q, node.Query)
	}
	return q, related
}

// applyConstraint, çağıranın callback'ini izole bir builder'da çalıştırır;
// WHERE'leri tek bir parantez grubu olarak, sıralama/join/select etkilerini
// olduğu gibi ilişki sorgusuna taşır. Callback içindeki OrWhere'ler anahtar
// koşulunun dışına taşamaz.
func applyConstraint(q *QueryBuilder, fn func(q *QueryBuilder)) {
	probe := q.newQuery()
	probe.table = q.table
	probe.model = q.model
	fn(probe)
	q.addError(probe.err)
	if len(probe.wheres) > 0 {
		sql, bindings := compileConditions(probe.wheres)
		q.addWhere("AND", "("+sql+")", bindings...)
	}
	q.joins = append(q.joins, probe.joins...)
	q.orders = append(q.orders, probe.orders...)
	if probe.columns != nil {
		q.columns = probe.columns
	}
}

// fetchKeyed, tek sorguluk hasOne/hasMany/morph*/belongsTo stratejisidir.
func (l *Loader) fetchKeyed(ctx context.Context, parent *ModelDefinition, def RelationDefinition, node *RelationNode, parents []Entity) (*relationBatch, error) {
	batch := &relationBatch{def: def, localKey: def.LocalKey, groups: map[string][]Entity{}}

	keys := collectKeys(parents, def.LocalKey)
	if len(keys) == 0 {
		return batch, nil
	}

	q, related := l.relatedQuery(parent, def, node)
	q.WhereIn(def.Table+"."+def.ForeignKey, keys)

	entities, err := l.materialize(ctx, q, related, def)
	if err != nil {
		return nil, err
	}
	if err := l.loadChildren(ctx, related, node, entities); err != nil {
		return nil, err
	}

	for _, e := range entities {
		raw, _ := e.Attribute(def.ForeignKey)
		if key, ok := relationKey(raw); ok {
			batch.groups[key] = append(batch.groups[key], e)
		}
	}
	return batch, nil
}

// fetchPivot, belongsToMany için iki sorguluk stratejidir: önce pivot
// satırları, sonra ilişkili kayıtlar.
func (l *Loader) fetchPivot(ctx context.Context, def RelationDefinition, node *RelationNode, parents []Entity) (*relationBatch, error) {
	batch := &relationBatch{def: def, localKey: def.LocalKey, groups: map[string][]Entity{}}

	keys := collectKeys(parents, def.LocalKey)
	if len(keys) == 0 {
		return batch, nil
	}

	pivot := NewBuilder(l.executor, l.grammar)
	pivot.logger = l.logger
	pivot.Table(def.PivotTable).
		Select(def.ForeignPivotKey, def.RelatedPivotKey).
		WhereIn(def.ForeignPivotKey, keys)
	pivotRows, err := pivot.Rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(pivotRows) == 0 {
		return batch, nil
	}

	relatedKeys := make([]any, 0, len(pivotRows))
	seen := make(map[string]bool, len(pivotRows))
	for _, row := range pivotRows {
		if key, ok := relationKey(row[def.RelatedPivotKey]); ok && !seen[key] {
			seen[key] = true
			relatedKeys = append(relatedKeys, row[def.RelatedPivotKey])
		}
	}

	q, related := l.relatedQuery(nil, def, node)
	q.WhereIn(def.Table+"."+def.RelatedKey, relatedKeys)
	entities, err := l.materialize(ctx, q, related, def)
	if err != nil {
		return nil, err
	}
	if err := l.loadChildren(ctx, related, node, entities); err != nil {
		return nil, err
	}

	byKey := make(map[string]Entity, len(entities))
	for _, e := range entities {
		raw, _ := e.Attribute(def.RelatedKey)
		if key, ok := relationKey(raw); ok {
			byKey[key] = e
		}
	}
	for _, row := range pivotRows {
		parentKey, ok := relationKey(row[def.ForeignPivotKey])
		if !ok {
			continue
		}
		relatedKey, _ := relationKey(row[def.RelatedPivotKey])
		if e, found := byKey[relatedKey]; found {
			batch.groups[parentKey] = append(batch.groups[parentKey], e)
		}
	}
	return batch, nil
}

// fetchPaginated, hasMany/morphMany ilişkilerini parent başına sayfalar.
// İki sorgu çalışır: parent başına toplam (GROUP BY) ve ROW_NUMBER()
// penceresiyle kesilmiş sayfa.
//
// Örnek üretilen SQL (comments:paginated:page=2:perPage=10):
//
//	SELECT `post_id`, COUNT(*) AS `aggregate` FROM `comments` WHERE `comments`.`post_id` IN (?, ?) GROUP BY `post_id`
//	SELECT * FROM (SELECT `comments`.*, ROW_NUMBER() OVER (PARTITION BY `comments`.`post_id` ORDER BY `comments`.`id` ASC) AS `__row_number`
//	  FROM `comments` WHERE `comments`.`post_id` IN (?, ?)) AS `ranked` WHERE `__row_number` BETWEEN ? AND ? ORDER BY `__row_number` ASC
func (l *Loader) fetchPaginated(ctx context.Context, parent *ModelDefinition, def RelationDefinition, node *RelationNode, parents []Entity) (*relationBatch, error) {
	// elle kurulmuş RelationNode'larda sayfa değerleri sıfır olabilir
	perPage, page := normalizePage(node.PerPage, node.Page)
	batch := &relationBatch{
		def:      def,
		localKey: def.LocalKey,
		groups:   map[string][]Entity{},
		pages:    map[string]PageMeta{},
		paged:    true,
		page:     page,
		perPage:  perPage,
	}

	keys := collectKeys(parents, def.LocalKey)
	if len(keys) == 0 {
		return batch, nil
	}
	fk := def.Table + "." + def.ForeignKey

	counter, _ := l.relatedQuery(parent, def, node)
	counter.orders = nil
	counter.Select(def.ForeignKey).
		SelectRaw("COUNT(*) AS "+counter.wrap("aggregate")).
		WhereIn(fk, keys).
		GroupBy(def.ForeignKey)
	countRows, err := counter.Rows(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range countRows {
		key, ok := relationKey(row[def.ForeignKey])
		if !ok {
			continue
		}
		total := toInt64(row["aggregate"])
		lastPage := int(math.Ceil(float64(total) / float64(perPage)))
		batch.pages[key] = PageMeta{Page: page, PerPage: perPage, Total: total, LastPage: max(lastPage, 1)}
	}
	if len(batch.pages) == 0 {
		return batch, nil
	}

	inner, related := l.relatedQuery(parent, def, node)
	inner.WhereIn(fk, keys)
	orderBy := inner.windowOrder(related)
	inner.orders = nil
	if inner.columns == nil {
		inner.columns = []selectColumn{{expr: def.Table + ".*"}}
	}
	inner.SelectRaw(fmt.Sprintf("ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS %s",
		inner.wrap(fk), orderBy, inner.wrap(rowNumberColumn)))

	offset := (page - 1) * perPage
	outer := inner.newQuery().
		FromSub(inner, "ranked").
		WhereBetween(rowNumberColumn, offset+1, offset+perPage).
		OrderBy(rowNumberColumn, "ASC")
	outer.model = related

	rows, err := outer.Rows(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		delete(row, rowNumberColumn)
	}
	entities := l.entitiesFromRows(rows, related, def)
	if err := l.loadChildren(ctx, related, node, entities); err != nil {
		return nil, err
	}
	for _, e := range entities {
		raw, _ := e.Attribute(def.ForeignKey)
		if key, ok := relationKey(raw); ok {
			batch.groups[key] = append(batch.groups[key], e)
		}
	}
	return batch, nil
}

// windowOrder, pencere fonksiyonu için ORDER BY ifadesini üretir. Sorguda
// sıralama yoksa ilişkili modelin birincil anahtarı kullanılır.
func (qb *QueryBuilder) windowOrder(related *ModelDefinition) string {
	if len(qb.orders) == 0 {
		pk := "id"
		if related != nil {
			pk = related.PrimaryKey
		}
		return qb.wrap(qb.table+"."+pk) + " ASC"
	}
	parts := make([]string, len(qb.orders))
	for i, o := range qb.orders {
		if o.Raw != "" {
			parts[i] = o.Raw
			continue
		}
		parts[i] = qb.wrap(o.Column) + " " + string(o.Direction)
	}
	return strings.Join(parts, ", ")
}

func (l *Loader) materialize(ctx context.Context, q *QueryBuilder, related *ModelDefinition, def RelationDefinition) ([]Entity, error) {
	rows, err := q.Rows(ctx)
	if err != nil {
		return nil, err
	}
	return l.entitiesFromRows(rows, related, def), nil
}

func (l *Loader) entitiesFromRows(rows []Row, related *ModelDefinition, def RelationDefinition) []Entity {
	factory := RecordFactory(def.Related)
	if related != nil {
		factory = related.Factory
	}
	entities := make([]Entity, len(rows))
	for i, row := range rows {
		entities[i] = factory(row)
	}
	return entities
}

// loadChildren, iç içe ilişkileri ve ilişkili modelin varsayılan
// ilişkilerini yeni gelen kayıtlara yükler.
func (l *Loader) loadChildren(ctx context.Context, related *ModelDefinition, node *RelationNode, entities []Entity) error {
	children := node.Children
	if related != nil && len(related.With) > 0 {
		defaults, err := ParseRelations(related.With)
		if err != nil {
			return err
		}
		children = mergeNodes(defaults, children...)
	}
	if len(children) == 0 || len(entities) == 0 {
		return nil
	}
	return l.LoadNodes(ctx, entities, children)
}

// collectKeys, entity'lerin attr değerlerini tekilleştirerek toplar. NULL
// değerler atlanır.
func collectKeys(entities []Entity, attr string) []any {
	seen := make(map[string]bool, len(entities))
	keys := make([]any, 0, len(entities))
	for _, e := range entities {
		raw, _ := e.Attribute(attr)
		key, ok := relationKey(raw)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, raw)
	}
	return keys
}

// relationKey, farklı sürücü tiplerinde gelen anahtar değerlerini ortak bir
// string'e çevirir: int64(5), []byte("5") ve "5" aynı anahtardır.
func relationKey(raw any) (string, bool) {
	v, err := ValueOf(raw)
	if err != nil || v.IsNull() {
		return "", false
	}
	switch v.Kind() {
	case KindInt:
		return strconv.FormatInt(v.i, 10), true
	case KindFloat:
		if v.f == math.Trunc(v.f) {
			return strconv.FormatInt(int64(v.f), 10), true
		}
		return strconv.FormatFloat(v.f, 'f', -1, 64), true
	case KindString:
		return v.s, true
	case KindBytes:
		return string(v.by), true
	case KindBool:
		return strconv.FormatBool(v.b), true
	default:
		return v.String(), true
	}
}

// toInt64, sürücüden gelen sayısal değeri int64'e çevirir.
func toInt64(raw any) int64 {
	switch n := raw.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		i, _ := strconv.ParseInt(strings.TrimSpace(string(n)), 10, 64)
		return i
	case string:
		i, _ := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i
	}
	return 0
}
