package database

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
)

// -----------------------------------------------------------------------------
// RELATION REGISTRY
// -----------------------------------------------------------------------------
// Her model tipi için ilişki tanımlarını tutan, uygulama ömrü boyunca
// paylaşılan registry. Global değildir; DB'ye constructor ile verilir.
//
// Anahtar yönü:
//   - LocalKey her zaman ilişkiyi tanımlayan modelin tablosundadır.
//   - ForeignKey her zaman ilişkili tablodadır.
//
// Yani hasMany("post") için LocalKey=users.id, ForeignKey=posts.user_id;
// belongsTo("user") için LocalKey=posts.user_id, ForeignKey=users.id.
// -----------------------------------------------------------------------------

// RelationKind, ilişki tipidir.
type RelationKind string

const (
	RelationHasOne        RelationKind = "hasOne"
	RelationHasMany       RelationKind = "hasMany"
	RelationBelongsTo     RelationKind = "belongsTo"
	RelationBelongsToMany RelationKind = "belongsToMany"
	RelationMorphOne      RelationKind = "morphOne"
	RelationMorphMany     RelationKind = "morphMany"
	RelationMorphTo       RelationKind = "morphTo"
)

// isMany, ilişkinin koleksiyon döndürüp döndürmediğini söyler.
func (k RelationKind) isMany() bool {
	return k == RelationHasMany || k == RelationMorphMany || k == RelationBelongsToMany
}

// RelationDefinition, bir ilişkinin değişmez tanımıdır.
//
// Alanlar:
//   - Kind: İlişki tipi
//   - Related: İlişkili modelin registry adı
//   - Table: İlişkili tablo (boşsa Related modelin tablosu)
//   - LocalKey / ForeignKey: Bkz. dosya başı
//   - PivotTable, ForeignPivotKey, RelatedPivotKey, RelatedKey: belongsToMany
//   - MorphID, MorphType: morphOne/morphMany için ilişkili tablodaki kolonlar
//   - Constraint: İlişkinin kendi sorgusuna her zaman uygulanan filtre
type RelationDefinition struct {
	Name            string
	Kind            RelationKind
	Related         string
	Table           string
	LocalKey        string
	ForeignKey      string
	PivotTable      string
	ForeignPivotKey string
	RelatedPivotKey string
	RelatedKey      string
	MorphID         string
	MorphType       string
	Constraint      func(q *QueryBuilder)
}

// Where, ilişkiye varsayılan sorgu filtresi ekler.
//
// Örnek:
//
//	"publishedPosts": database.HasMany("post").Where(func(q *database.QueryBuilder) {
//	    q.Where("published", "=", true)
//	}),
func (d RelationDefinition) Where(fn func(q *QueryBuilder)) RelationDefinition {
	d.Constraint = fn
	return d
}

// HasOne, bire-bir ilişki tanımlar. keys: [foreignKey, localKey].
func HasOne(related string, keys ...string) RelationDefinition {
	d := RelationDefinition{Kind: RelationHasOne, Related: related}
	d.ForeignKey, d.LocalKey = pick(keys, 0), pick(keys, 1)
	return d
}

// HasMany, bire-çok ilişki tanımlar. keys: [foreignKey, localKey].
//
// Örnek:
//
//	database.HasMany("post")              // posts.user_id = users.id
//	database.HasMany("post", "author_id") // posts.author_id = users.id
func HasMany(related string, keys ...string) RelationDefinition {
	d := RelationDefinition{Kind: RelationHasMany, Related: related}
	d.ForeignKey, d.LocalKey = pick(keys, 0), pick(keys, 1)
	return d
}

// BelongsTo, ters ilişki tanımlar. keys: [bu modeldeki FK kolonu, ilişkili
// tablodaki anahtar]. Örn: BelongsTo("user", "user_id", "id").
func BelongsTo(related string, keys ...string) RelationDefinition {
	d := RelationDefinition{Kind: RelationBelongsTo, Related: related}
	d.LocalKey, d.ForeignKey = pick(keys, 0), pick(keys, 1)
	return d
}

// BelongsToMany, pivot tablo üzerinden çoka-çok ilişki tanımlar.
// keys: [pivotTable, foreignPivotKey, relatedPivotKey].
//
// Örnek:
//
//	database.BelongsToMany("role")                                  // role_user.user_id / role_user.role_id
//	database.BelongsToMany("role", "user_roles", "uid", "rid")
func BelongsToMany(related string, keys ...string) RelationDefinition {
	d := RelationDefinition{Kind: RelationBelongsToMany, Related: related}
	d.PivotTable, d.ForeignPivotKey, d.RelatedPivotKey = pick(keys, 0), pick(keys, 1), pick(keys, 2)
	return d
}

// MorphOne, polimorfik bire-bir ilişki tanımlar. name, morph kolonlarının
// önekidir: "imageable" → imageable_id / imageable_type.
func MorphOne(related, name string) RelationDefinition {
	return RelationDefinition{Kind: RelationMorphOne, Related: related, MorphID: name + "_id", MorphType: name + "_type"}
}

// MorphMany, polimorfik bire-çok ilişki tanımlar.
func MorphMany(related, name string) RelationDefinition {
	return RelationDefinition{Kind: RelationMorphMany, Related: related, MorphID: name + "_id", MorphType: name + "_type"}
}

// MorphTo, polimorfik ters ilişkiyi tanımlar. Eager loading desteklenmez.
func MorphTo(name string) RelationDefinition {
	return RelationDefinition{Kind: RelationMorphTo, MorphID: name + "_id", MorphType: name + "_type"}
}

func pick(keys []string, i int) string {
	if i < len(keys) {
		return keys[i]
	}
	return ""
}

// ModelDefinition, bir entity tipinin kaydıdır.
//
// Alanlar:
//   - Name: Registry adı (örn: "user")
//   - Table: Tablo adı (boşsa Name'in çoğulu: "users")
//   - PrimaryKey: Birincil anahtar (boşsa "id")
//   - MorphType: Polimorfik ilişkilerde bu modeli temsil eden etiket (boşsa Name)
//   - Factory: Satırı entity'ye çeviren fonksiyon (boşsa Record)
//   - Relations: İlişki adı → tanım
//   - With: Her sorguda varsayılan olarak yüklenecek ilişkiler
type ModelDefinition struct {
	Name       string
	Table      string
	PrimaryKey string
	MorphType  string
	Factory    Factory
	Relations  map[string]RelationDefinition
	With       []string
}

// Registry, model ve ilişki tanımlarını tutar. Eşzamanlı okuma için güvenlidir.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*ModelDefinition
}

// NewRegistry, boş bir registry oluşturur.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*ModelDefinition)}
}

// Register, bir modeli kaydeder. Eksik alanlar isimlendirme kurallarıyla
// doldurulur. Aynı isimle ikinci kayıt hata döner.
//
// Örnek:
//
//	registry.Register(database.ModelDefinition{
//	    Name: "user",
//	    Relations: map[string]database.RelationDefinition{
//	        "posts": database.HasMany("post"),
//	        "roles": database.BelongsToMany("role"),
//	    },
//	})
func (r *Registry) Register(def ModelDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("registry: model name is required")
	}
	if def.Table == "" {
		def.Table = inflection.Plural(def.Name)
	}
	validateIdentifier(def.Table, "table")
	if def.PrimaryKey == "" {
		def.PrimaryKey = "id"
	}
	if def.MorphType == "" {
		def.MorphType = strings.ToLower(def.Name)
	}
	if def.Factory == nil {
		def.Factory = RecordFactory(def.Name)
	}

	relations := make(map[string]RelationDefinition, len(def.Relations))
	for name, rel := range def.Relations {
		rel.Name = name
		relations[name] = rel
	}
	def.Relations = relations
	def.With = append([]string(nil), def.With...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[def.Name]; exists {
		return fmt.Errorf("registry: model %q already registered", def.Name)
	}
	r.models[def.Name] = &def
	return nil
}

// MustRegister, Register'ın hata durumunda panic atan halidir.
func (r *Registry) MustRegister(defs ...ModelDefinition) *Registry {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Model, kayıtlı model tanımını döndürür.
func (r *Registry) Model(name string) (*ModelDefinition, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Models, kayıtlı model adlarını sıralı döndürür.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Relation, bir modelin ilişki tanımını varsayılanları çözülmüş olarak
// döndürür. Tanım yoksa ok=false döner; çağıran bunu "atla" olarak yorumlar.
func (r *Registry) Relation(model, name string) (RelationDefinition, bool) {
	parent, ok := r.Model(model)
	if !ok {
		return RelationDefinition{}, false
	}
	def, ok := parent.Relations[name]
	if !ok {
		return RelationDefinition{}, false
	}
	return r.resolve(parent, def), true
}

// resolve, boş anahtar alanlarını ilişki tipine göre isimlendirme
// kurallarıyla doldurur.
func (r *Registry) resolve(parent *ModelDefinition, def RelationDefinition) RelationDefinition {
	related, hasRelated := r.Model(def.Related)
	relatedPK := "id"
	if hasRelated {
		relatedPK = related.PrimaryKey
		if def.Table == "" {
			def.Table = related.Table
		}
	}
	if def.Table == "" && def.Related != "" {
		def.Table = inflection.Plural(def.Related)
	}

	switch def.Kind {
	case RelationHasOne, RelationHasMany:
		def.LocalKey = orDefault(def.LocalKey, parent.PrimaryKey)
		def.ForeignKey = orDefault(def.ForeignKey, foreignKeyFor(parent.Table))
	case RelationBelongsTo:
		def.LocalKey = orDefault(def.LocalKey, foreignKeyFor(def.Table))
		def.ForeignKey = orDefault(def.ForeignKey, relatedPK)
	case RelationBelongsToMany:
		def.LocalKey = orDefault(def.LocalKey, parent.PrimaryKey)
		def.RelatedKey = orDefault(def.RelatedKey, relatedPK)
		def.ForeignPivotKey = orDefault(def.ForeignPivotKey, foreignKeyFor(parent.Table))
		def.RelatedPivotKey = orDefault(def.RelatedPivotKey, foreignKeyFor(def.Table))
		if def.PivotTable == "" {
			pair := []string{inflection.Singular(parent.Table), inflection.Singular(def.Table)}
			sort.Strings(pair)
			def.PivotTable = pair[0] + "_" + pair[1]
		}
	case RelationMorphOne, RelationMorphMany:
		def.LocalKey = orDefault(def.LocalKey, parent.PrimaryKey)
		def.ForeignKey = orDefault(def.ForeignKey, def.MorphID)
	}
	return def
}

// foreignKeyFor, "users" → "user_id".
func foreignKeyFor(table string) string {
	return inflection.Singular(table) + "_id"
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
