package database

import (
	"encoding/json"
	"maps"
	"sort"
)

// -----------------------------------------------------------------------------
// ENTITIES
// -----------------------------------------------------------------------------
// Eager loader ve aggregate attacher, entity'lerle sadece bu interface
// üzerinden konuşur. Attribute saklama, cast ve dirty-tracking gibi model
// davranışları bu paketin dışında kalır; Record bunların en sade halidir.
// -----------------------------------------------------------------------------

// Row, executor'dan dönen tek bir satırdır (kolon adı → değer).
type Row map[string]any

// Entity, ilişki yüklenebilen bir kayıttır.
type Entity interface {
	// EntityType, registry'deki model adını döndürür (örn: "user").
	EntityType() string

	// Attribute, kolon değerini döndürür.
	Attribute(key string) (any, bool)

	// SetAttribute, sentetik attribute yazar (örn: "postsCount").
	SetAttribute(key string, value any)

	// SetRelation, yüklenen ilişkiyi entity'ye bağlar. value; []Entity,
	// Entity, nil veya *RelationPage olabilir.
	SetRelation(name string, value any)
}

// Factory, bir satırı entity'ye dönüştürür.
type Factory func(row Row) Entity

// Record, map tabanlı varsayılan Entity implementasyonudur.
type Record struct {
	model      string
	attributes Row
	relations  map[string]any
}

// NewRecord, verilen model adı ve satırla yeni bir Record üretir.
// Satır kopyalanmaz; sahipliği Record'a geçer.
func NewRecord(model string, row Row) *Record {
	if row == nil {
		row = Row{}
	}
	return &Record{
		model:      model,
		attributes: row,
		relations:  make(map[string]any),
	}
}

// RecordFactory, verilen model adı için Record üreten Factory döndürür.
func RecordFactory(model string) Factory {
	return func(row Row) Entity {
		return NewRecord(model, row)
	}
}

func (r *Record) EntityType() string { return r.model }

func (r *Record) Attribute(key string) (any, bool) {
	v, ok := r.attributes[key]
	return v, ok
}

// Get, attribute değerini döndürür; yoksa nil.
func (r *Record) Get(key string) any {
	return r.attributes[key]
}

func (r *Record) SetAttribute(key string, value any) {
	r.attributes[key] = value
}

func (r *Record) SetRelation(name string, value any) {
	r.relations[name] = value
}

// Relation, yüklenmiş bir ilişkiyi döndürür.
func (r *Record) Relation(name string) (any, bool) {
	v, ok := r.relations[name]
	return v, ok
}

// RelationLoaded, ilişkinin yüklenip yüklenmediğini söyler.
func (r *Record) RelationLoaded(name string) bool {
	_, ok := r.relations[name]
	return ok
}

// Many, hasMany tipli bir ilişkiyi entity listesi olarak döndürür.
func (r *Record) Many(name string) []Entity {
	switch v := r.relations[name].(type) {
	case []Entity:
		return v
	case *RelationPage:
		return v.Data
	default:
		return nil
	}
}

// One, tekil bir ilişkiyi döndürür; yoksa nil.
func (r *Record) One(name string) Entity {
	e, _ := r.relations[name].(Entity)
	return e
}

// Attributes, attribute map'inin kopyasını döndürür.
func (r *Record) Attributes() Row {
	return maps.Clone(r.attributes)
}

// RelationNames, yüklenmiş ilişki adlarını sıralı döndürür.
func (r *Record) RelationNames() []string {
	names := make([]string, 0, len(r.relations))
	for name := range r.relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON, attribute'ları ve yüklenmiş ilişkileri tek bir obje olarak yazar.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.attributes)+len(r.relations))
	for k, v := range r.attributes {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		out[k] = v
	}
	for k, v := range r.relations {
		out[k] = v
	}
	return json.Marshal(out)
}
