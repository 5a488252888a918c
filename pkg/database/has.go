package database

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// RELATIONSHIP EXISTENCE
// -----------------------------------------------------------------------------
// WhereHas ailesi, ilişkiyi join yerine correlated alt sorgu ile ifade eder:
//
//	(SELECT COUNT(*) FROM related WHERE related.fk = outer.pk [AND ...]) >= ?
//	NOT EXISTS (SELECT 1 FROM related WHERE related.fk = outer.pk [AND ...] LIMIT 1)
//
// Correlation registry'deki anahtar yönünden türetilir: ForeignKey ilişkili
// tabloda, LocalKey dış tabloda durur. hasOne/hasMany ve belongsTo aynı
// kalıpla yazılır; belongsToMany ve morph* ilişkileri reddedilir.
//
// Noktalı yollar ("posts.comments.author") her seviyede yeniden çözülür.
// Operatör ve adet sadece son seviyeye uygulanır; üst seviyeler ">= 1"
// varlık koşuludur. Callback en içteki sorguya uygulanır. Dış tabloyla
// aynı tabloya giden ilişkilerde alt sorgu has_<seviye> takma adını alır.
// -----------------------------------------------------------------------------

// Has, ilişkide en az bir kayıt olmasını ister.
//
// Örnek:
//
//	db.Model("user").Has("posts")
//	→ WHERE (SELECT COUNT(*) FROM `posts` WHERE `posts`.`user_id` = `users`.`id`) >= ?
func (qb *QueryBuilder) Has(relation string) *QueryBuilder {
	return qb.whereHas("AND", relation, nil, ">=", 1)
}

// OrHas, OR bağlaçlı Has.
func (qb *QueryBuilder) OrHas(relation string) *QueryBuilder {
	return qb.whereHas("OR", relation, nil, ">=", 1)
}

// HasCount, ilişkideki kayıt sayısını karşılaştırır.
//
// Örnek:
//
//	db.Model("user").HasCount("posts", ">", 3)
func (qb *QueryBuilder) HasCount(relation, operator string, count int) *QueryBuilder {
	return qb.whereHas("AND", relation, nil, operator, count)
}

// DoesntHave, ilişkide hiç kayıt olmamasını ister.
func (qb *QueryBuilder) DoesntHave(relation string) *QueryBuilder {
	return qb.whereDoesntHave("AND", relation, nil)
}

// OrDoesntHave, OR bağlaçlı DoesntHave.
func (qb *QueryBuilder) OrDoesntHave(relation string) *QueryBuilder {
	return qb.whereDoesntHave("OR", relation, nil)
}

// WhereHas, ilişkide callback'i sağlayan en az bir kayıt olmasını ister.
//
// Parametreler:
//   - relation: İlişki adı; "posts.comments" gibi noktalı yol olabilir
//   - fn: İlişkili sorguya uygulanacak filtre (nil olabilir)
//
// Örnek:
//
//	db.Model("user").WhereHas("posts", func(q *database.QueryBuilder) {
//	    q.Where("published", "=", true)
//	})
//	→ WHERE (SELECT COUNT(*) FROM `posts` WHERE `posts`.`user_id` = `users`.`id`
//	         AND (`published` = ?)) >= ?
//	  args: [true, 1]
//
// Güvenlik Notu:
// belongsToMany ve polimorfik ilişkiler desteklenmez; builder ErrUnsupportedRelation
// hatası taşır ve ToSQL/terminal metotlar bu hatayı döndürür.
func (qb *QueryBuilder) WhereHas(relation string, fn func(q *QueryBuilder)) *QueryBuilder {
	return qb.whereHas("AND", relation, fn, ">=", 1)
}

// OrWhereHas, OR bağlaçlı WhereHas.
func (qb *QueryBuilder) OrWhereHas(relation string, fn func(q *QueryBuilder)) *QueryBuilder {
	return qb.whereHas("OR", relation, fn, ">=", 1)
}

// WhereHasCount, callback'i sağlayan ilişkili kayıt sayısını karşılaştırır.
//
// Örnek:
//
//	db.Model("user").WhereHasCount("orders", func(q *database.QueryBuilder) {
//	    q.Where("status", "=", "paid")
//	}, ">=", 5)
func (qb *QueryBuilder) WhereHasCount(relation string, fn func(q *QueryBuilder), operator string, count int) *QueryBuilder {
	return qb.whereHas("AND", relation, fn, operator, count)
}

// WhereDoesntHave, ilişkide callback'i sağlayan hiç kayıt olmamasını ister.
//
// Örnek:
//
//	db.Model("user").WhereDoesntHave("orders", func(q *database.QueryBuilder) {
//	    q.Where("status", "=", "refunded")
//	})
//	→ WHERE NOT EXISTS (SELECT 1 FROM `orders` WHERE `orders`.`user_id` = `users`.`id`
//	                    AND (`status` = ?) LIMIT 1)
func (qb *QueryBuilder) WhereDoesntHave(relation string, fn func(q *QueryBuilder)) *QueryBuilder {
	return qb.whereDoesntHave("AND", relation, fn)
}

// OrWhereDoesntHave, OR bağlaçlı WhereDoesntHave.
func (qb *QueryBuilder) OrWhereDoesntHave(relation string, fn func(q *QueryBuilder)) *QueryBuilder {
	return qb.whereDoesntHave("OR", relation, fn)
}

// WhereRelation, tek bir kolon koşulu için WhereHas kısayoludur.
//
// Örnek:
//
//	db.Model("user").WhereRelation("posts", "published", "=", true)
func (qb *QueryBuilder) WhereRelation(relation, column, operator string, value any) *QueryBuilder {
	return qb.WhereHas(relation, func(q *QueryBuilder) {
		q.Where(column, operator, value)
	})
}

func (qb *QueryBuilder) whereHas(boolean, relation string, fn func(q *QueryBuilder), operator string, count int) *QueryBuilder {
	op := qb.operator(operator)
	path := splitRelationPath(relation)
	sub, err := qb.existenceQuery(qb.model, qb.tableReference(), path, fn, "whereHas", op, count, 0)
	if err != nil {
		qb.addError(err)
		return qb
	}
	if len(path) > 1 {
		op, count = ">=", 1
	}
	return qb.addExistenceCount(boolean, sub, op, count)
}

func (qb *QueryBuilder) whereDoesntHave(boolean, relation string, fn func(q *QueryBuilder)) *QueryBuilder {
	sub, err := qb.existenceQuery(qb.model, qb.tableReference(), splitRelationPath(relation), fn, "whereDoesntHave", ">=", 1, 0)
	if err != nil {
		qb.addError(err)
		return qb
	}
	sub.columns = nil
	sub.SelectRaw("1").Limit(1)
	sql, bindings, err := sub.ToSQL()
	if err != nil {
		qb.addError(err)
		return qb
	}
	return qb.addWhere(boolean, fmt.Sprintf("NOT EXISTS (%s)", sql), bindings...)
}

// addExistenceCount, alt sorguyu COUNT(*) projeksiyonuyla karşılaştırmaya çevirir.
func (qb *QueryBuilder) addExistenceCount(boolean string, sub *QueryBuilder, operator string, count int) *QueryBuilder {
	sub.columns = nil
	sub.SelectRaw("COUNT(*)")
	sql, bindings, err := sub.ToSQL()
	if err != nil {
		qb.addError(err)
		return qb
	}
	bindings = append(bindings, Int(int64(count)))
	return qb.addWhere(boolean, fmt.Sprintf("(%s) %s ?", sql, operator), bindings...)
}

// existenceQuery, path'in ilk segmenti için correlated alt sorguyu kurar ve
// kalan segmentler için kendini özyinelemeli çağırır. operator ve count
// sadece son segmentin sayımına uygulanır.
//
// İlişkili tablo dış referansla aynıysa (self-referential ilişki) alt sorgu
// tablosu "<tablo> AS has_<depth>" olarak takma adlandırılır; aksi halde
// correlation iç satıra bağlanır.
func (qb *QueryBuilder) existenceQuery(parent *ModelDefinition, parentRef string, path []string, fn func(q *QueryBuilder), operation, operator string, count, depth int) (*QueryBuilder, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%s: empty relation path", operation)
	}
	if parent == nil {
		return nil, fmt.Errorf("%s %q: %w: query is not bound to a model", operation, strings.Join(path, "."), ErrModelNotFound)
	}

	def, ok := qb.registry.Relation(parent.Name, path[0])
	if !ok {
		return nil, &RelationError{Model: parent.Name, Relation: path[0], Operation: operation, Err: ErrRelationNotFound}
	}
	switch def.Kind {
	case RelationHasOne, RelationHasMany, RelationBelongsTo:
	default:
		return nil, &RelationError{Model: parent.Name, Relation: path[0], Kind: def.Kind, Operation: operation, Err: ErrUnsupportedRelation}
	}

	sub := qb.newQuery()
	ref := def.Table
	sub.table = def.Table
	if def.Table == parentRef {
		ref = fmt.Sprintf("has_%d", depth)
		sub.table = def.Table + " AS " + ref
	}
	if related, ok := qb.registry.Model(def.Related); ok {
		sub.model = related
	}
	sub.WhereColumn(ref+"."+def.ForeignKey, "=", parentRef+"."+def.LocalKey)
	if def.Constraint != nil {
		def.Constraint(sub)
	}

	if len(path) > 1 {
		inner, err := qb.existenceQuery(sub.model, ref, path[1:], fn, operation, operator, count, depth+1)
		if err != nil {
			return nil, err
		}
		innerOp, innerCount := ">=", 1
		if len(path) == 2 {
			innerOp, innerCount = operator, count
		}
		sub.addExistenceCount("AND", inner, innerOp, innerCount)
	} else if fn != nil {
		sub.WhereNested(fn)
	}

	if sub.err != nil {
		return nil, sub.err
	}
	return sub, nil
}

func splitRelationPath(relation string) []string {
	parts := strings.Split(relation, ".")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
