// -----------------------------------------------------------------------------
// Database Types - SQL Builder İçin Yardımcı Tipler
// -----------------------------------------------------------------------------
// Bu dosya, QueryBuilder'ın kullandığı internal struct tiplerini içerir.
// OrderClause, JoinClause, WhereClause gibi yapılar burada tanımlanır.
//
// WhereClause artık render edilmiş bir fragment taşır: kolon wrap'i, operatör
// ve placeholder'lar ekleme anında üretilir, bağlanacak değerler aynı çağrıda
// fragment'ın yanına konur. Böylece placeholder sırası ile binding sırası her
// zaman birlikte ilerler.
// -----------------------------------------------------------------------------

package database

import "strings"

// OrderDirection, ORDER BY için izin verilen yönleri temsil eder.
// Bu enum-like yapı sayesinde SQL injection riski ortadan kalkar.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// OrderClause, bir ORDER BY ifadesini güvenli bir şekilde temsil eder.
//
// Alanlar:
//   - Column: Sıralama yapılacak kolon adı (backtick ile sarmalanacak)
//   - Direction: Sıralama yönü (sadece ASC veya DESC olabilir)
//   - Raw: Doluysa kolon yerine olduğu gibi yazılır (örn: RAND())
//
// Örnek Kullanım:
//
//	OrderClause{Column: "created_at", Direction: OrderDesc}
//	→ SQL: ORDER BY `created_at` DESC
type OrderClause struct {
	Column    string
	Direction OrderDirection
	Raw       string
}

// WhereClause, WHERE veya HAVING listesindeki tek bir koşuldur.
//
// Alanlar:
//   - Boolean: Önceki koşulla bağlantı tipi ("AND" veya "OR")
//   - SQL: Render edilmiş fragment (örn: "`status` = ?")
//   - Bindings: Fragment içindeki her '?' için sırayla bir değer
type WhereClause struct {
	Boolean  string
	SQL      string
	Bindings []Value
}

// JoinType, JOIN tiplerini temsil eden enum-like yapıdır.
type JoinType string

const (
	InnerJoin JoinType = "INNER"
	LeftJoin  JoinType = "LEFT"
	RightJoin JoinType = "RIGHT"
	CrossJoin JoinType = "CROSS"
)

// JoinClause, bir JOIN ifadesini güvenli bir şekilde temsil eder.
//
// Alanlar:
//   - Type: JOIN tipi (INNER, LEFT, RIGHT, CROSS)
//   - Table: JOIN yapılacak tablo adı
//   - First: İlk kolon (örn: "users.id")
//   - Operator: Karşılaştırma operatörü (genellikle "=")
//   - Second: İkinci kolon (örn: "posts.user_id")
//
// Örnek Kullanım:
//
//	JoinClause{
//	    Type: LeftJoin,
//	    Table: "posts",
//	    First: "users.id",
//	    Operator: "=",
//	    Second: "posts.user_id",
//	}
//	→ SQL: LEFT JOIN `posts` ON `users`.`id` = `posts`.`user_id`
type JoinClause struct {
	Type     JoinType
	Table    string
	First    string
	Operator string
	Second   string
}

// LockMode, SELECT sonuna eklenecek kilit ifadesini belirler.
type LockMode uint8

const (
	LockNone LockMode = iota
	LockShared
	LockExclusive
)

// UnionClause, sorgunun sonuna eklenen UNION segmentidir. Alt sorgunun
// SQL'i Union() çağrıldığı anda render edilip saklanır.
type UnionClause struct {
	All      bool
	SQL      string
	Bindings []Value
}

// SetClause, UPDATE'in SET listesindeki tek bir atamadır.
//
// Örnek:
//
//	SetClause{Column: "votes", SQL: "`votes` = `votes` + ?", Bindings: []Value{Int(1)}}
type SetClause struct {
	Column   string
	SQL      string
	Bindings []Value
}

// selectColumn, projeksiyon listesindeki tek bir elemandır. raw olanlar
// wrap edilmez; selectSub/selectRaw kendi binding'lerini taşır.
type selectColumn struct {
	expr     string
	raw      bool
	bindings []Value
}

// fromClause, FROM hedefini alt sorgu veya raw ifade ile ezer.
type fromClause struct {
	sql      string
	alias    string
	bindings []Value
}

// Expression, wrap edilmeden SQL'e olduğu gibi yazılan ifadedir.
// Sadece geliştirici tarafından yazılmış sabit ifadeler için kullanılmalı.
type Expression string

// Raw, bir Expression üretir.
//
// Örnek:
//
//	qb.Select("id", string(database.Raw("COUNT(*) AS total")))
func Raw(sql string) Expression { return Expression(sql) }

// placeholders, n adet "?" üretir: "?, ?, ?".
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
