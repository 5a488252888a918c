package database

// -----------------------------------------------------------------------------
// Grammar Interface
// -----------------------------------------------------------------------------
// Tüm compile metotları error döner. Builder state'ini okuyan metotlar
// state'i değiştirmez; aynı state için her çağrıda aynı SQL üretilir.
// -----------------------------------------------------------------------------

// Grammar, SQL lehçesine özgü sorgu üretimini tanımlar.
//
// Farklı veritabanları için farklı implementasyonlar:
// - MySQLGrammar: MySQL/MariaDB için
// - PostgreSQLGrammar: PostgreSQL için (gelecekte)
type Grammar interface {
	// Wrap, identifier'ları (kolon/tablo adları) veritabanı lehçesine göre sarmalar.
	// MySQL: backtick (`table`), PostgreSQL: çift tırnak ("table")
	//
	// Döndürür:
	//   - string: Sarmalanmış identifier
	//   - error: Geçersiz identifier varsa
	Wrap(value string) (string, error)

	// ValidateOperator, karşılaştırma operatörünü whitelist'e karşı kontrol eder
	// ve normalize edilmiş (büyük harfli) halini döndürür.
	ValidateOperator(operator string) (string, error)

	// CompileSelect, SELECT sorgusu üretir.
	//
	// Döndürür:
	//   - string: SQL sorgusu
	//   - []Value: Prepared statement parametreleri (placeholder sırasıyla)
	//   - error: Sorgu oluşturma hatası
	CompileSelect(qb *QueryBuilder) (string, []Value, error)

	// CompileInsert, tek veya çok satırlı INSERT sorgusu üretir.
	// Her satır columns ile aynı sırada değer içermelidir.
	CompileInsert(table string, columns []string, rows [][]Value) (string, []Value, error)

	// CompileUpsert, "ekle, çakışmada güncelle" sorgusu üretir.
	CompileUpsert(table string, columns []string, rows [][]Value, uniqueBy []string, update []string) (string, []Value, error)

	// CompileUpdate, UPDATE sorgusu üretir.
	CompileUpdate(qb *QueryBuilder, sets []SetClause) (string, []Value, error)

	// CompileDelete, DELETE sorgusu üretir.
	CompileDelete(qb *QueryBuilder) (string, []Value, error)

	// JSONContains, JSON içerme fonksiyonunun fragment'ını döndürür.
	// path boş değilse ikinci bir placeholder eklenir.
	JSONContains(column string, withPath bool) string

	// JSONLength, JSON uzunluk fonksiyonunun fragment'ını döndürür.
	JSONLength(column string, withPath bool) string

	// JSONPath, "a.b.c" biçimindeki yolu lehçenin path sözdizimine çevirir.
	JSONPath(path string) string
}
