package database

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// ERRORS
// -----------------------------------------------------------------------------
// Sentinel hatalar errors.Is ile, detaylı tipler errors.As ile kontrol edilir.
// -----------------------------------------------------------------------------

var (
	// ErrMissingWhere, WHERE koşulu olmadan çalıştırılmak istenen
	// UPDATE/DELETE/INCREMENT işlemleri için döner.
	ErrMissingWhere = errors.New("database: refusing to run mutation without a where clause")

	// ErrUnsupportedRelation, ilişki tipinin istenen işlemi desteklemediğini belirtir.
	ErrUnsupportedRelation = errors.New("database: relation kind not supported for this operation")

	// ErrRelationNotFound, registry'de tanımlı olmayan ilişki adı için döner.
	ErrRelationNotFound = errors.New("database: relation not declared")

	// ErrModelNotFound, registry'de kayıtlı olmayan model adı için döner.
	ErrModelNotFound = errors.New("database: model not registered")

	// ErrNoRows, tek kayıt beklenen sorgu boş döndüğünde kullanılır.
	ErrNoRows = errors.New("database: no rows in result set")

	// ErrStopIteration, Chunk callback'inden dönüldüğünde iterasyonu
	// hatasız olarak durdurur.
	ErrStopIteration = errors.New("database: stop iteration")
)

// GuardError, güvenlik kontrolüne takılan bir mutation'ı tarif eder.
type GuardError struct {
	Operation string
	Table     string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("database: %s on table %q requires at least one where clause", e.Operation, e.Table)
}

func (e *GuardError) Unwrap() error { return ErrMissingWhere }

// RelationError, bir ilişki üzerinde yapılamayan işlemi tarif eder.
type RelationError struct {
	Model     string
	Relation  string
	Kind      RelationKind
	Operation string
	Err       error
}

func (e *RelationError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("database: %s: relation %q (%s) on model %q: %v", e.Operation, e.Relation, e.Kind, e.Model, e.Err)
	}
	return fmt.Sprintf("database: %s: relation %q on model %q: %v", e.Operation, e.Relation, e.Model, e.Err)
}

func (e *RelationError) Unwrap() error { return e.Err }
