package database

import (
	"fmt"
	"reflect"
	"time"
)

// -----------------------------------------------------------------------------
// BINDING VALUES
// -----------------------------------------------------------------------------
// Prepared statement parametreleri açık uçlu interface{} yerine kapalı bir
// varyant tipi olarak taşınır. Executor sınırına sadece aşağıdaki türler
// ulaşabilir: NULL, bool, int, float, string, bytes, time.
// -----------------------------------------------------------------------------

// Kind, bir Value'nun taşıdığı türü belirtir.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindTime
)

// String, Kind'ın okunabilir adını döndürür.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value, prepared statement'a bağlanacak tek bir parametredir.
//
// Sıfır değeri (Value{}) NULL'dur.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	by   []byte
	t    time.Time
}

// Null, NULL parametresi döndürür.
func Null() Value { return Value{} }

// Bool, bool parametresi döndürür.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int, tamsayı parametresi döndürür.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float, ondalıklı sayı parametresi döndürür.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// String, metin parametresi döndürür.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Bytes, binary parametre döndürür. Slice kopyalanır.
func Bytes(v []byte) Value {
	if v == nil {
		return Null()
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return Value{kind: KindBytes, by: cp}
}

// Time, zaman parametresi döndürür.
func Time(v time.Time) Value { return Value{kind: KindTime, t: v} }

// Kind, değerin türünü döndürür.
func (v Value) Kind() Kind { return v.kind }

// IsNull, değerin NULL olup olmadığını söyler.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Any, değeri database/sql driver'larının kabul ettiği ham Go değerine çevirir.
//
// Örnek:
//
//	Int(5).Any()      → int64(5)
//	String("a").Any() → "a"
//	Null().Any()      → nil
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.by
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// String, debug/log çıktısı için değeri metne çevirir.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindBytes:
		return fmt.Sprintf("0x%x", v.by)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v.Any())
	}
}

// ValueOf, bir Go değerini Value'ya dönüştürür.
//
// Desteklenen türler: nil, bool, tüm int/uint türleri, float32/64, string,
// []byte, time.Time, Value, ilgili türlerin pointer'ları ve driver.Valuer
// benzeri Any() metodlu tipler. Diğer türler hata döner.
//
// Örnek:
//
//	v, _ := ValueOf(18)       → Int(18)
//	v, _ := ValueOf("active") → String("active")
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(int64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Bytes(t), nil
	case time.Time:
		return Time(t), nil
	}

	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Null(), nil
		}
		return ValueOf(rv.Elem().Interface())
	}

	// Named türler (type Status string gibi)
	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	}

	return Null(), fmt.Errorf("unsupported binding type %T", x)
}

// Values, birden fazla Go değerini sırayla Value'ya dönüştürür.
func Values(xs ...any) ([]Value, error) {
	out := make([]Value, 0, len(xs))
	for i, x := range xs {
		v, err := ValueOf(x)
		if err != nil {
			return nil, fmt.Errorf("binding %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Args, Value listesini driver'a verilecek []any listesine çevirir.
func Args(values []Value) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v.Any()
	}
	return args
}
