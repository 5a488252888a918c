package database

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

// -----------------------------------------------------------------------------
// Reflection-Based Entity Scanner
// -----------------------------------------------------------------------------
// Yüklenmiş entity'leri (attribute'lar, eager ilişkiler, aggregate'ler)
// kullanıcının struct'larına döker.
//
//	type User struct {
//	    ID         int64     `db:"id"`
//	    Email      string    `db:"email"`
//	    PostsCount int64     `db:"postsCount"`
//	    Posts      []Post    `relation:"posts"`
//	    Profile    *Profile  `relation:"profile"`
//	}
//
// Tip analizleri cache'lenir; kullanılmayan girdiler arka planda temizlenir.
// Scanner'ın ömrü Stop() ile kapatılır.
// -----------------------------------------------------------------------------

// structInfo, bir struct tipinin kolon ve ilişki eşlemesidir.
type structInfo struct {
	columns   map[string][]int
	relations map[string][]int
}

type scannerCacheEntry struct {
	info       *structInfo
	lastAccess time.Time
}

// Scanner, tip cache'ini ve cleanup lifecycle'ını yönetir.
type Scanner struct {
	cache      map[reflect.Type]*scannerCacheEntry
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	cleanupInt time.Duration
	maxAge     time.Duration
}

var (
	globalScanner *Scanner
	scannerOnce   sync.Once
)

// InitScanner, global scanner instance'ını başlatır. Sadece ilk çağrı etkilidir.
func InitScanner(cleanupInterval, maxAge time.Duration) *Scanner {
	scannerOnce.Do(func() {
		globalScanner = NewScanner(cleanupInterval, maxAge)
	})
	return globalScanner
}

// GetScanner, global scanner'ı döndürür; başlatılmamışsa varsayılanlarla başlatır.
func GetScanner() *Scanner {
	return InitScanner(10*time.Minute, 30*time.Minute)
}

// NewScanner, bağımsız bir scanner oluşturur ve cleanup goroutine'ini başlatır.
func NewScanner(cleanupInterval, maxAge time.Duration) *Scanner {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scanner{
		cache:      make(map[reflect.Type]*scannerCacheEntry),
		ctx:        ctx,
		cancel:     cancel,
		cleanupInt: cleanupInterval,
		maxAge:     maxAge,
	}
	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

func (s *Scanner) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInt)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scanner) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for typ, entry := range s.cache {
		if now.Sub(entry.lastAccess) > s.maxAge {
			delete(s.cache, typ)
		}
	}
}

// Stop, scanner'ı gracefully durdurur.
func (s *Scanner) Stop() {
	s.cancel()
	s.wg.Wait()
}

// cached, cache'teki tip sayısını döndürür.
func (s *Scanner) cached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

func (s *Scanner) structInfo(t reflect.Type) *structInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.cache[t]; ok {
		entry.lastAccess = time.Now()
		return entry.info
	}

	info := &structInfo{
		columns:   make(map[string][]int),
		relations: make(map[string][]int),
	}
	collectFields(t, nil, info)

	s.cache[t] = &scannerCacheEntry{info: info, lastAccess: time.Now()}
	return info
}

func collectFields(t reflect.Type, prefix []int, info *structInfo) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		// Embedded struct'ları özyineli işle
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectFields(field.Type, index, info)
			continue
		}
		if !field.IsExported() {
			continue
		}

		if rel := field.Tag.Get("relation"); rel != "" {
			if rel != "-" {
				info.relations[rel] = index
			}
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "-" {
			continue
		}
		if tag == "" {
			tag = snakeCase(field.Name)
		}
		info.columns[tag] = index
	}
}

// snakeCase, "UserID" → "user_id", "CreatedAt" → "created_at".
func snakeCase(name string) string {
	runes := []rune(name)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// relationReader, yüklenmiş ilişkileri okuyabilen entity'lerdir. Record bunu sağlar.
type relationReader interface {
	Relation(name string) (any, bool)
}

// ScanRecord, tek bir entity'yi struct'a döker.
//
// Parametreler:
//   - entity: Kaynak entity
//   - dest: Struct pointer
//
// Örnek:
//
//	var u User
//	err := database.ScanRecord(entity, &u)
func ScanRecord(entity Entity, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("scanner: dest bir struct pointer olmalıdır, %T alındı", dest)
	}
	return GetScanner().scanInto(entity, rv.Elem())
}

// ScanRecords, entity listesini struct slice'ına döker. Slice elemanı
// struct veya struct pointer olabilir.
//
// Örnek:
//
//	var users []User
//	err := database.ScanRecords(entities, &users)
func ScanRecords(entities []Entity, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("scanner: dest bir slice pointer olmalıdır, %T alındı", dest)
	}
	return GetScanner().scanSlice(entities, rv.Elem())
}

func (s *Scanner) scanSlice(entities []Entity, slice reflect.Value) error {
	elemType := slice.Type().Elem()
	isPtr := elemType.Kind() == reflect.Pointer
	structType := elemType
	if isPtr {
		structType = elemType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("scanner: slice elemanı struct olmalıdır, %s alındı", elemType)
	}

	out := reflect.MakeSlice(slice.Type(), 0, len(entities))
	for i, e := range entities {
		item := reflect.New(structType)
		if err := s.scanInto(e, item.Elem()); err != nil {
			return fmt.Errorf("scanner: kayıt %d: %w", i, err)
		}
		if isPtr {
			out = reflect.Append(out, item)
		} else {
			out = reflect.Append(out, item.Elem())
		}
	}
	slice.Set(out)
	return nil
}

func (s *Scanner) scanInto(entity Entity, dest reflect.Value) error {
	if entity == nil {
		return nil
	}
	info := s.structInfo(dest.Type())

	for column, index := range info.columns {
		value, ok := entity.Attribute(column)
		if !ok {
			continue
		}
		if err := assignValue(dest.FieldByIndex(index), value); err != nil {
			return fmt.Errorf("kolon %q: %w", column, err)
		}
	}

	if len(info.relations) == 0 {
		return nil
	}
	reader, ok := entity.(relationReader)
	if !ok {
		return nil
	}
	for name, index := range info.relations {
		value, ok := reader.Relation(name)
		if !ok {
			continue
		}
		if err := s.assignRelation(dest.FieldByIndex(index), value); err != nil {
			return fmt.Errorf("ilişki %q: %w", name, err)
		}
	}
	return nil
}

var relationPageType = reflect.TypeOf(RelationPage{})

func (s *Scanner) assignRelation(field reflect.Value, value any) error {
	switch v := value.(type) {
	case nil:
		field.Set(reflect.Zero(field.Type()))
		return nil

	case *RelationPage:
		switch {
		case field.Type() == relationPageType:
			field.Set(reflect.ValueOf(*v))
			return nil
		case field.Type() == reflect.PointerTo(relationPageType):
			field.Set(reflect.ValueOf(v))
			return nil
		}
		return s.assignRelation(field, v.Data)

	case []Entity:
		if field.Kind() != reflect.Slice {
			return fmt.Errorf("çoklu ilişki %s alanına dökülemez", field.Type())
		}
		return s.scanSlice(v, field)

	case Entity:
		if field.Kind() == reflect.Pointer {
			item := reflect.New(field.Type().Elem())
			if err := s.scanInto(v, item.Elem()); err != nil {
				return err
			}
			field.Set(item)
			return nil
		}
		if field.Kind() != reflect.Struct {
			return fmt.Errorf("tekil ilişki %s alanına dökülemez", field.Type())
		}
		return s.scanInto(v, field)
	}
	return fmt.Errorf("desteklenmeyen ilişki değeri %T", value)
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// assignValue, executor'dan gelen ham değeri alana yazar. sql.Scanner
// implement eden alanlar (sql.NullString vb.) kendi Scan metodlarıyla
// doldurulur.
func assignValue(field reflect.Value, value any) error {
	if field.CanAddr() && field.Addr().Type().Implements(scannerType) {
		return field.Addr().Interface().(sql.Scanner).Scan(value)
	}

	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	if field.Kind() == reflect.Pointer {
		elem := reflect.New(field.Type().Elem())
		if err := assignValue(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	if b, ok := value.([]byte); ok && field.Kind() != reflect.Slice {
		value = string(b)
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(fmt.Sprint(value))
		return nil

	case reflect.Bool:
		switch {
		case rv.CanInt():
			field.SetBool(rv.Int() != 0)
		case rv.CanUint():
			field.SetBool(rv.Uint() != 0)
		case rv.Kind() == reflect.String:
			b, err := strconv.ParseBool(rv.String())
			if err != nil {
				return err
			}
			field.SetBool(b)
		default:
			return fmt.Errorf("%T bool'a çevrilemez", value)
		}
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch {
		case rv.CanInt():
			field.SetInt(rv.Int())
		case rv.CanUint():
			field.SetInt(int64(rv.Uint()))
		case rv.CanFloat():
			field.SetInt(int64(rv.Float()))
		case rv.Kind() == reflect.String:
			n, err := strconv.ParseInt(rv.String(), 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(n)
		default:
			return fmt.Errorf("%T tamsayıya çevrilemez", value)
		}
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch {
		case rv.CanUint():
			field.SetUint(rv.Uint())
		case rv.CanInt():
			field.SetUint(uint64(rv.Int()))
		case rv.Kind() == reflect.String:
			n, err := strconv.ParseUint(rv.String(), 10, 64)
			if err != nil {
				return err
			}
			field.SetUint(n)
		default:
			return fmt.Errorf("%T işaretsiz tamsayıya çevrilemez", value)
		}
		return nil

	case reflect.Float32, reflect.Float64:
		switch {
		case rv.CanFloat():
			field.SetFloat(rv.Float())
		case rv.CanInt():
			field.SetFloat(float64(rv.Int()))
		case rv.CanUint():
			field.SetFloat(float64(rv.Uint()))
		case rv.Kind() == reflect.String:
			f, err := strconv.ParseFloat(rv.String(), 64)
			if err != nil {
				return err
			}
			field.SetFloat(f)
		default:
			return fmt.Errorf("%T ondalık sayıya çevrilemez", value)
		}
		return nil

	case reflect.Struct:
		if field.Type() == timeType && rv.Kind() == reflect.String {
			for _, layout := range []string{time.DateTime, time.RFC3339Nano, time.DateOnly} {
				if t, err := time.Parse(layout, rv.String()); err == nil {
					field.Set(reflect.ValueOf(t))
					return nil
				}
			}
			return fmt.Errorf("%q zaman olarak çözümlenemedi", rv.String())
		}
	}

	if rv.Type().ConvertibleTo(field.Type()) {
		field.Set(rv.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("%T değeri %s alanına yazılamaz", value, field.Type())
}
