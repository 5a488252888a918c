package database

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// -----------------------------------------------------------------------------
// CHUNKED ITERATION
// -----------------------------------------------------------------------------
// Her sayfa builder'ın bir klonu üzerinde çalışır; orijinal builder
// değişmez. Kısa (size'dan az) bir sayfa tükenmeyi işaret eder.
// Chunk OFFSET ile, ChunkByID "column > son görülen" koşuluyla ilerler;
// büyük tablolarda ChunkByID tercih edilmelidir.
// -----------------------------------------------------------------------------

// Chunk, sonucu size'lık parçalar halinde callback'e verir. Callback
// ErrStopIteration dönerse iterasyon hatasız durur.
//
// Örnek:
//
//	err := db.Model("user").Where("active", "=", true).Chunk(ctx, 500, func(users []database.Entity) error {
//	    return mailer.Notify(users)
//	})
func (qb *QueryBuilder) Chunk(ctx context.Context, size int, fn func(batch []Entity) error) error {
	if size < 1 {
		return fmt.Errorf("chunk size must be positive, got %d", size)
	}
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := qb.Clone().ForPage(page, size).Get(ctx)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
		if len(batch) < size {
			return nil
		}
	}
}

// ChunkByID, Chunk'ın anahtar tabanlı halidir. column boşsa modelin
// birincil anahtarı kullanılır.
//
// Örnek:
//
//	err := db.Table("orders").ChunkByID(ctx, 1000, "id", func(rows []database.Entity) error { ... })
//	→ SELECT * FROM `orders` ORDER BY `id` ASC LIMIT 1000
//	→ SELECT * FROM `orders` WHERE `id` > ? ORDER BY `id` ASC LIMIT 1000
func (qb *QueryBuilder) ChunkByID(ctx context.Context, size int, column string, fn func(batch []Entity) error) error {
	if size < 1 {
		return fmt.Errorf("chunk size must be positive, got %d", size)
	}
	column = qb.keyColumn(column)
	key := columnKey(column)

	var last any
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		q := qb.Clone().Reorder().OrderBy(column, "ASC").Limit(size)
		if last != nil {
			q.Where(column, ">", last)
		}
		batch, err := q.Get(ctx)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
		if len(batch) < size {
			return nil
		}
		last, _ = batch[len(batch)-1].Attribute(key)
		if last == nil {
			return fmt.Errorf("chunk by id: column %q missing from result", key)
		}
	}
}

func (qb *QueryBuilder) keyColumn(column string) string {
	if column != "" {
		return column
	}
	if qb.model != nil {
		return qb.model.PrimaryKey
	}
	return "id"
}

// Lazy, Chunk'ı tek tek kayıt üreten bir iteratöre çevirir.
//
// Örnek:
//
//	for user, err := range db.Model("user").Lazy(ctx, 200) {
//	    if err != nil {
//	        return err
//	    }
//	    process(user)
//	}
func (qb *QueryBuilder) Lazy(ctx context.Context, size int) iter.Seq2[Entity, error] {
	return func(yield func(Entity, error) bool) {
		yieldChunks(yield, func(fn func([]Entity) error) error {
			return qb.Chunk(ctx, size, fn)
		})
	}
}

// LazyByID, ChunkByID tabanlı iteratördür.
func (qb *QueryBuilder) LazyByID(ctx context.Context, size int, column string) iter.Seq2[Entity, error] {
	return func(yield func(Entity, error) bool) {
		yieldChunks(yield, func(fn func([]Entity) error) error {
			return qb.ChunkByID(ctx, size, column, fn)
		})
	}
}

func yieldChunks(yield func(Entity, error) bool, chunk func(fn func([]Entity) error) error) {
	err := chunk(func(batch []Entity) error {
		for _, e := range batch {
			if !yield(e, nil) {
				return ErrStopIteration
			}
		}
		return nil
	})
	if err != nil {
		yield(nil, err)
	}
}
