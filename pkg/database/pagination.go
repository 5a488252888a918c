package database

import (
	"context"
	"math"
)

// -----------------------------------------------------------------------------
// PAGINATION
// -----------------------------------------------------------------------------
// Paginate:        COUNT ön-sorgusu + LIMIT/OFFSET
// SimplePaginate:  COUNT yok; perPage+1 satır çekilip sonraki sayfa tespit edilir
// CursorPaginate:  OFFSET yok; "column > cursor" ile ilerler
// -----------------------------------------------------------------------------

// PaginatedResult, sayfalı sorgu sonucudur.
type PaginatedResult struct {
	Data        []Entity `json:"data"`
	Total       int64    `json:"total"`
	PerPage     int      `json:"perPage"`
	CurrentPage int      `json:"currentPage"`
	LastPage    int      `json:"lastPage"`
}

// HasMorePages, son sayfada olunup olunmadığını söyler.
func (p *PaginatedResult) HasMorePages() bool {
	return p.CurrentPage < p.LastPage
}

// SimplePaginatedResult, COUNT sorgusu olmadan sayfalanmış sonuçtur.
// From/To, 1 tabanlı kayıt sırasıdır; sayfa boşsa ikisi de 0'dır.
type SimplePaginatedResult struct {
	Data         []Entity `json:"data"`
	HasMorePages bool     `json:"hasMorePages"`
	From         int      `json:"from"`
	To           int      `json:"to"`
	PerPage      int      `json:"perPage"`
	CurrentPage  int      `json:"currentPage"`
}

// CursorPaginatedResult, cursor tabanlı sayfalama sonucudur.
type CursorPaginatedResult struct {
	Data           []Entity `json:"data"`
	NextCursor     any      `json:"nextCursor"`
	PreviousCursor any      `json:"previousCursor"`
	HasMore        bool     `json:"hasMore"`
}

func normalizePage(perPage, page int) (int, int) {
	if perPage < 1 {
		perPage = defaultRelationPerPage
	}
	if page < 1 {
		page = 1
	}
	return perPage, page
}

// Paginate, sonucu sayfalar. Toplam, sıralama ve limit uygulanmamış bir
// klon üzerinden sayılır.
//
// Örnek:
//
//	page, err := db.Model("user").Where("active", "=", true).Paginate(ctx, 20, 2)
//	// page.Total, page.LastPage, page.Data
func (qb *QueryBuilder) Paginate(ctx context.Context, perPage, page int) (*PaginatedResult, error) {
	perPage, page = normalizePage(perPage, page)

	counter := qb.Clone()
	counter.orders = nil
	counter.limit = 0
	counter.offset = 0
	total, err := counter.Count(ctx)
	if err != nil {
		return nil, err
	}

	result := &PaginatedResult{
		Data:        []Entity{},
		Total:       total,
		PerPage:     perPage,
		CurrentPage: page,
		LastPage:    max(int(math.Ceil(float64(total)/float64(perPage))), 1),
	}
	if total == 0 {
		return result, nil
	}

	data, err := qb.ForPage(page, perPage).Get(ctx)
	if err != nil {
		return nil, err
	}
	result.Data = data
	return result, nil
}

// SimplePaginate, COUNT sorgusu çalıştırmadan sayfalar. perPage+1 satır
// istenir; fazlası varsa bir sonraki sayfa vardır ve atılır.
//
// Örnek:
//
//	page, err := db.Table("events").Latest().SimplePaginate(ctx, 10, 1)
//	if page.HasMorePages { ... }
func (qb *QueryBuilder) SimplePaginate(ctx context.Context, perPage, page int) (*SimplePaginatedResult, error) {
	perPage, page = normalizePage(perPage, page)
	offset := (page - 1) * perPage

	rows, err := qb.Offset(offset).Limit(perPage + 1).Rows(ctx)
	if err != nil {
		return nil, err
	}

	result := &SimplePaginatedResult{PerPage: perPage, CurrentPage: page}
	if len(rows) > perPage {
		result.HasMorePages = true
		rows = rows[:perPage]
	}

	entities := qb.hydrate(rows)
	if err := qb.loadRelations(ctx, entities); err != nil {
		return nil, err
	}
	result.Data = entities
	if len(entities) > 0 {
		result.From = offset + 1
		result.To = offset + len(entities)
	}
	return result, nil
}

// CursorPaginate, column üzerinden artan sırayla sayfalar. cursor nil ise
// baştan başlar. NextCursor, döndürülen son kaydın column değeridir.
//
// Örnek:
//
//	page, err := db.Table("events").CursorPaginate(ctx, 50, "id", lastID)
//	next := page.NextCursor
func (qb *QueryBuilder) CursorPaginate(ctx context.Context, perPage int, column string, cursor any) (*CursorPaginatedResult, error) {
	perPage, _ = normalizePage(perPage, 1)

	if cursor != nil {
		qb.Where(column, ">", cursor)
	}
	rows, err := qb.Reorder().OrderBy(column, "ASC").Limit(perPage + 1).Rows(ctx)
	if err != nil {
		return nil, err
	}

	result := &CursorPaginatedResult{PreviousCursor: cursor}
	if len(rows) > perPage {
		result.HasMore = true
		rows = rows[:perPage]
	}

	entities := qb.hydrate(rows)
	if err := qb.loadRelations(ctx, entities); err != nil {
		return nil, err
	}
	result.Data = entities
	if result.HasMore && len(rows) > 0 {
		result.NextCursor = rows[len(rows)-1][columnKey(column)]
	}
	return result, nil
}
