package services

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination describes one page of an in-memory listing.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func newPagination(total int64, page, limit int) Pagination {
	return Pagination{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}
}

// paginate slices items to the requested page.
func paginate[T any](items []T, page, limit int) ([]T, Pagination) {
	page, limit = normalizePage(page, limit)
	p := newPagination(int64(len(items)), page, limit)

	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}, p
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], p
}
