package store

import "iter"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type OffsetPage[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NormalizePage clamps caller supplied paging values into the accepted range.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// Paginate walks seq once, keeping only the items that fall on the requested page.
func Paginate[T any](seq iter.Seq[T], page, pageSize int) OffsetPage[T] {
	page, pageSize = NormalizePage(page, pageSize)

	offset := (page - 1) * pageSize
	items := make([]T, 0, pageSize)
	total := 0
	for item := range seq {
		if total >= offset && len(items) < pageSize {
			items = append(items, item)
		}
		total++
	}

	totalPages := total / pageSize
	if total%pageSize > 0 {
		totalPages++
	}

	return OffsetPage[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
