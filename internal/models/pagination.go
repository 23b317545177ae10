package models

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NormalizePage clamps a requested page and size. Sizes outside (0, MaxPageSize] fall back to DefaultPageSize.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return page, size
}

// Offset returns the row offset of page for the given size.
func Offset(page, size int) int {
	page, size = NormalizePage(page, size)
	return (page - 1) * size
}

// NewPagination builds list metadata for a normalized page.
func NewPagination(page, size, total int) *Pagination {
	page, size = NormalizePage(page, size)
	return &Pagination{
		Page:       page,
		PageSize:   size,
		TotalCount: total,
		TotalPages: (total + size - 1) / size,
	}
}
