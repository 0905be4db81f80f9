package apperror

// PaginatedResult is a page of items plus the total count.
type PaginatedResult[T any] struct {
	Items []T
	Total int64
	Page  int
	Limit int
}

// NewPaginatedResult wraps items into a PaginatedResult.
func NewPaginatedResult[T any](items []T, total int64, page, limit int) PaginatedResult[T] {
	if items == nil {
		items = []T{}
	}
	return PaginatedResult[T]{Items: items, Total: total, Page: page, Limit: limit}
}
