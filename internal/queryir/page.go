package queryir

// PageRequest is an offset/limit window over an ordered result.
type PageRequest struct {
	Offset int
	Limit  int
}

// NewPageRequest validates and builds a page window.
// Fails with INVALID_PAGE when offset < 0 or limit <= 0.
func NewPageRequest(offset, limit int) (PageRequest, error) {
	p := PageRequest{Offset: offset, Limit: limit}
	if err := p.Validate(); err != nil {
		return PageRequest{}, err
	}
	return p, nil
}

// PageOf builds the window for a zero-based page number and page size.
func PageOf(page, size int) (PageRequest, error) {
	if page < 0 {
		return PageRequest{}, newError(ErrCodeInvalidPage, "", "page must be >= 0, got %d", page)
	}
	return NewPageRequest(page*size, size)
}

// Validate checks the window bounds.
func (p PageRequest) Validate() error {
	if p.Offset < 0 {
		return newError(ErrCodeInvalidPage, "", "offset must be >= 0, got %d", p.Offset)
	}
	if p.Limit <= 0 {
		return newError(ErrCodeInvalidPage, "", "limit must be > 0, got %d", p.Limit)
	}
	return nil
}

// PageResult is one page of items plus the total number of rows matching
// the condition, ignoring the window.
type PageResult[T any] struct {
	Items  []T
	Total  int64
	Offset int
	Limit  int
}

// HasNext reports whether rows exist beyond this page.
func (r PageResult[T]) HasNext() bool {
	return int64(r.Offset)+int64(len(r.Items)) < r.Total
}

// MapPage converts the items of a page, keeping the window and total.
func MapPage[T, U any](r PageResult[T], fn func(T) U) PageResult[U] {
	items := make([]U, len(r.Items))
	for i, item := range r.Items {
		items[i] = fn(item)
	}
	return PageResult[U]{Items: items, Total: r.Total, Offset: r.Offset, Limit: r.Limit}
}
