// Package pagination slices ordered items into fixed-size pages.
package pagination

// DefaultPageSize matches the Telegram album limit.
const DefaultPageSize = 10

// Page is one window over an ordered item list.
type Page[T any] struct {
	Items   []T
	Page    int
	HasPrev bool
	HasNext bool
}

// Paginate returns the page-th window of items. It never re-sorts items and
// has no side effects. A negative page is treated as 0; a page past the end
// yields no items and HasNext=false.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}
	out := Page[T]{
		Page:    page,
		HasPrev: page > 0,
	}
	// Compare page counts first; page*pageSize may overflow.
	if page >= PageCount(len(items), pageSize) {
		return out
	}
	start := page * pageSize
	end := len(items)
	if end-start > pageSize {
		end = start + pageSize
	}
	out.Items = items[start:end:end]
	out.HasNext = end < len(items)
	return out
}

// PageCount returns the number of non-empty pages for n items.
func PageCount(n, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if n <= 0 {
		return 0
	}
	return (n-1)/pageSize + 1
}

// Clamp bounds page to the range of pages that yield items. With no items
// the only valid page is 0.
func Clamp(page, n, pageSize int) int {
	if page < 0 {
		return 0
	}
	last := PageCount(n, pageSize) - 1
	if last < 0 {
		return 0
	}
	if page > last {
		return last
	}
	return page
}
