package services

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Pagination) offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one page of results plus what a client needs to fetch the rest.
type Page[T any] struct {
	Items []T
	Total int64
	Page  int
	Pages int
}

func newPage[T any](items []T, total int64, p Pagination) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return &Page[T]{Items: items, Total: total, Page: p.Page, Pages: pages}
}
