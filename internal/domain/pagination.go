package domain

import "math"

const (
	// DefaultPage is applied when the caller omits a page number.
	DefaultPage = 1
	// DefaultLimit is applied when the caller omits a page size.
	DefaultLimit = 100
)

// PageRequest carries offset pagination inputs. Page is echoed back verbatim in PageInfo.Current.
type PageRequest struct {
	Page  int
	Limit int
}

// Offset returns the number of records to skip. Pages 0 and 1 both address the first page.
// The result saturates at math.MaxInt instead of overflowing.
func (p PageRequest) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// PageInfo is the pagination block of a list envelope.
type PageInfo struct {
	Current int `json:"current"`
	Limit   int `json:"limit"`
	Records int `json:"records"`
	Pages   int `json:"pages"`
}

// Page is the list envelope returned by every paginated operation.
type Page[T any] struct {
	Data       []T
	Pagination PageInfo
}

// NewPage builds the envelope for a slice already trimmed to the requested window.
func NewPage[T any](data []T, records int, req PageRequest) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{
		Data: data,
		Pagination: PageInfo{
			Current: req.Page,
			Limit:   req.Limit,
			Records: records,
			Pages:   PageCount(records, req.Limit),
		},
	}
}

// PageCount returns ceil(records/limit), or zero when limit is not positive.
func PageCount(records, limit int) int {
	if limit <= 0 || records <= 0 {
		return 0
	}
	return (records + limit - 1) / limit
}

// Window slices items to the page described by req and returns the slice together with the total count.
func Window[T any](items []T, req PageRequest) ([]T, int) {
	total := len(items)
	start := req.Offset()
	if start >= total {
		return []T{}, total
	}
	end := total
	if req.Limit > 0 && req.Limit < total-start {
		end = start + req.Limit
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, total
}
