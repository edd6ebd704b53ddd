package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Pagination holds pagination info and computed metadata.
// URL: /payments/payment-history?page=2&limit=20
// → ParsePagination() → Pagination{Page:2, Limit:20, Offset:20}
// → SQL: SELECT ... LIMIT 20 OFFSET 20
// → ComputeMeta(total) fills Total and Pages for the response.
type Pagination struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
	Pages  int `json:"pages"`
	Offset int `json:"-"`
}

// ParsePagination parses ?page=...&limit=... safely. Keys are case sensitive.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{
		Page:  1,
		Limit: 10,
	}

	if limitStr := strings.TrimSpace(q.Get("limit")); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			switch {
			case limit <= 0:
				p.Limit = 10
			case limit > 100:
				p.Limit = 100
			default:
				p.Limit = limit
			}
		}
	}

	if pageStr := strings.TrimSpace(q.Get("page")); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			p.Page = page
		}
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// ComputeMeta updates pagination after fetching the total count.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.Pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
}
