package api

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/joao-fontenele/marketplace/internal/apperr"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type PageRequest struct {
	Page      int       `json:"page"`
	Limit     int       `json:"limit"`
	SortBy    string    `json:"sortBy"`
	SortOrder SortOrder `json:"sortOrder"`
}

// Offset is the number of rows before the page. It saturates at math.MaxInt
// so a huge page number reads past the end instead of wrapping negative.
func (p PageRequest) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

type PaginationMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPaginationMeta describes page of a result set holding total records.
// An empty result set or a non-positive limit has no pages.
func NewPaginationMeta(page, limit, total int) PaginationMeta {
	meta := PaginationMeta{Page: page, Limit: limit, Total: total}
	if limit <= 0 || total <= 0 {
		return meta
	}
	meta.TotalPages = (total + limit - 1) / limit
	meta.HasNext = page < meta.TotalPages
	meta.HasPrev = page > 1
	return meta
}

// ParsePageRequest reads page, limit, sortBy and sortOrder from the query.
// sortable lists the accepted sortBy keys; the first one is the default.
func ParsePageRequest(q url.Values, sortable ...string) (PageRequest, error) {
	req := PageRequest{Page: 1, Limit: DefaultLimit, SortOrder: SortDesc}
	if len(sortable) > 0 {
		req.SortBy = sortable[0]
	}

	var fields []apperr.FieldError

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields = append(fields, apperr.FieldError{Field: "page", Message: "must be a positive integer"})
		} else {
			req.Page = n
		}
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil || n < 1:
			fields = append(fields, apperr.FieldError{Field: "limit", Message: "must be a positive integer"})
		case n > MaxLimit:
			fields = append(fields, apperr.FieldError{Field: "limit", Message: "must be at most " + strconv.Itoa(MaxLimit)})
		default:
			req.Limit = n
		}
	}

	if v := q.Get("sortBy"); v != "" {
		if !slices.Contains(sortable, v) {
			fields = append(fields, apperr.FieldError{Field: "sortBy", Message: "must be one of " + strings.Join(sortable, ", ")})
		} else {
			req.SortBy = v
		}
	}

	if v := q.Get("sortOrder"); v != "" {
		switch SortOrder(strings.ToLower(v)) {
		case SortAsc:
			req.SortOrder = SortAsc
		case SortDesc:
			req.SortOrder = SortDesc
		default:
			fields = append(fields, apperr.FieldError{Field: "sortOrder", Message: "must be asc or desc"})
		}
	}

	if len(fields) > 0 {
		return req, apperr.Validation(fields...)
	}
	return req, nil
}
