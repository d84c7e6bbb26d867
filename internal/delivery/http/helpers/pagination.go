package helpers

import (
	"net/http"
	"strconv"
	"strings"

	"bawabamail/internal/domain"
)

// List query defaults for the operator list endpoints.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListQuery is the parsed query string of a list endpoint.
type ListQuery struct {
	Params domain.PaginationParams
	Status string
}

// ParseListQuery reads page, page_size and status. Malformed or non-positive numbers fall back
// to the defaults and page_size is capped at MaxPageSize. Status is lowercased; unknown values
// are rejected by the services, an empty one means no filter.
func ParseListQuery(r *http.Request) ListQuery {
	q := r.URL.Query()
	return ListQuery{
		Params: domain.PaginationParams{
			Page:     positiveInt(q.Get("page"), DefaultPage),
			PageSize: min(positiveInt(q.Get("page_size"), DefaultPageSize), MaxPageSize),
		},
		Status: strings.ToLower(strings.TrimSpace(q.Get("status"))),
	}
}

func positiveInt(s string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v >= 1 {
		return v
	}
	return fallback
}

// ListResponse is the data payload of paginated list endpoints.
// swagger:model ListResponse
type ListResponse struct {
	Items      any            `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// PaginationMeta describes the page returned in a ListResponse.
// swagger:model PaginationMeta
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewListResponse wraps one page of items. TotalPages is 0 when the page size is 0.
func NewListResponse(items any, params domain.PaginationParams, total int) ListResponse {
	pages := 0
	if params.PageSize > 0 {
		pages = (total + params.PageSize - 1) / params.PageSize
	}
	return ListResponse{
		Items: items,
		Pagination: PaginationMeta{
			Page:       params.Page,
			PageSize:   params.PageSize,
			Total:      total,
			TotalPages: pages,
		},
	}
}
