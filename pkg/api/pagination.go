package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultLimit is applied when the caller does not specify one.
	DefaultLimit = 50
	// MaxLimit caps a single page so a caller cannot drag a whole
	// collection through one request.
	MaxLimit = 200
)

// PageRequest carries the limit/offset window for a list endpoint.
type PageRequest struct {
	Limit  int `form:"limit" json:"limit"`
	Offset int `form:"offset" json:"offset"`
}

// ParsePagination reads limit and offset query parameters, clamping
// them to sane bounds. Malformed values fall back to defaults.
func ParsePagination(c *gin.Context) PageRequest {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	return PageRequest{Limit: limit, Offset: offset}
}

// ListResponse is the envelope for windowed list endpoints. Count is
// the number of items in this page, not the collection total.
type ListResponse[T any] struct {
	Data   []T `json:"data"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// NewListResponse wraps a page of results with its request window.
func NewListResponse[T any](data []T, page PageRequest) ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return ListResponse[T]{
		Data:   data,
		Limit:  page.Limit,
		Offset: page.Offset,
		Count:  len(data),
	}
}
