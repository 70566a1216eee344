package api

import (
	"net/http"
	"strconv"
)

// PaginationParams holds parsed listing controls from query params.
type PaginationParams struct {
	Limit int
}

// ParsePagination reads the limit query param, falling back to defaultLimit
// when absent or invalid. maxLimit caps the allowed limit to prevent abuse.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) PaginationParams {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return PaginationParams{Limit: limit}
}
