package services

import (
	"math"
	"strconv"

	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/models"
)

const defaultPerPage = 10

// parseID accepts only all-digit strings as numeric ids.
func parseID(s string) (uint, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// paginate normalizes page/perPage and derives offset pagination metadata
// for a total record count.
func paginate(total, page, perPage int) models.Pagination {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	p := models.Pagination{
		CurrentPage:    page,
		RecordsPerPage: perPage,
		TotalPages:     totalPages,
		TotalRecords:   total,
	}
	if page < totalPages {
		next := page + 1
		p.Next = &next
	}
	if page > 1 {
		prev := page - 1
		p.Previous = &prev
	}
	return p
}

// pageBounds returns the slice window for the given pagination.
func pageBounds(p models.Pagination, length int) (int, int) {
	start := (p.CurrentPage - 1) * p.RecordsPerPage
	if start >= length {
		return 0, 0
	}
	end := start + p.RecordsPerPage
	if end > length {
		end = length
	}
	return start, end
}
