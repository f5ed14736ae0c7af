package util

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/models"
)

// SetPaginationHeaders writes offset pagination metadata as response
// headers, including RFC 8288 Link relations for next/prev.
func SetPaginationHeaders(r *http.Request, setHeader func(key, value string), p models.Pagination) {
	setHeader("X-Total-Count", strconv.Itoa(p.TotalRecords))
	setHeader("X-Total-Pages", strconv.Itoa(p.TotalPages))
	setHeader("X-Current-Page", strconv.Itoa(p.CurrentPage))
	setHeader("X-Per-Page", strconv.Itoa(p.RecordsPerPage))

	var links []string
	if p.Next != nil {
		links = append(links, fmt.Sprintf(`<%s>; rel="next"`, pageURL(r, *p.Next)))
	}
	if p.Previous != nil {
		links = append(links, fmt.Sprintf(`<%s>; rel="prev"`, pageURL(r, *p.Previous)))
	}
	if len(links) > 0 {
		setHeader("Link", strings.Join(links, ", "))
	}
}

func pageURL(r *http.Request, page int) string {
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
