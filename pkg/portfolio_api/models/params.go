package models

// ListBlogsParams are the query parameters for GET /blogs.
type ListBlogsParams struct {
	Page    int    `query:"page"`
	PerPage int    `query:"perPage"`
	Tag     string `query:"tag"`
}

// ListPapersParams are the query parameters for GET /papers.
type ListPapersParams struct {
	Page     int    `query:"page"`
	PerPage  int    `query:"perPage"`
	Category string `query:"category"`
}

// ItemParams addresses a single content item by numeric id or slug.
type ItemParams struct {
	IDOrSlug string `path:"idOrSlug"`
}

type Pagination struct {
	Next           *int `json:"next,omitempty"`
	Previous       *int `json:"previous,omitempty"`
	CurrentPage    int  `json:"currentPage"`
	RecordsPerPage int  `json:"recordsPerPage"`
	TotalPages     int  `json:"totalPages"`
	TotalRecords   int  `json:"totalRecords"`
}
