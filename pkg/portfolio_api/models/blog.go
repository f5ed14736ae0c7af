package models

import "time"

// BlogPost is a persisted blog article. Tags are stored as a JSON array so
// their order survives round-trips.
type BlogPost struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Title      string    `json:"title" gorm:"not null"`
	Slug       string    `json:"slug" gorm:"uniqueIndex;not null"`
	Content    string    `json:"content" gorm:"type:text"`
	Tags       []string  `json:"tags" gorm:"serializer:json"`
	Published  bool      `json:"published" gorm:"default:true"`
	CoverImage *string   `json:"coverImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// BlogSummary is the listing view of a post. Content is trimmed to a teaser
// so the public index stays light.
type BlogSummary struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	Excerpt    string    `json:"excerpt"`
	Tags       []string  `json:"tags"`
	Published  bool      `json:"published"`
	CoverImage *string   `json:"coverImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CreateBlogInput is the POST /blogs request body.
type CreateBlogInput struct {
	Title     string   `json:"title" binding:"required"`
	Content   string   `json:"content" binding:"required"`
	Slug      string   `json:"slug"`
	Tags      []string `json:"tags"`
	Published *bool    `json:"published"`
}

// UpdateBlogInput carries a partial update; nil fields stay untouched. The
// addressed item rides along as the path parameter.
type UpdateBlogInput struct {
	IDOrSlug  string    `path:"idOrSlug" json:"-"`
	Title     *string   `json:"title"`
	Content   *string   `json:"content"`
	Slug      *string   `json:"slug"`
	Tags      *[]string `json:"tags"`
	Published *bool     `json:"published"`
}
