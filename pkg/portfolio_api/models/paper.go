package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Paper is a published academic paper with its metadata and an optional
// uploaded document file.
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title" gorm:"not null"`
	Slug      string    `json:"slug" gorm:"uniqueIndex;not null"`
	Abstract  string    `json:"abstract" gorm:"type:text"`
	Authors   []string  `json:"authors" gorm:"serializer:json"`
	Keywords  []string  `json:"keywords" gorm:"serializer:json"`
	Category  string    `json:"category" gorm:"index"`
	Venue     string    `json:"venue,omitempty"`
	Year      int       `json:"year,omitempty"`
	Published bool      `json:"published" gorm:"default:true"`
	FileURL   *string   `json:"fileUrl,omitempty"`
	FileType  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreatePaperInput is the POST /papers request body. Authors and Keywords
// accept either a JSON array or a comma-separated string; the admin console
// sends both depending on whether the request is JSON or multipart.
type CreatePaperInput struct {
	Title     string     `json:"title" binding:"required"`
	Abstract  string     `json:"abstract" binding:"required"`
	Slug      string     `json:"slug"`
	Authors   StringList `json:"authors"`
	Keywords  StringList `json:"keywords"`
	Category  string     `json:"category"`
	Venue     string     `json:"venue"`
	Year      int        `json:"year"`
	Published *bool      `json:"published"`
}

// UpdatePaperInput carries a partial update; nil fields stay untouched.
type UpdatePaperInput struct {
	Title     *string     `json:"title"`
	Abstract  *string     `json:"abstract"`
	Slug      *string     `json:"slug"`
	Authors   *StringList `json:"authors"`
	Keywords  *StringList `json:"keywords"`
	Category  *string     `json:"category"`
	Venue     *string     `json:"venue"`
	Year      *int        `json:"year"`
	Published *bool       `json:"published"`
}

// StringList unmarshals from a JSON array, a JSON string containing an
// embedded array, or a plain comma-separated string.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = ParseStringList(s)
	return nil
}

// ParseStringList parses a string that is either an embedded JSON array or a
// comma-separated list. Unparseable input degrades to comma splitting.
func ParseStringList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			return arr
		}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
