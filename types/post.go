package types

import "time"

// PostStatus controls whether a post is listed by default.
type PostStatus string

const (
	PostStatusActive   PostStatus = "active"
	PostStatusInactive PostStatus = "inactive"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	return s == PostStatusActive || s == PostStatusInactive
}

// Post is a blog entry.
//
// UserID, UserName and UserEmail are a snapshot of the author taken when the
// post is created. Later profile edits do not change them.
type Post struct {
	ID            string     `json:"id" db:"id"`
	Slug          string     `json:"slug" db:"slug"`
	Title         string     `json:"title" db:"title"`
	Content       string     `json:"content" db:"content"`
	FeaturedImage string     `json:"featuredImage" db:"featured_image"`
	Status        PostStatus `json:"status" db:"status"`
	UserID        string     `json:"userId" db:"user_id"`
	UserName      string     `json:"userName" db:"user_name"`
	UserEmail     string     `json:"userEmail" db:"user_email"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}

// PostQuery holds equality filters for listing posts. Empty fields do not
// filter.
type PostQuery struct {
	Status PostStatus `json:"status,omitempty"`
	UserID string     `json:"userId,omitempty"`
	Slug   string     `json:"slug,omitempty"`
}

// DefaultPostQuery lists active posts only.
func DefaultPostQuery() PostQuery {
	return PostQuery{Status: PostStatusActive}
}

// PostList is the list response payload.
type PostList struct {
	Total     int    `json:"total"`
	Documents []Post `json:"documents"`
}
