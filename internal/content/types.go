package content

import "time"

// Content is a named URL a playlist item can reference.
type Content struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	URL           string  `json:"url"`
	Description   *string `json:"description,omitempty"`
	IsInteractive bool    `json:"is_interactive"`
	ThumbnailURL  *string `json:"thumbnail_url,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// CreateContentInput is the payload for creating content.
type CreateContentInput struct {
	Name          string  `json:"name"`
	URL           string  `json:"url"`
	Description   *string `json:"description"`
	IsInteractive bool    `json:"is_interactive"`
	ThumbnailURL  *string `json:"thumbnail_url"`
}

// UpdateContentInput is the payload for updating content. Nil fields are
// left unchanged.
type UpdateContentInput struct {
	Name          *string `json:"name"`
	URL           *string `json:"url"`
	Description   *string `json:"description"`
	IsInteractive *bool   `json:"is_interactive"`
	ThumbnailURL  *string `json:"thumbnail_url"`
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z07:00")
}
