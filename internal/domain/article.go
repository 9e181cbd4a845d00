package domain

import "time"

// Article is a post mirrored from an external feed. Guid identifies the
// origin feed entry, PostID the article in the external CMS; both are
// unique across the collection, independently of each other.
type Article struct {
	ID           string
	Title        string
	Link         string
	PubDate      time.Time
	Creator      string
	Guid         string
	Content      string
	PostID       string
	PostDate     time.Time
	PostModified time.Time
	PostName     string
	Category     string
	Views        int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ArticleUpdate carries the fields an update is allowed to touch. Nil
// pointers mean "leave unchanged"; PostModified is always set server-side.
type ArticleUpdate struct {
	Title    *string
	Creator  *string
	PubDate  *time.Time
	Category *string
	Content  *string
}
