package repository

import (
	"context"

	"feedpress/internal/domain"
)

// ArticleRepository exposes persistence operations for Article records.
type ArticleRepository interface {
	Init(ctx context.Context) error
	// Create inserts the article, returning ErrConflict when its guid or
	// post id collides with an existing record.
	Create(ctx context.Context, article *domain.Article) error
	Get(ctx context.Context, id string) (*domain.Article, error)
	// GetAndCountView increments the article's view counter and returns the
	// updated record. The increment is a single UPDATE, so concurrent reads
	// never lose counts.
	GetAndCountView(ctx context.Context, id string) (*domain.Article, error)
	// List returns all articles, newest pub date first.
	List(ctx context.Context) ([]domain.Article, error)
	// FindByGuidOrPostID returns any article matching either value.
	FindByGuidOrPostID(ctx context.Context, guid, postID string) (*domain.Article, error)
	// Update applies the non-nil fields of upd and always refreshes
	// post_modified to the current time.
	Update(ctx context.Context, id string, upd domain.ArticleUpdate) (*domain.Article, error)
	Delete(ctx context.Context, id string) error
}
