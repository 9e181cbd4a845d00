package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"feedpress/internal/domain"
	"feedpress/internal/repository"
)

const createArticlesTable = `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	pub_date DATETIME NOT NULL,
	creator TEXT NOT NULL,
	guid TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL,
	post_id TEXT NOT NULL UNIQUE,
	post_date DATETIME NOT NULL,
	post_modified DATETIME NOT NULL,
	post_name TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	views INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const articleColumns = `id, title, link, pub_date, creator, guid, content, post_id, post_date, post_modified, post_name, category, views, created_at, updated_at`

type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepository{db: db}
}

func (r *ArticleRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createArticlesTable); err != nil {
		return fmt.Errorf("create articles table: %w", err)
	}
	return nil
}

func (r *ArticleRepository) Create(ctx context.Context, article *domain.Article) error {
	// Pre-check so the caller gets a conflict even when only one of the two
	// values collides; the unique indexes still back this up under races.
	if existing, err := r.FindByGuidOrPostID(ctx, article.Guid, article.PostID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	} else if existing != nil {
		return repository.ErrConflict
	}

	now := time.Now().UTC()
	article.CreatedAt = now
	article.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO articles (`+articleColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		article.ID,
		article.Title,
		article.Link,
		article.PubDate.UTC(),
		article.Creator,
		article.Guid,
		article.Content,
		article.PostID,
		article.PostDate.UTC(),
		article.PostModified.UTC(),
		article.PostName,
		article.Category,
		article.Views,
		article.CreatedAt,
		article.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

func (r *ArticleRepository) Get(ctx context.Context, id string) (*domain.Article, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+articleColumns+`
FROM articles
WHERE id = ?`,
		id,
	)
	return scanArticle(row)
}

func (r *ArticleRepository) GetAndCountView(ctx context.Context, id string) (*domain.Article, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE articles
SET views = views + 1, updated_at = ?
WHERE id = ?`,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("increment views: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("increment views rows affected: %w", err)
	}
	if affected == 0 {
		return nil, repository.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *ArticleRepository) List(ctx context.Context) ([]domain.Article, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+articleColumns+`
FROM articles
ORDER BY pub_date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

func (r *ArticleRepository) FindByGuidOrPostID(ctx context.Context, guid, postID string) (*domain.Article, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+articleColumns+`
FROM articles
WHERE guid = ? OR post_id = ?
LIMIT 1`,
		guid,
		postID,
	)
	return scanArticle(row)
}

func (r *ArticleRepository) Update(ctx context.Context, id string, upd domain.ArticleUpdate) (*domain.Article, error) {
	now := time.Now().UTC()

	sets := []string{"post_modified = ?", "updated_at = ?"}
	args := []any{now, now}
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Creator != nil {
		sets = append(sets, "creator = ?")
		args = append(args, *upd.Creator)
	}
	if upd.PubDate != nil {
		sets = append(sets, "pub_date = ?")
		args = append(args, upd.PubDate.UTC())
	}
	if upd.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *upd.Category)
	}
	if upd.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *upd.Content)
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `
UPDATE articles
SET `+strings.Join(sets, ", ")+`
WHERE id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update article: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update article rows affected: %w", err)
	}
	if affected == 0 {
		return nil, repository.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *ArticleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete article rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanArticle(row interface {
	Scan(dest ...any) error
}) (*domain.Article, error) {
	var article domain.Article
	if err := row.Scan(
		&article.ID,
		&article.Title,
		&article.Link,
		&article.PubDate,
		&article.Creator,
		&article.Guid,
		&article.Content,
		&article.PostID,
		&article.PostDate,
		&article.PostModified,
		&article.PostName,
		&article.Category,
		&article.Views,
		&article.CreatedAt,
		&article.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	return &article, nil
}
