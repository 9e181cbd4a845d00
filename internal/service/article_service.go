package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"feedpress/internal/domain"
	"feedpress/internal/repository"
)

// MissingFieldsError lists the required create fields absent from a request.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// ValidationError flags a field value that failed a mutation rule.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// CreateArticleInput carries the raw create payload. Timestamps stay as
// strings until validation has run, so an absent date is reported as a
// missing field rather than a parse failure.
type CreateArticleInput struct {
	Title        string
	Link         string
	PubDate      string
	Creator      string
	Guid         string
	Content      string
	PostID       string
	PostDate     string
	PostModified string
	PostName     string
	Category     string
}

// UpdateArticleInput carries the restricted update payload. Nil means the
// field was not submitted.
type UpdateArticleInput struct {
	Title    *string
	Creator  *string
	PubDate  *string
	Category *string
	Content  *string
}

// ArticleService coordinates article operations backed by the repository,
// enforcing the mutation rules on top of it.
type ArticleService interface {
	Create(ctx context.Context, in CreateArticleInput) (*domain.Article, error)
	List(ctx context.Context) ([]domain.Article, error)
	// Get returns the article and counts the read as a view.
	Get(ctx context.Context, id string) (*domain.Article, error)
	Update(ctx context.Context, id string, in UpdateArticleInput) (*domain.Article, error)
	Delete(ctx context.Context, id string) error
}

type articleService struct {
	articles repository.ArticleRepository
}

func NewArticleService(articles repository.ArticleRepository) ArticleService {
	return &articleService{articles: articles}
}

func (s *articleService) Create(ctx context.Context, in CreateArticleInput) (*domain.Article, error) {
	// Field names match the wire format; the list is reported verbatim.
	required := []struct {
		name  string
		value string
	}{
		{"title", in.Title},
		{"link", in.Link},
		{"pubDate", in.PubDate},
		{"creator", in.Creator},
		{"guid", in.Guid},
		{"content", in.Content},
		{"post_id", in.PostID},
		{"post_date", in.PostDate},
		{"post_modified", in.PostModified},
		{"category", in.Category},
	}

	var missing []string
	for _, f := range required {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	pubDate, err := parseTimestamp("pubDate", in.PubDate)
	if err != nil {
		return nil, err
	}
	postDate, err := parseTimestamp("post_date", in.PostDate)
	if err != nil {
		return nil, err
	}
	postModified, err := parseTimestamp("post_modified", in.PostModified)
	if err != nil {
		return nil, err
	}

	article := &domain.Article{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Link:         in.Link,
		PubDate:      pubDate,
		Creator:      in.Creator,
		Guid:         in.Guid,
		Content:      in.Content,
		PostID:       in.PostID,
		PostDate:     postDate,
		PostModified: postModified,
		PostName:     in.PostName,
		Category:     in.Category,
		Views:        0,
	}

	if err := s.articles.Create(ctx, article); err != nil {
		return nil, err
	}
	return article, nil
}

func (s *articleService) List(ctx context.Context) ([]domain.Article, error) {
	return s.articles.List(ctx)
}

func (s *articleService) Get(ctx context.Context, id string) (*domain.Article, error) {
	return s.articles.GetAndCountView(ctx, id)
}

func (s *articleService) Update(ctx context.Context, id string, in UpdateArticleInput) (*domain.Article, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, &ValidationError{Msg: "title cannot be empty"}
	}
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		return nil, &ValidationError{Msg: "content cannot be empty"}
	}

	upd := domain.ArticleUpdate{
		Title:    in.Title,
		Creator:  in.Creator,
		Category: in.Category,
		Content:  in.Content,
	}
	if in.PubDate != nil {
		pubDate, err := parseTimestamp("pubDate", *in.PubDate)
		if err != nil {
			return nil, err
		}
		upd.PubDate = &pubDate
	}

	return s.articles.Update(ctx, id, upd)
}

func (s *articleService) Delete(ctx context.Context, id string) error {
	return s.articles.Delete(ctx, id)
}

func parseTimestamp(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &ValidationError{Msg: fmt.Sprintf("invalid %s timestamp", field)}
	}
	return t, nil
}
