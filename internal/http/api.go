package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"feedpress/internal/auth"
	"feedpress/internal/domain"
	"feedpress/internal/repository"
	"feedpress/internal/service"
	"feedpress/internal/storage"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	articles  service.ArticleService
	users     service.UserService
	tokens    *auth.TokenService
	storage   storage.Service
	bucket    string
	keyPrefix string
}

func NewHandler(articles service.ArticleService, users service.UserService, tokens *auth.TokenService, store storage.Service, bucket, keyPrefix string) *Handler {
	return &Handler{
		articles:  articles,
		users:     users,
		tokens:    tokens,
		storage:   store,
		bucket:    bucket,
		keyPrefix: keyPrefix,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": time.Now().UTC().Format(time.RFC3339)})
		})

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", h.login)
			authGroup.POST("/setup", h.setup)
		}

		articles := api.Group("/articles")
		{
			articles.GET("", h.listArticles)
			articles.GET("/:id", h.getArticle)
			articles.POST("", h.requireRole(domain.RoleAdmin), h.createArticle)
			articles.PUT("/:id", h.requireRole(domain.RoleAdmin), h.updateArticle)
			articles.DELETE("/:id", h.requireRole(domain.RoleAdmin), h.deleteArticle)
		}

		archive := api.Group("/archive", h.requireRole(domain.RoleAdmin))
		{
			archive.POST("", h.createArchive)
			archive.GET("", h.listArchives)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  userToResponse(user),
	})
}

func (h *Handler) setup(c *gin.Context) {
	if _, err := h.users.Setup(c.Request.Context()); err != nil {
		if errors.Is(err, service.ErrAdminExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "admin user created"})
}

type createArticleRequest struct {
	Title        string `json:"title"`
	Link         string `json:"link"`
	PubDate      string `json:"pubDate"`
	Creator      string `json:"creator"`
	Guid         string `json:"guid"`
	Content      string `json:"content"`
	PostID       string `json:"post_id"`
	PostDate     string `json:"post_date"`
	PostModified string `json:"post_modified"`
	PostName     string `json:"post_name"`
	Category     string `json:"category"`
}

func (h *Handler) createArticle(c *gin.Context) {
	var req createArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	article, err := h.articles.Create(c.Request.Context(), service.CreateArticleInput{
		Title:        req.Title,
		Link:         req.Link,
		PubDate:      req.PubDate,
		Creator:      req.Creator,
		Guid:         req.Guid,
		Content:      req.Content,
		PostID:       req.PostID,
		PostDate:     req.PostDate,
		PostModified: req.PostModified,
		PostName:     req.PostName,
		Category:     req.Category,
	})
	if err != nil {
		var missing *service.MissingFieldsError
		var invalid *service.ValidationError
		switch {
		case errors.As(err, &missing), errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "article with this guid or post_id already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, articleToResponse(*article))
}

func (h *Handler) listArticles(c *gin.Context) {
	articles, err := h.articles.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]ArticleResponse, len(articles))
	for i := range articles {
		resp[i] = articleToResponse(articles[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getArticle(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}

	article, err := h.articles.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, articleToResponse(*article))
}

type updateArticleRequest struct {
	Title    *string `json:"title"`
	Creator  *string `json:"creator"`
	PubDate  *string `json:"pubDate"`
	Category *string `json:"category"`
	Content  *string `json:"content"`
}

func (h *Handler) updateArticle(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}

	var req updateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	article, err := h.articles.Update(c.Request.Context(), id, service.UpdateArticleInput{
		Title:    req.Title,
		Creator:  req.Creator,
		PubDate:  req.PubDate,
		Category: req.Category,
		Content:  req.Content,
	})
	if err != nil {
		var invalid *service.ValidationError
		switch {
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, articleToProjection(*article))
}

func (h *Handler) deleteArticle(c *gin.Context) {
	if err := h.articles.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "article permanently deleted"})
}

func (h *Handler) createArchive(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage service not configured"})
		return
	}

	articles, err := h.articles.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	snapshot := make([]ArticleResponse, len(articles))
	for i := range articles {
		snapshot[i] = articleToResponse(articles[i])
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	key := fmt.Sprintf("%s/articles-%s.json", h.keyPrefix, time.Now().UTC().Format("20060102T150405Z"))
	location, err := h.storage.PutSnapshot(c.Request.Context(), h.bucket, key, body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"location": location, "count": len(articles)}
	if user, ok := currentUser(c); ok {
		resp["archived_by"] = user.Username
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listArchives(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage service not configured"})
		return
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, h.keyPrefix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]ArchiveObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
		url, err := h.storage.GetObjectURL(c.Request.Context(), h.bucket, objects[i].Key, 15*time.Minute)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp[i].URL = url
	}
	c.JSON(http.StatusOK, resp)
}

type UserResponse struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

type ArticleResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Link         string `json:"link"`
	PubDate      string `json:"pubDate"`
	Creator      string `json:"creator"`
	Guid         string `json:"guid"`
	Content      string `json:"content"`
	PostID       string `json:"post_id"`
	PostDate     string `json:"post_date"`
	PostModified string `json:"post_modified"`
	PostName     string `json:"post_name"`
	Category     string `json:"category"`
	Views        int64  `json:"views"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// ArticleProjectionResponse is the fixed subset of fields an update
// returns; the rest of the stored record stays server-side.
type ArticleProjectionResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Creator      string `json:"creator"`
	PubDate      string `json:"pubDate"`
	Category     string `json:"category"`
	Content      string `json:"content"`
	PostModified string `json:"post_modified"`
}

type ArchiveObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
	URL          string  `json:"url,omitempty"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
	}
}

func articleToResponse(article domain.Article) ArticleResponse {
	return ArticleResponse{
		ID:           article.ID,
		Title:        article.Title,
		Link:         article.Link,
		PubDate:      article.PubDate.Format(time.RFC3339),
		Creator:      article.Creator,
		Guid:         article.Guid,
		Content:      article.Content,
		PostID:       article.PostID,
		PostDate:     article.PostDate.Format(time.RFC3339),
		PostModified: article.PostModified.Format(time.RFC3339),
		PostName:     article.PostName,
		Category:     article.Category,
		Views:        article.Views,
		CreatedAt:    article.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    article.UpdatedAt.Format(time.RFC3339),
	}
}

func articleToProjection(article domain.Article) ArticleProjectionResponse {
	return ArticleProjectionResponse{
		ID:           article.ID,
		Title:        article.Title,
		Creator:      article.Creator,
		PubDate:      article.PubDate.Format(time.RFC3339),
		Category:     article.Category,
		Content:      article.Content,
		PostModified: article.PostModified.Format(time.RFC3339),
	}
}

func objectToResponse(obj storage.ObjectInfo) ArchiveObjectResponse {
	resp := ArchiveObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
