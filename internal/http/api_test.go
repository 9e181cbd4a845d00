package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"feedpress/internal/auth"
	"feedpress/internal/domain"
	"feedpress/internal/repository"
	"feedpress/internal/repository/sqlite"
	"feedpress/internal/service"
)

type testEnv struct {
	router   *gin.Engine
	users    repository.UserRepository
	articles repository.ArticleRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userRepo := sqlite.NewUserRepository(db)
	articleRepo := sqlite.NewArticleRepository(db)
	if err := userRepo.Init(context.Background()); err != nil {
		t.Fatalf("init user repo: %v", err)
	}
	if err := articleRepo.Init(context.Background()); err != nil {
		t.Fatalf("init article repo: %v", err)
	}

	tokens := auth.NewTokenService("test-secret-12345678901234567890", time.Hour)
	handler := NewHandler(
		service.NewArticleService(articleRepo),
		service.NewUserService(userRepo, "admin", "admin123"),
		tokens,
		nil,
		"",
		"",
	)

	router := gin.New()
	handler.RegisterRoutes(router)

	return &testEnv{router: router, users: userRepo, articles: articleRepo}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()

	if w := e.do(t, http.MethodPost, "/api/auth/setup", "", map[string]any{}); w.Code != http.StatusCreated && w.Code != http.StatusBadRequest {
		t.Fatalf("setup: unexpected status %d: %s", w.Code, w.Body.String())
	}

	w := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"username": "admin", "password": "admin123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: unexpected status %d: %s", w.Code, w.Body.String())
	}
	token, _ := decodeBody(t, w)["token"].(string)
	if token == "" {
		t.Fatal("login returned no token")
	}
	return token
}

func (e *testEnv) readerToken(t *testing.T) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("reader123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := e.users.Create(context.Background(), &domain.User{
		Username:     "reader",
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	}); err != nil {
		t.Fatalf("create reader: %v", err)
	}

	w := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"username": "reader", "password": "reader123"})
	if w.Code != http.StatusOK {
		t.Fatalf("reader login: unexpected status %d: %s", w.Code, w.Body.String())
	}
	token, _ := decodeBody(t, w)["token"].(string)
	if token == "" {
		t.Fatal("reader login returned no token")
	}
	return token
}

func articleBody(guid, postID string) map[string]any {
	stamp := time.Now().UTC().Format(time.RFC3339)
	return map[string]any{
		"title":         "a title",
		"link":          "https://example.com/post",
		"pubDate":       stamp,
		"creator":       "someone",
		"guid":          guid,
		"content":       "some content",
		"post_id":       postID,
		"post_date":     stamp,
		"post_modified": stamp,
		"category":      "news",
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if decodeBody(t, w)["status"] != "OK" {
		t.Errorf("unexpected health body: %s", w.Body.String())
	}
}

func TestUnknownEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if decodeBody(t, w)["error"] != "endpoint not found" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestSetupSucceedsAtMostOnce(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/setup", "", map[string]any{})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first setup, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/auth/setup", "", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on second setup, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.adminToken(t)

	w := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"username": "admin", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"username": "admin", "password": "admin123"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user object, got %s", w.Body.String())
	}
	if user["username"] != "admin" || user["role"] != "admin" {
		t.Errorf("unexpected user payload: %v", user)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Error("login response leaks password hash")
	}
}

func TestMutationsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	reader := env.readerToken(t)
	id := uuid.NewString()

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/articles", articleBody("g", "p")},
		{http.MethodPut, "/api/articles/" + id, map[string]any{"title": "x"}},
		{http.MethodDelete, "/api/articles/" + id, nil},
	}

	for _, tc := range cases {
		for name, token := range map[string]string{"missing": "", "garbage": "not.a.token", "non-admin": reader} {
			w := env.do(t, tc.method, tc.path, token, tc.body)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("%s %s with %s token: expected 401, got %d", tc.method, tc.path, name, w.Code)
			}
		}
	}
}

func TestCreateArticle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)

	body := articleBody("guid-1", "post-1")
	delete(body, "title")
	delete(body, "category")
	w := env.do(t, http.MethodPost, "/api/articles", admin, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d: %s", w.Code, w.Body.String())
	}
	msg, _ := decodeBody(t, w)["error"].(string)
	if !strings.Contains(msg, "title") || !strings.Contains(msg, "category") {
		t.Errorf("expected missing field names in error, got %q", msg)
	}

	w = env.do(t, http.MethodPost, "/api/articles", admin, articleBody("guid-1", "post-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	if created["views"] != float64(0) {
		t.Errorf("expected views 0 on create, got %v", created["views"])
	}
	if created["id"] == "" {
		t.Error("expected system-assigned id")
	}

	w = env.do(t, http.MethodPost, "/api/articles", admin, articleBody("guid-1", "post-other"))
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate guid, got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/articles", admin, articleBody("guid-other", "post-1"))
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate post_id, got %d", w.Code)
	}
}

func TestListArticlesSorted(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)

	older := articleBody("guid-1", "post-1")
	older["pubDate"] = "2024-01-01T00:00:00Z"
	newer := articleBody("guid-2", "post-2")
	newer["pubDate"] = "2025-06-01T00:00:00Z"

	for _, body := range []map[string]any{older, newer} {
		if w := env.do(t, http.MethodPost, "/api/articles", admin, body); w.Code != http.StatusCreated {
			t.Fatalf("create: unexpected status %d: %s", w.Code, w.Body.String())
		}
	}

	w := env.do(t, http.MethodGet, "/api/articles", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(list))
	}
	if list[0]["guid"] != "guid-2" {
		t.Errorf("expected newest pub date first, got %v", list[0]["guid"])
	}
}

func TestGetArticleCountsViews(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)

	w := env.do(t, http.MethodPost, "/api/articles", admin, articleBody("guid-1", "post-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: unexpected status %d", w.Code)
	}
	id, _ := decodeBody(t, w)["id"].(string)

	w = env.do(t, http.MethodGet, "/api/articles/"+id, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	first, _ := decodeBody(t, w)["views"].(float64)

	w = env.do(t, http.MethodGet, "/api/articles/"+id, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	second, _ := decodeBody(t, w)["views"].(float64)

	if first != 1 || second != 2 {
		t.Errorf("expected views 1 then 2, got %v then %v", first, second)
	}

	if w := env.do(t, http.MethodGet, "/api/articles/not-a-uuid", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed id, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/articles/"+uuid.NewString(), "", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", w.Code)
	}
}

func TestUpdateArticle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)

	body := articleBody("guid-1", "post-1")
	body["post_modified"] = "2024-01-01T00:00:00Z"
	w := env.do(t, http.MethodPost, "/api/articles", admin, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: unexpected status %d", w.Code)
	}
	id, _ := decodeBody(t, w)["id"].(string)

	w = env.do(t, http.MethodPut, "/api/articles/"+id, admin, map[string]any{"title": "  "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank title, got %d: %s", w.Code, w.Body.String())
	}
	stored, err := env.articles.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if stored.Title != "a title" {
		t.Errorf("rejected update must not change the title, got %q", stored.Title)
	}

	w = env.do(t, http.MethodPut, "/api/articles/"+id, admin, map[string]any{"title": "edited", "guid": "smuggled"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	updated := decodeBody(t, w)
	if updated["title"] != "edited" {
		t.Errorf("expected edited title, got %v", updated["title"])
	}
	for _, hidden := range []string{"guid", "post_id", "views", "link", "post_name"} {
		if _, ok := updated[hidden]; ok {
			t.Errorf("projection must not include %q", hidden)
		}
	}
	modified, err := time.Parse(time.RFC3339, updated["post_modified"].(string))
	if err != nil {
		t.Fatalf("parse post_modified: %v", err)
	}
	if !modified.After(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected post_modified refreshed, got %v", modified)
	}

	stored, err = env.articles.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if stored.Guid != "guid-1" || stored.PostID != "post-1" || stored.Views != 0 {
		t.Errorf("update must not touch guid/post_id/views: %+v", stored)
	}

	w = env.do(t, http.MethodPut, "/api/articles/"+uuid.NewString(), admin, map[string]any{"title": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", w.Code)
	}
	w = env.do(t, http.MethodPut, "/api/articles/not-a-uuid", admin, map[string]any{"title": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed id, got %d", w.Code)
	}
}

func TestDeleteArticle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)

	if w := env.do(t, http.MethodDelete, "/api/articles/"+uuid.NewString(), admin, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", w.Code)
	}

	w := env.do(t, http.MethodPost, "/api/articles", admin, articleBody("guid-1", "post-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: unexpected status %d", w.Code)
	}
	id, _ := decodeBody(t, w)["id"].(string)

	w = env.do(t, http.MethodDelete, "/api/articles/"+id, admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodGet, "/api/articles/"+id, "", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestArchiveRequiresStorage(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)

	w := env.do(t, http.MethodPost, "/api/archive", admin, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without a configured bucket, got %d", w.Code)
	}
	if decodeBody(t, w)["error"] != "storage service not configured" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}

	if w := env.do(t, http.MethodPost, "/api/archive", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", w.Code)
	}
}
