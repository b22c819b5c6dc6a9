package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawd-connector/config"
	"clawd-connector/internal/domain"
	"clawd-connector/internal/infra"
	"clawd-connector/internal/repository"
	"clawd-connector/internal/usecase"
	"clawd-connector/pkg/httputil"
	"clawd-connector/pkg/signature"
)

const (
	testAPIKey  = "0123456789abcdef0123456789abcdef"
	testSecret  = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
	testSiteURL = "https://blog.example.com"
)

type testServer struct {
	router    http.Handler
	posts     *repository.PostRepository
	uploadDir string
}

func setupTestServer(t *testing.T, mediaEnabled bool) *testServer {
	t.Helper()

	cfg := &config.Config{
		DatabaseDriver: "sqlite",
		DatabaseURL:    filepath.Join(t.TempDir(), "handler.db"),
	}
	db, err := infra.NewDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	postRepo := repository.NewPostRepository(db)
	uploadDir := t.TempDir()
	mediaService := usecase.NewMediaService(
		mediaEnabled,
		infra.NewMediaFetcher(5*time.Second, 1<<20, infra.AllowPrivateNetworks()),
		infra.NewFileStorage(uploadDir, testSiteURL),
		postRepo,
	)
	postService := usecase.NewPostService(postRepo, infra.NewSanitizer(), mediaService, "Clawd")
	categoryService := usecase.NewCategoryService(repository.NewCategoryRepository(db))
	auth := usecase.NewAuthenticator(usecase.NewCredentialHolder(&domain.Credentials{APIKey: testAPIKey, Secret: testSecret}))

	router := NewRouter(&Handlers{
		Post:       NewPostHandler(postService, testSiteURL),
		Category:   NewCategoryHandler(categoryService),
		Connection: NewConnectionHandler(testSiteURL, "test"),
	}, RouterConfig{Auth: auth, MaxBodyBytes: 1 << 20, UploadDir: uploadDir})

	return &testServer{router: router, posts: postRepo, uploadDir: uploadDir}
}

// do は署名付きリクエストを送る。
func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.HeaderAPIKey, testAPIKey)
	req.Header.Set(signature.HeaderSignature, signature.Sign(testSecret, []byte(body)))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createPost(t *testing.T, body string) uint64 {
	t.Helper()
	rec := s.do(http.MethodPost, "/clawd/v1/post/create", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp PostMutationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.PostID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestCreatePost(t *testing.T) {
	s := setupTestServer(t, false)

	rec := s.do(http.MethodPost, "/clawd/v1/post/create", `{
		"title": "<b>Hello</b> World",
		"content": "<p>Body</p><script>alert(1)</script>",
		"excerpt": "Short",
		"status": "draft",
		"category": "1",
		"tags": "go, api, ,go",
		"meta_fields": {"source": "clawd", "score": 5}
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[PostMutationResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "Post created successfully", resp.Message)
	require.NotZero(t, resp.PostID)

	post, err := s.posts.FindByID(t.Context(), resp.PostID)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "Hello World", post.Title)
	assert.Equal(t, "<p>Body</p>", post.Content)
	assert.Equal(t, "draft", post.Status)
	assert.Equal(t, domain.DefaultPostType, post.Type)
	assert.Equal(t, "Clawd", post.Author)
	assert.Equal(t, []uint64{1}, post.CategoryIDs)
	assert.ElementsMatch(t, []string{"go", "api"}, post.Tags)

	meta, err := s.posts.FindMeta(t.Context(), resp.PostID)
	require.NoError(t, err)
	if diff := cmp.Diff(map[string]string{"source": "clawd", "score": "5"}, meta); diff != "" {
		t.Errorf("meta mismatch (-want +got):\n%s", diff)
	}
}

func TestCreatePost_Errors(t *testing.T) {
	s := setupTestServer(t, false)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "empty body", body: "", status: http.StatusInternalServerError, code: "create_failed"},
		{name: "no content", body: `{"status":"publish"}`, status: http.StatusInternalServerError, code: "create_failed"},
		{name: "invalid json", body: `{"title":`, status: http.StatusBadRequest, code: "invalid_json"},
		{name: "wrong field type", body: `{"title":5}`, status: http.StatusBadRequest, code: "invalid_json"},
		{name: "bad category", body: `{"title":"x","category":"news"}`, status: http.StatusBadRequest, code: "invalid_parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/clawd/v1/post/create", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			resp := decode[httputil.ErrorResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestAuthentication(t *testing.T) {
	s := setupTestServer(t, false)
	body := `{"title":"x"}`

	tests := []struct {
		name string
		key  string
		sig  string
		code string
	}{
		{name: "no headers", code: "missing_auth"},
		{name: "wrong key", key: "bad", sig: signature.Sign(testSecret, []byte(body)), code: "invalid_key"},
		{name: "wrong signature", key: testAPIKey, sig: signature.Sign("other", []byte(body)), code: "invalid_signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/clawd/v1/post/create", strings.NewReader(body))
			if tt.key != "" {
				req.Header.Set(signature.HeaderAPIKey, tt.key)
			}
			if tt.sig != "" {
				req.Header.Set(signature.HeaderSignature, tt.sig)
			}
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.code, decode[httputil.ErrorResponse](t, rec).Code)
		})
	}

	// 認証に失敗した場合は何も作成されない
	posts, err := s.posts.Find(t.Context(), domain.PostQuery{PerPage: -1, Type: "post", Status: "publish"})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestUpdatePost(t *testing.T) {
	s := setupTestServer(t, false)
	id := s.createPost(t, `{"title":"Original","content":"Body","status":"draft","tags":"a,b"}`)

	rec := s.do(http.MethodPost, "/clawd/v1/post/update/"+strconv.FormatUint(id, 10), `{"title":"Changed","meta_fields":{"k":"v"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[PostMutationResponse](t, rec)
	assert.Equal(t, PostMutationResponse{Success: true, PostID: id, Message: "Post updated successfully"}, resp)

	post, err := s.posts.FindByID(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "Changed", post.Title)
	assert.Equal(t, "Body", post.Content)
	assert.Equal(t, "draft", post.Status)
	assert.ElementsMatch(t, []string{"a", "b"}, post.Tags)
}

func TestUpdatePost_NotFound(t *testing.T) {
	s := setupTestServer(t, false)

	rec := s.do(http.MethodPost, "/clawd/v1/post/update/999", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "post_not_found", decode[httputil.ErrorResponse](t, rec).Code)

	// 数字以外のIDはルートに一致しない
	rec = s.do(http.MethodPost, "/clawd/v1/post/update/abc", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "rest_no_route", decode[httputil.ErrorResponse](t, rec).Code)
}

func TestDeletePost(t *testing.T) {
	s := setupTestServer(t, false)
	id := s.createPost(t, `{"title":"Doomed"}`)
	target := "/clawd/v1/post/delete/" + strconv.FormatUint(id, 10)

	rec := s.do(http.MethodDelete, target, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	if diff := cmp.Diff(map[string]any{"success": true, "message": "Post deleted successfully"}, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}

	rec = s.do(http.MethodDelete, target, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "post_not_found", decode[httputil.ErrorResponse](t, rec).Code)
}

func TestListPosts(t *testing.T) {
	s := setupTestServer(t, false)
	first := s.createPost(t, `{"title":"First","content":"golang tips","category":1}`)
	second := s.createPost(t, `{"title":"Second","content":"other"}`)
	s.createPost(t, `{"title":"Draft","status":"draft"}`)
	third := s.createPost(t, `{"title":"Third","excerpt":"ex"}`)

	rec := s.do(http.MethodGet, "/clawd/v1/posts?per_page=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[PostListResponse](t, rec)

	require.Len(t, resp.Posts, 2)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, third, resp.Posts[0].ID)
	assert.Equal(t, second, resp.Posts[1].ID)

	p := resp.Posts[0]
	assert.Equal(t, "Third", p.Title)
	assert.Equal(t, "ex", p.Excerpt)
	assert.Equal(t, "publish", p.Status)
	assert.Equal(t, "Clawd", p.Author)
	assert.Equal(t, testSiteURL+"/?p="+strconv.FormatUint(third, 10), p.Permalink)
	assert.Equal(t, false, p.FeaturedImage)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`), p.Date)

	tests := []struct {
		query string
		want  []uint64
	}{
		{query: "?per_page=-1", want: []uint64{third, second, first}},
		{query: "?per_page=-1&offset=1", want: []uint64{second, first}},
		{query: "?category=1", want: []uint64{third, second, first}},
		{query: "?search=golang", want: []uint64{first}},
		{query: "?search=100%25", want: []uint64{}},
		{query: "?status=draft&post_type=post", want: []uint64{third - 1}},
		{query: "?post_type=page", want: []uint64{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := s.do(http.MethodGet, "/clawd/v1/posts"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			resp := decode[PostListResponse](t, rec)

			got := make([]uint64, len(resp.Posts))
			for i, p := range resp.Posts {
				got[i] = p.ID
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, len(tt.want), resp.Total)
		})
	}
}

func TestListPosts_InvalidParameter(t *testing.T) {
	s := setupTestServer(t, false)

	for _, q := range []string{"?per_page=ten", "?offset=-1", "?category=news"} {
		rec := s.do(http.MethodGet, "/clawd/v1/posts"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListCategories(t *testing.T) {
	s := setupTestServer(t, false)
	s.createPost(t, `{"title":"A","category":1}`)
	s.createPost(t, `{"title":"B","category":1,"status":"draft"}`)

	rec := s.do(http.MethodGet, "/clawd/v1/categories", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	want := CategoryListResponse{Categories: []CategoryResponse{
		{ID: 1, Name: "Uncategorized", Slug: "uncategorized", Count: 1},
	}}
	if diff := cmp.Diff(want, decode[CategoryListResponse](t, rec)); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestTestConnection(t *testing.T) {
	s := setupTestServer(t, false)

	rec := s.do(http.MethodGet, "/clawd/v1/test-connection", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ConnectionResponse](t, rec)
	assert.True(t, resp.Connected)
	assert.Equal(t, testSiteURL, resp.SiteURL)
	assert.Equal(t, "test", resp.ServerVersion)
	assert.Equal(t, "1.0.0", resp.PluginVersion)
	_, err := time.Parse(DateLayout, resp.Timestamp)
	assert.NoError(t, err)
}

func TestTestConnection_TimestampInUTC(t *testing.T) {
	h := NewConnectionHandler(testSiteURL, "test")
	h.now = func() time.Time {
		return time.Date(2025, 3, 1, 8, 30, 0, 0, time.FixedZone("JST", 9*60*60))
	}

	rec := httptest.NewRecorder()
	h.TestConnection(rec, httptest.NewRequest(http.MethodGet, "/clawd/v1/test-connection", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "2025-02-28 23:30:00", decode[ConnectionResponse](t, rec).Timestamp)
}

func TestPostResponse_DateInUTC(t *testing.T) {
	h := NewPostHandler(nil, testSiteURL)
	post := &domain.Post{
		ID:        7,
		Title:     "Zoned",
		Status:    "publish",
		CreatedAt: time.Date(2025, 1, 1, 5, 0, 0, 0, time.FixedZone("JST", 9*60*60)),
	}

	resp := h.toResponse(post)
	assert.Equal(t, "2024-12-31 20:00:00", resp.Date)
	assert.Equal(t, testSiteURL+"/?p=7", resp.Permalink)
}

func TestCreatePost_DefaultCategory(t *testing.T) {
	s := setupTestServer(t, false)
	id := s.createPost(t, `{"title":"no category"}`)

	post, err := s.posts.FindByID(t.Context(), id)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, []uint64{domain.DefaultCategoryID}, post.CategoryIDs)

	rec := s.do(http.MethodGet, "/clawd/v1/categories", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	categories := decode[CategoryListResponse](t, rec).Categories
	require.Len(t, categories, 1)
	assert.Equal(t, int64(1), categories[0].Count)

	rec = s.do(http.MethodGet, "/clawd/v1/posts?category=1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	posts := decode[PostListResponse](t, rec).Posts
	require.Len(t, posts, 1)
	assert.Equal(t, id, posts[0].ID)
}

func TestTestConnection_RequiresSignature(t *testing.T) {
	s := setupTestServer(t, false)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clawd/v1/test-connection", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnauthenticatedEndpoints(t *testing.T) {
	s := setupTestServer(t, false)
	require.NoError(t, os.MkdirAll(filepath.Join(s.uploadDir, "2025", "01"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.uploadDir, "2025", "01", "a.txt"), []byte("file"), 0o644))

	tests := []struct {
		target string
		status int
	}{
		{target: "/healthz", status: http.StatusOK},
		{target: "/metrics", status: http.StatusOK},
		{target: "/uploads/2025/01/a.txt", status: http.StatusOK},
		{target: "/uploads/2025/01/", status: http.StatusNotFound},
		{target: "/nope", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
		assert.Equal(t, tt.status, rec.Code, tt.target)
	}
}

func TestCreatePost_FeaturedImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(png)
	}))
	defer images.Close()

	s := setupTestServer(t, true)
	id := s.createPost(t, `{"title":"With image","featured_image_url":"`+images.URL+`/cover.png"}`)

	rec := s.do(http.MethodGet, "/clawd/v1/posts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[PostListResponse](t, rec)
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, id, resp.Posts[0].ID)

	url, ok := resp.Posts[0].FeaturedImage.(string)
	require.True(t, ok, "featured_image should be a URL, got %v", resp.Posts[0].FeaturedImage)
	assert.True(t, strings.HasPrefix(url, testSiteURL+"/uploads/"), url)
	assert.True(t, strings.HasSuffix(url, "-cover.png"), url)

	rel := strings.TrimPrefix(url, testSiteURL+"/uploads/")
	data, err := os.ReadFile(filepath.Join(s.uploadDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, png, data)

	// 削除するとファイルも消える
	rec = s.do(http.MethodDelete, "/clawd/v1/post/delete/"+strconv.FormatUint(id, 10), "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = os.Stat(filepath.Join(s.uploadDir, filepath.FromSlash(rel)))
	assert.True(t, os.IsNotExist(err))
}

func TestCreatePost_FeaturedImageDisabled(t *testing.T) {
	s := setupTestServer(t, false)

	id := s.createPost(t, `{"title":"x","featured_image_url":"http://127.0.0.1:1/a.png"}`)

	post, err := s.posts.FindByID(t.Context(), id)
	require.NoError(t, err)
	assert.Nil(t, post.FeaturedMedia)
}
