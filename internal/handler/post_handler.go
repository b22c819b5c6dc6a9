// Package handler はHTTPハンドラを提供する。
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"clawd-connector/internal/domain"
	"clawd-connector/internal/middleware"
	"clawd-connector/internal/usecase"
	"clawd-connector/pkg/httputil"
)

// DateLayout は投稿日時のレスポンス形式。日時はUTCで表す。
const DateLayout = "2006-01-02 15:04:05"

var errInvalidCategory = errors.New("category must be a numeric id")

// PostHandler は投稿APIのハンドラを提供する。
type PostHandler struct {
	service *usecase.PostService
	siteURL string
}

// NewPostHandler は新しいPostHandlerを生成する。siteURL はパーマリンクの生成に使う。
func NewPostHandler(service *usecase.PostService, siteURL string) *PostHandler {
	return &PostHandler{service: service, siteURL: siteURL}
}

// PostRequest は作成・更新リクエストの本文。
// category は数値または数値文字列、tags はカンマ区切り文字列または文字列配列を受け付ける。
type PostRequest struct {
	Title            *string                    `json:"title"`
	Content          *string                    `json:"content"`
	Excerpt          *string                    `json:"excerpt"`
	Status           *string                    `json:"status"`
	Type             *string                    `json:"type"`
	Category         json.RawMessage            `json:"category"`
	Tags             json.RawMessage            `json:"tags"`
	MetaFields       map[string]json.RawMessage `json:"meta_fields"`
	FeaturedImageURL string                     `json:"featured_image_url"`
}

// PostMutationResponse は作成・更新・削除のレスポンス形式。
type PostMutationResponse struct {
	Success bool   `json:"success"`
	PostID  uint64 `json:"post_id,omitempty"`
	Message string `json:"message"`
}

// PostResponse は一覧の1件分の形式。featured_image は画像が無ければ false。
type PostResponse struct {
	ID            uint64 `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Excerpt       string `json:"excerpt"`
	Status        string `json:"status"`
	Date          string `json:"date"`
	Author        string `json:"author"`
	Permalink     string `json:"permalink"`
	FeaturedImage any    `json:"featured_image"`
}

// PostListResponse は一覧のレスポンス形式。
type PostListResponse struct {
	Posts []PostResponse `json:"posts"`
	Total int            `json:"total"`
}

// decodePostRequest は本文を読み取る。空の本文は空のオブジェクトとして扱う。
func decodePostRequest(r *http.Request) (*domain.PostInput, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	var req PostRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
	}
	return req.toInput()
}

func (req *PostRequest) toInput() (*domain.PostInput, error) {
	in := &domain.PostInput{
		Title:            req.Title,
		Content:          req.Content,
		Excerpt:          req.Excerpt,
		Status:           req.Status,
		Type:             req.Type,
		FeaturedImageURL: strings.TrimSpace(req.FeaturedImageURL),
	}

	categoryID, err := parseCategory(req.Category)
	if err != nil {
		return nil, err
	}
	in.CategoryID = categoryID

	if tags, ok, err := parseTags(req.Tags); err != nil {
		return nil, err
	} else if ok {
		in.Tags = tags
		in.TagsSet = true
	}

	if len(req.MetaFields) > 0 {
		in.MetaFields = make(map[string]string, len(req.MetaFields))
		for k, raw := range req.MetaFields {
			in.MetaFields[k] = metaValue(raw)
		}
	}
	return in, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func parseCategory(raw json.RawMessage) (*uint64, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(bytes.TrimSpace(raw))
	}
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, errInvalidCategory
	}
	return &id, nil
}

// parseTags はタグを分割し、前後の空白を除いて空要素を捨てる。
func parseTags(raw json.RawMessage) ([]string, bool, error) {
	if isNull(raw) {
		return nil, false, nil
	}
	var list []string
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		list = strings.Split(s, ",")
	} else if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false, fmt.Errorf("tags must be a comma-separated string or an array of strings")
	}

	tags := make([]string, 0, len(list))
	for _, tag := range list {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags, true, nil
}

// metaValue はJSON文字列ならその中身を、それ以外はJSONのまま保存値にする。
func metaValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func parsePostID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func writeBadRequest(w http.ResponseWriter, err error) {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		httputil.Error(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}
	httputil.Error(w, http.StatusBadRequest, "invalid_parameter", err.Error())
}

// CreatePost は投稿を作成する。
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	in, err := decodePostRequest(r)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "CREATE_POST", 0, middleware.ResultFailure)
		writeBadRequest(w, err)
		return
	}

	post, err := h.service.Create(r.Context(), in)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "CREATE_POST", 0, middleware.ResultFailure)
		message := "Failed to create post"
		if errors.Is(err, domain.ErrEmptyPost) {
			message += ": " + err.Error()
		}
		httputil.Error(w, http.StatusInternalServerError, "create_failed", message)
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_POST", post.ID, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, PostMutationResponse{
		Success: true,
		PostID:  post.ID,
		Message: "Post created successfully",
	})
}

// UpdatePost は投稿を更新する。
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePostID(r)
	if !ok {
		httputil.Error(w, http.StatusNotFound, "post_not_found", "Post not found")
		return
	}

	in, err := decodePostRequest(r)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "UPDATE_POST", id, middleware.ResultFailure)
		writeBadRequest(w, err)
		return
	}

	if _, err := h.service.Update(r.Context(), id, in); err != nil {
		middleware.WriteAuditLog(r.Context(), "UPDATE_POST", id, middleware.ResultFailure)
		if errors.Is(err, domain.ErrPostNotFound) {
			httputil.Error(w, http.StatusNotFound, "post_not_found", "Post not found")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "update_failed", "Failed to update post")
		return
	}

	middleware.WriteAuditLog(r.Context(), "UPDATE_POST", id, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, PostMutationResponse{
		Success: true,
		PostID:  id,
		Message: "Post updated successfully",
	})
}

// DeletePost は投稿を完全に削除する。
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePostID(r)
	if !ok {
		httputil.Error(w, http.StatusNotFound, "post_not_found", "Post not found")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		middleware.WriteAuditLog(r.Context(), "DELETE_POST", id, middleware.ResultFailure)
		if errors.Is(err, domain.ErrPostNotFound) {
			httputil.Error(w, http.StatusNotFound, "post_not_found", "Post not found")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "delete_failed", "Failed to delete post")
		return
	}

	middleware.WriteAuditLog(r.Context(), "DELETE_POST", id, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, PostMutationResponse{
		Success: true,
		Message: "Post deleted successfully",
	})
}

// parsePostQuery はクエリ文字列から一覧条件を作る。
func parsePostQuery(r *http.Request) (domain.PostQuery, error) {
	values := r.URL.Query()
	q := domain.PostQuery{
		Type:   values.Get("post_type"),
		Status: values.Get("status"),
		Search: strings.TrimSpace(values.Get("search")),
	}

	if v := values.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("per_page must be an integer")
		}
		q.PerPage = n
	}
	if v := values.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, fmt.Errorf("offset must be a non-negative integer")
		}
		q.Offset = n
	}
	if v := values.Get("category"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return q, errInvalidCategory
		}
		q.CategoryID = &id
	}
	return q, nil
}

// ListPosts は投稿一覧を返す。
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q, err := parsePostQuery(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	posts, err := h.service.List(r.Context(), q)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "LIST_POSTS", 0, middleware.ResultFailure)
		httputil.Error(w, http.StatusInternalServerError, "internal_error", "Failed to list posts")
		return
	}

	resp := PostListResponse{
		Posts: make([]PostResponse, len(posts)),
		Total: len(posts),
	}
	for i, p := range posts {
		resp.Posts[i] = h.toResponse(p)
	}

	middleware.WriteAuditLog(r.Context(), "LIST_POSTS", 0, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, resp)
}

func (h *PostHandler) toResponse(p *domain.Post) PostResponse {
	var featured any = false
	if p.FeaturedMedia != nil && p.FeaturedMedia.URL != "" {
		featured = p.FeaturedMedia.URL
	}
	return PostResponse{
		ID:            p.ID,
		Title:         p.Title,
		Content:       p.Content,
		Excerpt:       p.Excerpt,
		Status:        p.Status,
		Date:          p.CreatedAt.UTC().Format(DateLayout),
		Author:        p.Author,
		Permalink:     h.siteURL + "/?p=" + strconv.FormatUint(p.ID, 10),
		FeaturedImage: featured,
	}
}
