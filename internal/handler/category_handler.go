package handler

import (
	"net/http"

	"clawd-connector/internal/middleware"
	"clawd-connector/internal/usecase"
	"clawd-connector/pkg/httputil"
)

// CategoryHandler はカテゴリAPIのハンドラを提供する。
type CategoryHandler struct {
	service *usecase.CategoryService
}

// NewCategoryHandler は新しいCategoryHandlerを生成する。
func NewCategoryHandler(service *usecase.CategoryService) *CategoryHandler {
	return &CategoryHandler{service: service}
}

// CategoryResponse はカテゴリ1件分の形式。
type CategoryResponse struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int64  `json:"count"`
}

// CategoryListResponse はカテゴリ一覧のレスポンス形式。
type CategoryListResponse struct {
	Categories []CategoryResponse `json:"categories"`
}

// ListCategories は投稿の無いものも含めてカテゴリ一覧を返す。
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.List(r.Context())
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "LIST_CATEGORIES", 0, middleware.ResultFailure)
		httputil.Error(w, http.StatusInternalServerError, "internal_error", "Failed to list categories")
		return
	}

	resp := CategoryListResponse{Categories: make([]CategoryResponse, len(categories))}
	for i, c := range categories {
		resp.Categories[i] = CategoryResponse{
			ID:    c.ID,
			Name:  c.Name,
			Slug:  c.Slug,
			Count: c.Count,
		}
	}

	middleware.WriteAuditLog(r.Context(), "LIST_CATEGORIES", 0, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, resp)
}
