package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clawd-connector/internal/middleware"
	"clawd-connector/pkg/httputil"
)

// Handlers はルーターに登録するハンドラの集合。
type Handlers struct {
	Post       *PostHandler
	Category   *CategoryHandler
	Connection *ConnectionHandler
}

// RouterConfig はルーターの設定。
type RouterConfig struct {
	Auth         middleware.RequestAuthenticator
	MaxBodyBytes int64
	// UploadDir が空の場合は /uploads を公開しない
	UploadDir string
}

// NewRouter はルーターを生成する。
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusNotFound, "rest_no_route", "No route was found matching the URL and request method")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusMethodNotAllowed, "rest_no_route", "No route was found matching the URL and request method")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	if cfg.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", noDirectoryListing(http.FileServer(http.Dir(cfg.UploadDir)))))
	}

	// ルート定義
	r.Route("/clawd/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSignature(cfg.Auth, cfg.MaxBodyBytes))

			r.Post("/post/create", h.Post.CreatePost)
			r.Post("/post/update/{id:[0-9]+}", h.Post.UpdatePost)
			r.Delete("/post/delete/{id:[0-9]+}", h.Post.DeletePost)
			r.Get("/posts", h.Post.ListPosts)
			r.Get("/categories", h.Category.ListCategories)
			r.Get("/test-connection", h.Connection.TestConnection)
		})
	})

	return r
}

func noDirectoryListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
