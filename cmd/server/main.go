// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"clawd-connector/config"
	"clawd-connector/internal/handler"
	"clawd-connector/internal/infra"
	"clawd-connector/internal/repository"
	"clawd-connector/internal/usecase"
)

// version はビルド時に -ldflags で上書きする。
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg, version)
	if err != nil {
		return err
	}
	if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	infra.SetupLogger(cfg)

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	db, err := infra.NewDB(cfg)
	if err != nil {
		return err
	}

	// KMS_KEY_NAME が無い場合は平文で保存する
	cipher, err := infra.NewSecretCipher(ctx, cfg.KMSKeyName)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := cipher.Close(); closeErr != nil {
			slog.Error("failed to close KMS client", "error", closeErr)
		}
	}()
	if cfg.KMSKeyName == "" {
		slog.Warn("KMS_KEY_NAME is not set, shared secret is stored unencrypted")
	}

	// 認証情報は起動時に揃えておく
	credentialService := usecase.NewCredentialService(repository.NewSettingRepository(db), cipher)
	creds, err := credentialService.Ensure(ctx)
	if err != nil {
		return err
	}
	holder := usecase.NewCredentialHolder(creds)

	// DI
	postRepo := repository.NewPostRepository(db)
	storage := infra.NewFileStorage(cfg.UploadDir, cfg.SiteURL)
	fetcher := infra.NewMediaFetcher(cfg.MediaFetchTimeout, cfg.MediaMaxBytes)
	mediaService := usecase.NewMediaService(cfg.MediaFetchEnabled, fetcher, storage, postRepo)
	postService := usecase.NewPostService(postRepo, infra.NewSanitizer(), mediaService, cfg.AuthorName)
	categoryService := usecase.NewCategoryService(repository.NewCategoryRepository(db))

	var router http.Handler = handler.NewRouter(&handler.Handlers{
		Post:       handler.NewPostHandler(postService, cfg.SiteURL),
		Category:   handler.NewCategoryHandler(categoryService),
		Connection: handler.NewConnectionHandler(cfg.SiteURL, version),
	}, handler.RouterConfig{
		Auth:         usecase.NewAuthenticator(holder),
		MaxBodyBytes: cfg.MaxBodyBytes,
		UploadDir:    storage.Dir(),
	})
	if cfg.OtelEnabled {
		router = otelhttp.NewHandler(router, "clawd-connector")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// SIGHUP で clawdctl による再発行を取り込む
	reload := func(ctx context.Context) error {
		return holder.Reload(ctx, credentialService)
	}

	slog.Info("starting server",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL(),
		"media_fetch_enabled", cfg.MediaFetchEnabled,
	)
	if err := infra.Serve(ctx, server, reload); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
