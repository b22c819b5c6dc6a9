package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"clawd-connector/config"
	"clawd-connector/internal/domain"
	"clawd-connector/internal/infra"
	"clawd-connector/internal/repository"
	"clawd-connector/internal/usecase"
	"clawd-connector/pkg/signature"
)

// openDB は環境変数の設定でデータベースに接続する。
func openDB() (*gorm.DB, *config.Config, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	db, err := infra.NewDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, cfg, nil
}

// withCredentialService はサーバーと同じ保存先・暗号化設定でCredentialServiceを使う。
func withCredentialService(ctx context.Context, fn func(*usecase.CredentialService, *config.Config) error) error {
	db, cfg, err := openDB()
	if err != nil {
		return err
	}

	cipher, err := infra.NewSecretCipher(ctx, cfg.KMSKeyName)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := cipher.Close(); closeErr != nil {
			slog.Error("failed to close KMS client", "error", closeErr)
		}
	}()

	return fn(usecase.NewCredentialService(repository.NewSettingRepository(db), cipher), cfg)
}

// credentialsCmd はAPIキーと共有シークレットの管理コマンド。
func credentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Show or rotate the API key and shared secret",
	}
	cmd.AddCommand(credentialsShowCmd())
	cmd.AddCommand(credentialsRotateCmd())
	return cmd
}

func credentialsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show credentials, generating any that are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentialService(cmd.Context(), func(svc *usecase.CredentialService, cfg *config.Config) error {
				creds, err := svc.Ensure(cmd.Context())
				if err != nil {
					return fmt.Errorf("loading credentials: %w", err)
				}
				return printCredentials(cmd.OutOrStdout(), creds, cfg.APIBaseURL())
			})
		},
	}
}

func credentialsRotateCmd() *cobra.Command {
	var keyOnly, secretOnly bool
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Generate a new API key and/or shared secret",
		Long: "Generate a new API key and/or shared secret. Clients using the old values are rejected " +
			"once the server reloads (send SIGHUP or restart it).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentialService(cmd.Context(), func(svc *usecase.CredentialService, cfg *config.Config) error {
				creds, err := svc.Rotate(cmd.Context(), usecase.RotateOptions{APIKey: keyOnly, Secret: secretOnly})
				if err != nil {
					return fmt.Errorf("rotating credentials: %w", err)
				}
				if err := printCredentials(cmd.OutOrStdout(), creds, cfg.APIBaseURL()); err != nil {
					return err
				}
				if output != "json" {
					fmt.Fprintln(cmd.OutOrStdout(), "\nSend SIGHUP to the running server to apply the new credentials.")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&keyOnly, "key-only", false, "Rotate only the API key")
	cmd.Flags().BoolVar(&secretOnly, "secret-only", false, "Rotate only the shared secret")
	cmd.MarkFlagsMutuallyExclusive("key-only", "secret-only")
	return cmd
}

func printCredentials(w io.Writer, creds *domain.Credentials, baseURL string) error {
	if output == "json" {
		return json.NewEncoder(w).Encode(map[string]string{
			"api_base_url": baseURL,
			"api_key":      creds.APIKey,
			"secret_key":   creds.Secret,
		})
	}

	fmt.Fprintf(w, "API Base URL: %s\n", baseURL)
	fmt.Fprintf(w, "API Key:      %s\n", creds.APIKey)
	fmt.Fprintf(w, "Secret Key:   %s\n", creds.Secret)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Send these headers with every request:")
	fmt.Fprintf(w, "  %s: <API Key>\n", signature.HeaderAPIKey)
	fmt.Fprintf(w, "  %s: hex(HMAC-SHA256(<raw request body>, <Secret Key>))\n", signature.HeaderSignature)
	return nil
}

// categoryCreateCmd はカテゴリをデータベースに直接作成する。連携APIには作成口が無い。
func categoryCreateCmd() *cobra.Command {
	var name, slug string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a category (requires database access)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDB()
			if err != nil {
				return err
			}
			svc := usecase.NewCategoryService(repository.NewCategoryRepository(db))
			category, err := svc.Create(cmd.Context(), name, slug)
			if err != nil {
				return err
			}

			if output == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(category)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created category %q (id: %d, slug: %s)\n", category.Name, category.ID, category.Slug)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Category name (required)")
	cmd.Flags().StringVar(&slug, "slug", "", "Category slug (defaults to one derived from the name)")
	cmd.MarkFlagRequired("name")
	return cmd
}
