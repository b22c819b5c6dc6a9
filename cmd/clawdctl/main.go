// Package main はCLIツールのエントリポイント。
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	apiURL  string
	apiKey  string
	secret  string
	output  string
	timeout time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clawdctl",
		Short: "Clawd connector CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// サーバーと同じ .env を読む（既存の環境変数は上書きしない）
			_ = godotenv.Load()
			if apiURL == "" {
				apiURL = os.Getenv("CLAWDCTL_API_URL")
			}
			if apiKey == "" {
				apiKey = os.Getenv("CLAWDCTL_API_KEY")
			}
			if secret == "" {
				secret = os.Getenv("CLAWDCTL_SECRET")
			}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL, e.g. https://example.com/clawd/v1 (or set CLAWDCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (or set CLAWDCTL_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&secret, "secret", "", "Shared secret (or set CLAWDCTL_SECRET)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(testConnectionCmd())
	rootCmd.AddCommand(postsCmd())
	rootCmd.AddCommand(postCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(credentialsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "clawdctl version %s\n", version)
		},
	}
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("Error: %s (%s)", errResp.Message, errResp.Code)
	}
	return fmt.Errorf("Error: server returned status %d", statusCode)
}
