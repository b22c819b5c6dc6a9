// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// 監査ログの result に使う値。認証失敗時はエラーコードを入れる。
const (
	ResultSuccess = "SUCCESS"
	ResultFailure = "FAILED"
)

// WriteAuditLog はAPI操作ごとに1行の監査ログを出力する。postID が0の場合は出力しない。
func WriteAuditLog(ctx context.Context, operation string, postID uint64, result string) {
	attrs := []any{
		"operation", operation,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	}
	if postID != 0 {
		attrs = append(attrs, "post_id", postID)
	}
	slog.InfoContext(ctx, "api operation completed", attrs...)
}
