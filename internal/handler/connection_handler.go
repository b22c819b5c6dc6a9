package handler

import (
	"net/http"
	"time"

	"clawd-connector/internal/middleware"
	"clawd-connector/pkg/httputil"
)

// PluginVersion はクライアントに通知する連携APIのバージョン。
const PluginVersion = "1.0.0"

// ConnectionHandler は疎通確認APIのハンドラを提供する。
type ConnectionHandler struct {
	siteURL       string
	serverVersion string
	now           func() time.Time
}

// NewConnectionHandler は新しいConnectionHandlerを生成する。
func NewConnectionHandler(siteURL, serverVersion string) *ConnectionHandler {
	return &ConnectionHandler{
		siteURL:       siteURL,
		serverVersion: serverVersion,
		now:           time.Now,
	}
}

// ConnectionResponse は疎通確認のレスポンス形式。
type ConnectionResponse struct {
	Connected     bool   `json:"connected"`
	Timestamp     string `json:"timestamp"`
	SiteURL       string `json:"site_url"`
	ServerVersion string `json:"server_version"`
	PluginVersion string `json:"plugin_version"`
}

// TestConnection は認証済みクライアントに接続情報を返す。
func (h *ConnectionHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	middleware.WriteAuditLog(r.Context(), "TEST_CONNECTION", 0, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, ConnectionResponse{
		Connected:     true,
		Timestamp:     h.now().UTC().Format(DateLayout),
		SiteURL:       h.siteURL,
		ServerVersion: h.serverVersion,
		PluginVersion: PluginVersion,
	})
}
