// Package domain はドメインモデルとビジネスルールを定義する。
package domain

const (
	// SettingAPIKey はAPIキーを保存する設定名。
	SettingAPIKey = "clawd_api_key"
	// SettingSecretKey は共有シークレットを保存する設定名。
	SettingSecretKey = "clawd_secret_key"

	// APIKeyBytes はAPIキー生成に使う乱数のバイト数。
	APIKeyBytes = 16
	// SecretBytes は共有シークレット生成に使う乱数のバイト数。
	SecretBytes = 32
)

// Credentials はAPIキーと共有シークレットの組を表す。
// 両方ともプロセス全体で読み取り専用として扱う。
type Credentials struct {
	APIKey string
	Secret string
}

// Complete は両方の値が揃っているかを返す。
func (c *Credentials) Complete() bool {
	return c != nil && c.APIKey != "" && c.Secret != ""
}
