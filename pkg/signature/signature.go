// Package signature はリクエスト本文のHMAC-SHA256署名を提供する。
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const (
	// HeaderAPIKey はAPIキーを運ぶヘッダー名。
	HeaderAPIKey = "X-Clawd-API-Key"
	// HeaderSignature は本文署名（16進）を運ぶヘッダー名。
	HeaderSignature = "X-Clawd-Signature"
)

// Sign は共有シークレットをHMACキーとして本文の署名を計算し、小文字16進で返す。
// シークレットは保存されている文字列表現のままキーとして使う。
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal は2つの16進署名を定数時間で比較する。
func Equal(expected, provided string) bool {
	return hmac.Equal([]byte(expected), []byte(provided))
}

// Verify は本文に対する署名が一致するかを返す。
func Verify(secret string, body []byte, provided string) bool {
	return Equal(Sign(secret, body), provided)
}
