package infra

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer は投稿の入力値からマークアップを除去する。
// bluemonday のポリシーは並行利用できる。
type Sanitizer struct {
	text    *bluemonday.Policy
	content *bluemonday.Policy
}

// NewSanitizer は新しいSanitizerを生成する。
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		text:    bluemonday.StrictPolicy(),
		content: bluemonday.UGCPolicy(),
	}
}

// maxTextPasses はエンティティ化されたタグを剥がす最大回数。
const maxTextPasses = 4

// Text はタグをすべて取り除き、空白を1つにまとめた平文を返す。
// エンティティを戻した結果にタグが現れなくなるまで除去を繰り返し、
// 収束しない場合はエスケープしたまま返す。
func (s *Sanitizer) Text(in string) string {
	out := in
	for range maxTextPasses {
		next := html.UnescapeString(s.text.Sanitize(out))
		if next == out {
			return strings.Join(strings.Fields(out), " ")
		}
		out = next
	}
	if html.UnescapeString(s.text.Sanitize(out)) != out {
		out = s.text.Sanitize(out)
	}
	return strings.Join(strings.Fields(out), " ")
}

// HTML は本文として安全なHTMLだけを残す。
func (s *Sanitizer) HTML(in string) string {
	return strings.TrimSpace(s.content.Sanitize(in))
}
