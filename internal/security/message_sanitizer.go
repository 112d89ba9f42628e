package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MessageSanitizerService は利用者に表示する短いメッセージから全てのHTMLを取り除く。
// トースト通知や、バックエンド・IDプロバイダーから受け取ったエラーメッセージに使用する。
type MessageSanitizerService interface {
	// Sanitize はタグを除去したプレーンテキストを返す。
	// エンティティはデコードして返すため、テンプレート側で1回だけエスケープされる。
	Sanitize(raw string) string
}

// messageSanitizer はMessageSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフ。
type messageSanitizer struct {
	policy *bluemonday.Policy
}

// NewMessageSanitizer はStrictPolicyを使うMessageSanitizerServiceを生成する。
func NewMessageSanitizer() *messageSanitizer {
	return &messageSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、前後の空白を取り除いたテキストを返す。
func (s *messageSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
