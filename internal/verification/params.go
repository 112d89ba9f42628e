// Package verification はマジックリンクの検証フローを提供する。
//
// 受信したリンクからパラメータを抽出し、IDプロバイダーでoobCodeを交換して
// セッションを確立する。1つのフローインスタンス（Controller）につき交換呼び出しは高々1回で、
// 成功後の再実行は何もしない。遷移はClockで予約し、Closeで取り消す。
package verification

import (
	"net/url"
	"strings"
)

// codeKeys はverification codeを探すキー。先頭ほど優先される。
var codeKeys = []string{"oobCode", "oobcode", "code"}

// Params は検証リンクから抽出したパラメータ。
type Params struct {
	Code  string
	Email string
	// APIKey はリンクで指定されたAPIキー。空の場合は設定値を使う。
	APIKey string
	// Mode は参照のみで、フローの挙動には影響しない。
	Mode string
}

// ExtractParams はリンクのクエリとフラグメントから検証パラメータを抽出する。
//
// コードはクエリのoobCode, oobcode, codeの順、次にフラグメント内の同じ順で探し、
// 最初に見つかった空でない値を使う。メールアドレスはクエリ、フラグメント、
// pendingEmailの順にフォールバックする。値はすべてパーセントデコード済みで返す。
func ExtractParams(loc *url.URL, pendingEmail string) Params {
	if loc == nil {
		return Params{Email: decode(pendingEmail)}
	}
	query := loc.Query()
	fragment := parseFragment(loc)

	p := Params{
		Code:   firstNonEmpty(query, codeKeys...),
		APIKey: query.Get("apiKey"),
		Mode:   query.Get("mode"),
	}
	if p.Code == "" {
		p.Code = firstNonEmpty(fragment, codeKeys...)
	}

	p.Email = query.Get("email")
	if p.Email == "" {
		p.Email = fragment.Get("email")
	}
	if p.Email == "" {
		p.Email = pendingEmail
	}
	p.Email = decode(strings.TrimSpace(p.Email))
	return p
}

// parseFragment はフラグメントを2つ目のクエリ文字列として解釈する。
func parseFragment(loc *url.URL) url.Values {
	raw := loc.EscapedFragment()
	raw = strings.TrimLeft(raw, "#/?")
	if raw == "" {
		return url.Values{}
	}
	// 不正なペアがあっても解釈できた分は使う
	values, _ := url.ParseQuery(raw)
	return values
}

func firstNonEmpty(values url.Values, keys ...string) string {
	for _, k := range keys {
		if v := values.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// decode は残っているパーセントエンコーディングを解く。
// メールクライアントがリンクを二重にエンコードしている場合に備える。
func decode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
