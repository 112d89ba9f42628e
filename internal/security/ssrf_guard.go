// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService は外部URLに対する安全性検証のインターフェース。
// IDプロバイダーへの送信と、バックエンドが返す外部連携の認可URLへのリダイレクトで使用される。
type SSRFGuardService interface {
	// NewSafeClient はプライベートIP、ループバック、リンクローカル、メタデータIPへの接続を
	// DNS解決後のIPアドレスで拒否するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はブラウザを誘導してよい外部URLかを静的に検証する。
	ValidateURL(rawURL string) error
}

var errEmptyURL = errors.New("empty URL")

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	// メタデータIP 169.254.169.254 を含む
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceの実装を返す。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを生成する。
// IDプロバイダーのREST APIはhttpsで提供されるため、接続先はhttpsの443のみ許可する。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL は絶対URLでhttpまたはhttpsであること、
// ホストがループバックやプライベートアドレスでないこと、userinfoを含まないことを検証する。
// DNS解決は行わない。ブラウザが解決する先は制御できないため、ここで見るのはURLの字面だけ。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errEmptyURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("disallowed scheme: %q", parsed.Scheme)
	}

	// https://trusted.example@evil.example のような見せかけを拒否する
	if parsed.User != nil {
		return errors.New("userinfo is not allowed in URL")
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	if addr, err := netip.ParseAddr(host); err == nil && isBlockedAddr(addr) {
		return fmt.Errorf("blocked IP address: %s", addr)
	}
	return nil
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range blockedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
