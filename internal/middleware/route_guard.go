package middleware

import (
	"io"
	"net/http"

	"github.com/hitoshi/datapulse-console/internal/session"
)

// loadingPage はSession Storeが未確定の間に返す待機画面。
const loadingPage = `<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8"><title>Loading</title></head>
<body><main class="loading"><p>Loading&hellip;</p></main></body></html>
`

// NewRouteGuard は保護された画面へのアクセスを認証状態で振り分けるミドルウェアを返す。
//
//   - Storeが未確定: 判断を保留し、待機画面を503で返す（1秒後に再読み込み）
//   - 未認証: loginPathへ303でリダイレクト
//   - 認証済み: 次のハンドラーへ
func NewRouteGuard(loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := session.FromContext(r.Context())
			if store == nil || !store.Settled() {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Refresh", "1")
				w.Header().Set("Cache-Control", "no-store")
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusServiceUnavailable)
				io.WriteString(w, loadingPage)
				return
			}

			if !store.IsAuthenticated() {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
