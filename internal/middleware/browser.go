// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/datapulse-console/internal/repository"
	"github.com/hitoshi/datapulse-console/internal/security"
	"github.com/hitoshi/datapulse-console/internal/session"
	"github.com/hitoshi/datapulse-console/internal/toast"
)

// BrowserCookieName はブラウザを識別するCookieの名前。
const BrowserCookieName = "console_bid"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	browserIDContextKey   = contextKey("browser_id")
	requestInfoContextKey = contextKey("request_info")
)

// CookieConfig はブラウザ識別Cookieの設定。
type CookieConfig struct {
	Secure bool
	Domain string
	MaxAge int // 秒
}

// NewBrowserMiddleware はブラウザ識別Cookieを読み取り（なければ発行し）、
// ブラウザスコープのストレージから復元したSession Store、PendingSignIn、トーストキューを
// リクエストコンテキストに注入するミドルウェアを返す。
//
// ストレージの読み込みに失敗した場合もリクエストは止めない。
// Storeは未確定のまま渡され、Route Guardが待機画面を返す。
func NewBrowserMiddleware(repo repository.LocalStorageRepository, sanitizer security.MessageSanitizerService, cfg CookieConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			browserID := browserIDFromCookie(r)
			if browserID == "" {
				browserID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     BrowserCookieName,
					Value:    browserID,
					Path:     "/",
					Domain:   cfg.Domain,
					MaxAge:   cfg.MaxAge,
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := ContextWithBrowserID(r.Context(), browserID)
			storage := repository.NewBrowserStorage(repo, browserID)

			store := session.NewStore(storage, logger)
			if err := store.Rehydrate(ctx); err != nil {
				logger.Warn("failed to rehydrate session",
					slog.String("browser_id", browserID),
					slog.String("error", err.Error()),
				)
			}

			if info := requestInfoFromContext(ctx); info != nil {
				info.browserID = browserID
				info.store = store
			}

			ctx = session.WithStore(ctx, store)
			ctx = session.WithPending(ctx, session.NewPending(storage))
			ctx = toast.WithQueue(ctx, toast.NewQueue(storage, sanitizer, logger))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// browserIDFromCookie はCookieのブラウザIDを返す。UUIDとして不正な値は無視する。
func browserIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(BrowserCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return ""
	}
	return id.String()
}

// BrowserIDFromContext はリクエストコンテキストからブラウザIDを取得する。
// ブラウザミドルウェアを通過していない場合は空文字を返す。
func BrowserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(browserIDContextKey).(string)
	return id
}

// ContextWithBrowserID はコンテキストにブラウザIDを注入する。
func ContextWithBrowserID(ctx context.Context, browserID string) context.Context {
	return context.WithValue(ctx, browserIDContextKey, browserID)
}

func withRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestInfoContextKey, info)
}

func requestInfoFromContext(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoContextKey).(*requestInfo)
	return info
}
