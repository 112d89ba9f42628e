package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/datapulse-console/internal/backend"
	"github.com/hitoshi/datapulse-console/internal/model"
	"github.com/hitoshi/datapulse-console/internal/toast"
)

// LoginPath はログイン画面のパス。
const LoginPath = "/login"

// DashboardPath は認証後の画面のパス。
const DashboardPath = "/dashboard"

// errMissingBrowser はブラウザミドルウェアを通っていないリクエスト。
var errMissingBrowser = errors.New("browser storage is not available")

// fail はバックエンド呼び出しの失敗を画面に変換する。
//
//   - 401（ErrUnauthorized）: セッションは破棄済みのため、ログイン画面へリダイレクト
//   - 入力エラー（model.APIError）: 400でエラーパネル
//   - 404: エラーパネル
//   - それ以外: 502で汎用のエラーパネル
func (rd *Renderer) fail(w http.ResponseWriter, r *http.Request, title string, err error) {
	if errors.Is(err, backend.ErrUnauthorized) {
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		rd.Render(w, r, http.StatusBadRequest, "error", Page{Title: title, Error: apiErr})
		return
	}

	if backend.IsNotFound(err) {
		rd.Render(w, r, http.StatusNotFound, "error", Page{Title: title, Error: &model.APIError{
			Code:     model.ErrCodeNotFound,
			Message:  "Not found.",
			Category: "backend",
			Action:   "Check the link or go back to the list.",
		}})
		return
	}

	rd.logger.Error("backend request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	var be *backend.Error
	message := ""
	if errors.As(err, &be) {
		message = be.Message
	}
	rd.Render(w, r, http.StatusBadGateway, "error", Page{Title: title, Error: model.NewBackendError(message)})
}

// notify は次に描画される画面にトーストを積む。
func notify(ctx context.Context, level, message string) {
	q := toast.FromContext(ctx)
	if q == nil {
		return
	}
	if err := q.Push(ctx, level, message); err != nil {
		slog.Warn("failed to queue toast", slog.String("error", err.Error()))
	}
}

// formError は入力エラーをmodel.APIErrorとして取り出す。入力エラーでなければnil。
func formError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
