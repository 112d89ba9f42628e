// Package backend はDataPulseバックエンドREST APIのクライアントを提供する。
//
// すべてのリクエストにセッションのトークンをBearerで付与する。
// どのエンドポイントでも401を受け取った場合はセッションを破棄してErrUnauthorizedを返す。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/datapulse-console/internal/model"
	"github.com/hitoshi/datapulse-console/internal/session"
)

// maxResponseSize はレスポンスボディの最大読み取りサイズ（5MB）。
const maxResponseSize = 5 << 20

// ErrUnauthorized はバックエンドが401を返した場合のエラー。
// 受け取った時点でセッションは破棄されている。
var ErrUnauthorized = errors.New("backend rejected the session credential")

// Error はバックエンドが失敗を返した場合のエラー。
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound は404エラーかを判定する。
func IsNotFound(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.StatusCode == http.StatusNotFound
}

// MetricsRecorder はバックエンド呼び出しのメトリクスを記録する。
type MetricsRecorder interface {
	RecordBackendStatus(statusCode int)
	RecordBackendLatency(duration time.Duration)
	RecordUnauthorized()
}

// Config はClientの設定。
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    MetricsRecorder
}

// Client はバックエンドAPIクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    MetricsRecorder
}

// NewClient はClientを生成する。
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// request は1回の呼び出しの内容。
type request struct {
	method string
	path   string
	query  url.Values
	// body はJSONエンコードして送る。rawBodyが設定されている場合はそちらを優先する。
	body    any
	rawBody string
}

// call はリクエストを送信し、共通レスポンス形式のペイロードを返す。
func call[T any](ctx context.Context, c *Client, r request) (*T, error) {
	var env model.Envelope[T]
	status, err := c.do(ctx, r, &env)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &Error{StatusCode: status, Message: envelopeMessage(env.Error, env.Message)}
	}
	return env.Payload, nil
}

// do はHTTPリクエストを実行し、レスポンスをoutにデコードする。
func (c *Client) do(ctx context.Context, r request, out any) (int, error) {
	// 1. リクエスト構築
	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var body io.Reader
	switch {
	case r.rawBody != "":
		body = strings.NewReader(r.rawBody)
	case r.body != nil:
		encoded, err := json.Marshal(r.body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// 2. セッションのトークンを付与
	store := session.FromContext(ctx)
	if store != nil {
		if token := store.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	// 3. 送信
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordBackendLatency(time.Since(start))
	}
	if err != nil {
		c.logger.Error("backend request failed",
			slog.String("method", r.method),
			slog.String("path", r.path),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordBackendStatus(resp.StatusCode)
	}

	// 4. 401はどの画面からの呼び出しでもセッションを破棄する
	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized(ctx, store, r)
		return resp.StatusCode, ErrUnauthorized
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	// 5. エラーステータス
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env model.Envelope[json.RawMessage]
		_ = json.Unmarshal(raw, &env)
		c.logger.Warn("backend returned error status",
			slog.String("method", r.method),
			slog.String("path", r.path),
			slog.Int("http_status", resp.StatusCode),
		)
		return resp.StatusCode, &Error{StatusCode: resp.StatusCode, Message: envelopeMessage(env.Error, env.Message)}
	}

	// 6. デコード
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) handleUnauthorized(ctx context.Context, store *session.Store, r request) {
	if c.metrics != nil {
		c.metrics.RecordUnauthorized()
	}
	c.logger.Warn("backend rejected credential, clearing session",
		slog.String("method", r.method),
		slog.String("path", r.path),
	)
	if store == nil {
		return
	}
	if err := store.Clear(ctx); err != nil {
		c.logger.Error("failed to clear session after 401", slog.String("error", err.Error()))
	}
}

func envelopeMessage(errMsg, message string) string {
	if errMsg != "" {
		return errMsg
	}
	return message
}
