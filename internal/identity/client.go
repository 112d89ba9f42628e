// Package identity は外部IDプロバイダーのメールリンク認証APIクライアントを提供する。
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultEndpoint はIDプロバイダーREST APIのデフォルトのベースURL。
	DefaultEndpoint = "https://identitytoolkit.googleapis.com/v1"

	signInWithEmailLinkPath = "/accounts:signInWithEmailLink"

	// maxResponseSize はレスポンスボディの最大読み取りサイズ（1MB）。
	maxResponseSize = 1 << 20
)

// プロバイダーが返すエラーコード。
const (
	CodeInvalidOOBCode = "INVALID_OOB_CODE"
	CodeExpiredOOBCode = "EXPIRED_OOB_CODE"
	CodeInvalidEmail   = "INVALID_EMAIL"
	CodeUserDisabled   = "USER_DISABLED"
	CodeEmailNotFound  = "EMAIL_NOT_FOUND"
	CodeInvalidIDToken = "INVALID_ID_TOKEN"
)

// ProviderError はIDプロバイダーが非2xxで応答した場合のエラー。
type ProviderError struct {
	StatusCode int
	// Code はプロバイダーの列挙エラーコード（"EXPIRED_OOB_CODE" など）。
	Code string
	// Message はプロバイダーが返したメッセージ全文。
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("identity provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("identity provider returned status %d: %s", e.StatusCode, e.Code)
}

// SignInResult はメールリンク認証成功時の結果。
type SignInResult struct {
	IDToken      string
	LocalID      string
	Email        string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Config はClientの設定。
type Config struct {
	// Endpoint はREST APIのベースURL。空の場合はDefaultEndpoint。
	Endpoint   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client はIDプロバイダーのREST APIクライアント。
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientを生成する。
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

type signInRequest struct {
	OOBCode string `json:"oobCode"`
	Email   string `json:"email"`
}

type signInResponse struct {
	IDToken      string `json:"idToken"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithEmailLink はoobCodeとメールアドレスをIDトークンに交換する。
// 呼び出しは1回のみ行い、リトライはしない。
func (c *Client) SignInWithEmailLink(ctx context.Context, apiKey, oobCode, email string) (*SignInResult, error) {
	// 1. リクエストを組み立てる
	body, err := json.Marshal(signInRequest{OOBCode: oobCode, Email: email})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sign-in request: %w", err)
	}

	endpoint := c.endpoint + signInWithEmailLinkPath + "?" + url.Values{"key": {apiKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// 2. 送信
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign-in request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read sign-in response: %w", err)
	}

	// 3. エラー応答をプロバイダーエラーに変換
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseProviderError(resp.StatusCode, raw)
	}

	// 4. 成功応答をデコード
	var payload signInResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode sign-in response: %w", err)
	}

	result := &SignInResult{
		IDToken:      payload.IDToken,
		LocalID:      payload.LocalID,
		Email:        payload.Email,
		RefreshToken: payload.RefreshToken,
		ExpiresIn:    parseExpiresIn(payload.ExpiresIn),
	}
	if result.LocalID == "" && result.IDToken != "" {
		result.LocalID = subjectFromToken(result.IDToken)
		if result.LocalID != "" {
			c.logger.Debug("subject id recovered from id token claims")
		}
	}
	return result, nil
}

// parseProviderError はエラーボディからProviderErrorを組み立てる。
// プロバイダーはコードの後に " : " で詳細を付与することがあるため、コード部分のみを取り出す。
func parseProviderError(status int, raw []byte) *ProviderError {
	pe := &ProviderError{StatusCode: status}

	var body errorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return pe
	}
	pe.Message = body.Error.Message
	code, _, _ := strings.Cut(body.Error.Message, " : ")
	pe.Code = strings.TrimSpace(code)
	return pe
}

// parseExpiresIn は秒数文字列をDurationに変換する。解釈できない場合は0。
func parseExpiresIn(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s + "s")
	if err != nil {
		return 0
	}
	return d
}

// subjectFromToken はIDトークンのクレームからサブジェクトを取り出す。
// 署名検証は行わない。トークンはプロバイダーから直接受け取ったものに限る。
func subjectFromToken(idToken string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return ""
	}
	if uid, ok := claims["user_id"].(string); ok && uid != "" {
		return uid
	}
	if sub, err := claims.GetSubject(); err == nil {
		return sub
	}
	return ""
}
