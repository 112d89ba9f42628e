package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/datapulse-console/internal/model"
)

const (
	pathIntegrationByID       = "/api/integration/"
	pathIntegrationsByDomain  = "/api/integrations/"
	pathDeleteIntegration     = "/api/integration"
	pathIntegrateWithAccounts = "/api/integrate/accounts"
)

// PlatformKind は認可URLを発行できるプラットフォームの種類。
type PlatformKind string

const (
	PlatformGoogle   PlatformKind = "google"
	PlatformFacebook PlatformKind = "facebook"
	PlatformTikTok   PlatformKind = "tiktok"
	PlatformSnapchat PlatformKind = "snapchat"
)

// supportedPlatforms は名前の判定順。
var supportedPlatforms = []PlatformKind{PlatformGoogle, PlatformFacebook, PlatformTikTok, PlatformSnapchat}

// PlatformKindFromName はプラットフォーム名から種類を判定する。
// 名前に種類を含むかで判定し、どれにも当たらない場合はfalse。
func PlatformKindFromName(name string) (PlatformKind, bool) {
	lower := strings.ToLower(name)
	for _, kind := range supportedPlatforms {
		if strings.Contains(lower, string(kind)) {
			return kind, true
		}
	}
	return "", false
}

// PlatformAuthURL はプラットフォームのOAuth同意画面URLを返す。
func (c *Client) PlatformAuthURL(ctx context.Context, kind PlatformKind, domainID, platformID string) (string, error) {
	switch kind {
	case PlatformGoogle, PlatformFacebook, PlatformTikTok, PlatformSnapchat:
	default:
		return "", fmt.Errorf("unsupported platform kind: %q", kind)
	}

	payload, err := call[model.AuthURL](ctx, c, request{
		method: http.MethodGet,
		path:   "/api/" + string(kind) + "/auth",
		query:  url.Values{"domainId": {domainID}, "platformId": {platformID}},
	})
	if err != nil {
		return "", err
	}
	if payload == nil || payload.URL == "" {
		return "", &Error{StatusCode: http.StatusOK, Message: "authorization URL missing from response"}
	}
	return payload.URL, nil
}

// GetIntegration は連携を1件返す。
func (c *Client) GetIntegration(ctx context.Context, id string) (*model.Integration, error) {
	return call[model.Integration](ctx, c, request{
		method: http.MethodGet,
		path:   pathIntegrationByID + url.PathEscape(id),
	})
}

// ListIntegrationsByDomain はDomainの連携一覧を返す。
func (c *Client) ListIntegrationsByDomain(ctx context.Context, domainID string) ([]model.Integration, error) {
	list, err := call[model.IntegrationList](ctx, c, request{
		method: http.MethodGet,
		path:   pathIntegrationsByDomain + url.PathEscape(domainID),
	})
	if err != nil {
		return nil, err
	}
	if list == nil || list.Integrations == nil {
		return []model.Integration{}, nil
	}
	return list.Integrations, nil
}

// DeleteIntegration は連携を削除する。バックエンドはボディにIDそのものを受け取る。
func (c *Client) DeleteIntegration(ctx context.Context, id string) error {
	_, err := call[json.RawMessage](ctx, c, request{
		method:  http.MethodDelete,
		path:    pathDeleteIntegration,
		rawBody: id,
	})
	return err
}

// CreateIntegrationWithAccounts は同意後に選択した広告アカウントを連携に登録する。
func (c *Client) CreateIntegrationWithAccounts(ctx context.Context, req model.CreateIntegrationWithAccountsRequest) (*model.Integration, error) {
	return call[model.Integration](ctx, c, request{
		method: http.MethodPost,
		path:   pathIntegrateWithAccounts,
		body:   req,
	})
}
