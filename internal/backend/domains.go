package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/hitoshi/datapulse-console/internal/model"
)

const (
	pathDomains        = "/api/domains"
	pathDomainByID     = "/api/domain/"
	pathCreateDomain   = "/api/domain/create"
	pathUpdateDomain   = "/api/domain/update"
	pathDeleteDomain   = "/api/domain/delete"
	pathAPIKeys        = "/api/api_keys"
	pathAPIKeyByDomain = "/api/api_key_by_id/"
)

// ListDomains はDomainの一覧を返す。
func (c *Client) ListDomains(ctx context.Context) ([]model.Domain, error) {
	domains, err := call[[]model.Domain](ctx, c, request{method: http.MethodGet, path: pathDomains})
	if err != nil {
		return nil, err
	}
	return deref(domains), nil
}

// GetDomain はDomainを1件返す。
func (c *Client) GetDomain(ctx context.Context, id string) (*model.Domain, error) {
	return call[model.Domain](ctx, c, request{
		method: http.MethodGet,
		path:   pathDomainByID + url.PathEscape(id),
	})
}

// CreateDomain はDomainを作成する。
func (c *Client) CreateDomain(ctx context.Context, req model.CreateDomainRequest) (*model.Domain, error) {
	return call[model.Domain](ctx, c, request{
		method: http.MethodPost,
		path:   pathCreateDomain,
		body:   req,
	})
}

// UpdateDomain はDomainを更新する。IDはリクエストボディで渡す。
func (c *Client) UpdateDomain(ctx context.Context, req model.UpdateDomainRequest) (*model.Domain, error) {
	return call[model.Domain](ctx, c, request{
		method: http.MethodPut,
		path:   pathUpdateDomain,
		body:   req,
	})
}

// DeleteDomain はDomainを削除する。
func (c *Client) DeleteDomain(ctx context.Context, id string) error {
	_, err := call[json.RawMessage](ctx, c, request{
		method: http.MethodDelete,
		path:   pathDeleteDomain,
		body:   map[string]string{"id": id},
	})
	return err
}

// ListAPIKeys はAPIキーの一覧を返す。
func (c *Client) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	keys, err := call[[]model.APIKey](ctx, c, request{method: http.MethodGet, path: pathAPIKeys})
	if err != nil {
		return nil, err
	}
	return deref(keys), nil
}

// GetAPIKeyByDomain はDomainに発行されたAPIキーを返す。
func (c *Client) GetAPIKeyByDomain(ctx context.Context, domainID string) (*model.APIKey, error) {
	return call[model.APIKey](ctx, c, request{
		method: http.MethodGet,
		path:   pathAPIKeyByDomain + url.PathEscape(domainID),
	})
}
