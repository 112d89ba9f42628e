package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/datapulse-console/internal/model"
)

const (
	pathOrganizations      = "/api/organization/user"
	pathOrganizationByID   = "/api/organization/user/get/"
	pathCreateOrganization = "/api/organization/user/create"
	pathUpdateOrganization = "/api/organization/user/update/"
)

// ListOrganizations はログインユーザーが所属する組織の一覧を返す。
func (c *Client) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	orgs, err := call[[]model.Organization](ctx, c, request{method: http.MethodGet, path: pathOrganizations})
	if err != nil {
		return nil, err
	}
	return deref(orgs), nil
}

// GetOrganization は組織を1件返す。
func (c *Client) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	return call[model.Organization](ctx, c, request{
		method: http.MethodGet,
		path:   pathOrganizationByID + url.PathEscape(id),
	})
}

// CreateOrganization は組織を作成する。
func (c *Client) CreateOrganization(ctx context.Context, req model.CreateOrganizationRequest) (*model.Organization, error) {
	return call[model.Organization](ctx, c, request{
		method: http.MethodPost,
		path:   pathCreateOrganization,
		body:   req,
	})
}

// UpdateOrganization は組織を更新する。
func (c *Client) UpdateOrganization(ctx context.Context, id string, req model.UpdateOrganizationRequest) (*model.Organization, error) {
	return call[model.Organization](ctx, c, request{
		method: http.MethodPut,
		path:   pathUpdateOrganization + url.PathEscape(id),
		body:   req,
	})
}

// deref は一覧ペイロードのnilを空スライスにする。
func deref[T any](items *[]T) []T {
	if items == nil {
		return []T{}
	}
	return *items
}
