package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/datapulse-console/internal/model"
)

const pathPlatforms = "/api/platform"

// ListPlatforms は連携可能なプラットフォームの一覧を返す。
func (c *Client) ListPlatforms(ctx context.Context) ([]model.Platform, error) {
	list, err := call[model.PlatformList](ctx, c, request{method: http.MethodGet, path: pathPlatforms})
	if err != nil {
		return nil, err
	}
	if list == nil || list.Platforms == nil {
		return []model.Platform{}, nil
	}
	return list.Platforms, nil
}

// GetPlatform はプラットフォームを1件返す。
func (c *Client) GetPlatform(ctx context.Context, id string) (*model.Platform, error) {
	return call[model.Platform](ctx, c, request{
		method: http.MethodGet,
		path:   pathPlatforms + "/" + url.PathEscape(id),
	})
}
