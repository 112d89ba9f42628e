package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/hitoshi/datapulse-console/internal/model"
)

const (
	pathZidHistorical     = "/api/event/zid/historical"
	pathSallaHistorical   = "/api/event/salla"
	pathShopifyHistorical = "/api/historical/shopify/orders"
)

// ImportZidHistorical はZIDの過去注文の取り込みを開始する。
func (c *Client) ImportZidHistorical(ctx context.Context, domainID string) error {
	_, err := call[json.RawMessage](ctx, c, request{
		method: http.MethodPost,
		path:   pathZidHistorical,
		body:   map[string]string{"id": domainID},
	})
	return err
}

// ImportSallaHistorical はSallaの過去注文の取り込みを開始する。
func (c *Client) ImportSallaHistorical(ctx context.Context, domainID string) error {
	_, err := call[json.RawMessage](ctx, c, request{
		method: http.MethodGet,
		path:   pathSallaHistorical,
		query:  url.Values{"domainId": {domainID}},
	})
	return err
}

// ImportShopifyHistorical はShopifyの過去注文の取り込みを開始する。
func (c *Client) ImportShopifyHistorical(ctx context.Context, domainID string) error {
	_, err := call[json.RawMessage](ctx, c, request{
		method: http.MethodPost,
		path:   pathShopifyHistorical,
		body:   model.ShopifyHistoricalRequest{DomainID: domainID},
	})
	return err
}
