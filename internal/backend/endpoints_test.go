package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/hitoshi/datapulse-console/internal/model"
)

// recordedRequest はテストサーバーが受け取ったリクエスト。
type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
}

func recordingClient(t *testing.T, payload any) (*Client, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.method = r.Method
		rec.path = r.URL.EscapedPath()
		rec.query = r.URL.RawQuery
		rec.body = string(body)
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "payload": payload})
	})
	return client, rec
}

func TestEndpoints_MethodAndPath(t *testing.T) {
	tests := []struct {
		name       string
		payload    any
		invoke     func(ctx context.Context, c *Client) error
		wantMethod string
		wantPath   string
		wantQuery  string
		wantBody   string
	}{
		{
			name:       "send magic link",
			invoke:     func(ctx context.Context, c *Client) error { return c.SendMagicLink(ctx, "a@b.com") },
			wantMethod: http.MethodPost, wantPath: "/api/user/send-magic-link", wantBody: `{"email":"a@b.com"}`,
		},
		{
			name: "sign up",
			invoke: func(ctx context.Context, c *Client) error {
				return c.SignUp(ctx, model.SignUpRequest{Email: "a@b.com", Name: "A", Phone: "1", OrganizationName: "Acme", OrganizationType: "retail", OrganizationSize: "1-10"})
			},
			wantMethod: http.MethodPost, wantPath: "/api/user/signup",
			wantBody: `{"email":"a@b.com","name":"A","phone":"1","organization_name":"Acme","organization_type":"retail","organization_size":"1-10"}`,
		},
		{
			name:       "get organization",
			payload:    map[string]any{"id": "o 1"},
			invoke:     func(ctx context.Context, c *Client) error { _, err := c.GetOrganization(ctx, "o 1"); return err },
			wantMethod: http.MethodGet, wantPath: "/api/organization/user/get/o%201",
		},
		{
			name:    "update organization",
			payload: map[string]any{"id": "o1"},
			invoke: func(ctx context.Context, c *Client) error {
				_, err := c.UpdateOrganization(ctx, "o1", model.UpdateOrganizationRequest{Name: "N", Type: "T", Size: "S"})
				return err
			},
			wantMethod: http.MethodPut, wantPath: "/api/organization/user/update/o1", wantBody: `{"name":"N","type":"T","size":"S"}`,
		},
		{
			name:    "update domain",
			payload: map[string]any{"id": "d1"},
			invoke: func(ctx context.Context, c *Client) error {
				_, err := c.UpdateDomain(ctx, model.UpdateDomainRequest{ID: "d1", Name: "shop"})
				return err
			},
			wantMethod: http.MethodPut, wantPath: "/api/domain/update", wantBody: `{"id":"d1","name":"shop"}`,
		},
		{
			name:       "delete domain",
			invoke:     func(ctx context.Context, c *Client) error { return c.DeleteDomain(ctx, "d1") },
			wantMethod: http.MethodDelete, wantPath: "/api/domain/delete", wantBody: `{"id":"d1"}`,
		},
		{
			name:       "api key by domain",
			payload:    map[string]any{"key": "k"},
			invoke:     func(ctx context.Context, c *Client) error { _, err := c.GetAPIKeyByDomain(ctx, "d1"); return err },
			wantMethod: http.MethodGet, wantPath: "/api/api_key_by_id/d1",
		},
		{
			name:       "get platform",
			payload:    map[string]any{"id": "p1"},
			invoke:     func(ctx context.Context, c *Client) error { _, err := c.GetPlatform(ctx, "p1"); return err },
			wantMethod: http.MethodGet, wantPath: "/api/platform/p1",
		},
		{
			name:    "tiktok auth url",
			payload: map[string]any{"url": "https://ads.tiktok.com/auth"},
			invoke: func(ctx context.Context, c *Client) error {
				_, err := c.PlatformAuthURL(ctx, PlatformTikTok, "d1", "p1")
				return err
			},
			wantMethod: http.MethodGet, wantPath: "/api/tiktok/auth", wantQuery: "domainId=d1&platformId=p1",
		},
		{
			name:       "integrations by domain",
			payload:    map[string]any{"integrations": []any{}},
			invoke:     func(ctx context.Context, c *Client) error { _, err := c.ListIntegrationsByDomain(ctx, "d1"); return err },
			wantMethod: http.MethodGet, wantPath: "/api/integrations/d1",
		},
		{
			name:       "delete integration sends raw id",
			invoke:     func(ctx context.Context, c *Client) error { return c.DeleteIntegration(ctx, "i1") },
			wantMethod: http.MethodDelete, wantPath: "/api/integration", wantBody: "i1",
		},
		{
			name:    "integrate accounts",
			payload: map[string]any{"id": "i1"},
			invoke: func(ctx context.Context, c *Client) error {
				_, err := c.CreateIntegrationWithAccounts(ctx, model.CreateIntegrationWithAccountsRequest{
					IntegrationID: "i1",
					Accounts:      []model.IntegrationAccount{{ID: "act", Name: "Main"}},
				})
				return err
			},
			wantMethod: http.MethodPost, wantPath: "/api/integrate/accounts",
			wantBody: `{"integrationId":"i1","accounts":[{"id":"act","name":"Main"}]}`,
		},
		{
			name:       "zid historical",
			invoke:     func(ctx context.Context, c *Client) error { return c.ImportZidHistorical(ctx, "d1") },
			wantMethod: http.MethodPost, wantPath: "/api/event/zid/historical", wantBody: `{"id":"d1"}`,
		},
		{
			name:       "salla historical",
			invoke:     func(ctx context.Context, c *Client) error { return c.ImportSallaHistorical(ctx, "d1") },
			wantMethod: http.MethodGet, wantPath: "/api/event/salla", wantQuery: "domainId=d1",
		},
		{
			name:       "shopify historical",
			invoke:     func(ctx context.Context, c *Client) error { return c.ImportShopifyHistorical(ctx, "d1") },
			wantMethod: http.MethodPost, wantPath: "/api/historical/shopify/orders", wantBody: `{"domainId":"d1"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, rec := recordingClient(t, tt.payload)
			if err := tt.invoke(context.Background(), client); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.method != tt.wantMethod {
				t.Errorf("method = %s, want %s", rec.method, tt.wantMethod)
			}
			if rec.path != tt.wantPath {
				t.Errorf("path = %s, want %s", rec.path, tt.wantPath)
			}
			if rec.query != tt.wantQuery {
				t.Errorf("query = %s, want %s", rec.query, tt.wantQuery)
			}
			if strings.TrimSpace(rec.body) != tt.wantBody {
				t.Errorf("body = %s, want %s", rec.body, tt.wantBody)
			}
		})
	}
}

func TestListPlatforms_UnwrapsPayload(t *testing.T) {
	client, _ := recordingClient(t, map[string]any{
		"platforms": []map[string]any{{"id": "p1", "name": "Google Ads"}, {"id": "p2", "name": "Snapchat"}},
	})

	platforms, err := client.ListPlatforms(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(platforms) != 2 || platforms[0].Name != "Google Ads" {
		t.Errorf("platforms = %+v", platforms)
	}
}

func TestListDomains_NilPayloadIsEmpty(t *testing.T) {
	client, _ := recordingClient(t, nil)

	domains, err := client.ListDomains(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if domains == nil || len(domains) != 0 {
		t.Errorf("domains = %#v, want empty slice", domains)
	}
}

func TestPlatformAuthURL_MissingURL(t *testing.T) {
	client, _ := recordingClient(t, map[string]any{})
	if _, err := client.PlatformAuthURL(context.Background(), PlatformGoogle, "d", "p"); err == nil {
		t.Fatal("expected error")
	}
}

func TestPlatformAuthURL_RejectsUnknownKind(t *testing.T) {
	client, rec := recordingClient(t, nil)
	if _, err := client.PlatformAuthURL(context.Background(), PlatformKind("myspace"), "d", "p"); err == nil {
		t.Fatal("expected error")
	}
	if rec.method != "" {
		t.Error("no request should be sent")
	}
}

func TestPlatformKindFromName(t *testing.T) {
	tests := []struct {
		name   string
		want   PlatformKind
		wantOK bool
	}{
		{"Google Ads", PlatformGoogle, true},
		{"facebook", PlatformFacebook, true},
		{"TikTok For Business", PlatformTikTok, true},
		{"Snapchat Ads", PlatformSnapchat, true},
		{"Pinterest", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PlatformKindFromName(tt.name)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("PlatformKindFromName(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSignOut_EmptyBodyIsFine(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if err := client.SignOut(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// 組織の項目はスネークケースで送る。
func TestSignUpRequest_FieldNames(t *testing.T) {
	raw, _ := json.Marshal(model.SignUpRequest{OrganizationName: "Acme"})
	if !strings.Contains(string(raw), `"organization_name":"Acme"`) {
		t.Errorf("unexpected encoding: %s", raw)
	}
}
