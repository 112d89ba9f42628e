package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/datapulse-console/internal/backend"
)

// DashboardHandler はダッシュボードのHTTPハンドラー。
type DashboardHandler struct {
	orgs         OrganizationAPI
	domains      DomainAPI
	integrations IntegrationAPI
	renderer     *Renderer
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(orgs OrganizationAPI, domains DomainAPI, integrations IntegrationAPI, renderer *Renderer) *DashboardHandler {
	return &DashboardHandler{orgs: orgs, domains: domains, integrations: integrations, renderer: renderer}
}

type dashboardData struct {
	Organizations int
	Domains       int
	Integrations  int
}

// Show は組織数、Domain数、最初のDomainの連携数を表示する。
// GET /dashboard
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgs, err := h.orgs.ListOrganizations(ctx)
	if err != nil {
		h.renderer.fail(w, r, "Dashboard", err)
		return
	}
	domains, err := h.domains.ListDomains(ctx)
	if err != nil {
		h.renderer.fail(w, r, "Dashboard", err)
		return
	}

	data := dashboardData{Organizations: len(orgs), Domains: len(domains)}
	if len(domains) > 0 {
		integrations, err := h.integrations.ListIntegrationsByDomain(ctx, domains[0].ID)
		switch {
		case errors.Is(err, backend.ErrUnauthorized):
			h.renderer.fail(w, r, "Dashboard", err)
			return
		case err != nil:
			// 連携数が取れなくても他の集計は表示する
			slog.Warn("failed to count integrations", slog.String("error", err.Error()))
		default:
			data.Integrations = len(integrations)
		}
	}

	h.renderer.Render(w, r, http.StatusOK, "dashboard", Page{Title: "Dashboard", Data: data})
}
