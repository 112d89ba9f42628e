package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/datapulse-console/internal/backend"
	"github.com/hitoshi/datapulse-console/internal/model"
	"github.com/hitoshi/datapulse-console/internal/toast"
)

// domainTypes はDomainとして接続できるECバックエンド。
var domainTypes = []string{"Shopify", "WooCommerce", "Salla", "ZID"}

// DomainHandler はDomain管理のHTTPハンドラー。
type DomainHandler struct {
	domains      DomainAPI
	orgs         OrganizationAPI
	integrations IntegrationAPI
	renderer     *Renderer
}

// NewDomainHandler はDomainHandlerを生成する。
func NewDomainHandler(domains DomainAPI, orgs OrganizationAPI, integrations IntegrationAPI, renderer *Renderer) *DomainHandler {
	return &DomainHandler{domains: domains, orgs: orgs, integrations: integrations, renderer: renderer}
}

type domainFormData struct {
	Form          model.CreateDomainRequest
	Types         []string
	Organizations []model.Organization
}

type domainListData struct {
	Domains   []model.Domain
	KeyIssued map[string]bool
}

type domainDetailData struct {
	Domain       *model.Domain
	APIKey       *model.APIKey
	Integrations []model.Integration
}

// List はDomain一覧とAPIキーの発行状況を表示する。
// GET /domains
func (h *DomainHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domains, err := h.domains.ListDomains(ctx)
	if err != nil {
		h.renderer.fail(w, r, "Domains", err)
		return
	}

	data := domainListData{Domains: domains, KeyIssued: make(map[string]bool)}
	keys, err := h.domains.ListAPIKeys(ctx)
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		h.renderer.fail(w, r, "Domains", err)
		return
	case err != nil:
		slog.Warn("failed to list api keys", slog.String("error", err.Error()))
	}
	for _, k := range keys {
		data.KeyIssued[k.DomainID] = true
	}

	h.renderer.Render(w, r, http.StatusOK, "domains", Page{Title: "Domains", Data: data})
}

// ShowCreate はDomain作成フォームを表示する。
// GET /domains/create
func (h *DomainHandler) ShowCreate(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgs.ListOrganizations(r.Context())
	if err != nil {
		h.renderer.fail(w, r, "Add Domain", err)
		return
	}
	form := model.CreateDomainRequest{Type: domainTypes[0]}
	if len(orgs) > 0 {
		form.OrganizationID = orgs[0].ID
	}
	h.renderer.Render(w, r, http.StatusOK, "domain_form", Page{
		Title: "Add Domain",
		Data:  domainFormData{Form: form, Types: domainTypes, Organizations: orgs},
	})
}

// Create はDomainを作成する。
// POST /domains/create
func (h *DomainHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := model.CreateDomainRequest{
		Name:           strings.TrimSpace(r.PostFormValue("name")),
		SiteID:         strings.TrimSpace(r.PostFormValue("siteId")),
		Type:           r.PostFormValue("type"),
		OrganizationID: r.PostFormValue("organizationId"),
	}

	var invalid *model.APIError
	switch {
	case form.Name == "":
		invalid = model.NewMissingFieldError("Domain name")
	case form.OrganizationID == "":
		invalid = model.NewMissingFieldError("Organization")
	}
	if invalid != nil {
		orgs, err := h.orgs.ListOrganizations(ctx)
		if err != nil {
			h.renderer.fail(w, r, "Add Domain", err)
			return
		}
		h.renderer.Render(w, r, http.StatusBadRequest, "domain_form", Page{
			Title: "Add Domain",
			Error: invalid,
			Data:  domainFormData{Form: form, Types: domainTypes, Organizations: orgs},
		})
		return
	}

	domain, err := h.domains.CreateDomain(ctx, form)
	if err != nil {
		h.renderer.fail(w, r, "Add Domain", err)
		return
	}

	notify(ctx, toast.LevelSuccess, "Domain created.")
	target := "/domains"
	if domain != nil && domain.ID != "" {
		target = "/domains/" + domain.ID
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Show はDomainの詳細、APIキー、連携一覧を表示する。
// GET /domains/{id}
func (h *DomainHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	domain, err := h.domains.GetDomain(ctx, id)
	if err != nil {
		h.renderer.fail(w, r, "Domain", err)
		return
	}
	data := domainDetailData{Domain: domain}

	// APIキーと連携は補助情報のため、取得できなくても詳細は表示する
	key, err := h.domains.GetAPIKeyByDomain(ctx, id)
	if errors.Is(err, backend.ErrUnauthorized) {
		h.renderer.fail(w, r, "Domain", err)
		return
	}
	if err != nil && !backend.IsNotFound(err) {
		slog.Warn("failed to load api key", slog.String("domain_id", id), slog.String("error", err.Error()))
	}
	data.APIKey = key

	integrations, err := h.integrations.ListIntegrationsByDomain(ctx, id)
	if errors.Is(err, backend.ErrUnauthorized) {
		h.renderer.fail(w, r, "Domain", err)
		return
	}
	if err != nil {
		slog.Warn("failed to load integrations", slog.String("domain_id", id), slog.String("error", err.Error()))
	}
	data.Integrations = integrations

	h.renderer.Render(w, r, http.StatusOK, "domain", Page{Title: domain.Name, Data: data})
}

// Update はDomain名を更新する。
// POST /domains/{id}
func (h *DomainHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := strings.TrimSpace(r.PostFormValue("name"))
	if name == "" {
		notify(r.Context(), toast.LevelError, model.NewMissingFieldError("Domain name").Message)
		http.Redirect(w, r, "/domains/"+id, http.StatusSeeOther)
		return
	}

	if _, err := h.domains.UpdateDomain(r.Context(), model.UpdateDomainRequest{ID: id, Name: name}); err != nil {
		h.renderer.fail(w, r, "Domain", err)
		return
	}

	notify(r.Context(), toast.LevelSuccess, "Domain updated.")
	http.Redirect(w, r, "/domains/"+id, http.StatusSeeOther)
}

// Delete はDomainを削除する。
// POST /domains/{id}/delete
func (h *DomainHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.domains.DeleteDomain(r.Context(), id); err != nil {
		h.renderer.fail(w, r, "Domain", err)
		return
	}

	notify(r.Context(), toast.LevelSuccess, "Domain deleted.")
	http.Redirect(w, r, "/domains", http.StatusSeeOther)
}
