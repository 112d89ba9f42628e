package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/datapulse-console/internal/backend"
	"github.com/hitoshi/datapulse-console/internal/model"
	"github.com/hitoshi/datapulse-console/internal/toast"
)

// URLValidator は外部へ誘導するURLを検証する。security.SSRFGuardServiceが満たす。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// IntegrationHandler は連携管理のHTTPハンドラー。
type IntegrationHandler struct {
	integrations IntegrationAPI
	platforms    PlatformAPI
	domains      DomainAPI
	validator    URLValidator
	renderer     *Renderer
}

// NewIntegrationHandler はIntegrationHandlerを生成する。
func NewIntegrationHandler(integrations IntegrationAPI, platforms PlatformAPI, domains DomainAPI, validator URLValidator, renderer *Renderer) *IntegrationHandler {
	return &IntegrationHandler{
		integrations: integrations,
		platforms:    platforms,
		domains:      domains,
		validator:    validator,
		renderer:     renderer,
	}
}

type integrationListData struct {
	DomainID     string
	Domains      []model.Domain
	Integrations []model.Integration
}

type integrationCreateForm struct {
	PlatformID string
	DomainID   string
}

type integrationCreateData struct {
	Form         integrationCreateForm
	Platforms    []model.Platform
	Domains      []model.Domain
	AuthURL      string
	PlatformName string
}

type integrationAccountsData struct {
	IntegrationID string
	Accounts      string
}

// List は選択したDomainの連携一覧を表示する。domainIdがなければ最初のDomainを使う。
// GET /integrations?domainId=
func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domains, err := h.domains.ListDomains(ctx)
	if err != nil {
		h.renderer.fail(w, r, "Integrations", err)
		return
	}

	data := integrationListData{DomainID: r.URL.Query().Get("domainId"), Domains: domains}
	if data.DomainID == "" && len(domains) > 0 {
		data.DomainID = domains[0].ID
	}
	if data.DomainID != "" {
		data.Integrations, err = h.integrations.ListIntegrationsByDomain(ctx, data.DomainID)
		if err != nil {
			h.renderer.fail(w, r, "Integrations", err)
			return
		}
	}

	h.renderer.Render(w, r, http.StatusOK, "integrations", Page{Title: "Integrations", Data: data})
}

// ShowCreate はプラットフォームとDomainの選択フォームを表示する。
// GET /integrations/create
func (h *IntegrationHandler) ShowCreate(w http.ResponseWriter, r *http.Request) {
	form := integrationCreateForm{
		PlatformID: r.URL.Query().Get("platformId"),
		DomainID:   r.URL.Query().Get("domainId"),
	}
	data, err := h.createData(r, form)
	if err != nil {
		h.renderer.fail(w, r, "Create Integration", err)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "integration_create", Page{Title: "Create Integration", Data: data})
}

// Create はプラットフォームの認可URLを取得し、同意画面へのリンクを表示する。
// POST /integrations/create
func (h *IntegrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := integrationCreateForm{
		PlatformID: r.PostFormValue("platformId"),
		DomainID:   r.PostFormValue("domainId"),
	}

	renderInvalid := func(apiErr *model.APIError) {
		data, err := h.createData(r, form)
		if err != nil {
			h.renderer.fail(w, r, "Create Integration", err)
			return
		}
		notify(ctx, toast.LevelError, apiErr.Message)
		h.renderer.Render(w, r, http.StatusBadRequest, "integration_create", Page{Title: "Create Integration", Error: apiErr, Data: data})
	}

	if form.PlatformID == "" || form.DomainID == "" {
		renderInvalid(&model.APIError{
			Code:     model.ErrCodeMissingField,
			Message:  "Please select both platform and domain",
			Category: "validation",
			Action:   "Choose a platform and a domain.",
		})
		return
	}

	platform, err := h.platforms.GetPlatform(ctx, form.PlatformID)
	if err != nil {
		h.renderer.fail(w, r, "Create Integration", err)
		return
	}
	kind, ok := backend.PlatformKindFromName(platform.Name)
	if !ok {
		renderInvalid(model.NewPlatformNotSupportedError(platform.Name))
		return
	}

	authURL, err := h.integrations.PlatformAuthURL(ctx, kind, form.DomainID, form.PlatformID)
	if err != nil {
		h.renderer.fail(w, r, "Create Integration", err)
		return
	}
	if h.validator != nil {
		if err := h.validator.ValidateURL(authURL); err != nil {
			slog.Error("rejected platform auth url",
				slog.String("platform", string(kind)),
				slog.String("error", err.Error()),
			)
			h.renderer.Render(w, r, http.StatusBadGateway, "error", Page{
				Title: "Create Integration",
				Error: model.NewBackendError("The platform returned an invalid authorization URL."),
			})
			return
		}
	}

	h.renderer.Render(w, r, http.StatusOK, "integration_create", Page{
		Title: "Create Integration",
		Data:  integrationCreateData{Form: form, AuthURL: authURL, PlatformName: platform.Name},
	})
}

// Show は連携の詳細を表示する。
// GET /integrations/{id}
func (h *IntegrationHandler) Show(w http.ResponseWriter, r *http.Request) {
	integration, err := h.integrations.GetIntegration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderer.fail(w, r, "Integration", err)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "integration", Page{Title: "Integration", Data: integration})
}

// Delete は連携を削除する。
// POST /integrations/{id}/delete
func (h *IntegrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.integrations.DeleteIntegration(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.renderer.fail(w, r, "Integration", err)
		return
	}
	notify(r.Context(), toast.LevelSuccess, "Integration deleted.")
	http.Redirect(w, r, "/integrations", http.StatusSeeOther)
}

// ShowAccounts は連携に登録する広告アカウントの入力フォームを表示する。
// GET /integrations/accounts?integrationId=
func (h *IntegrationHandler) ShowAccounts(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, "integration_accounts", Page{
		Title: "Select Accounts",
		Data:  integrationAccountsData{IntegrationID: r.URL.Query().Get("integrationId")},
	})
}

// SaveAccounts は選択した広告アカウントを連携に登録する。
// POST /integrations/accounts
func (h *IntegrationHandler) SaveAccounts(w http.ResponseWriter, r *http.Request) {
	data := integrationAccountsData{
		IntegrationID: r.PostFormValue("integrationId"),
		Accounts:      r.PostFormValue("accounts"),
	}
	accounts := parseAccounts(data.Accounts)

	var invalid *model.APIError
	switch {
	case data.IntegrationID == "":
		invalid = model.NewMissingFieldError("Integration")
	case len(accounts) == 0:
		invalid = model.NewMissingFieldError("At least one account")
	}
	if invalid != nil {
		h.renderer.Render(w, r, http.StatusBadRequest, "integration_accounts", Page{Title: "Select Accounts", Error: invalid, Data: data})
		return
	}

	_, err := h.integrations.CreateIntegrationWithAccounts(r.Context(), model.CreateIntegrationWithAccountsRequest{
		IntegrationID: data.IntegrationID,
		Accounts:      accounts,
	})
	if err != nil {
		h.renderer.fail(w, r, "Select Accounts", err)
		return
	}

	notify(r.Context(), toast.LevelSuccess, "Accounts saved.")
	http.Redirect(w, r, "/integrations/"+data.IntegrationID, http.StatusSeeOther)
}

func (h *IntegrationHandler) createData(r *http.Request, form integrationCreateForm) (integrationCreateData, error) {
	ctx := r.Context()
	platforms, err := h.platforms.ListPlatforms(ctx)
	if err != nil {
		return integrationCreateData{}, err
	}
	domains, err := h.domains.ListDomains(ctx)
	if err != nil {
		return integrationCreateData{}, err
	}
	if form.DomainID == "" && len(domains) > 0 {
		form.DomainID = domains[0].ID
	}
	return integrationCreateData{Form: form, Platforms: platforms, Domains: domains}, nil
}

// parseAccounts は「アカウントID, 表示名」の行を解釈する。表示名を省略した行はIDを名前に使う。
func parseAccounts(raw string) []model.IntegrationAccount {
	var accounts []model.IntegrationAccount
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, name, found := strings.Cut(line, ",")
		id = strings.TrimSpace(id)
		name = strings.TrimSpace(name)
		if id == "" {
			continue
		}
		if !found || name == "" {
			name = id
		}
		accounts = append(accounts, model.IntegrationAccount{ID: id, Name: name})
	}
	return accounts
}
