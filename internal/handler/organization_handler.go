package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/datapulse-console/internal/model"
	"github.com/hitoshi/datapulse-console/internal/toast"
)

// OrganizationHandler は組織管理のHTTPハンドラー。
type OrganizationHandler struct {
	api      OrganizationAPI
	renderer *Renderer
}

// NewOrganizationHandler はOrganizationHandlerを生成する。
func NewOrganizationHandler(api OrganizationAPI, renderer *Renderer) *OrganizationHandler {
	return &OrganizationHandler{api: api, renderer: renderer}
}

type organizationFormData struct {
	Action string
	Submit string
	Form   model.CreateOrganizationRequest
}

// List は組織一覧を表示する。
// GET /organizations
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.api.ListOrganizations(r.Context())
	if err != nil {
		h.renderer.fail(w, r, "Organizations", err)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "organizations", Page{Title: "Organizations", Data: orgs})
}

// ShowCreate は組織作成フォームを表示する。
// GET /organizations/create
func (h *OrganizationHandler) ShowCreate(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, "organization_form", Page{
		Title: "Create Organization",
		Data:  organizationFormData{Action: "/organizations/create", Submit: "Create Organization"},
	})
}

// Create は組織を作成する。
// POST /organizations/create
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	form := organizationForm(r)
	data := organizationFormData{Action: "/organizations/create", Submit: "Create Organization", Form: form}

	if form.Name == "" {
		h.renderer.Render(w, r, http.StatusBadRequest, "organization_form", Page{
			Title: "Create Organization", Error: model.NewMissingFieldError("Organization name"), Data: data,
		})
		return
	}

	org, err := h.api.CreateOrganization(r.Context(), form)
	if err != nil {
		h.renderer.fail(w, r, "Create Organization", err)
		return
	}

	notify(r.Context(), toast.LevelSuccess, "Organization created.")
	target := "/organizations"
	if org != nil && org.ID != "" {
		target = "/organizations/" + org.ID
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Show は組織の詳細と編集フォームを表示する。
// GET /organizations/{id}
func (h *OrganizationHandler) Show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	org, err := h.api.GetOrganization(r.Context(), id)
	if err != nil {
		h.renderer.fail(w, r, "Organization", err)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "organization_form", Page{
		Title: org.Name,
		Data: organizationFormData{
			Action: "/organizations/" + id,
			Submit: "Save",
			Form:   model.CreateOrganizationRequest{Name: org.Name, Type: org.Type, Size: org.Size},
		},
	})
}

// Update は組織を更新する。
// POST /organizations/{id}
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	form := organizationForm(r)

	if form.Name == "" {
		h.renderer.Render(w, r, http.StatusBadRequest, "organization_form", Page{
			Title: "Organization",
			Error: model.NewMissingFieldError("Organization name"),
			Data:  organizationFormData{Action: "/organizations/" + id, Submit: "Save", Form: form},
		})
		return
	}

	_, err := h.api.UpdateOrganization(r.Context(), id, model.UpdateOrganizationRequest{
		Name: form.Name, Type: form.Type, Size: form.Size,
	})
	if err != nil {
		h.renderer.fail(w, r, "Organization", err)
		return
	}

	notify(r.Context(), toast.LevelSuccess, "Organization updated.")
	http.Redirect(w, r, "/organizations/"+id, http.StatusSeeOther)
}

func organizationForm(r *http.Request) model.CreateOrganizationRequest {
	return model.CreateOrganizationRequest{
		Name: strings.TrimSpace(r.PostFormValue("name")),
		Type: strings.TrimSpace(r.PostFormValue("type")),
		Size: strings.TrimSpace(r.PostFormValue("size")),
	}
}
