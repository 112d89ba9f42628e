package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PlatformHandler はプラットフォーム参照のHTTPハンドラー。
type PlatformHandler struct {
	api      PlatformAPI
	renderer *Renderer
}

// NewPlatformHandler はPlatformHandlerを生成する。
func NewPlatformHandler(api PlatformAPI, renderer *Renderer) *PlatformHandler {
	return &PlatformHandler{api: api, renderer: renderer}
}

// List はプラットフォーム一覧を表示する。
// GET /platforms
func (h *PlatformHandler) List(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.api.ListPlatforms(r.Context())
	if err != nil {
		h.renderer.fail(w, r, "Platforms", err)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "platforms", Page{Title: "Platforms", Data: platforms})
}

// Show はプラットフォームの詳細を表示する。
// GET /platforms/{id}
func (h *PlatformHandler) Show(w http.ResponseWriter, r *http.Request) {
	platform, err := h.api.GetPlatform(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderer.fail(w, r, "Platform", err)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "platform", Page{Title: platform.Name, Data: platform})
}
