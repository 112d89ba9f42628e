package handler

import (
	"net/http"
	"strings"

	"github.com/hitoshi/datapulse-console/internal/model"
	"github.com/hitoshi/datapulse-console/internal/toast"
)

// EventHandler はイベント画面と過去注文取り込みのHTTPハンドラー。
type EventHandler struct {
	events   EventAPI
	domains  DomainAPI
	renderer *Renderer
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(events EventAPI, domains DomainAPI, renderer *Renderer) *EventHandler {
	return &EventHandler{events: events, domains: domains, renderer: renderer}
}

type eventsData struct {
	Domains []model.Domain
}

// List はDomainごとの取り込み操作を表示する。
// GET /events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	domains, err := h.domains.ListDomains(r.Context())
	if err != nil {
		h.renderer.fail(w, r, "Events", err)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "events", Page{Title: "Events", Data: eventsData{Domains: domains}})
}

// ImportHistorical はDomainのECバックエンドに応じた過去注文の取り込みを開始する。
// POST /events/historical
func (h *EventHandler) ImportHistorical(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID := r.PostFormValue("domainId")
	source := r.PostFormValue("source")

	if domainID == "" {
		h.renderer.fail(w, r, "Events", model.NewMissingFieldError("Domain"))
		return
	}

	var err error
	switch strings.ToLower(source) {
	case "shopify":
		err = h.events.ImportShopifyHistorical(ctx, domainID)
	case "salla":
		err = h.events.ImportSallaHistorical(ctx, domainID)
	case "zid":
		err = h.events.ImportZidHistorical(ctx, domainID)
	default:
		err = model.NewUnsupportedSourceError(source)
	}
	if err != nil {
		h.renderer.fail(w, r, "Events", err)
		return
	}

	notify(ctx, toast.LevelSuccess, "Historical import started.")
	http.Redirect(w, r, "/events", http.StatusSeeOther)
}
