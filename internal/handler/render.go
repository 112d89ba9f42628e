package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/datapulse-console/internal/middleware"
	"github.com/hitoshi/datapulse-console/internal/model"
	"github.com/hitoshi/datapulse-console/internal/session"
	"github.com/hitoshi/datapulse-console/internal/toast"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page は画面テンプレートに渡す値。
type Page struct {
	AppName   string
	Title     string
	CSRFToken string
	User      *model.User
	Toasts    []toast.Toast
	Error     *model.APIError
	Data      any
}

// Renderer は埋め込みテンプレートから画面を描画する。
type Renderer struct {
	appName string
	pages   map[string]*template.Template
	logger  *slog.Logger
}

// NewRenderer はすべての画面テンプレートを共通レイアウトと組み合わせて解析する。
func NewRenderer(appName string, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if appName == "" {
		appName = "DataPulse"
	}

	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(names))
	for _, path := range names {
		name := strings.TrimSuffix(strings.TrimPrefix(path, "templates/"), ".html")
		if name == "layout" {
			continue
		}
		base, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout: %w", err)
		}
		page, err := base.ParseFS(templateFS, path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = page
	}

	return &Renderer{appName: appName, pages: pages, logger: logger}, nil
}

// Render は画面を描画する。ユーザー、CSRFトークン、積まれたトーストはリクエストから補う。
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, page Page) {
	tmpl, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("unknown template", slog.String("name", name))
		middleware.WriteInternalServerError(w, r)
		return
	}

	ctx := r.Context()
	page.AppName = rd.appName
	page.CSRFToken = middleware.CSRFTokenFromContext(ctx)
	if store := session.FromContext(ctx); store != nil {
		page.User = store.User()
	}
	if q := toast.FromContext(ctx); q != nil {
		page.Toasts = q.Drain(ctx)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
