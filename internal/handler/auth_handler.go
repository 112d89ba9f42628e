// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/datapulse-console/internal/auth"
	"github.com/hitoshi/datapulse-console/internal/backend"
	"github.com/hitoshi/datapulse-console/internal/model"
	"github.com/hitoshi/datapulse-console/internal/session"
	"github.com/hitoshi/datapulse-console/internal/toast"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	RequestMagicLink(ctx context.Context, pending auth.PendingSaver, email string) error
	SignUp(ctx context.Context, pending auth.PendingSaver, req model.SignUpRequest) error
	SignOut(ctx context.Context, store *session.Store) error
}

// AuthHandler はサインイン、新規登録、サインアウトのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	renderer *Renderer
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, renderer *Renderer) *AuthHandler {
	return &AuthHandler{service: service, renderer: renderer}
}

type loginData struct {
	Email string
	Sent  bool
}

type signUpData struct {
	Form model.SignUpRequest
	Sent bool
}

// ShowLogin はログイン画面を表示する。
// GET /login
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if store := session.FromContext(r.Context()); store != nil && store.IsAuthenticated() {
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
		return
	}

	data := loginData{Sent: r.URL.Query().Get("sent") == "1"}
	if data.Sent {
		data.Email = pendingEmail(r.Context())
	}
	h.renderer.Render(w, r, http.StatusOK, "login", Page{Title: "Sign in", Data: data})
}

// Login はマジックリンクの送信を依頼する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")

	pending := session.PendingFromContext(r.Context())
	if pending == nil {
		h.renderer.fail(w, r, "Sign in", errMissingBrowser)
		return
	}

	if err := h.service.RequestMagicLink(r.Context(), pending, email); err != nil {
		h.renderLoginError(w, r, loginData{Email: email}, err)
		return
	}

	notify(r.Context(), toast.LevelSuccess, "Magic link sent! Check your email.")
	http.Redirect(w, r, LoginPath+"?sent=1", http.StatusSeeOther)
}

// ShowSignUp は新規登録画面を表示する。
// GET /signup
func (h *AuthHandler) ShowSignUp(w http.ResponseWriter, r *http.Request) {
	if store := session.FromContext(r.Context()); store != nil && store.IsAuthenticated() {
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "signup", Page{Title: "Sign up", Data: signUpData{}})
}

// SignUp は新規登録を依頼する。成功するとマジックリンクが送信される。
// POST /signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	req := model.SignUpRequest{
		Email:            r.PostFormValue("email"),
		Name:             r.PostFormValue("name"),
		Phone:            r.PostFormValue("phone"),
		OrganizationName: r.PostFormValue("organization_name"),
		OrganizationType: r.PostFormValue("organization_type"),
		OrganizationSize: r.PostFormValue("organization_size"),
	}

	pending := session.PendingFromContext(r.Context())
	if pending == nil {
		h.renderer.fail(w, r, "Sign up", errMissingBrowser)
		return
	}

	if err := h.service.SignUp(r.Context(), pending, req); err != nil {
		status, apiErr := describeFormError(err, "Failed to sign up")
		if status == http.StatusBadGateway {
			slog.Error("sign-up failed", slog.String("error", err.Error()))
		}
		notify(r.Context(), toast.LevelError, apiErr.Message)
		h.renderer.Render(w, r, status, "signup", Page{Title: "Sign up", Error: apiErr, Data: signUpData{Form: req}})
		return
	}

	notify(r.Context(), toast.LevelSuccess, "Account created! Check your email for the sign-in link.")
	http.Redirect(w, r, LoginPath+"?sent=1", http.StatusSeeOther)
}

// Logout はサインアウトする。バックエンドへの通知に失敗してもローカルのセッションは破棄する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SignOut(r.Context(), session.FromContext(r.Context())); err != nil {
		slog.Error("failed to sign out", slog.String("error", err.Error()))
	}
	notify(r.Context(), toast.LevelInfo, "You have been signed out.")
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (h *AuthHandler) renderLoginError(w http.ResponseWriter, r *http.Request, data loginData, err error) {
	status, apiErr := describeFormError(err, "Failed to send magic link")
	if status == http.StatusBadGateway {
		slog.Error("magic link request failed", slog.String("error", err.Error()))
	}
	notify(r.Context(), toast.LevelError, apiErr.Message)
	h.renderer.Render(w, r, status, "login", Page{Title: "Sign in", Error: apiErr, Data: data})
}

// describeFormError は入力エラーを400に、それ以外を502の汎用エラーに振り分ける。
func describeFormError(err error, fallback string) (int, *model.APIError) {
	if apiErr := formError(err); apiErr != nil {
		return http.StatusBadRequest, apiErr
	}
	var be *backend.Error
	if errors.As(err, &be) && be.Message != "" {
		return http.StatusBadGateway, model.NewBackendError(be.Message)
	}
	return http.StatusBadGateway, model.NewBackendError(fallback + ".")
}

func pendingEmail(ctx context.Context) string {
	pending := session.PendingFromContext(ctx)
	if pending == nil {
		return ""
	}
	p, err := pending.Load(ctx)
	if err != nil || p == nil {
		return ""
	}
	return p.Email
}
