package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/datapulse-console/internal/middleware"
	"github.com/hitoshi/datapulse-console/internal/session"
	"github.com/hitoshi/datapulse-console/internal/toast"
	"github.com/hitoshi/datapulse-console/internal/verification"
)

// VerificationPath は検証リンクの着地パス。
const VerificationPath = "/verification"

// フラグメントはサーバーに届かないため、着地画面のスクリプトがクエリに載せ替えて再要求する。
const (
	hopParam      = "_hop"
	fragmentParam = "_fragment"
)

// VerificationDeps は検証ハンドラーの依存。
type VerificationDeps struct {
	Registry  *verification.Registry
	Exchanger verification.Exchanger
	Recorder  verification.Recorder
	Clock     verification.Clock
	Config    verification.Config
	Logger    *slog.Logger
}

// VerificationHandler はマジックリンクの着地画面を扱う。
//
// 同じブラウザで同じリンクを開いたリクエストはRegistryを通じて1つのControllerを共有する。
// 交換中と遷移予約中はRefreshヘッダーで再読み込みさせ、予約した遷移が実行されたら303で従う。
type VerificationHandler struct {
	deps     VerificationDeps
	renderer *Renderer
}

// NewVerificationHandler はVerificationHandlerを生成する。
func NewVerificationHandler(deps VerificationDeps, renderer *Renderer) *VerificationHandler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = verification.RealClock()
	}
	return &VerificationHandler{deps: deps, renderer: renderer}
}

type verificationData struct {
	Status      string
	Message     string
	Redirecting bool
	Retryable   bool
	Link        string
}

type hopData struct {
	Fallback string
}

// Show は検証フローを進め、現在の結果を表示する。
// GET /verification
func (h *VerificationHandler) Show(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get(hopParam) == "" && !completeInQuery(r.URL) {
		h.renderHop(w, r)
		return
	}

	loc := linkLocation(r.URL)
	key := verification.LinkKey(middleware.BrowserIDFromContext(r.Context()), loc)
	ctrl := h.deps.Registry.Acquire(key, func() *verification.Controller {
		return h.newController(r)
	})

	// 失敗済みのフローは再読み込みでは再実行しない。再試行はRetryから行う。
	outcome := ctrl.Outcome()
	if outcome.Status != verification.StatusFailed {
		outcome = ctrl.Run(r.Context(), loc)
	}

	h.respond(w, r, ctrl, outcome)
}

// Retry は失敗したフローを利用者の操作で再実行する。
// POST /verification/retry
func (h *VerificationHandler) Retry(w http.ResponseWriter, r *http.Request) {
	link, err := url.Parse(r.PostFormValue("link"))
	if err != nil || link.IsAbs() || link.Host != "" || link.Path != VerificationPath {
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}

	loc := linkLocation(link)
	key := verification.LinkKey(middleware.BrowserIDFromContext(r.Context()), loc)
	if ctrl := h.deps.Registry.Lookup(key); ctrl != nil && ctrl.Outcome().Kind.Retryable() {
		ctrl.Run(r.Context(), loc)
	}
	http.Redirect(w, r, link.RequestURI(), http.StatusSeeOther)
}

func (h *VerificationHandler) respond(w http.ResponseWriter, r *http.Request, ctrl *verification.Controller, outcome verification.Outcome) {
	if path, ok := ctrl.Navigation(); ok {
		http.Redirect(w, r, path, http.StatusSeeOther)
		return
	}

	redirecting := ctrl.RedirectPending()
	data := verificationData{
		Status:      outcome.Status.String(),
		Redirecting: redirecting,
		Link:        r.URL.RequestURI(),
	}
	if outcome.Status == verification.StatusFailed {
		data.Message = outcome.UserMessage()
		data.Retryable = !redirecting && outcome.Kind.Retryable()
	}

	if outcome.Status == verification.StatusVerifying || redirecting {
		w.Header().Set("Refresh", "1")
	}
	h.renderer.Render(w, r, http.StatusOK, "verification", Page{Title: "Verification", Data: data})
}

func (h *VerificationHandler) renderHop(w http.ResponseWriter, r *http.Request) {
	fallback := *r.URL
	q := fallback.Query()
	q.Set(hopParam, "1")
	fallback.RawQuery = q.Encode()
	h.renderer.Render(w, r, http.StatusOK, "hop", Page{Title: "Verification", Data: hopData{Fallback: fallback.RequestURI()}})
}

// newController はリクエストのブラウザに束縛したControllerを生成する。
func (h *VerificationHandler) newController(r *http.Request) *verification.Controller {
	ctx := r.Context()
	deps := verification.Deps{
		Exchanger: h.deps.Exchanger,
		Recorder:  h.deps.Recorder,
		Clock:     h.deps.Clock,
		Logger:    h.deps.Logger,
	}
	if store := session.FromContext(ctx); store != nil {
		deps.Session = store
	}
	if pending := session.PendingFromContext(ctx); pending != nil {
		deps.Pending = pending
	}
	if q := toast.FromContext(ctx); q != nil {
		deps.Notifier = q
	}
	return verification.New(deps, h.deps.Config)
}

// completeInQuery はクエリだけでコードとメールアドレスが揃っているかを返す。
// 片方でも欠けていればフラグメント側にある可能性があるため、着地画面で載せ替えてから処理する。
func completeInQuery(u *url.URL) bool {
	// サーバーにフラグメントは届かないため、ここではクエリだけを見ることになる
	p := verification.ExtractParams(u, "")
	return p.Code != "" && p.Email != ""
}

// linkLocation は再要求で載せ替えたフラグメントを元の位置に戻したURLを返す。
func linkLocation(u *url.URL) *url.URL {
	q := u.Query()
	if q.Get(hopParam) == "" {
		loc := *u
		return &loc
	}

	fragment := q.Get(fragmentParam)
	q.Del(hopParam)
	q.Del(fragmentParam)

	loc := &url.URL{Path: u.Path, RawQuery: q.Encode()}
	if fragment != "" {
		if parsed, err := url.Parse("#" + fragment); err == nil {
			loc.Fragment = parsed.Fragment
			loc.RawFragment = parsed.RawFragment
		}
	}
	return loc
}
