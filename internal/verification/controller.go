package verification

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/hitoshi/datapulse-console/internal/identity"
	"github.com/hitoshi/datapulse-console/internal/model"
)

const (
	DefaultSuccessRedirectDelay     = 1 * time.Second
	DefaultInvalidLinkRedirectDelay = 3 * time.Second
)

// 検証フロー中に使う固定の失敗理由。
const (
	reasonMissingCode   = "missing verification code"
	reasonMissingEmail  = "missing email"
	reasonMissingAPIKey = "missing API key"
	reasonNoToken       = "no token received"
)

// Status は検証フローの状態。
type Status int

const (
	StatusVerifying Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "verifying"
	}
}

// Outcome は検証フローの結果。
// Succeededの場合はSession、Failedの場合はKindとMessageが設定される。
type Outcome struct {
	Status  Status
	Session *model.Session
	Kind    ErrorKind
	Message string
}

// UserMessage は失敗時に利用者へ表示するメッセージを返す。
func (o Outcome) UserMessage() string {
	if o.Status != StatusFailed {
		return ""
	}
	return o.Kind.UserMessage(o.Message)
}

// Exchanger はoobCodeをIDトークンに交換する。
type Exchanger interface {
	SignInWithEmailLink(ctx context.Context, apiKey, oobCode, email string) (*identity.SignInResult, error)
}

// SessionWriter は確立したセッションを保存する。
type SessionWriter interface {
	Establish(ctx context.Context, subjectID, email, token string) (*model.Session, error)
}

// PendingStore はリンク要求時に保存したメールアドレスを扱う。
type PendingStore interface {
	Load(ctx context.Context) (*model.PendingSignIn, error)
	Clear(ctx context.Context) error
}

// Notifier は利用者へのトースト通知を積む。
type Notifier interface {
	Push(ctx context.Context, level, message string) error
}

// Recorder は検証結果を記録する。
type Recorder interface {
	RecordVerification(outcome string)
}

// Deps はControllerの依存。Pending, Notifier, Recorderは省略できる。
type Deps struct {
	Exchanger Exchanger
	Session   SessionWriter
	Pending   PendingStore
	Notifier  Notifier
	Recorder  Recorder
	Clock     Clock
	Logger    *slog.Logger
}

// Config はControllerの設定。
type Config struct {
	// APIKey はリンクでapiKeyが指定されない場合に使う。
	APIKey string

	DashboardPath string
	LoginPath     string

	SuccessRedirectDelay     time.Duration
	InvalidLinkRedirectDelay time.Duration
}

// Controller は1つの検証リンクに対するフローインスタンス。
//
// 交換呼び出しの直前にattemptedを立て、失敗した場合のみ下ろす。
// 呼び出し中はロックを保持しないため、並行したRunはVerifyingを返して即座に戻る。
type Controller struct {
	deps Deps
	cfg  Config

	mu          sync.Mutex
	outcome     Outcome
	attempted   bool
	closed      bool
	timer       Timer
	navigatedTo string
}

// New はControllerを生成する。
func New(deps Deps, cfg Config) *Controller {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.DashboardPath == "" {
		cfg.DashboardPath = "/dashboard"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.SuccessRedirectDelay <= 0 {
		cfg.SuccessRedirectDelay = DefaultSuccessRedirectDelay
	}
	if cfg.InvalidLinkRedirectDelay <= 0 {
		cfg.InvalidLinkRedirectDelay = DefaultInvalidLinkRedirectDelay
	}
	return &Controller{
		deps:    deps,
		cfg:     cfg,
		outcome: Outcome{Status: StatusVerifying},
	}
}

// Run は検証フローを実行し、結果を返す。
//
// 成功後、交換呼び出し中、Close後の呼び出しは何もせず現在の結果を返す。
// 失敗後の呼び出しは利用者による再試行として扱い、フローをやり直す。
// 交換呼び出しはリクエストのキャンセルで中断しない。
func (c *Controller) Run(ctx context.Context, loc *url.URL) Outcome {
	// 1. ラッチを確認して立てる
	c.mu.Lock()
	if c.closed || c.attempted || c.outcome.Status == StatusSucceeded {
		o := c.outcome
		c.mu.Unlock()
		return o
	}
	c.attempted = true
	c.cancelScheduledLocked()
	c.navigatedTo = ""
	c.outcome = Outcome{Status: StatusVerifying}
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	// 2. パラメータ抽出と検証
	params := ExtractParams(loc, c.pendingEmail(ctx))
	// modeは参考情報。値によって処理は変えない
	c.deps.Logger.Debug("verification link received", slog.String("mode", params.Mode))
	apiKey := params.APIKey
	if apiKey == "" {
		apiKey = c.cfg.APIKey
	}
	switch {
	case params.Code == "":
		return c.fail(ctx, KindInvalidLink, reasonMissingCode)
	case params.Email == "":
		return c.fail(ctx, KindInvalidLink, reasonMissingEmail)
	case apiKey == "":
		return c.fail(ctx, KindConfiguration, reasonMissingAPIKey)
	}

	// 3. 交換
	result, err := c.deps.Exchanger.SignInWithEmailLink(ctx, apiKey, params.Code, params.Email)
	if err != nil {
		kind, message := classify(err)
		c.deps.Logger.Warn("email link exchange failed",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
		return c.fail(ctx, kind, message)
	}
	if result == nil || result.IDToken == "" {
		return c.fail(ctx, KindNoToken, reasonNoToken)
	}

	// 4. セッション確立
	subjectID := result.LocalID
	if subjectID == "" {
		subjectID = params.Email
	}
	email := result.Email
	if email == "" {
		email = params.Email
	}
	sess, err := c.deps.Session.Establish(ctx, subjectID, email, result.IDToken)
	if err != nil {
		c.deps.Logger.Error("failed to establish session", slog.String("error", err.Error()))
		return c.fail(ctx, KindSessionStorage, "")
	}

	if c.deps.Pending != nil {
		if err := c.deps.Pending.Clear(ctx); err != nil {
			c.deps.Logger.Warn("failed to clear pending sign-in", slog.String("error", err.Error()))
		}
	}
	c.notify(ctx, "success", "Signed in successfully!")

	// 5. 成功を公開し、ダッシュボードへの遷移を予約
	c.mu.Lock()
	c.outcome = Outcome{Status: StatusSucceeded, Session: sess}
	c.scheduleLocked(c.cfg.DashboardPath, c.cfg.SuccessRedirectDelay)
	o := c.outcome
	c.mu.Unlock()

	c.record(StatusSucceeded.String())
	c.deps.Logger.Info("email link verified", slog.String("subject_id", sess.SubjectID))
	return o
}

// fail は失敗を公開し、ラッチを下ろす。
func (c *Controller) fail(ctx context.Context, kind ErrorKind, message string) Outcome {
	outcome := Outcome{Status: StatusFailed, Kind: kind, Message: message}
	c.notify(ctx, "error", outcome.UserMessage())

	c.mu.Lock()
	c.outcome = outcome
	c.attempted = false
	if kind.AutoRedirect() {
		c.scheduleLocked(c.cfg.LoginPath, c.cfg.InvalidLinkRedirectDelay)
	}
	o := c.outcome
	c.mu.Unlock()

	c.record(kind.String())
	return o
}

// Outcome は現在の結果を返す。
func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Navigation は予約した遷移が実行済みであれば遷移先を返す。
func (c *Controller) Navigation() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.navigatedTo, c.navigatedTo != ""
}

// RedirectPending は遷移が予約されていてまだ実行されていないかを返す。
func (c *Controller) RedirectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil && c.navigatedTo == ""
}

// Close は予約済みの遷移を取り消す。以後のRunとタイマー発火は無視される。
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelScheduledLocked()
}

// scheduleLocked は遷移を予約する。既存の予約は取り消す。c.muを保持して呼ぶ。
func (c *Controller) scheduleLocked(path string, delay time.Duration) {
	c.cancelScheduledLocked()
	if c.closed {
		return
	}

	var timer Timer
	timer = c.deps.Clock.AfterFunc(delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// 取り消し後や差し替え後の発火は無視する
		if c.closed || c.timer != timer {
			return
		}
		c.navigatedTo = path
	})
	c.timer = timer
}

func (c *Controller) cancelScheduledLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) pendingEmail(ctx context.Context) string {
	if c.deps.Pending == nil {
		return ""
	}
	p, err := c.deps.Pending.Load(ctx)
	if err != nil {
		c.deps.Logger.Warn("failed to load pending sign-in", slog.String("error", err.Error()))
		return ""
	}
	if p == nil {
		return ""
	}
	return p.Email
}

func (c *Controller) notify(ctx context.Context, level, message string) {
	if c.deps.Notifier == nil || message == "" {
		return
	}
	if err := c.deps.Notifier.Push(ctx, level, message); err != nil {
		c.deps.Logger.Warn("failed to push toast", slog.String("error", err.Error()))
	}
}

func (c *Controller) record(outcome string) {
	if c.deps.Recorder != nil {
		c.deps.Recorder.RecordVerification(outcome)
	}
}

// classify は交換エラーを種別とメッセージに変換する。
func classify(err error) (ErrorKind, string) {
	var pe *identity.ProviderError
	if !errors.As(err, &pe) {
		return KindUnknown, ""
	}
	kind := KindFromProviderCode(pe.Code)
	if kind == KindUnknown {
		return kind, pe.Message
	}
	return kind, kind.UserMessage("")
}
