package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/datapulse-console/internal/auth"
	"github.com/hitoshi/datapulse-console/internal/backend"
	"github.com/hitoshi/datapulse-console/internal/identity"
	"github.com/hitoshi/datapulse-console/internal/middleware"
	"github.com/hitoshi/datapulse-console/internal/model"
	"github.com/hitoshi/datapulse-console/internal/repository"
	"github.com/hitoshi/datapulse-console/internal/security"
	"github.com/hitoshi/datapulse-console/internal/session"
	"github.com/hitoshi/datapulse-console/internal/toast"
	"github.com/hitoshi/datapulse-console/internal/verification"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	rd, err := NewRenderer("DataPulse", discardLogger())
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return rd
}

// testBrowser はブラウザ1台分のストレージとCookie。
type testBrowser struct {
	t    *testing.T
	repo repository.LocalStorageRepository
	id   string
}

func newTestBrowser(t *testing.T) *testBrowser {
	t.Helper()
	return &testBrowser{t: t, repo: repository.NewMemoryLocalStorageRepo(), id: uuid.NewString()}
}

func (b *testBrowser) storage() *repository.BrowserStorage {
	return repository.NewBrowserStorage(b.repo, b.id)
}

// signIn は永続ストレージにセッションを書き込む。
func (b *testBrowser) signIn(email string) {
	b.t.Helper()
	store := session.NewStore(b.storage(), discardLogger())
	if _, err := store.Establish(context.Background(), "user-1", email, "id-token"); err != nil {
		b.t.Fatalf("Establish() error = %v", err)
	}
}

func (b *testBrowser) signedIn() bool {
	b.t.Helper()
	store := session.NewStore(b.storage(), discardLogger())
	if err := store.Rehydrate(context.Background()); err != nil {
		b.t.Fatalf("Rehydrate() error = %v", err)
	}
	return store.IsAuthenticated()
}

func (b *testBrowser) toasts() []toast.Toast {
	q := toast.NewQueue(b.storage(), nil, discardLogger())
	return q.Drain(context.Background())
}

func (b *testBrowser) savePending(email string) {
	b.t.Helper()
	if err := session.NewPending(b.storage()).Save(context.Background(), email); err != nil {
		b.t.Fatalf("Save() error = %v", err)
	}
}

// wrap はブラウザミドルウェアを通したハンドラーを返す。
func (b *testBrowser) wrap(h http.Handler) http.Handler {
	mw := middleware.NewBrowserMiddleware(b.repo, security.NewMessageSanitizer(), middleware.CookieConfig{}, discardLogger())
	return mw(h)
}

// do はこのブラウザのCookieを付けてリクエストを処理する。
func (b *testBrowser) do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: middleware.BrowserCookieName, Value: b.id})
	rec := httptest.NewRecorder()
	b.wrap(h).ServeHTTP(rec, req)
	return rec
}

func postForm(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusSeeOther, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

// --- モック定義 ---

type mockAuthService struct {
	requestMagicLinkFn func(ctx context.Context, pending auth.PendingSaver, email string) error
	signUpFn           func(ctx context.Context, req model.SignUpRequest) error
	signOutFn          func(ctx context.Context, store *session.Store) error
}

func (m *mockAuthService) RequestMagicLink(ctx context.Context, pending auth.PendingSaver, email string) error {
	if m.requestMagicLinkFn != nil {
		return m.requestMagicLinkFn(ctx, pending, email)
	}
	return nil
}

func (m *mockAuthService) SignUp(ctx context.Context, pending auth.PendingSaver, req model.SignUpRequest) error {
	if m.signUpFn != nil {
		if err := m.signUpFn(ctx, req); err != nil {
			return err
		}
	}
	return pending.Save(ctx, req.Email)
}

func (m *mockAuthService) SignOut(ctx context.Context, store *session.Store) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, store)
	}
	if store == nil {
		return nil
	}
	return store.Clear(ctx)
}

type mockConsoleAPI struct {
	listOrganizationsFn  func(ctx context.Context) ([]model.Organization, error)
	getOrganizationFn    func(ctx context.Context, id string) (*model.Organization, error)
	createOrganizationFn func(ctx context.Context, req model.CreateOrganizationRequest) (*model.Organization, error)
	updateOrganizationFn func(ctx context.Context, id string, req model.UpdateOrganizationRequest) (*model.Organization, error)

	listDomainsFn       func(ctx context.Context) ([]model.Domain, error)
	getDomainFn         func(ctx context.Context, id string) (*model.Domain, error)
	createDomainFn      func(ctx context.Context, req model.CreateDomainRequest) (*model.Domain, error)
	updateDomainFn      func(ctx context.Context, req model.UpdateDomainRequest) (*model.Domain, error)
	deleteDomainFn      func(ctx context.Context, id string) error
	listAPIKeysFn       func(ctx context.Context) ([]model.APIKey, error)
	getAPIKeyByDomainFn func(ctx context.Context, domainID string) (*model.APIKey, error)

	listPlatformsFn func(ctx context.Context) ([]model.Platform, error)
	getPlatformFn   func(ctx context.Context, id string) (*model.Platform, error)

	platformAuthURLFn               func(ctx context.Context, kind backend.PlatformKind, domainID, platformID string) (string, error)
	getIntegrationFn                func(ctx context.Context, id string) (*model.Integration, error)
	listIntegrationsByDomainFn      func(ctx context.Context, domainID string) ([]model.Integration, error)
	deleteIntegrationFn             func(ctx context.Context, id string) error
	createIntegrationWithAccountsFn func(ctx context.Context, req model.CreateIntegrationWithAccountsRequest) (*model.Integration, error)

	importZidFn     func(ctx context.Context, domainID string) error
	importSallaFn   func(ctx context.Context, domainID string) error
	importShopifyFn func(ctx context.Context, domainID string) error
}

var _ ConsoleAPI = (*mockConsoleAPI)(nil)

func (m *mockConsoleAPI) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	if m.listOrganizationsFn != nil {
		return m.listOrganizationsFn(ctx)
	}
	return nil, nil
}

func (m *mockConsoleAPI) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	if m.getOrganizationFn != nil {
		return m.getOrganizationFn(ctx, id)
	}
	return &model.Organization{ID: id}, nil
}

func (m *mockConsoleAPI) CreateOrganization(ctx context.Context, req model.CreateOrganizationRequest) (*model.Organization, error) {
	if m.createOrganizationFn != nil {
		return m.createOrganizationFn(ctx, req)
	}
	return &model.Organization{ID: "org-new", Name: req.Name}, nil
}

func (m *mockConsoleAPI) UpdateOrganization(ctx context.Context, id string, req model.UpdateOrganizationRequest) (*model.Organization, error) {
	if m.updateOrganizationFn != nil {
		return m.updateOrganizationFn(ctx, id, req)
	}
	return &model.Organization{ID: id, Name: req.Name}, nil
}

func (m *mockConsoleAPI) ListDomains(ctx context.Context) ([]model.Domain, error) {
	if m.listDomainsFn != nil {
		return m.listDomainsFn(ctx)
	}
	return nil, nil
}

func (m *mockConsoleAPI) GetDomain(ctx context.Context, id string) (*model.Domain, error) {
	if m.getDomainFn != nil {
		return m.getDomainFn(ctx, id)
	}
	return &model.Domain{ID: id}, nil
}

func (m *mockConsoleAPI) CreateDomain(ctx context.Context, req model.CreateDomainRequest) (*model.Domain, error) {
	if m.createDomainFn != nil {
		return m.createDomainFn(ctx, req)
	}
	return &model.Domain{ID: "domain-new", Name: req.Name}, nil
}

func (m *mockConsoleAPI) UpdateDomain(ctx context.Context, req model.UpdateDomainRequest) (*model.Domain, error) {
	if m.updateDomainFn != nil {
		return m.updateDomainFn(ctx, req)
	}
	return &model.Domain{}, nil
}

func (m *mockConsoleAPI) DeleteDomain(ctx context.Context, id string) error {
	if m.deleteDomainFn != nil {
		return m.deleteDomainFn(ctx, id)
	}
	return nil
}

func (m *mockConsoleAPI) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	if m.listAPIKeysFn != nil {
		return m.listAPIKeysFn(ctx)
	}
	return nil, nil
}

func (m *mockConsoleAPI) GetAPIKeyByDomain(ctx context.Context, domainID string) (*model.APIKey, error) {
	if m.getAPIKeyByDomainFn != nil {
		return m.getAPIKeyByDomainFn(ctx, domainID)
	}
	return nil, nil
}

func (m *mockConsoleAPI) ListPlatforms(ctx context.Context) ([]model.Platform, error) {
	if m.listPlatformsFn != nil {
		return m.listPlatformsFn(ctx)
	}
	return nil, nil
}

func (m *mockConsoleAPI) GetPlatform(ctx context.Context, id string) (*model.Platform, error) {
	if m.getPlatformFn != nil {
		return m.getPlatformFn(ctx, id)
	}
	return &model.Platform{ID: id}, nil
}

func (m *mockConsoleAPI) PlatformAuthURL(ctx context.Context, kind backend.PlatformKind, domainID, platformID string) (string, error) {
	if m.platformAuthURLFn != nil {
		return m.platformAuthURLFn(ctx, kind, domainID, platformID)
	}
	return "", nil
}

func (m *mockConsoleAPI) GetIntegration(ctx context.Context, id string) (*model.Integration, error) {
	if m.getIntegrationFn != nil {
		return m.getIntegrationFn(ctx, id)
	}
	return &model.Integration{ID: id}, nil
}

func (m *mockConsoleAPI) ListIntegrationsByDomain(ctx context.Context, domainID string) ([]model.Integration, error) {
	if m.listIntegrationsByDomainFn != nil {
		return m.listIntegrationsByDomainFn(ctx, domainID)
	}
	return nil, nil
}

func (m *mockConsoleAPI) DeleteIntegration(ctx context.Context, id string) error {
	if m.deleteIntegrationFn != nil {
		return m.deleteIntegrationFn(ctx, id)
	}
	return nil
}

func (m *mockConsoleAPI) CreateIntegrationWithAccounts(ctx context.Context, req model.CreateIntegrationWithAccountsRequest) (*model.Integration, error) {
	if m.createIntegrationWithAccountsFn != nil {
		return m.createIntegrationWithAccountsFn(ctx, req)
	}
	return &model.Integration{ID: req.IntegrationID}, nil
}

func (m *mockConsoleAPI) ImportZidHistorical(ctx context.Context, domainID string) error {
	if m.importZidFn != nil {
		return m.importZidFn(ctx, domainID)
	}
	return nil
}

func (m *mockConsoleAPI) ImportSallaHistorical(ctx context.Context, domainID string) error {
	if m.importSallaFn != nil {
		return m.importSallaFn(ctx, domainID)
	}
	return nil
}

func (m *mockConsoleAPI) ImportShopifyHistorical(ctx context.Context, domainID string) error {
	if m.importShopifyFn != nil {
		return m.importShopifyFn(ctx, domainID)
	}
	return nil
}

// --- 検証フロー用 ---

type mockExchanger struct {
	mu       sync.Mutex
	calls    int
	signInFn func(ctx context.Context, apiKey, oobCode, email string) (*identity.SignInResult, error)
}

func (m *mockExchanger) SignInWithEmailLink(ctx context.Context, apiKey, oobCode, email string) (*identity.SignInResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.signInFn(ctx, apiKey, oobCode, email)
}

func (m *mockExchanger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// manualClock は明示的にFireするまでタスクを実行しないClock。
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) verification.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// FireAll は停止していないタスクをすべて実行する。
func (c *manualClock) FireAll() {
	c.mu.Lock()
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (c *manualClock) lastDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return 0
	}
	return c.timers[len(c.timers)-1].delay
}

type mockRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *mockRecorder) RecordVerification(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}
