package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/datapulse-console/internal/middleware"
	"github.com/hitoshi/datapulse-console/internal/model"
	"github.com/hitoshi/datapulse-console/internal/repository"
	"github.com/hitoshi/datapulse-console/internal/security"
	"github.com/hitoshi/datapulse-console/internal/verification"
)

const testCSRFToken = "test-csrf-token"

func newTestRouter(t *testing.T, storage repository.LocalStorageRepository, api ConsoleAPI) http.Handler {
	t.Helper()
	registry := verification.NewRegistry(time.Minute, discardLogger())
	t.Cleanup(registry.Stop)

	return NewRouter(&RouterDeps{
		Logger:      discardLogger(),
		Storage:     storage,
		Sanitizer:   security.NewMessageSanitizer(),
		Renderer:    newTestRenderer(t),
		AuthService: &mockAuthService{},
		Verification: VerificationDeps{
			Registry:  registry,
			Exchanger: &mockExchanger{signInFn: successfulSignIn},
			Clock:     &manualClock{},
		},
		API: api,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		}),
	})
}

// withCSRF はCSRFトークンをCookieとフォームの両方に載せる。
func withCSRF(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: middleware.CSRFFieldName, Value: testCSRFToken})
	return req
}

func csrfForm(values url.Values) string {
	values.Set(middleware.CSRFFieldName, testCSRFToken)
	return values.Encode()
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryLocalStorageRepo(), &mockConsoleAPI{})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get("Set-Cookie") != "" {
		t.Error("health check should not issue cookies")
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryLocalStorageRepo(), &mockConsoleAPI{})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "# metrics" {
		t.Errorf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
}

func TestRouter_RootRedirectsToDashboard(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryLocalStorageRepo(), &mockConsoleAPI{})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assertRedirect(t, rec, DashboardPath)
}

func TestRouter_GuardRedirectsUnauthenticated(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryLocalStorageRepo(), &mockConsoleAPI{})

	for _, path := range []string{"/dashboard", "/organizations", "/domains/d1", "/integrations", "/events"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			assertRedirect(t, rec, LoginPath)
			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("security headers are not applied")
			}
		})
	}
}

func TestRouter_IssuesBrowserCookie(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryLocalStorageRepo(), &mockConsoleAPI{})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.BrowserCookieName {
			found = true
			if !c.HttpOnly {
				t.Error("browser cookie must be HttpOnly")
			}
		}
	}
	if !found {
		t.Error("browser cookie is not issued")
	}
	if !strings.Contains(rec.Body.String(), `name="csrf_token" value="`) {
		t.Error("login form does not carry a CSRF token")
	}
}

func TestRouter_AuthenticatedPages(t *testing.T) {
	b := signedInBrowser(t)
	api := &mockConsoleAPI{
		listOrganizationsFn: func(ctx context.Context) ([]model.Organization, error) {
			return []model.Organization{{ID: "o1", Name: "Acme"}}, nil
		},
	}
	router := newTestRouter(t, b.repo, api)

	for _, path := range []string{"/dashboard", "/organizations", "/organizations/create", "/domains/create", "/integrations/create", "/integrations/accounts?integrationId=i1", "/platforms", "/events"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.AddCookie(&http.Cookie{Name: middleware.BrowserCookieName, Value: b.id})
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
}

func TestRouter_CSRF(t *testing.T) {
	b := newTestBrowser(t)
	router := newTestRouter(t, b.repo, &mockConsoleAPI{})

	t.Run("トークンなしは403", func(t *testing.T) {
		req := postForm("/login", "email=user%40example.com")
		req.AddCookie(&http.Cookie{Name: middleware.BrowserCookieName, Value: b.id})
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("トークンが一致すれば処理する", func(t *testing.T) {
		req := withCSRF(postForm("/login", csrfForm(url.Values{"email": {"user@example.com"}})))
		req.AddCookie(&http.Cookie{Name: middleware.BrowserCookieName, Value: b.id})
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assertRedirect(t, rec, "/login?sent=1")
	})
}

func TestRouter_LogoutClearsSession(t *testing.T) {
	b := signedInBrowser(t)
	router := newTestRouter(t, b.repo, &mockConsoleAPI{})

	req := withCSRF(postForm("/logout", csrfForm(url.Values{})))
	req.AddCookie(&http.Cookie{Name: middleware.BrowserCookieName, Value: b.id})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assertRedirect(t, rec, LoginPath)
	if b.signedIn() {
		t.Error("session should be cleared")
	}
}

// failingStorage は読み込みに失敗するストレージ。
type failingStorage struct {
	repository.LocalStorageRepository
}

func (failingStorage) Get(ctx context.Context, browserID, key string) (string, bool, error) {
	return "", false, errors.New("storage unavailable")
}

func TestRouter_UnsettledStoreShowsLoading(t *testing.T) {
	router := newTestRouter(t, failingStorage{repository.NewMemoryLocalStorageRepo()}, &mockConsoleAPI{})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if rec.Header().Get("Refresh") != "1" {
		t.Error("loading page should refresh")
	}
}

func TestRouter_VerificationIsPublic(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryLocalStorageRepo(), &mockConsoleAPI{})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verification", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRouter_SignInRateLimit(t *testing.T) {
	b := newTestBrowser(t)
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:  100,
		GeneralBurst: 100,
		SignInRate:   0.001,
		SignInBurst:  1,
	})
	t.Cleanup(limiter.Stop)

	registry := verification.NewRegistry(time.Minute, discardLogger())
	t.Cleanup(registry.Stop)
	router := NewRouter(&RouterDeps{
		Logger:       discardLogger(),
		Storage:      b.repo,
		Renderer:     newTestRenderer(t),
		RateLimiter:  limiter,
		AuthService:  &mockAuthService{},
		Verification: VerificationDeps{Registry: registry},
		API:          &mockConsoleAPI{},
	})

	send := func() int {
		req := withCSRF(postForm("/login", csrfForm(url.Values{"email": {"user@example.com"}})))
		req.AddCookie(&http.Cookie{Name: middleware.BrowserCookieName, Value: b.id})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send(); got != http.StatusSeeOther {
		t.Fatalf("first request status = %d, want %d", got, http.StatusSeeOther)
	}
	if got := send(); got != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", got, http.StatusTooManyRequests)
	}
}
