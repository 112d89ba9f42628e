package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/datapulse-console/internal/repository"
	"github.com/hitoshi/datapulse-console/internal/session"
)

func guardedHandler(called *bool) http.Handler {
	return NewRouteGuard("/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}))
}

func requestWithStore(t *testing.T, store *session.Store) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if store != nil {
		req = req.WithContext(session.WithStore(req.Context(), store))
	}
	return req
}

func TestRouteGuard_Authenticated_PassesThrough(t *testing.T) {
	store := session.NewStore(repository.NewBrowserStorage(repository.NewMemoryLocalStorageRepo(), "b"), nil)
	if _, err := store.Establish(context.Background(), "uid", "a@b.co", "tok"); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	called := false
	w := httptest.NewRecorder()
	guardedHandler(&called).ServeHTTP(w, requestWithStore(t, store))

	if !called || w.Code != http.StatusOK {
		t.Errorf("called = %v, status = %d", called, w.Code)
	}
}

func TestRouteGuard_Unauthenticated_RedirectsToLogin(t *testing.T) {
	store := session.NewStore(repository.NewBrowserStorage(repository.NewMemoryLocalStorageRepo(), "b"), nil)
	if err := store.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate: %v", err)
	}

	called := false
	w := httptest.NewRecorder()
	guardedHandler(&called).ServeHTTP(w, requestWithStore(t, store))

	if called {
		t.Error("protected handler must not run")
	}
	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q", loc)
	}
}

func TestRouteGuard_UnsettledStore_RendersLoading(t *testing.T) {
	failing := &mockLocalStorage{
		getFn: func(context.Context, string, string) (string, bool, error) {
			return "", false, errors.New("timeout")
		},
	}
	store := session.NewStore(repository.NewBrowserStorage(failing, "b"), nil)
	_ = store.Rehydrate(context.Background())

	for name, s := range map[string]*session.Store{"unsettled": store, "missing": nil} {
		t.Run(name, func(t *testing.T) {
			called := false
			w := httptest.NewRecorder()
			guardedHandler(&called).ServeHTTP(w, requestWithStore(t, s))

			if called {
				t.Error("protected handler must not run before the session settles")
			}
			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", w.Code)
			}
			if w.Header().Get("Retry-After") != "1" || w.Header().Get("Refresh") != "1" {
				t.Errorf("headers = %v", w.Header())
			}
			if w.Header().Get("Location") != "" {
				t.Error("no redirect while the session is unsettled")
			}
		})
	}
}
