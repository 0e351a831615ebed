package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/intelnews/internal/middleware"
	"github.com/hitoshi/intelnews/internal/model"
)

type mockSessionFinder struct{}

func (mockSessionFinder) FindByID(_ context.Context, id string) (*model.Session, error) {
	if id == "valid-session" {
		return &model.Session{ID: id, ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	return nil, nil
}

type mockHealthChecker struct{ err error }

func (m *mockHealthChecker) PingContext(context.Context) error { return m.err }

func newTestRouter(t *testing.T, mutate func(*RouterDeps)) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(6000, 6000, 6000))
	t.Cleanup(rl.Stop)
	deps := &RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		SessionFinder:     mockSessionFinder{},
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimiter:       rl,
		News:              &mockNewsFetcher{},
		Feed:              &mockFeedService{},
		AuthService:       &mockAuthService{},
		Publisher:         &mockPublisher{},
		AdminConfig:       testAdminConfig(),
	}
	if mutate != nil {
		mutate(deps)
	}
	return NewRouter(deps)
}

// adminRequest はセッションCookieとCSRFトークンを付けたリクエストを作る。
func adminRequest(method, path, body string, withCSRF bool) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "valid-session"})
	if withCSRF {
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok"})
		req.Header.Set("X-CSRF-Token", "tok")
	}
	return req
}

func TestRouter_PublicRoutes(t *testing.T) {
	router := newTestRouter(t, nil)
	for _, path := range []string{"/health", "/api/news", "/api/home", "/api/feed?page=2", "/api/csrf-token"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", w.Code)
			}
			if w.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("セキュリティヘッダーが付与されていない")
			}
		})
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	t.Run("DB停止時は503", func(t *testing.T) {
		router := newTestRouter(t, func(d *RouterDeps) {
			d.HealthChecker = &mockHealthChecker{err: errors.New("down")}
		})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("metrics未設定なら404", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTestRouter(t, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("metrics設定時", func(t *testing.T) {
		router := newTestRouter(t, func(d *RouterDeps) {
			d.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				io.WriteString(w, "# metrics")
			})
		})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusOK || w.Body.String() != "# metrics" {
			t.Errorf("status = %d, body = %q", w.Code, w.Body.String())
		}
	})
}

func TestRouter_AdminRequiresSession(t *testing.T) {
	router := newTestRouter(t, nil)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/admin/me"},
		{http.MethodPost, "/api/admin/logout"},
		{http.MethodPost, "/api/admin/articles"},
		{http.MethodPost, "/api/admin/ticker"},
	} {
		t.Run(tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`)))
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestRouter_AdminWriteRequiresCSRF(t *testing.T) {
	router := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodPost, "/api/admin/articles", `{"title":"t"}`, false))
	if w.Code != http.StatusForbidden {
		t.Errorf("CSRFなし: status = %d, want 403", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodPost, "/api/admin/articles", `{"title":"t"}`, true))
	if w.Code != http.StatusCreated {
		t.Errorf("CSRFあり: status = %d, want 201, body = %s", w.Code, w.Body.String())
	}
}

func TestRouter_AdminMe(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(w, adminRequest(http.MethodGet, "/api/admin/me", "", false))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_LoginDoesNotRequireSessionOrCSRF(t *testing.T) {
	router := newTestRouter(t, func(d *RouterDeps) {
		d.AuthService = &mockAuthService{loginFn: func(context.Context, string) (*model.Session, error) {
			return &model.Session{ID: "s", ExpiresAt: time.Now().Add(time.Hour)}, nil
		}}
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, postJSON("/api/admin/login", `{"secret":"pw"}`))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_LoginRateLimited(t *testing.T) {
	router := newTestRouter(t, func(d *RouterDeps) {
		rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(6000, 1, 6000))
		t.Cleanup(rl.Stop)
		d.RateLimiter = rl
	})

	var last int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, postJSON("/api/admin/login", `{"secret":"wrong"}`))
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", last)
	}

	// 閲覧系は別枠
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/news", nil))
	if w.Code != http.StatusOK {
		t.Errorf("news status = %d, want 200", w.Code)
	}
}
