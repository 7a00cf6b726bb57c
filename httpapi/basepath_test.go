package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeBasePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"app", "/app"},
		{"/app", "/app"},
		{"/app/", "/app"},
	}
	for _, tc := range cases {
		if got := normalizeBasePath(tc.in); got != tc.want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWithBasePath(t *testing.T) {
	cases := []struct {
		basePath string
		route    string
		want     string
	}{
		{"", "/keepers", "/keepers"},
		{"/app", "/keepers", "/app/keepers"},
		{"app/", "/login", "/app/login"},
		{"/app", "/", "/app/"},
	}
	for _, tc := range cases {
		if got := withBasePath(tc.basePath, tc.route); got != tc.want {
			t.Fatalf("withBasePath(%q, %q) = %q, want %q", tc.basePath, tc.route, got, tc.want)
		}
	}
}

func TestMountBasePath(t *testing.T) {
	h := newHarness(t)
	srv, err := NewServer(Config{SessionCookie: "wayfare_token", BasePath: "/app"}, Deps{
		Entrance: h.entrance,
		Markers:  h.repo,
		Clock:    h.clock,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/app/", nil)
	req.AddCookie(&http.Cookie{Name: "wayfare_token", Value: "tok"})
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/app/keepers" {
		t.Fatalf("expected prefixed redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz under prefix, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside prefix, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app", nil))
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("expected redirect to trailing slash, got %d", rec.Code)
	}
}
