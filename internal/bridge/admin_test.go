package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kkirby/rax25kb/internal/config"
	"github.com/kkirby/rax25kb/internal/testutil/testlog"
)

func newTestAdmin(t *testing.T) *AdminServer {
	t.Helper()
	sup := NewSupervisor(zerolog.Nop())
	l := NewLink(LinkOptions{
		ID:     "admin-test",
		A:      Side{Endpoint: newFakeEndpoint(0, 0)},
		B:      Side{Endpoint: newFakeEndpoint(0, 0)},
		Logger: zerolog.Nop(),
	})
	if err := sup.Add(l); err != nil {
		t.Fatalf("add: %v", err)
	}
	return NewAdminServer(config.AdminConfig{Listen: "127.0.0.1:0"}, sup, zerolog.Nop())
}

func TestAdminHealth(t *testing.T) {
	testlog.Start(t)
	srv := newTestAdmin(t)

	w := httptest.NewRecorder()
	srv.router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %q, want ok", body["status"])
	}
}

func TestAdminStatusListsLinks(t *testing.T) {
	testlog.Start(t)
	srv := newTestAdmin(t)

	w := httptest.NewRecorder()
	srv.router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Links []LinkStatus `json:"links"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Links) != 1 || body.Links[0].ID != "admin-test" {
		t.Fatalf("links = %+v", body.Links)
	}
	if body.Links[0].State != StateConnecting.String() {
		t.Fatalf("state = %q, want connecting", body.Links[0].State)
	}
}

func TestAdminMetricsExposition(t *testing.T) {
	testlog.Start(t)
	srv := newTestAdmin(t)

	w := httptest.NewRecorder()
	srv.router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "rax25kb_") {
		t.Fatal("exposition is missing bridge series")
	}
}
