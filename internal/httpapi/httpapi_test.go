package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/collabotd/collabot/internal/model"
)

type fakeStatus struct {
	agents []model.ActiveAgent
	slug   string
	active bool
}

func (f fakeStatus) ActiveDispatches() []model.ActiveAgent { return f.agents }
func (f fakeStatus) ActiveDraftTaskSlug() (string, bool)   { return f.slug, f.active }

func TestHealthzReturnsOK(t *testing.T) {
	s := New(":0", "test", fakeStatus{})
	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestStatusIncludesActiveDraftWhenPresent(t *testing.T) {
	s := New(":0", "test", fakeStatus{slug: "my-task", active: true})
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["activeDraftTaskSlug"] != "my-task" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestStatusOmitsActiveDraftWhenAbsent(t *testing.T) {
	s := New(":0", "test", fakeStatus{})
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if _, ok := body["activeDraftTaskSlug"]; ok {
		t.Fatalf("expected no activeDraftTaskSlug key, got %+v", body)
	}
}
