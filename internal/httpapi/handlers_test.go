package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cantido/hematite/internal/api"
	"github.com/cantido/hematite/internal/auth"
	"github.com/cantido/hematite/internal/metrics"
	"github.com/cantido/hematite/internal/registry"
	"github.com/cantido/hematite/internal/streamlog"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	reg, err := registry.New(t.TempDir())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	facade := api.New(reg)
	return &server{facade: facade, log: zap.NewNop(), metrics: metrics.New()}
}

// withChiParam injects a URL param the way chi's router would after
// matching a route, so handlers under test can read it via
// chi.URLParam without running the full router.
func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(auth.WithUserID(r.Context(), userID))
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "max-age=60" {
		t.Fatalf("unexpected cache-control: %q", cc)
	}
}

func TestHandleAppendAndGetEvent(t *testing.T) {
	s := newTestServer(t)

	body := bytes.NewBufferString(`{"source":"a","id":"1"}`)
	req := httptest.NewRequest(http.MethodPost, "/streams/s1/events?expected_revision=no-stream", body)
	req = withChiParam(asUser(req, "u1"), "id", "s1")
	rec := httptest.NewRecorder()
	s.handleAppendEvents(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Content-Location"); loc != "/streams/s1/events/1" {
		t.Fatalf("unexpected content-location: %q", loc)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/streams/s1/events/1", nil)
	getReq = withChiParam(asUser(getReq, "u1"), "id", "s1")
	getReq = withChiParam(getReq, "revision", "1")
	getRec := httptest.NewRecorder()
	s.handleGetEvent(getRec, getReq)

	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", getRec.Code, getRec.Body.String())
	}
	if cc := getRec.Header().Get("Cache-Control"); cc != "max-age=31536000, immutable" {
		t.Fatalf("unexpected cache-control: %q", cc)
	}

	var doc document
	if err := json.Unmarshal(getRec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHandleAppendRevisionMismatch(t *testing.T) {
	s := newTestServer(t)

	first := httptest.NewRequest(http.MethodPost, "/streams/s1/events?expected_revision=no-stream", bytes.NewBufferString(`{"source":"a","id":"1"}`))
	first = withChiParam(asUser(first, "u1"), "id", "s1")
	s.handleAppendEvents(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/streams/s1/events?expected_revision=no-stream", bytes.NewBufferString(`{"source":"a","id":"2"}`))
	second = withChiParam(asUser(second, "u1"), "id", "s1")
	rec := httptest.NewRecorder()
	s.handleAppendEvents(rec, second)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleGetStreamNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/streams/nope", nil)
	req = withChiParam(asUser(req, "u1"), "id", "nope")
	rec := httptest.NewRecorder()
	s.handleGetStream(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleDeleteStream(t *testing.T) {
	s := newTestServer(t)

	appendReq := httptest.NewRequest(http.MethodPost, "/streams/s1/events?expected_revision=no-stream", bytes.NewBufferString(`{"source":"a","id":"1"}`))
	appendReq = withChiParam(asUser(appendReq, "u1"), "id", "s1")
	s.handleAppendEvents(httptest.NewRecorder(), appendReq)

	delReq := httptest.NewRequest(http.MethodDelete, "/streams/s1", nil)
	delReq = withChiParam(asUser(delReq, "u1"), "id", "s1")
	rec := httptest.NewRecorder()
	s.handleDeleteStream(rec, delReq)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	delReq2 := httptest.NewRequest(http.MethodDelete, "/streams/s1", nil)
	delReq2 = withChiParam(asUser(delReq2, "u1"), "id", "s1")
	rec2 := httptest.NewRecorder()
	s.handleDeleteStream(rec2, delReq2)
	if rec2.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec2.Code)
	}
}

func TestParsePageDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/streams/s1/events", nil)
	offset, limit, err := parsePage(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offset != 0 || limit != defaultPageLimit {
		t.Fatalf("expected defaults, got offset=%d limit=%d", offset, limit)
	}
}

func TestParsePageClampsLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/streams/s1/events?page[limit]=5000", nil)
	_, limit, err := parsePage(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit != maxPageLimit {
		t.Fatalf("expected clamp to %d, got %d", maxPageLimit, limit)
	}
}

func TestParseExpectedRevision(t *testing.T) {
	if _, err := parseExpectedRevision("garbage"); err == nil {
		t.Fatalf("expected error for garbage input")
	}
	got, err := parseExpectedRevision("42")
	if err != nil || got != streamlog.Exact(42) {
		t.Fatalf("expected Exact(42), got %+v, %v", got, err)
	}
}
