package daemon

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tamperwatch/internal/config"
	"tamperwatch/internal/embedding"
	"tamperwatch/internal/history"
	"tamperwatch/internal/logging"
	"tamperwatch/internal/testsupport"
	"tamperwatch/internal/workflow"
)

func newTestServer(t *testing.T, cfg *config.Config, store *history.Store) *apiServer {
	t.Helper()
	embedder := embedding.Func(func(context.Context, image.Image) (embedding.Vector, error) {
		return embedding.Vector{1, 0}, nil
	})
	mgr := workflow.NewManager(cfg, embedder, logging.NewNop())
	d, err := New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &apiServer{daemon: d}
}

func seedHistory(t *testing.T, store *history.Store) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []history.Evaluation{
		{CameraID: "cam1", Inferred: true, Distance: 0.1, Threshold: 0.4, CreatedAt: base},
		{CameraID: "cam1", Inferred: true, Distance: 0.5, Threshold: 0.4, Tampered: true, CreatedAt: base.Add(time.Minute)},
		{CameraID: "retired", Inferred: true, Distance: 0.2, Threshold: 0.4, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, row := range rows {
		if _, err := store.Record(context.Background(), row); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestAPIServerHandleStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCamera("cam1"))
	srv := newTestServer(t, cfg, nil)

	w := httptest.NewRecorder()
	srv.handleStatus(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var status Status
	decodeBody(t, w, &status)
	if status.Running {
		t.Fatal("daemon was never started")
	}
	if len(status.Workflow.Cameras) != 1 || status.Workflow.Cameras[0] != "cam1" {
		t.Fatalf("unexpected cameras: %v", status.Workflow.Cameras)
	}
	if status.PID == 0 {
		t.Fatal("expected pid to be reported")
	}

	w = httptest.NewRecorder()
	srv.handleStatus(w, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIServerHandleEvaluations(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCamera("cam1"))
	store := testsupport.MustOpenHistory(t, cfg)
	seedHistory(t, store)
	srv := newTestServer(t, cfg, store)

	w := httptest.NewRecorder()
	srv.handleEvaluations(w, httptest.NewRequest(http.MethodGet, "/api/evaluations?camera=cam1&limit=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var resp EvaluationList
	decodeBody(t, w, &resp)
	if len(resp.Evaluations) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(resp.Evaluations))
	}
	if !resp.Evaluations[0].Tampered {
		t.Fatalf("expected newest cam1 evaluation first, got %+v", resp.Evaluations[0])
	}

	w = httptest.NewRecorder()
	srv.handleEvaluations(w, httptest.NewRequest(http.MethodGet, "/api/evaluations?tampered=true", nil))
	decodeBody(t, w, &resp)
	if len(resp.Evaluations) != 1 || resp.Evaluations[0].CameraID != "cam1" {
		t.Fatalf("tampered filter returned %+v", resp.Evaluations)
	}

	for _, query := range []string{"limit=abc", "limit=-3", "since=yesterday"} {
		w = httptest.NewRecorder()
		srv.handleEvaluations(w, httptest.NewRequest(http.MethodGet, "/api/evaluations?"+query, nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, w.Code)
		}
	}
}

func TestAPIServerHandleEvaluationsWithoutHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCamera("cam1"))
	srv := newTestServer(t, cfg, nil)

	w := httptest.NewRecorder()
	srv.handleEvaluations(w, httptest.NewRequest(http.MethodGet, "/api/evaluations", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if got := w.Body.String(); got != "{\"evaluations\":[]}\n" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestAPIServerHandleEvaluation(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCamera("cam1"))
	store := testsupport.MustOpenHistory(t, cfg)
	id, err := store.Record(context.Background(), history.Evaluation{CameraID: "cam1", Tampered: true, Inferred: true, Distance: 0.7})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	srv := newTestServer(t, cfg, store)

	w := httptest.NewRecorder()
	srv.handleEvaluation(w, httptest.NewRequest(http.MethodGet, "/api/evaluations/1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var ev history.Evaluation
	decodeBody(t, w, &ev)
	if ev.ID != id || ev.Distance != 0.7 {
		t.Fatalf("unexpected evaluation: %+v", ev)
	}

	cases := map[string]int{
		"/api/evaluations/99":  http.StatusNotFound,
		"/api/evaluations/x":   http.StatusBadRequest,
		"/api/evaluations/1/a": http.StatusNotFound,
	}
	for path, want := range cases {
		w = httptest.NewRecorder()
		srv.handleEvaluation(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, w.Code)
		}
	}
}

func TestAPIServerHandleCameras(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCamera("cam1"), testsupport.WithCamera("cam2"))
	store := testsupport.MustOpenHistory(t, cfg)
	seedHistory(t, store)
	srv := newTestServer(t, cfg, store)

	w := httptest.NewRecorder()
	srv.handleCameras(w, httptest.NewRequest(http.MethodGet, "/api/cameras", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp struct {
		Cameras []CameraView `json:"cameras"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Cameras) != 3 {
		t.Fatalf("expected configured cameras plus history-only camera, got %+v", resp.Cameras)
	}
	if resp.Cameras[0].CameraID != "cam1" || resp.Cameras[0].History == nil || resp.Cameras[0].History.Tampered != 1 {
		t.Fatalf("cam1 view = %+v", resp.Cameras[0])
	}
	if resp.Cameras[1].CameraID != "cam2" || resp.Cameras[1].History != nil {
		t.Fatalf("cam2 view = %+v", resp.Cameras[1])
	}
	if resp.Cameras[2].CameraID != "retired" || resp.Cameras[2].WatchDir != "" {
		t.Fatalf("history-only view = %+v", resp.Cameras[2])
	}
}

func TestAuthMiddleware(t *testing.T) {
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

	open := authMiddleware("", ok)
	w := httptest.NewRecorder()
	open(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected open access without token, got %d", w.Code)
	}

	guarded := authMiddleware("s3cret", ok)
	cases := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{name: "missing", target: "/api/status", want: http.StatusUnauthorized},
		{name: "wrong scheme", target: "/api/status", header: "Basic s3cret", want: http.StatusUnauthorized},
		{name: "wrong token", target: "/api/status", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "bearer", target: "/api/status", header: "Bearer s3cret", want: http.StatusNoContent},
		{name: "query token", target: "/api/events?access_token=s3cret", want: http.StatusNoContent},
		{name: "header wins over query", target: "/api/events?access_token=s3cret", header: "Bearer nope", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			guarded(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}
