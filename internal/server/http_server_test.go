package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHTTPServer(t *testing.T) (*HTTPServer, *RunStore, *Executor) {
	t.Helper()
	store, exec, reg := newTestExecutor(t)
	return NewHTTPServer(store, exec, reg), store, exec
}

func serve(t *testing.T, srv *HTTPServer, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v: %s", err, rr.Body.String())
	}
	return body
}

func createBody(t *testing.T, runID, yamlText string) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"run_id": runID, "scenario_yaml": yamlText})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestHTTPServerHealthz(t *testing.T) {
	srv, _, _ := newTestHTTPServer(t)
	rr := serve(t, srv, http.MethodGet, "/healthz", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := decode(t, rr)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["timestamp"] == "" {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestHTTPServerSystems(t *testing.T) {
	srv, _, _ := newTestHTTPServer(t)
	rr := serve(t, srv, http.MethodGet, "/v1/systems", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := decode(t, rr)
	systems, ok := body["systems"].([]any)
	if !ok || len(systems) < 5 {
		t.Fatalf("expected the builtin systems, got %v", body["systems"])
	}
	genres, ok := body["genres"].([]any)
	if !ok || len(genres) != 1 || genres[0] != "idle" {
		t.Fatalf("expected [idle] genres, got %v", body["genres"])
	}

	rr = serve(t, srv, http.MethodPost, "/v1/systems", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHTTPServerCreateAndGetRun(t *testing.T) {
	srv, _, exec := newTestHTTPServer(t)

	rr := serve(t, srv, http.MethodPost, "/v1/runs", createBody(t, "http-1", coreScenario))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	run, ok := decode(t, rr)["run"].(map[string]any)
	if !ok || run["id"] != "http-1" {
		t.Fatalf("expected run http-1 in response, got %v", run)
	}
	exec.Wait()

	rr = serve(t, srv, http.MethodGet, "/v1/runs/http-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	run = decode(t, rr)["run"].(map[string]any)
	if run["status"] != string(StatusCompleted) {
		t.Fatalf("expected completed, got %v", run["status"])
	}
	result, ok := run["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result in run")
	}
	if stages, ok := result["stages"].([]any); !ok || len(stages) != 1 {
		t.Fatalf("expected one stage, got %v", result["stages"])
	}
}

func TestHTTPServerCreateRunErrors(t *testing.T) {
	srv, _, _ := newTestHTTPServer(t)
	if rr := serve(t, srv, http.MethodPost, "/v1/runs", createBody(t, "dup", coreScenario)); rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "bad json", body: "{", want: http.StatusBadRequest},
		{name: "missing scenario", body: `{"run_id":"x"}`, want: http.StatusBadRequest},
		{name: "invalid scenario", body: createBody(t, "x", "genre: rhythm"), want: http.StatusBadRequest},
		{name: "bad run id", body: createBody(t, "a/b", coreScenario), want: http.StatusBadRequest},
		{name: "duplicate", body: createBody(t, "dup", coreScenario), want: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, srv, http.MethodPost, "/v1/runs", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected status %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
			if decode(t, rr)["error"] == "" {
				t.Fatalf("expected error message")
			}
		})
	}
}

func TestHTTPServerListRuns(t *testing.T) {
	srv, store, _ := newTestHTTPServer(t)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.Create(id, coreScenario); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	rr := serve(t, srv, http.MethodGet, "/v1/runs?limit=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := decode(t, rr)
	runs := body["runs"].([]any)
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	pagination := body["pagination"].(map[string]any)
	if pagination["limit"] != float64(2) || pagination["count"] != float64(2) {
		t.Fatalf("unexpected pagination: %v", pagination)
	}

	rr = serve(t, srv, http.MethodGet, "/v1/runs?status=pending", "")
	if got := len(decode(t, rr)["runs"].([]any)); got != 3 {
		t.Fatalf("expected 3 pending runs, got %d", got)
	}

	rr = serve(t, srv, http.MethodGet, "/v1/runs?status=paused", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestHTTPServerGetRunNotFound(t *testing.T) {
	srv, _, _ := newTestHTTPServer(t)
	rr := serve(t, srv, http.MethodGet, "/v1/runs/nonexistent", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	rr = serve(t, srv, http.MethodGet, "/v1/runs/", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	rr = serve(t, srv, http.MethodGet, "/v1/runs/x/metrics", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestHTTPServerStopRun(t *testing.T) {
	srv, store, _ := newTestHTTPServer(t)
	if _, err := store.Create("pending", coreScenario); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rr := serve(t, srv, http.MethodPost, "/v1/runs/pending:stop", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	run := decode(t, rr)["run"].(map[string]any)
	if run["status"] != string(StatusCancelled) {
		t.Fatalf("expected cancelled, got %v", run["status"])
	}

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{name: "already terminal", method: http.MethodPost, target: "/v1/runs/pending:stop", want: http.StatusConflict},
		{name: "not found", method: http.MethodPost, target: "/v1/runs/ghost:stop", want: http.StatusNotFound},
		{name: "missing id", method: http.MethodPost, target: "/v1/runs/:stop", want: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodGet, target: "/v1/runs/pending:stop", want: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, srv, tt.method, tt.target, "")
			if rr.Code != tt.want {
				t.Fatalf("expected status %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHTTPServerReport(t *testing.T) {
	srv, store, exec := newTestHTTPServer(t)
	if _, err := exec.Submit("rep", coreScenario); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	exec.Wait()

	tests := []struct {
		format      string
		contentType string
		contains    string
	}{
		{format: "", contentType: "text/plain; charset=utf-8", contains: "STAGE"},
		{format: "csv", contentType: "text/csv", contains: "stage,kind,key,value"},
		{format: "json", contentType: "application/json", contains: `"stages"`},
	}
	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			rr := serve(t, srv, http.MethodGet, "/v1/runs/rep/report?format="+tt.format, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
			}
			if got := rr.Header().Get("Content-Type"); got != tt.contentType {
				t.Fatalf("expected content type %q, got %q", tt.contentType, got)
			}
			if !strings.Contains(rr.Body.String(), tt.contains) {
				t.Fatalf("expected %q in report:\n%s", tt.contains, rr.Body.String())
			}
		})
	}

	rr := serve(t, srv, http.MethodGet, "/v1/runs/rep/report?format=xml", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	if _, err := store.Create("empty", coreScenario); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	rr = serve(t, srv, http.MethodGet, "/v1/runs/empty/report", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}
