package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/eventbus"
)

// fakeManager substitutes jobmanager.Manager so handler tests don't need a
// real pipeline running.
type fakeManager struct {
	createID  string
	createErr error
	pauseErr  error
	resumeErr error
	cancelErr error

	lastOpts catalog.JobOptions
}

func (f *fakeManager) CreateJob(_ context.Context, opts catalog.JobOptions) (string, error) {
	f.lastOpts = opts
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createID, nil
}

func (f *fakeManager) PauseJob(_ context.Context, _ string) error  { return f.pauseErr }
func (f *fakeManager) ResumeJob(_ context.Context, _ string) error { return f.resumeErr }
func (f *fakeManager) CancelJob(_ context.Context, _ string) error { return f.cancelErr }

func testServer(t *testing.T, mgr Manager) (*Server, *catalog.Store, string) {
	t.Helper()
	root := t.TempDir()
	store, err := catalog.Open(root)
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bus := eventbus.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, bus, mgr, root, "127.0.0.1:0", log), store, root
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := testServer(t, &fakeManager{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("expected ok:true, got %v", body)
	}
}

func TestHandleCreateJob_RejectsUnboundLibraryRoot(t *testing.T) {
	srv, _, _ := testServer(t, &fakeManager{createID: "J1"})

	reqBody := `{"library_root":"/some/other/place","options":{}}`
	req := httptest.NewRequest(http.MethodPost, "/jobs/index", strings.NewReader(reqBody))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["message"] != catalog.ErrLibraryRootNotFound {
		t.Errorf("expected %q, got %v", catalog.ErrLibraryRootNotFound, body["message"])
	}
}

func TestHandleCreateJob_DefaultsToBoundRoot(t *testing.T) {
	mgr := &fakeManager{createID: "J2"}
	srv, _, _ := testServer(t, mgr)

	req := httptest.NewRequest(http.MethodPost, "/jobs/index", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["job_id"] != "J2" {
		t.Errorf("expected job_id J2, got %v", body)
	}
	if !mgr.lastOpts.EnableText {
		t.Errorf("expected default options to enable text pipeline")
	}
}

func TestHandleJobSnapshot_NotFound(t *testing.T) {
	srv, _, _ := testServer(t, &fakeManager{})

	req := httptest.NewRequest(http.MethodGet, "/jobs/nope", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 (envelope error), got %d", rec.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["ok"] != false || body["message"] != catalog.ErrJobNotFound {
		t.Errorf("expected job_not_found envelope, got %v", body)
	}
}

func TestHandleJobSnapshot_Found(t *testing.T) {
	srv, store, root := testServer(t, &fakeManager{})
	ctx := context.Background()

	if err := store.InsertJob(ctx, "J3", root, `{"enable_text":true}`); err != nil {
		t.Fatalf("inserting job: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/jobs/J3", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["ok"] != true || body["job_id"] != "J3" {
		t.Errorf("unexpected snapshot: %v", body)
	}
	if body["now_running"] != nil {
		t.Errorf("expected no running task, got %v", body["now_running"])
	}
}

func TestHandlePauseResumeCancel_AlwaysOK(t *testing.T) {
	mgr := &fakeManager{pauseErr: context.Canceled}
	srv, _, _ := testServer(t, mgr)

	for _, path := range []string{"/jobs/J4/pause", "/jobs/J4/resume", "/jobs/J4/cancel"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestHandleLibrarySummary_Empty(t *testing.T) {
	srv, _, _ := testServer(t, &fakeManager{})

	req := httptest.NewRequest(http.MethodGet, "/library/summary", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["files"] != float64(0) || body["pages"] != float64(0) {
		t.Errorf("expected an empty library, got %v", body)
	}
}

func TestHandleLibraryFilePages_UnknownFile(t *testing.T) {
	srv, _, _ := testServer(t, &fakeManager{})

	req := httptest.NewRequest(http.MethodGet, "/library/files/999/pages", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	pages, ok := body["pages"].([]any)
	if !ok || len(pages) != 0 {
		t.Errorf("expected an empty pages array, got %v", body["pages"])
	}
}

func TestCORS_AllowsLoopbackOriginOnly(t *testing.T) {
	srv, _, _ := testServer(t, &fakeManager{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:1420")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:1420" {
		t.Errorf("expected the loopback origin to be allowed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected a non-loopback origin to be refused, got %q", got)
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	srv, _, _ := testServer(t, &fakeManager{})

	req := httptest.NewRequest(http.MethodOptions, "/jobs/index", nil)
	req.Header.Set("Origin", "http://127.0.0.1:1420")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
}

func TestHandleJobEvents_SendsHelloFrame(t *testing.T) {
	srv, _, _ := testServer(t, &fakeManager{})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/jobs/J5/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.Router().ServeHTTP(rec, req)
		close(done)
	}()
	cancel()
	<-done

	if !strings.Contains(rec.Body.String(), `"type":"hello"`) {
		t.Errorf("expected a hello frame, got %q", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"job_id":"J5"`) {
		t.Errorf("expected the job id in the hello frame, got %q", rec.Body.String())
	}
}
