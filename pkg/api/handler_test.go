package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/bobthearsonist/meeting-coach/pkg/classifier"
	"github.com/bobthearsonist/meeting-coach/pkg/config"
	"github.com/bobthearsonist/meeting-coach/pkg/models"
	"github.com/bobthearsonist/meeting-coach/pkg/pipeline"
	"github.com/bobthearsonist/meeting-coach/pkg/storage"
	"github.com/bobthearsonist/meeting-coach/pkg/timeline"
)

type fixedClassifier struct{}

func (fixedClassifier) Classify(ctx context.Context, text string) classifier.Result {
	return classifier.Result{Classification: classifier.Classification{
		State: models.StateCalm, Cue: models.CueAppropriate, Confidence: 0.9,
	}}
}

func newTestRouter(t *testing.T) (*mux.Router, *pipeline.Manager) {
	t.Helper()

	cfg := &config.Config{
		Pipeline: config.PipelineConfig{Workers: 2, QueueSize: 16, MinWordsToClassify: 3},
		Timeline: config.TimelineConfig{MaxEntries: 50, MaxAgeSeconds: 300},
		Alerts: config.AlertsConfig{
			PaceEnabled: true, PaceTooSlow: 50, PaceTooFast: 300,
			FillerEnabled: true, FillerThreshold: 5,
			SustainedEnabled: true, SustainedWindowSeconds: 30,
			ConcerningStates: []models.EmotionalState{models.StateOverwhelmed},
		},
		Pace: config.PaceConfig{FillerWords: []string{"um", "uh"}},
	}

	tl := timeline.New(cfg.Timeline, cfg.Alerts)
	hub := NewHub()
	mem := storage.NewMemoryStore()
	manager := pipeline.NewManager(cfg, fixedClassifier{}, tl, hub, mem)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("start manager: %v", err)
	}

	handlers := NewHandlers(manager, tl, mem, hub)
	router := mux.NewRouter()
	router.HandleFunc("/segments", handlers.SubmitSegmentHandler).Methods("POST")
	router.HandleFunc("/timeline", handlers.TimelineHandler).Methods("GET")
	router.HandleFunc("/sessions/start", handlers.StartSessionHandler).Methods("POST")
	router.HandleFunc("/sessions/stop", handlers.StopSessionHandler).Methods("POST")
	router.HandleFunc("/sessions", handlers.ListSessionsHandler).Methods("GET")
	router.HandleFunc("/sessions/{id}", handlers.GetSessionHandler).Methods("GET")
	router.HandleFunc("/status", handlers.StatusHandler).Methods("GET")
	return router, manager
}

func do(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSessionControlHandlers(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, "POST", "/sessions/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: got %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var started map[string]string
	json.Unmarshal(rec.Body.Bytes(), &started)
	if started["session_id"] == "" {
		t.Fatal("start response missing session_id")
	}

	if rec := do(t, router, "POST", "/sessions/start", nil); rec.Code != http.StatusConflict {
		t.Errorf("double start: got %d, want 409", rec.Code)
	}

	if rec := do(t, router, "POST", "/sessions/stop", nil); rec.Code != http.StatusOK {
		t.Errorf("stop: got %d, want 200", rec.Code)
	}
	if rec := do(t, router, "POST", "/sessions/stop", nil); rec.Code != http.StatusConflict {
		t.Errorf("double stop: got %d, want 409", rec.Code)
	}
}

func TestSubmitSegmentHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	seg := map[string]interface{}{"text": "um hello there everyone", "start_time": 0.0, "end_time": 2.5}

	if rec := do(t, router, "POST", "/segments", seg); rec.Code != http.StatusConflict {
		t.Errorf("no session: got %d, want 409", rec.Code)
	}

	do(t, router, "POST", "/sessions/start", nil)

	rec := do(t, router, "POST", "/segments", seg)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit: got %d, want 202 (%s)", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if id, _ := resp["segment_id"].(string); id == "" {
		t.Error("submit response missing segment_id")
	}

	if rec := do(t, router, "POST", "/segments", map[string]string{"text": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty text: got %d, want 400", rec.Code)
	}
}

func TestTimelineAndArchiveHandlers(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, "POST", "/sessions/start", nil)
	var started map[string]string
	json.Unmarshal(rec.Body.Bytes(), &started)
	sessionID := started["session_id"]

	do(t, router, "POST", "/segments", map[string]interface{}{
		"text": "we are making really good progress on this project", "start_time": 0.0, "end_time": 4.0,
	})
	// Stop waits for in-flight analysis, so the window is settled after.
	do(t, router, "POST", "/sessions/stop", nil)

	rec = do(t, router, "GET", "/timeline", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("timeline: got %d, want 200", rec.Code)
	}
	var tu models.TimelineUpdate
	if err := json.Unmarshal(rec.Body.Bytes(), &tu); err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	if tu.Type != "timeline_update" {
		t.Errorf("type: got %q, want timeline_update", tu.Type)
	}
	if len(tu.RecentEntries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(tu.RecentEntries))
	}
	if tu.Summary.DominantState != models.StateCalm {
		t.Errorf("dominant: got %q, want calm", tu.Summary.DominantState)
	}

	rec = do(t, router, "GET", fmt.Sprintf("/sessions/%s", sessionID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session: got %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var record models.SessionRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.ID != sessionID || len(record.Entries) != 1 {
		t.Errorf("record: id %q, %d entries", record.ID, len(record.Entries))
	}

	if rec := do(t, router, "GET", "/sessions/does-not-exist", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing session: got %d, want 404", rec.Code)
	}
}

func TestListSessionsHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, "GET", "/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: got %d, want 200", rec.Code)
	}
	var empty struct {
		Sessions []models.SessionRecord `json:"sessions"`
		Count    int                    `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &empty)
	if empty.Count != 0 || len(empty.Sessions) != 0 {
		t.Fatalf("expected empty index, got count %d", empty.Count)
	}

	var ids []string
	for i := 0; i < 2; i++ {
		rec := do(t, router, "POST", "/sessions/start", nil)
		var started map[string]string
		json.Unmarshal(rec.Body.Bytes(), &started)
		ids = append(ids, started["session_id"])
		do(t, router, "POST", "/sessions/stop", nil)
	}

	rec = do(t, router, "GET", "/sessions", nil)
	var listed struct {
		Sessions []models.SessionRecord `json:"sessions"`
		Count    int                    `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if listed.Count != 2 || len(listed.Sessions) != 2 {
		t.Fatalf("list: got count %d with %d sessions, want 2", listed.Count, len(listed.Sessions))
	}
	// Oldest first, matching the archive's ordering.
	for i, want := range ids {
		if listed.Sessions[i].ID != want {
			t.Errorf("session %d: got id %q, want %q", i, listed.Sessions[i].ID, want)
		}
	}
}

func TestStatusHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, "GET", "/status", nil)
	var state models.SessionState
	json.Unmarshal(rec.Body.Bytes(), &state)
	if state.IsSessionActive {
		t.Error("session should not be active before start")
	}

	do(t, router, "POST", "/sessions/start", nil)
	rec = do(t, router, "GET", "/status", nil)
	json.Unmarshal(rec.Body.Bytes(), &state)
	if !state.IsSessionActive || !state.IsRecording {
		t.Errorf("status after start: %+v", state)
	}
}
