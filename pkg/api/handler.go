package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/bobthearsonist/meeting-coach/pkg/models"
	"github.com/bobthearsonist/meeting-coach/pkg/pipeline"
	"github.com/bobthearsonist/meeting-coach/pkg/storage"
	"github.com/bobthearsonist/meeting-coach/pkg/timeline"
)

// SessionArchive looks up archived sessions; satisfied by storage.Archive.
type SessionArchive interface {
	GetSession(id string) (*models.SessionRecord, error)
	ListSessions() ([]*models.SessionRecord, error)
}

// Handlers exposes the HTTP surface: segment ingestion from the external
// transcriber, session control, timeline snapshots, and the session archive.
type Handlers struct {
	manager  *pipeline.Manager
	timeline *timeline.Aggregator
	archive  SessionArchive
	hub      *Hub
}

func NewHandlers(manager *pipeline.Manager, tl *timeline.Aggregator, archive SessionArchive, hub *Hub) *Handlers {
	return &Handlers{
		manager:  manager,
		timeline: tl,
		archive:  archive,
		hub:      hub,
	}
}

// segmentRequest is the segment source boundary: one utterance with
// session-relative timing from the external transcriber.
type segmentRequest struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

func (h *Handlers) SubmitSegmentHandler(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid segment payload", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	seg, err := h.manager.Submit(req.Text, req.StartTime, req.EndTime)
	switch {
	case errors.Is(err, pipeline.ErrNoActiveSession):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, pipeline.ErrQueueFull):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"segment_id": seg.ID,
		"session_id": seg.SessionID,
		"status":     "submitted",
	})
}

func (h *Handlers) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := h.manager.StartSession()
	if errors.Is(err, pipeline.ErrSessionActive) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"status":     "started",
	})
}

func (h *Handlers) StopSessionHandler(w http.ResponseWriter, r *http.Request) {
	record, err := h.manager.StopSession()
	if errors.Is(err, pipeline.ErrNoActiveSession) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// TimelineHandler serves a consistent snapshot of the current window. The
// window may belong to a stopped (frozen) session until the next start.
func (h *Handlers) TimelineHandler(w http.ResponseWriter, r *http.Request) {
	window, summary := h.timeline.Snapshot()
	writeJSON(w, http.StatusOK, models.NewTimelineUpdate(summary, window))
}

// ListSessionsHandler indexes the sessions archived during this run.
func (h *Handlers) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.archive.ListSessions()
	if err != nil {
		log.WithError(err).Error("archive list failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": records,
		"count":    len(records),
	})
}

func (h *Handlers) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := h.archive.GetSession(id)
	if errors.Is(err, storage.ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.WithError(err).WithField("session_id", id).Error("archive lookup failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	state := h.manager.Status()
	state.IsConnected = h.hub.HasClients()
	writeJSON(w, http.StatusOK, state)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("response encode failed")
	}
}
