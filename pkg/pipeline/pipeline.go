// Package pipeline orchestrates the per-segment analysis path: pace
// computation, classification, timeline aggregation, and broadcast. The
// classifier call is the only blocking step; everything after it is bounded
// CPU work inside the aggregator's critical section.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bobthearsonist/meeting-coach/pkg/classifier"
	"github.com/bobthearsonist/meeting-coach/pkg/config"
	"github.com/bobthearsonist/meeting-coach/pkg/models"
	"github.com/bobthearsonist/meeting-coach/pkg/pace"
	"github.com/bobthearsonist/meeting-coach/pkg/timeline"
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrSessionActive   = errors.New("session already active")
	ErrQueueFull       = errors.New("pipeline queue is full")
)

// Classifier is the external tone-classification boundary.
type Classifier interface {
	Classify(ctx context.Context, text string) classifier.Result
}

// Broadcaster delivers updates to subscribers. Delivery guarantees are its
// problem; the pipeline only hands it internally consistent content.
type Broadcaster interface {
	BroadcastMeetingUpdate(models.MeetingUpdate)
	BroadcastTimelineUpdate(models.TimelineUpdate)
	BroadcastAlert(models.AlertMessage)
	BroadcastRecordingStatus(models.RecordingStatus)
}

// Archiver persists a finished session's record.
type Archiver interface {
	SaveSession(*models.SessionRecord) error
}

// Manager runs the analysis workers and owns session lifecycle.
type Manager struct {
	cfg         config.PipelineConfig
	fillerWords []string
	classifier  Classifier
	timeline    *timeline.Aggregator
	broadcaster Broadcaster
	archiver    Archiver

	pool   *WorkerPool
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	sessionID string
	startedAt time.Time
	active    bool

	// inFlight counts accepted segments whose results have not yet landed
	// in the timeline. Session stop waits on it before freezing.
	inFlight sync.WaitGroup
}

func NewManager(cfg *config.Config, cls Classifier, tl *timeline.Aggregator, bc Broadcaster, archiver Archiver) *Manager {
	return &Manager{
		cfg:         cfg.Pipeline,
		fillerWords: cfg.Pace.FillerWords,
		classifier:  cls,
		timeline:    tl,
		broadcaster: bc,
		archiver:    archiver,
	}
}

func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.pool = NewWorkerPool(m.cfg.Workers, m.cfg.QueueSize, m.processSegment)
	m.pool.Start(m.ctx)
	log.WithField("workers", m.cfg.Workers).Info("analysis pipeline started")
	return nil
}

func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.pool != nil {
		m.pool.Stop()
	}
	log.Info("analysis pipeline stopped")
}

// StartSession resets the timeline and begins accepting segments.
func (m *Manager) StartSession() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return m.sessionID, ErrSessionActive
	}

	m.sessionID = uuid.New().String()
	m.startedAt = time.Now()
	m.active = true
	m.timeline.Reset()

	log.WithField("session_id", m.sessionID).Info("session started")
	m.broadcaster.BroadcastRecordingStatus(models.RecordingStatus{
		Type:        "recording_status",
		IsListening: true,
		SessionID:   m.sessionID,
	})
	return m.sessionID, nil
}

// StopSession stops accepting segments, waits for in-flight classifications
// to land, freezes the window, and archives the session. The frozen window
// stays queryable until the next StartSession.
func (m *Manager) StopSession() (*models.SessionRecord, error) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	m.active = false
	sessionID := m.sessionID
	startedAt := m.startedAt
	m.mu.Unlock()

	// Outstanding classifications are not cancelled; they are bounded by the
	// classifier timeout and their results still belong in the record.
	m.inFlight.Wait()
	m.timeline.Freeze()

	entries, summary := m.timeline.Snapshot()
	record := &models.SessionRecord{
		ID:        sessionID,
		StartedAt: startedAt,
		StoppedAt: time.Now(),
		Summary:   summary,
		Entries:   entries,
	}

	if err := m.archiver.SaveSession(record); err != nil {
		log.WithError(err).WithField("session_id", sessionID).Error("failed to archive session")
	}

	m.broadcaster.BroadcastRecordingStatus(models.RecordingStatus{
		Type:        "recording_status",
		IsListening: false,
		SessionID:   sessionID,
	})
	m.broadcaster.BroadcastTimelineUpdate(models.NewTimelineUpdate(summary, m.timeline.Recent(10)))

	log.WithFields(log.Fields{
		"session_id": sessionID,
		"entries":    summary.TotalEntries,
		"alerts":     summary.AlertCount,
	}).Info("session stopped")
	return record, nil
}

// Submit queues one segment for analysis. Non-blocking: a full queue is an
// error for the caller, never a stall for the audio path.
func (m *Manager) Submit(text string, startTime, endTime float64) (models.Segment, error) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return models.Segment{}, ErrNoActiveSession
	}
	seg := models.NewSegment(m.sessionID, text, startTime, endTime)
	// Registered under the session lock so StopSession's wait can never race
	// a new in-flight segment.
	m.inFlight.Add(1)
	m.mu.Unlock()

	if !m.pool.Submit(seg) {
		m.inFlight.Done()
		return models.Segment{}, ErrQueueFull
	}
	return seg, nil
}

// Status reports the lifecycle flags for the status endpoint and UI.
func (m *Manager) Status() models.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.SessionState{
		IsSessionActive: m.active,
		IsRecording:     m.active,
		SessionID:       m.sessionID,
	}
}

// processSegment runs on a pool worker. One classifier call per segment,
// result timestamped by the segment's own end time regardless of when the
// classification completes.
func (m *Manager) processSegment(ctx context.Context, seg models.Segment) {
	defer m.inFlight.Done()

	logger := log.WithFields(log.Fields{
		"segment_id": seg.ID,
		"session_id": seg.SessionID,
	})

	p, err := pace.Compute(seg, m.fillerWords)
	degenerate := errors.Is(err, pace.ErrDegenerateSegment)
	if degenerate {
		logger.WithFields(log.Fields{
			"start": seg.StartTime,
			"end":   seg.EndTime,
		}).Warn("degenerate segment, pace defaulted to 0")
	}

	res := models.AnalysisResult{
		ID:             seg.ID,
		SessionID:      seg.SessionID,
		Timestamp:      seg.EndTime,
		Text:           seg.Text,
		EmotionalState: models.StateUnknown,
		SocialCue:      models.CueUnknown,
		Confidence:     0,
		WPM:            p.WPM,
		FillerCounts:   p.FillerCounts,
	}

	// Short utterances are too noisy to classify, and degenerate segments
	// skip classification outright; pace still counts either way.
	if !degenerate && seg.WordCount() >= m.cfg.MinWordsToClassify {
		cls := m.classifier.Classify(ctx, seg.Text)
		if cls.Degraded {
			logger.WithField("reason", cls.Reason).Debug("classification degraded")
		}
		res.EmotionalState = cls.Classification.State
		res.SocialCue = cls.Classification.Cue
		res.Confidence = cls.Classification.Confidence
	}

	verdict, err := m.timeline.Append(res)
	if err != nil {
		logger.WithError(err).Warn("result dropped, timeline not accepting appends")
		return
	}
	if verdict.Alert {
		res.Alert = true
		for _, r := range verdict.Reasons {
			res.AlertReasons = append(res.AlertReasons, r.Category)
		}
	}

	m.broadcaster.BroadcastMeetingUpdate(models.NewMeetingUpdate(res))
	for _, r := range verdict.Reasons {
		m.broadcaster.BroadcastAlert(models.AlertMessage{
			Type:      "alert",
			Message:   r.Message,
			Severity:  r.Severity,
			Category:  r.Category,
			Timestamp: res.Timestamp,
		})
	}

	_, summary := m.timeline.Snapshot()
	m.broadcaster.BroadcastTimelineUpdate(models.NewTimelineUpdate(summary, m.timeline.Recent(10)))

	logger.WithFields(log.Fields{
		"wpm":   res.WPM,
		"state": res.EmotionalState,
		"alert": res.Alert,
		"words": seg.WordCount(),
	}).Debug("segment analyzed")
}
