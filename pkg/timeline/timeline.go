// Package timeline owns the rolling window of analysis results. It is the
// sole ordering authority: completions may land in any order, the window
// they land in is always sorted by segment end time.
package timeline

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/bobthearsonist/meeting-coach/pkg/alerts"
	"github.com/bobthearsonist/meeting-coach/pkg/config"
	"github.com/bobthearsonist/meeting-coach/pkg/models"
)

// ErrFrozen is returned by Append after the session has stopped. The window
// stays queryable; it just stops moving.
var ErrFrozen = errors.New("timeline is frozen")

// Aggregator is the bounded, time-ordered window plus its derived summary.
// All access is serialized behind one mutex; the alert evaluation and flag
// mutation happen inside the append critical section so no snapshot can
// ever observe a result whose alert bit is still pending.
type Aggregator struct {
	mu       sync.Mutex
	entries  []models.AnalysisResult
	frozen   bool
	maxCount int
	maxAge   float64

	alertCfg config.AlertsConfig
}

func New(cfg config.TimelineConfig, alertCfg config.AlertsConfig) *Aggregator {
	return &Aggregator{
		maxCount: cfg.MaxEntries,
		maxAge:   cfg.MaxAgeSeconds,
		alertCfg: alertCfg,
	}
}

// Append inserts the result in timestamp order, evaluates the alert rules
// against the updated window, sets the alert flag, and evicts from the
// front until the count and age caps hold. Safe for concurrent callers.
// The returned verdict lets the caller broadcast standalone alert messages.
func (a *Aggregator) Append(res models.AnalysisResult) (alerts.Verdict, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return alerts.Verdict{}, ErrFrozen
	}

	idx := a.insert(res)
	if !a.ordered() {
		// Should be unreachable; the insert above maintains order. Drop the
		// entry rather than serving a window that lies about chronology.
		log.WithField("timestamp", res.Timestamp).
			Error("window order invariant violated after insert, dropping entry (bug)")
		a.entries = append(a.entries[:idx], a.entries[idx+1:]...)
		return alerts.Verdict{}, nil
	}

	verdict := alerts.Evaluate(a.entries[idx], a.entries, a.alertCfg)
	if verdict.Alert {
		a.entries[idx].Alert = true
		for _, r := range verdict.Reasons {
			a.entries[idx].AlertReasons = append(a.entries[idx].AlertReasons, r.Category)
		}
	}

	a.evict()
	return verdict, nil
}

// insert places res so timestamps stay non-decreasing, scanning from the
// tail since near-ordered arrival is the common case. The window is small
// (tens of entries) so linear insertion beats maintaining a heap.
func (a *Aggregator) insert(res models.AnalysisResult) int {
	idx := len(a.entries)
	for idx > 0 && a.entries[idx-1].Timestamp > res.Timestamp {
		idx--
	}
	a.entries = append(a.entries, models.AnalysisResult{})
	copy(a.entries[idx+1:], a.entries[idx:])
	a.entries[idx] = res
	return idx
}

func (a *Aggregator) ordered() bool {
	for i := 1; i < len(a.entries); i++ {
		if a.entries[i-1].Timestamp > a.entries[i].Timestamp {
			return false
		}
	}
	return true
}

func (a *Aggregator) evict() {
	for len(a.entries) > a.maxCount {
		a.entries = a.entries[1:]
	}
	if len(a.entries) == 0 {
		return
	}
	newest := a.entries[len(a.entries)-1].Timestamp
	for len(a.entries) > 1 && newest-a.entries[0].Timestamp > a.maxAge {
		a.entries = a.entries[1:]
	}
}

// Snapshot returns a deep copy of the window and a freshly computed summary.
// Callers never see the window mid-mutation and cannot mutate it back.
func (a *Aggregator) Snapshot() ([]models.AnalysisResult, models.TimelineSummary) {
	a.mu.Lock()
	defer a.mu.Unlock()

	window := make([]models.AnalysisResult, len(a.entries))
	for i := range a.entries {
		window[i] = a.entries[i].Clone()
	}
	return window, a.summary()
}

// Recent returns a deep copy of the last n entries.
func (a *Aggregator) Recent(n int) []models.AnalysisResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := len(a.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]models.AnalysisResult, 0, len(a.entries)-start)
	for i := start; i < len(a.entries); i++ {
		out = append(out, a.entries[i].Clone())
	}
	return out
}

// summary must be called with the lock held.
func (a *Aggregator) summary() models.TimelineSummary {
	s := models.TimelineSummary{
		DominantState:     alerts.DominantState(a.entries),
		StateDistribution: make(map[models.EmotionalState]int),
		TotalEntries:      len(a.entries),
	}
	if len(a.entries) == 0 {
		return s
	}

	var confidenceSum float64
	for _, e := range a.entries {
		s.StateDistribution[e.EmotionalState]++
		confidenceSum += e.Confidence
		if e.Alert {
			s.AlertCount++
		}
	}
	s.AverageConfidence = confidenceSum / float64(len(a.entries))
	s.SessionDurationSeconds = a.entries[len(a.entries)-1].Timestamp - a.entries[0].Timestamp
	return s
}

// Reset clears the window for a new session. Not called on session stop;
// stop uses Freeze so the post-session summary stays available.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = nil
	a.frozen = false
}

// Freeze stops appends and evictions while keeping snapshots available.
func (a *Aggregator) Freeze() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen = true
}

func (a *Aggregator) Frozen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frozen
}

func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
