// Package alerts decides when the current window warrants a coaching alert.
// Evaluate is a pure total function of (latest result, window, config): it
// never errors, holds no state, and gives the same verdict for the same
// input every time.
package alerts

import (
	"fmt"

	"github.com/bobthearsonist/meeting-coach/pkg/config"
	"github.com/bobthearsonist/meeting-coach/pkg/models"
)

const (
	CategoryPace      = "pace"
	CategoryFiller    = "filler"
	CategorySustained = "sustained_state"

	SeverityWarning = "warning"
)

// Reason is one fired rule. A single result can trip several rules at once.
type Reason struct {
	Category string
	Message  string
	Severity string
}

type Verdict struct {
	Alert   bool
	Reasons []Reason
}

// Evaluate runs every enabled rule against the latest result and the window
// it was just inserted into. The window must be in timestamp order and
// include latest. Nothing is mutated; the caller applies the verdict.
func Evaluate(latest models.AnalysisResult, window []models.AnalysisResult, cfg config.AlertsConfig) Verdict {
	var v Verdict

	if cfg.PaceEnabled {
		if r, ok := paceRule(latest, cfg); ok {
			v.Reasons = append(v.Reasons, r)
		}
	}
	if cfg.FillerEnabled {
		if r, ok := fillerRule(latest, cfg); ok {
			v.Reasons = append(v.Reasons, r)
		}
	}
	if cfg.SustainedEnabled {
		if r, ok := sustainedRule(latest, window, cfg); ok {
			v.Reasons = append(v.Reasons, r)
		}
	}

	v.Alert = len(v.Reasons) > 0
	return v
}

// paceRule looks at the current result alone, not the window. A degenerate
// segment reports WPM 0, which must not read as "too slow".
func paceRule(latest models.AnalysisResult, cfg config.AlertsConfig) (Reason, bool) {
	if latest.WPM <= 0 {
		return Reason{}, false
	}
	if latest.WPM > cfg.PaceTooFast {
		return Reason{
			Category: CategoryPace,
			Message:  fmt.Sprintf("Too fast - slow down for clarity (%d WPM)", latest.WPM),
			Severity: SeverityWarning,
		}, true
	}
	if latest.WPM < cfg.PaceTooSlow {
		return Reason{
			Category: CategoryPace,
			Message:  fmt.Sprintf("Too slow - increase pace slightly (%d WPM)", latest.WPM),
			Severity: SeverityWarning,
		}, true
	}
	return Reason{}, false
}

func fillerRule(latest models.AnalysisResult, cfg config.AlertsConfig) (Reason, bool) {
	for filler, count := range latest.FillerCounts {
		if count >= cfg.FillerThreshold {
			return Reason{
				Category: CategoryFiller,
				Message:  fmt.Sprintf("Heavy filler usage: %q said %d times", filler, count),
				Severity: SeverityWarning,
			}, true
		}
	}
	return Reason{}, false
}

// sustainedRule fires when the dominant state over the trailing sub-window
// is one of the concerning states. It requires at least two entries in the
// sub-window so a single noisy classification can never trigger it.
func sustainedRule(latest models.AnalysisResult, window []models.AnalysisResult, cfg config.AlertsConfig) (Reason, bool) {
	cutoff := latest.Timestamp - cfg.SustainedWindowSeconds
	var sub []models.AnalysisResult
	for _, e := range window {
		if e.Timestamp >= cutoff {
			sub = append(sub, e)
		}
	}
	if len(sub) < 2 {
		return Reason{}, false
	}

	dominant := DominantState(sub)
	for _, s := range cfg.ConcerningStates {
		if dominant == s {
			return Reason{
				Category: CategorySustained,
				Message:  fmt.Sprintf("Sustained %s state over the last %.0f seconds", dominant, cfg.SustainedWindowSeconds),
				Severity: SeverityWarning,
			}, true
		}
	}
	return Reason{}, false
}

// DominantState is the most frequent emotional state across entries, ties
// broken by the most recent occurrence. Entries must be in timestamp order.
// Shared with the timeline's summary computation so both agree on what
// "dominant" means.
func DominantState(entries []models.AnalysisResult) models.EmotionalState {
	if len(entries) == 0 {
		return models.StateUnknown
	}

	counts := make(map[models.EmotionalState]int)
	lastSeen := make(map[models.EmotionalState]int)
	for i, e := range entries {
		counts[e.EmotionalState]++
		lastSeen[e.EmotionalState] = i
	}

	dominant := models.StateUnknown
	bestCount, bestSeen := -1, -1
	for state, count := range counts {
		if count > bestCount || (count == bestCount && lastSeen[state] > bestSeen) {
			dominant = state
			bestCount = count
			bestSeen = lastSeen[state]
		}
	}
	return dominant
}
