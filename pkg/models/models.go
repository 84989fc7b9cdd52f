package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EmotionalState is the classifier's assessment of the speaker's state.
type EmotionalState string

const (
	StateCalm           EmotionalState = "calm"
	StateNeutral        EmotionalState = "neutral"
	StateEngaged        EmotionalState = "engaged"
	StateElevated       EmotionalState = "elevated"
	StateIntense        EmotionalState = "intense"
	StateRapid          EmotionalState = "rapid"
	StateOverwhelmed    EmotionalState = "overwhelmed"
	StateDistracted     EmotionalState = "distracted"
	StateOverlyCritical EmotionalState = "overly_critical"
	StateUnknown        EmotionalState = "unknown"
)

var knownStates = map[EmotionalState]bool{
	StateCalm: true, StateNeutral: true, StateEngaged: true,
	StateElevated: true, StateIntense: true, StateRapid: true,
	StateOverwhelmed: true, StateDistracted: true, StateOverlyCritical: true,
	StateUnknown: true,
}

// ParseEmotionalState maps external classifier output onto the known
// enumeration. Anything outside it becomes StateUnknown rather than an error.
func ParseEmotionalState(s string) EmotionalState {
	state := EmotionalState(strings.ToLower(strings.TrimSpace(s)))
	if knownStates[state] {
		return state
	}
	return StateUnknown
}

// SocialCue is the classifier's read on how the speech lands socially.
type SocialCue string

const (
	CueAppropriate    SocialCue = "appropriate"
	CueWatchCarefully SocialCue = "watch_carefully"
	CueConcerning     SocialCue = "concerning"
	CueUnknown        SocialCue = "unknown"
)

var knownCues = map[SocialCue]bool{
	CueAppropriate: true, CueWatchCarefully: true, CueConcerning: true,
	CueUnknown: true,
}

func ParseSocialCue(s string) SocialCue {
	cue := SocialCue(strings.ToLower(strings.TrimSpace(s)))
	if knownCues[cue] {
		return cue
	}
	return CueUnknown
}

// Segment is one detected utterance from the segment source. Timestamps are
// monotonic session-relative seconds. Never mutated after construction.
type Segment struct {
	ID        string  `json:"id"`
	SessionID string  `json:"session_id"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

func NewSegment(sessionID, text string, startTime, endTime float64) Segment {
	return Segment{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Text:      text,
		StartTime: startTime,
		EndTime:   endTime,
	}
}

// WordCount splits on whitespace, discarding empty tokens.
func (s Segment) WordCount() int {
	return len(strings.Fields(s.Text))
}

// Duration in seconds. May be zero or negative for degenerate segments.
func (s Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// AnalysisResult is the pipeline's output for one segment. Immutable after
// construction except for Alert/AlertReasons, which are set exactly once by
// the alert evaluator inside the timeline's append critical section.
type AnalysisResult struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"session_id"`
	Timestamp      float64        `json:"timestamp"`
	Text           string         `json:"text"`
	EmotionalState EmotionalState `json:"emotional_state"`
	SocialCue      SocialCue      `json:"social_cue"`
	Confidence     float64        `json:"confidence"`
	WPM            int            `json:"wpm"`
	FillerCounts   map[string]int `json:"filler_counts"`
	Alert          bool           `json:"alert"`
	AlertReasons   []string       `json:"alert_reasons,omitempty"`
}

// Clone returns a deep copy so snapshot consumers can never observe (or
// cause) mutation of the aggregator's window.
func (r *AnalysisResult) Clone() AnalysisResult {
	out := *r
	if r.FillerCounts != nil {
		out.FillerCounts = make(map[string]int, len(r.FillerCounts))
		for k, v := range r.FillerCounts {
			out.FillerCounts[k] = v
		}
	}
	if r.AlertReasons != nil {
		out.AlertReasons = append([]string(nil), r.AlertReasons...)
	}
	return out
}

// TimelineSummary is derived from the current window on each snapshot.
type TimelineSummary struct {
	DominantState          EmotionalState         `json:"dominant_state"`
	StateDistribution      map[EmotionalState]int `json:"state_distribution"`
	AverageConfidence      float64                `json:"average_confidence"`
	AlertCount             int                    `json:"alert_count"`
	SessionDurationSeconds float64                `json:"session_duration_seconds"`
	TotalEntries           int                    `json:"total_entries"`
}

// SessionState holds the process-wide lifecycle flags.
type SessionState struct {
	IsConnected     bool   `json:"is_connected"`
	IsSessionActive bool   `json:"is_session_active"`
	IsRecording     bool   `json:"is_recording"`
	SessionID       string `json:"session_id,omitempty"`
}

// SessionRecord is what gets archived when a session stops.
type SessionRecord struct {
	ID        string           `json:"id"`
	StartedAt time.Time        `json:"started_at"`
	StoppedAt time.Time        `json:"stopped_at"`
	Summary   TimelineSummary  `json:"summary"`
	Entries   []AnalysisResult `json:"entries"`
}

// Outbound message shapes. Delivery guarantees belong to the broadcaster;
// the pipeline only guarantees content is chronologically consistent at the
// moment of emission.

type MeetingUpdate struct {
	Type           string         `json:"type"`
	EmotionalState EmotionalState `json:"emotional_state"`
	SocialCue      SocialCue      `json:"social_cue"`
	Confidence     float64        `json:"confidence"`
	WPM            int            `json:"wpm"`
	Text           string         `json:"text"`
	Alert          bool           `json:"alert"`
	FillerCounts   map[string]int `json:"filler_counts"`
	Timestamp      float64        `json:"timestamp"`
}

type TimelineUpdate struct {
	Type          string           `json:"type"`
	Summary       TimelineSummary  `json:"summary"`
	RecentEntries []AnalysisResult `json:"recent_entries"`
}

type AlertMessage struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Severity  string  `json:"severity"`
	Category  string  `json:"category"`
	Timestamp float64 `json:"timestamp"`
}

type RecordingStatus struct {
	Type        string `json:"type"`
	IsListening bool   `json:"is_listening"`
	SessionID   string `json:"session_id,omitempty"`
}

func NewMeetingUpdate(r AnalysisResult) MeetingUpdate {
	return MeetingUpdate{
		Type:           "meeting_update",
		EmotionalState: r.EmotionalState,
		SocialCue:      r.SocialCue,
		Confidence:     r.Confidence,
		WPM:            r.WPM,
		Text:           r.Text,
		Alert:          r.Alert,
		FillerCounts:   r.FillerCounts,
		Timestamp:      r.Timestamp,
	}
}

func NewTimelineUpdate(summary TimelineSummary, entries []AnalysisResult) TimelineUpdate {
	return TimelineUpdate{
		Type:          "timeline_update",
		Summary:       summary,
		RecentEntries: entries,
	}
}
