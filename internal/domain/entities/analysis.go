package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Suggestion timing hints the analysis model attaches to each suggestion.
const (
	SuggestionTimingNow       = "now"
	SuggestionTimingNextPause = "next_pause"
	SuggestionTimingEndOfCall = "end_of_call"
)

// CoachingSuggestion is a single actionable prompt produced by the analysis
// model. The payload is forwarded to clients as-is.
type CoachingSuggestion struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Priority   string    `json:"priority"`
	Category   string    `json:"category"`
	Suggestion string    `json:"suggestion"`
	Rationale  string    `json:"rationale,omitempty"`
	Timing     string    `json:"timing"`
	Timestamp  time.Time `json:"timestamp"`
}

// IsActive reports whether the suggestion is still actionable: recent
// enough and timed for the live portion of the call.
func (s CoachingSuggestion) IsActive(window time.Duration, now time.Time) bool {
	if now.Sub(s.Timestamp) > window {
		return false
	}
	return s.Timing == SuggestionTimingNow || s.Timing == SuggestionTimingNextPause
}

// CoachingAnalysis is one incremental analysis pass over a session's
// transcript. LastAnalyzedTranscriptIndex is the dedup cursor into the
// final-entries-only view; it is authoritative from the analysis
// collaborator and monotonically non-decreasing per session.
type CoachingAnalysis struct {
	ID                string               `json:"id" gorm:"type:uuid;primary_key"`
	SessionID         string               `json:"session_id" gorm:"type:varchar(255);not null;index"`
	OverallScore      float64              `json:"overall_score"`
	ConversationPhase string               `json:"conversation_phase" gorm:"type:varchar(50)"`
	CriteriaScores    map[string]float64   `json:"criteria_scores" gorm:"-"`
	Suggestions       []CoachingSuggestion `json:"suggestions" gorm:"-"`

	LastAnalyzedTranscriptIndex int `json:"last_analyzed_transcript_index"`

	// JSONB mirrors of the structured fields for persistence.
	CriteriaScoresRaw datatypes.JSON `json:"-" gorm:"column:criteria_scores;type:jsonb"`
	SuggestionsRaw    datatypes.JSON `json:"-" gorm:"column:suggestions;type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (CoachingAnalysis) TableName() string {
	return "coaching_analyses"
}

// NewCoachingAnalysis creates an analysis record shell for a session.
func NewCoachingAnalysis(sessionID string) *CoachingAnalysis {
	return &CoachingAnalysis{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
	}
}

// ActiveSuggestions filters suggestions to those still actionable within
// the recency window.
func (a *CoachingAnalysis) ActiveSuggestions(window time.Duration) []CoachingSuggestion {
	now := time.Now().UTC()
	active := make([]CoachingSuggestion, 0, len(a.Suggestions))
	for _, s := range a.Suggestions {
		if s.IsActive(window, now) {
			active = append(active, s)
		}
	}
	return active
}

// SessionSummary is the derived record persisted when a session is stopped.
type SessionSummary struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID       string         `json:"session_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	DurationSeconds int            `json:"duration_seconds"`
	EntryCount      int            `json:"entry_count"`
	FinalEntryCount int            `json:"final_entry_count"`
	OverallScore    float64        `json:"overall_score,omitempty"`
	Summary         string         `json:"summary" gorm:"type:text"`
	Metadata        datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt       time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (SessionSummary) TableName() string {
	return "session_summaries"
}

// NewSessionSummary creates a summary record for a stopped session.
func NewSessionSummary(sessionID string) *SessionSummary {
	return &SessionSummary{
		ID:        uuid.New(),
		SessionID: sessionID,
	}
}
