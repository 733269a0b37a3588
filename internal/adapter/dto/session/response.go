package session

import "github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"

// ListSessionsResponse lists the active session ids.
type ListSessionsResponse struct {
	Sessions []string `json:"sessions"`
	Count    int      `json:"count"`
}

// BatchStatusResponse reports the persistence bookkeeping for one session.
type BatchStatusResponse struct {
	SessionID    string `json:"session_id"`
	TotalEntries int    `json:"total_entries"`
	SavedCount   int    `json:"saved_count"`
	UnsavedCount int    `json:"unsaved_count"`
	SaveInFlight bool   `json:"save_in_flight"`
}

// ForceSaveResponse reports the outcome of a manual flush.
type ForceSaveResponse struct {
	SessionID  string `json:"session_id"`
	Saved      bool   `json:"saved"`
	SavedCount int    `json:"saved_count"`
}

// AnalyzeResponse reports the outcome of a manual analysis request.
type AnalyzeResponse struct {
	SessionID string                     `json:"session_id"`
	Ran       bool                       `json:"ran"`
	Message   string                     `json:"message,omitempty"`
	Analysis  *entities.CoachingAnalysis `json:"analysis,omitempty"`
}

// TranscriptResponse carries the persisted transcript for a session.
type TranscriptResponse struct {
	SessionID string                     `json:"session_id"`
	Entries   []entities.TranscriptEntry `json:"entries"`
	Count     int                        `json:"count"`
}

// AnalysisHistoryResponse lists the stored analysis passes for a session.
type AnalysisHistoryResponse struct {
	SessionID string                      `json:"session_id"`
	Analyses  []entities.CoachingAnalysis `json:"analyses"`
	Count     int                         `json:"count"`
}

// ArchiveObject is one archived transcript snapshot with a time-limited
// download link.
type ArchiveObject struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

// ArchivesResponse lists the archived transcript snapshots for a session.
type ArchivesResponse struct {
	SessionID string          `json:"session_id"`
	Archives  []ArchiveObject `json:"archives"`
	Count     int             `json:"count"`
}

// SuggestionsResponse carries the suggestion feed for one session.
type SuggestionsResponse struct {
	SessionID   string                        `json:"session_id"`
	AnalysisID  string                        `json:"analysis_id,omitempty"`
	Suggestions []entities.CoachingSuggestion `json:"suggestions"`
	Count       int                           `json:"count"`
	OnlyActive  bool                          `json:"only_active"`
}
