package entities

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptRow is the persisted form of a TranscriptEntry. EntryIndex
// preserves arrival order within a session so the batch saver's high-water
// mark can be reconciled against what is already stored.
type TranscriptRow struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID  string    `json:"session_id" gorm:"type:varchar(255);not null;index:idx_transcript_session_entry,unique,priority:1"`
	EntryIndex int       `json:"entry_index" gorm:"not null;index:idx_transcript_session_entry,unique,priority:2"`
	Speaker    string    `json:"speaker" gorm:"type:varchar(255);not null"`
	Text       string    `json:"text" gorm:"type:text;not null"`
	Timestamp  string    `json:"timestamp" gorm:"type:varchar(64)"`
	Confidence float64   `json:"confidence" gorm:"default:0.0"`
	IsFinal    bool      `json:"is_final" gorm:"not null;default:false"`
	StartTime  float64   `json:"start_time,omitempty"`
	EndTime    float64   `json:"end_time,omitempty"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (TranscriptRow) TableName() string {
	return "transcript_entries"
}

// NewTranscriptRow builds a persisted row from an in-memory entry.
func NewTranscriptRow(sessionID string, index int, e TranscriptEntry) *TranscriptRow {
	return &TranscriptRow{
		ID:         uuid.New(),
		SessionID:  sessionID,
		EntryIndex: index,
		Speaker:    e.Speaker,
		Text:       e.Text,
		Timestamp:  e.Timestamp,
		Confidence: e.Confidence,
		IsFinal:    e.IsFinal,
		StartTime:  e.StartTime,
		EndTime:    e.EndTime,
	}
}

// Entry converts the row back to its in-memory form.
func (r *TranscriptRow) Entry() TranscriptEntry {
	return TranscriptEntry{
		Speaker:    r.Speaker,
		Text:       r.Text,
		Timestamp:  r.Timestamp,
		Confidence: r.Confidence,
		IsFinal:    r.IsFinal,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
	}
}
