package entities

import (
	"time"
)

// Session status codes as reported by the Recall.ai bot. The set is
// provider-defined and open-ended, so the field is a plain string.
const (
	SessionStatusUnknown   = "unknown"
	SessionStatusJoining   = "joining_call"
	SessionStatusInCall    = "in_call_recording"
	SessionStatusCallEnded = "call_ended"
	SessionStatusDone      = "done"
)

// MeetingSession is the in-memory view of one live meeting being
// transcribed. It lives in the session registry for the duration of the
// call and is dropped on teardown; the database is the durable source of
// truth for everything already flushed.
type MeetingSession struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	MeetingURL        string            `json:"meeting_url,omitempty"`
	Platform          string            `json:"platform,omitempty"`
	PlatformMeetingID string            `json:"platform_meeting_id,omitempty"`
	Transcript        []TranscriptEntry `json:"transcript"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`

	// LastSavedIndex counts how many transcript entries have been durably
	// persisted. Monotonic, never exceeds len(Transcript).
	LastSavedIndex int `json:"last_saved_index"`

	// WebhookEvents counts inbound provider events applied to this session.
	WebhookEvents int `json:"webhook_events"`

	// PersonalAI tracks the optional secondary upload integration. Opaque
	// to the pipeline, carried for the admin surface only.
	PersonalAI PersonalAIInfo `json:"personal_ai,omitempty"`
}

// PersonalAIInfo is opaque bookkeeping for the secondary upload integration.
type PersonalAIInfo struct {
	Uploaded          bool       `json:"uploaded"`
	UploadedAt        *time.Time `json:"uploaded_at,omitempty"`
	ExternalSessionID string     `json:"external_session_id,omitempty"`
}

// TranscriptEntry is a single utterance as received from the transcription
// provider. Entries are append-only; a partial entry is never mutated when
// its final version arrives, the final is appended as a new entry.
type TranscriptEntry struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Timestamp  string  `json:"timestamp"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"is_final"`
	StartTime  float64 `json:"start_time,omitempty"`
	EndTime    float64 `json:"end_time,omitempty"`
}

// NewMeetingSession creates a session with placeholder metadata. Unknown
// fields stay at their zero value; the normalizer fills them in as status
// events arrive.
func NewMeetingSession(id string) *MeetingSession {
	now := time.Now().UTC()
	return &MeetingSession{
		ID:         id,
		Status:     SessionStatusUnknown,
		Transcript: []TranscriptEntry{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// UnsavedCount returns how many transcript entries have not been persisted.
func (s *MeetingSession) UnsavedCount() int {
	return len(s.Transcript) - s.LastSavedIndex
}

// FinalEntries returns the final-only view of the transcript. Consumers
// that need a stable conversation (analysis, summaries) filter partials out
// here instead of the store merging them.
func (s *MeetingSession) FinalEntries() []TranscriptEntry {
	finals := make([]TranscriptEntry, 0, len(s.Transcript))
	for _, e := range s.Transcript {
		if e.IsFinal {
			finals = append(finals, e)
		}
	}
	return finals
}

// Duration reports how long the session has been alive.
func (s *MeetingSession) Duration() time.Duration {
	return time.Since(s.CreatedAt)
}

// Clone returns a deep copy safe to hand outside the registry lock.
func (s *MeetingSession) Clone() *MeetingSession {
	cp := *s
	cp.Transcript = make([]TranscriptEntry, len(s.Transcript))
	copy(cp.Transcript, s.Transcript)
	if s.PersonalAI.UploadedAt != nil {
		t := *s.PersonalAI.UploadedAt
		cp.PersonalAI.UploadedAt = &t
	}
	return &cp
}
