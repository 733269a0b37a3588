// Package recall holds the wire shapes of Recall.ai webhook deliveries.
package recall

// Event names the pipeline understands. Anything else is acknowledged and
// ignored for forward compatibility with provider additions.
const (
	EventBotStatusChange       = "bot.status_change"
	EventTranscriptData        = "transcript.data"
	EventTranscriptPartialData = "transcript.partial_data"
)

// WebhookEvent is the envelope of every Recall.ai webhook POST.
type WebhookEvent struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData carries the event-specific payload. Only the fields relevant
// to the received event type are populated.
type EventData struct {
	Bot          Bot             `json:"bot"`
	StatusChange *StatusChange   `json:"status_change,omitempty"`
	Data         *TranscriptData `json:"data,omitempty"`
}

// Bot identifies the meeting bot the event belongs to.
type Bot struct {
	ID         string      `json:"id"`
	MeetingURL *MeetingURL `json:"meeting_url,omitempty"`
}

// MeetingURL describes the meeting the bot joined.
type MeetingURL struct {
	Platform  string `json:"platform,omitempty"`
	MeetingID string `json:"meeting_id,omitempty"`
}

// StatusChange is the payload of a bot.status_change event.
type StatusChange struct {
	Code      string `json:"code"`
	SubCode   string `json:"sub_code,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// TranscriptData is the payload of transcript.data and
// transcript.partial_data events: one utterance broken into word tokens.
type TranscriptData struct {
	Words       []Word      `json:"words"`
	Participant Participant `json:"participant"`
}

// Word is a single recognized token with its offsets into the meeting.
type Word struct {
	Text           string        `json:"text"`
	StartTimestamp WordTimestamp `json:"start_timestamp"`
	EndTimestamp   WordTimestamp `json:"end_timestamp"`
}

// WordTimestamp carries both the offset relative to meeting start and, when
// the provider supplies it, the absolute wall-clock time.
type WordTimestamp struct {
	Relative float64 `json:"relative"`
	Absolute string  `json:"absolute,omitempty"`
}

// Participant is the speaker the utterance is attributed to.
type Participant struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}
