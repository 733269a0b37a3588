package pipeline

import (
	"fmt"
	"strings"
	"time"

	recalldto "github.com/coach-sidekick/coach-sidekick-api/internal/adapter/dto/recall"
	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
	"github.com/coach-sidekick/coach-sidekick-api/internal/session"
)

// The provider does not supply per-chunk confidence reliably, so finals and
// partials get fixed defaults. Partials are lower because they may still be
// revised.
const (
	defaultFinalConfidence   = 0.9
	defaultPartialConfidence = 0.5
)

// OpKind classifies what a normalized event does to the session store.
type OpKind int

const (
	// OpNone means the event produced no state change (unknown type or
	// empty/malformed transcript payload).
	OpNone OpKind = iota
	// OpStatus updates the session status.
	OpStatus
	// OpAppendFinal appends a final transcript entry and is the only kind
	// that fires the persistence and analysis triggers.
	OpAppendFinal
	// OpAppendPartial appends a partial transcript entry.
	OpAppendPartial
)

// Op is the canonical operation a webhook event normalizes to.
type Op struct {
	Kind      OpKind
	SessionID string
	Status    string
	Meta      session.Metadata
	Entry     entities.TranscriptEntry
}

// NormalizeEvent maps the heterogeneous inbound event shapes onto the two
// canonical store operations. Well-formed events of unknown type normalize
// to OpNone; they are acknowledged but change nothing.
func NormalizeEvent(evt *recalldto.WebhookEvent, now time.Time) Op {
	if evt == nil || evt.Data.Bot.ID == "" {
		return Op{Kind: OpNone}
	}
	op := Op{SessionID: evt.Data.Bot.ID}
	if mu := evt.Data.Bot.MeetingURL; mu != nil {
		op.Meta.Platform = mu.Platform
		op.Meta.PlatformMeetingID = mu.MeetingID
	}

	switch evt.Event {
	case recalldto.EventBotStatusChange:
		if evt.Data.StatusChange == nil || evt.Data.StatusChange.Code == "" {
			return Op{Kind: OpNone}
		}
		op.Kind = OpStatus
		op.Status = evt.Data.StatusChange.Code
		return op

	case recalldto.EventTranscriptData:
		entry, ok := buildEntry(evt.Data.Data, true, now)
		if !ok {
			return Op{Kind: OpNone}
		}
		op.Kind = OpAppendFinal
		op.Entry = entry
		return op

	case recalldto.EventTranscriptPartialData:
		entry, ok := buildEntry(evt.Data.Data, false, now)
		if !ok {
			return Op{Kind: OpNone}
		}
		op.Kind = OpAppendPartial
		op.Entry = entry
		return op
	}

	return Op{Kind: OpNone}
}

// buildEntry assembles one transcript entry from a word-token chunk. Chunks
// without a participant or without tokens are dropped without error.
func buildEntry(data *recalldto.TranscriptData, isFinal bool, now time.Time) (entities.TranscriptEntry, bool) {
	if data == nil || len(data.Words) == 0 {
		return entities.TranscriptEntry{}, false
	}
	speaker := strings.TrimSpace(data.Participant.Name)
	if speaker == "" {
		if data.Participant.ID == 0 {
			return entities.TranscriptEntry{}, false
		}
		speaker = fmt.Sprintf("Participant %d", data.Participant.ID)
	}

	texts := make([]string, 0, len(data.Words))
	for _, w := range data.Words {
		texts = append(texts, w.Text)
	}

	first := data.Words[0]
	last := data.Words[len(data.Words)-1]

	// Prefer the provider's absolute time; fall back to receipt time.
	timestamp := first.StartTimestamp.Absolute
	if timestamp == "" {
		timestamp = now.UTC().Format(time.RFC3339)
	}

	confidence := defaultFinalConfidence
	if !isFinal {
		confidence = defaultPartialConfidence
	}

	return entities.TranscriptEntry{
		Speaker:    speaker,
		Text:       strings.Join(texts, " "),
		Timestamp:  timestamp,
		Confidence: confidence,
		IsFinal:    isFinal,
		StartTime:  first.StartTimestamp.Relative,
		EndTime:    last.EndTimestamp.Relative,
	}, true
}
