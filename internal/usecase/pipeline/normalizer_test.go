package pipeline

import (
	"testing"
	"time"

	recalldto "github.com/coach-sidekick/coach-sidekick-api/internal/adapter/dto/recall"
)

var testNow = time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC)

func transcriptEvent(event, botID, speaker string, words ...string) *recalldto.WebhookEvent {
	tokens := make([]recalldto.Word, 0, len(words))
	for i, w := range words {
		tokens = append(tokens, recalldto.Word{
			Text:           w,
			StartTimestamp: recalldto.WordTimestamp{Relative: float64(i)},
			EndTimestamp:   recalldto.WordTimestamp{Relative: float64(i) + 0.5},
		})
	}
	return &recalldto.WebhookEvent{
		Event: event,
		Data: recalldto.EventData{
			Bot: recalldto.Bot{ID: botID},
			Data: &recalldto.TranscriptData{
				Words:       tokens,
				Participant: recalldto.Participant{ID: 42, Name: speaker},
			},
		},
	}
}

func TestNormalizeStatusChange(t *testing.T) {
	evt := &recalldto.WebhookEvent{
		Event: recalldto.EventBotStatusChange,
		Data: recalldto.EventData{
			Bot:          recalldto.Bot{ID: "bot-1", MeetingURL: &recalldto.MeetingURL{Platform: "zoom", MeetingID: "123"}},
			StatusChange: &recalldto.StatusChange{Code: "in_call_recording"},
		},
	}

	op := NormalizeEvent(evt, testNow)
	if op.Kind != OpStatus {
		t.Fatalf("expected OpStatus, got %v", op.Kind)
	}
	if op.SessionID != "bot-1" || op.Status != "in_call_recording" {
		t.Errorf("unexpected op: %+v", op)
	}
	if op.Meta.Platform != "zoom" || op.Meta.PlatformMeetingID != "123" {
		t.Errorf("meeting metadata not extracted: %+v", op.Meta)
	}
}

func TestNormalizeFinalTranscript(t *testing.T) {
	op := NormalizeEvent(transcriptEvent(recalldto.EventTranscriptData, "bot-1", "Alice", "hello", "world"), testNow)

	if op.Kind != OpAppendFinal {
		t.Fatalf("expected OpAppendFinal, got %v", op.Kind)
	}
	if op.Entry.Text != "hello world" {
		t.Errorf("words not joined: %q", op.Entry.Text)
	}
	if op.Entry.Speaker != "Alice" {
		t.Errorf("unexpected speaker %q", op.Entry.Speaker)
	}
	if !op.Entry.IsFinal {
		t.Error("final event produced non-final entry")
	}
	if op.Entry.Confidence != defaultFinalConfidence {
		t.Errorf("unexpected confidence %v", op.Entry.Confidence)
	}
	if op.Entry.StartTime != 0 || op.Entry.EndTime != 1.5 {
		t.Errorf("unexpected offsets start=%v end=%v", op.Entry.StartTime, op.Entry.EndTime)
	}
	// No absolute timestamp on the words: receipt time is used.
	if op.Entry.Timestamp != testNow.Format(time.RFC3339) {
		t.Errorf("unexpected timestamp %q", op.Entry.Timestamp)
	}
}

func TestNormalizePartialTranscript(t *testing.T) {
	op := NormalizeEvent(transcriptEvent(recalldto.EventTranscriptPartialData, "bot-1", "Alice", "hel"), testNow)

	if op.Kind != OpAppendPartial {
		t.Fatalf("expected OpAppendPartial, got %v", op.Kind)
	}
	if op.Entry.IsFinal {
		t.Error("partial event produced final entry")
	}
	if op.Entry.Confidence != defaultPartialConfidence {
		t.Errorf("unexpected confidence %v", op.Entry.Confidence)
	}
}

func TestNormalizeSpeakerFallback(t *testing.T) {
	evt := transcriptEvent(recalldto.EventTranscriptData, "bot-1", "", "hi")
	op := NormalizeEvent(evt, testNow)
	if op.Kind != OpAppendFinal {
		t.Fatalf("expected append, got %v", op.Kind)
	}
	if op.Entry.Speaker != "Participant 42" {
		t.Errorf("expected id fallback speaker, got %q", op.Entry.Speaker)
	}

	// No name and no id: the chunk is dropped.
	evt.Data.Data.Participant = recalldto.Participant{}
	if op := NormalizeEvent(evt, testNow); op.Kind != OpNone {
		t.Errorf("expected drop, got %v", op.Kind)
	}
}

func TestNormalizeIgnoresMalformedEvents(t *testing.T) {
	cases := map[string]*recalldto.WebhookEvent{
		"nil event":     nil,
		"missing bot":   {Event: recalldto.EventTranscriptData},
		"unknown event": {Event: "bot.screenshot", Data: recalldto.EventData{Bot: recalldto.Bot{ID: "bot-1"}}},
		"status without code": {
			Event: recalldto.EventBotStatusChange,
			Data:  recalldto.EventData{Bot: recalldto.Bot{ID: "bot-1"}, StatusChange: &recalldto.StatusChange{}},
		},
		"transcript without words": {
			Event: recalldto.EventTranscriptData,
			Data:  recalldto.EventData{Bot: recalldto.Bot{ID: "bot-1"}, Data: &recalldto.TranscriptData{}},
		},
	}

	for name, evt := range cases {
		if op := NormalizeEvent(evt, testNow); op.Kind != OpNone {
			t.Errorf("%s: expected OpNone, got %v", name, op.Kind)
		}
	}
}

func TestNormalizePrefersAbsoluteTimestamp(t *testing.T) {
	evt := transcriptEvent(recalldto.EventTranscriptData, "bot-1", "Alice", "hi")
	evt.Data.Data.Words[0].StartTimestamp.Absolute = "2026-01-02T10:29:58Z"

	op := NormalizeEvent(evt, testNow)
	if op.Entry.Timestamp != "2026-01-02T10:29:58Z" {
		t.Errorf("expected provider timestamp, got %q", op.Entry.Timestamp)
	}
}
