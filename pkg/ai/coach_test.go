package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
	"github.com/coach-sidekick/coach-sidekick-api/pkg/config"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testService(serverURL string) *CoachingService {
	client := NewOpenAIClient(&config.OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: serverURL,
		Model:   "gpt-4o",
	})
	return NewCoachingService(client)
}

func finals(n int) []entities.TranscriptEntry {
	entries := make([]entities.TranscriptEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, entities.TranscriptEntry{Speaker: "Coach", Text: "tell me more", IsFinal: true})
	}
	return entries
}

func TestAnalyzeParsesCompletion(t *testing.T) {
	srv := completionServer(t, "Here is my analysis:\n```json\n"+`{
		"overallScore": 8,
		"criteriaScores": {"clear_vision": 7, "powerful_questions": 9},
		"conversationPhase": "insight",
		"suggestions": [
			{"suggestion": "Pause and let the silence work", "timing": "now", "priority": "high"}
		]
	}`+"\n```")
	defer srv.Close()

	analysis, err := testService(srv.URL).Analyze(context.Background(), "bot-1", finals(5), 2)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if analysis.OverallScore != 8 || analysis.ConversationPhase != "insight" {
		t.Errorf("top-level fields not parsed: %+v", analysis)
	}
	if analysis.CriteriaScores["powerful_questions"] != 9 {
		t.Errorf("criteria scores not parsed: %+v", analysis.CriteriaScores)
	}
	if analysis.LastAnalyzedTranscriptIndex != 5 {
		t.Errorf("cursor should cover the snapshot, got %d", analysis.LastAnalyzedTranscriptIndex)
	}
	if len(analysis.Suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(analysis.Suggestions))
	}
	s := analysis.Suggestions[0]
	if s.Timing != "now" || s.Priority != "high" {
		t.Errorf("explicit suggestion fields lost: %+v", s)
	}
	// Omitted fields get defaults.
	if s.Type != "immediate" || s.Category != "general" {
		t.Errorf("defaults not applied: %+v", s)
	}
	if s.ID == "" {
		t.Error("suggestion id not assigned")
	}
}

func TestAnalyzeDefaultsOnSparsePayload(t *testing.T) {
	srv := completionServer(t, `{"suggestions": []}`)
	defer srv.Close()

	analysis, err := testService(srv.URL).Analyze(context.Background(), "bot-1", finals(3), 0)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if analysis.OverallScore != 5 {
		t.Errorf("expected default score 5, got %v", analysis.OverallScore)
	}
	if analysis.ConversationPhase != "exploration" {
		t.Errorf("expected default phase, got %q", analysis.ConversationPhase)
	}
	if analysis.CriteriaScores == nil || analysis.Suggestions == nil {
		t.Error("nil maps/slices should be initialized")
	}
}

func TestAnalyzeRejectsNonJSONCompletion(t *testing.T) {
	srv := completionServer(t, "I cannot analyze this conversation.")
	defer srv.Close()

	if _, err := testService(srv.URL).Analyze(context.Background(), "bot-1", finals(3), 0); err == nil {
		t.Fatal("expected error for prose-only completion")
	}
}

func TestAnalyzeEmptyTranscriptFails(t *testing.T) {
	if _, err := testService("http://unused").Analyze(context.Background(), "bot-1", nil, 0); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestAnalyzeClampsCursor(t *testing.T) {
	srv := completionServer(t, `{"overallScore": 6}`)
	defer srv.Close()

	// A cursor past the snapshot means everything is "recent"; it must not
	// panic or slice out of range.
	analysis, err := testService(srv.URL).Analyze(context.Background(), "bot-1", finals(2), 10)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if analysis.LastAnalyzedTranscriptIndex != 2 {
		t.Errorf("cursor not clamped, got %d", analysis.LastAnalyzedTranscriptIndex)
	}
}

func TestSummarizeEmptySession(t *testing.T) {
	summary, err := testService("http://unused").Summarize(context.Background(), "bot-1", nil, nil)
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if summary.Summary == "" {
		t.Error("expected placeholder summary for empty session")
	}
}

func TestSummarizeUsesCompletion(t *testing.T) {
	srv := completionServer(t, "  The client committed to three actions.  ")
	defer srv.Close()

	summary, err := testService(srv.URL).Summarize(context.Background(), "bot-1", finals(3), nil)
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if summary.Summary != "The client committed to three actions." {
		t.Errorf("unexpected summary %q", summary.Summary)
	}
	if summary.SessionID != "bot-1" {
		t.Errorf("unexpected session id %q", summary.SessionID)
	}
}

func TestChatCompletionPermanentOn4xx(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewOpenAIClient(&config.OpenAIConfig{APIKey: "bad", BaseURL: srv.URL})
	if _, err := client.ChatCompletion(context.Background(), "s", "u", 0.7, 100); err == nil {
		t.Fatal("expected error on 401")
	}
	if calls != 1 {
		t.Errorf("4xx should not be retried, got %d calls", calls)
	}
}

func TestExtractJSON(t *testing.T) {
	got, err := extractJSON("```json\n{\"a\": 1}\n```")
	if err != nil || got != `{"a": 1}` {
		t.Errorf("fence not stripped: %q err=%v", got, err)
	}
	if _, err := extractJSON("no object here"); err == nil {
		t.Error("expected error when no object present")
	}
}
