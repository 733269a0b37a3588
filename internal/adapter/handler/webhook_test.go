package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
	"github.com/coach-sidekick/coach-sidekick-api/internal/session"
	"github.com/coach-sidekick/coach-sidekick-api/internal/usecase/pipeline"
)

const finalTranscriptPayload = `{
	"event": "transcript.data",
	"data": {
		"bot": {"id": "bot-1"},
		"data": {
			"words": [
				{"text": "hello", "start_timestamp": {"relative": 0}, "end_timestamp": {"relative": 0.5}},
				{"text": "there", "start_timestamp": {"relative": 0.6}, "end_timestamp": {"relative": 1.1}}
			],
			"participant": {"id": 7, "name": "Alice"}
		}
	}
}`

func newWebhookFixture(secret string, verify bool) (*Webhook, *pipeline.Pipeline, *session.Store) {
	st := session.NewStore(zap.NewNop())
	p := pipeline.New(st, stubPersister{}, stubAnalyzer{}, nil, pipeline.Config{SaveThreshold: 100, AnalysisFloor: 100}, zap.NewNop())
	return NewWebhook(p, secret, verify, zap.NewNop()), p, st
}

type stubPersister struct{}

func (stubPersister) SaveBatch(_ context.Context, _ string, from int, entries []entities.TranscriptEntry) (int, error) {
	return from + len(entries), nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, sessionID string, finals []entities.TranscriptEntry, _ int) (*entities.CoachingAnalysis, error) {
	a := entities.NewCoachingAnalysis(sessionID)
	a.LastAnalyzedTranscriptIndex = len(finals)
	return a, nil
}

func (stubAnalyzer) Summarize(_ context.Context, sessionID string, _ []entities.TranscriptEntry, _ *entities.CoachingAnalysis) (*entities.SessionSummary, error) {
	return entities.NewSessionSummary(sessionID), nil
}

func postWebhook(h *Webhook, body string, headers map[string]string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/recall", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.HandleRecallEvent(e.NewContext(req, rec))
	return rec
}

func TestWebhookAcceptsFinalTranscript(t *testing.T) {
	h, p, st := newWebhookFixture("", false)

	rec := postWebhook(h, finalTranscriptPayload, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Drain(drainCtx)

	s, ok := st.Get("bot-1")
	if !ok {
		t.Fatal("session not created from webhook")
	}
	if len(s.Transcript) != 1 || s.Transcript[0].Text != "hello there" {
		t.Errorf("entry not applied: %+v", s.Transcript)
	}
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	h, _, _ := newWebhookFixture("", false)

	rec := postWebhook(h, `{"event": "transcript.data"`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookRejectsMissingBotID(t *testing.T) {
	h, _, _ := newWebhookFixture("", false)

	rec := postWebhook(h, `{"event": "transcript.data", "data": {"bot": {"id": ""}}}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookAcknowledgesUnknownEvents(t *testing.T) {
	h, _, st := newWebhookFixture("", false)

	rec := postWebhook(h, `{"event": "bot.screenshot", "data": {"bot": {"id": "bot-1"}}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown event, got %d", rec.Code)
	}
	if _, ok := st.Get("bot-1"); ok {
		t.Error("ignored event created a session")
	}
}

func TestWebhookSignatureVerification(t *testing.T) {
	const secret = "webhook-secret"
	h, _, _ := newWebhookFixture(secret, true)

	// No signature: rejected.
	rec := postWebhook(h, finalTranscriptPayload, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature, got %d", rec.Code)
	}

	// Wrong signature: rejected.
	rec = postWebhook(h, finalTranscriptPayload, map[string]string{"X-Recall-Signature": "deadbeef"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad signature, got %d", rec.Code)
	}

	// Valid signature: accepted.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(finalTranscriptPayload))
	rec = postWebhook(h, finalTranscriptPayload, map[string]string{
		"X-Recall-Signature": hex.EncodeToString(mac.Sum(nil)),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid signature, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookToleratesDuplicateDelivery(t *testing.T) {
	h, p, st := newWebhookFixture("", false)

	for i := 0; i < 2; i++ {
		if rec := postWebhook(h, finalTranscriptPayload, nil); rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, rec.Code)
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Drain(drainCtx)

	// In-memory state appends both copies; deduplication happens at the
	// persistence boundary via the authoritative saved count.
	s, _ := st.Get("bot-1")
	if s == nil || len(s.Transcript) != 2 {
		t.Fatalf("expected both deliveries applied, got %+v", s)
	}
}
