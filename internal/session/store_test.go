package session

import (
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
)

func newTestStore() *Store {
	return NewStore(zap.NewNop())
}

func entry(text string, final bool) entities.TranscriptEntry {
	return entities.TranscriptEntry{
		Speaker:   "Alice",
		Text:      text,
		Timestamp: "2026-01-02T10:00:00Z",
		IsFinal:   final,
	}
}

func TestAppendAutoCreatesSession(t *testing.T) {
	st := newTestStore()

	total, finals := st.Append("bot-1", entry("hello", true))
	if total != 1 || finals != 1 {
		t.Fatalf("expected total=1 finals=1, got total=%d finals=%d", total, finals)
	}

	s, ok := st.Get("bot-1")
	if !ok {
		t.Fatal("expected session to exist after append")
	}
	if s.Status != entities.SessionStatusUnknown {
		t.Errorf("expected placeholder status, got %q", s.Status)
	}
	if len(s.Transcript) != 1 {
		t.Errorf("expected 1 entry, got %d", len(s.Transcript))
	}
}

func TestCreateAbsorbsMetadataWithoutLosingTranscript(t *testing.T) {
	st := newTestStore()
	st.Append("bot-1", entry("early", true))

	st.Create("bot-1", Metadata{Platform: "zoom", Status: entities.SessionStatusInCall})

	s, _ := st.Get("bot-1")
	if len(s.Transcript) != 1 {
		t.Fatalf("duplicate create dropped transcript, %d entries left", len(s.Transcript))
	}
	if s.Platform != "zoom" || s.Status != entities.SessionStatusInCall {
		t.Errorf("metadata not absorbed: platform=%q status=%q", s.Platform, s.Status)
	}

	// Empty fields must not overwrite known values.
	st.Create("bot-1", Metadata{})
	s, _ = st.Get("bot-1")
	if s.Platform != "zoom" {
		t.Errorf("empty metadata overwrote platform: %q", s.Platform)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	st := newTestStore()
	st.Append("bot-1", entry("one", true))

	s, _ := st.Get("bot-1")
	s.Transcript[0].Text = "mutated"
	s.Transcript = append(s.Transcript, entry("extra", true))

	fresh, _ := st.Get("bot-1")
	if len(fresh.Transcript) != 1 || fresh.Transcript[0].Text != "one" {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestMarkEntriesSavedIsMonotonic(t *testing.T) {
	st := newTestStore()
	for i := 0; i < 5; i++ {
		st.Append("bot-1", entry("e", true))
	}

	st.MarkEntriesSaved("bot-1", 3)
	// Duplicate and stale confirmations must not regress the mark.
	st.MarkEntriesSaved("bot-1", 2)
	st.MarkEntriesSaved("bot-1", 3)

	s, _ := st.Get("bot-1")
	if s.LastSavedIndex != 3 {
		t.Fatalf("expected saved index 3, got %d", s.LastSavedIndex)
	}

	// Never beyond the transcript length.
	st.MarkEntriesSaved("bot-1", 99)
	s, _ = st.Get("bot-1")
	if s.LastSavedIndex != 5 {
		t.Fatalf("expected saved index clamped to 5, got %d", s.LastSavedIndex)
	}
}

func TestSnapshotUnsaved(t *testing.T) {
	st := newTestStore()
	for i := 0; i < 4; i++ {
		st.Append("bot-1", entry("e", true))
	}
	st.MarkEntriesSaved("bot-1", 1)

	entries, from, ok := st.SnapshotUnsaved("bot-1")
	if !ok {
		t.Fatal("expected snapshot for existing session")
	}
	if from != 1 || len(entries) != 3 {
		t.Fatalf("expected from=1 len=3, got from=%d len=%d", from, len(entries))
	}

	if _, _, ok := st.SnapshotUnsaved("missing"); ok {
		t.Error("expected no snapshot for unknown session")
	}
}

func TestSaveGuardIsExclusive(t *testing.T) {
	st := newTestStore()
	st.Append("bot-1", entry("e", true))

	if !st.TryBeginSave("bot-1") {
		t.Fatal("first claim should succeed")
	}
	if st.TryBeginSave("bot-1") {
		t.Fatal("second claim should fail while first is held")
	}
	if !st.SaveInFlight("bot-1") {
		t.Error("SaveInFlight should report the held claim")
	}
	st.EndSave("bot-1")
	if !st.TryBeginSave("bot-1") {
		t.Error("claim should succeed again after release")
	}
}

func TestSaveGuardUnderContention(t *testing.T) {
	st := newTestStore()
	st.Append("bot-1", entry("e", true))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if st.TryBeginSave("bot-1") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestSetAnalysisCursorNeverRegresses(t *testing.T) {
	st := newTestStore()
	st.Append("bot-1", entry("e", true))

	first := entities.NewCoachingAnalysis("bot-1")
	first.LastAnalyzedTranscriptIndex = 7
	st.SetAnalysis("bot-1", first)

	stale := entities.NewCoachingAnalysis("bot-1")
	stale.LastAnalyzedTranscriptIndex = 4
	st.SetAnalysis("bot-1", stale)

	if got := st.LastAnalyzedIndex("bot-1"); got != 7 {
		t.Fatalf("cursor regressed to %d", got)
	}

	// The stale record is still the most recent result we hold.
	latest, ok := st.LatestAnalysis("bot-1")
	if !ok || latest.ID != stale.ID {
		t.Error("latest analysis should track the most recent completion")
	}
}

func TestAnalysisGuardIsExclusive(t *testing.T) {
	st := newTestStore()
	st.Append("bot-1", entry("e", true))

	if !st.TryBeginAnalysis("bot-1") {
		t.Fatal("first claim should succeed")
	}
	if st.TryBeginAnalysis("bot-1") {
		t.Fatal("second claim should fail while first is held")
	}
	st.EndAnalysis("bot-1")
	if !st.TryBeginAnalysis("bot-1") {
		t.Error("claim should succeed again after release")
	}
}

func TestTeardownRemovesSession(t *testing.T) {
	st := newTestStore()
	st.Append("bot-1", entry("e", true))
	st.MarkEntriesSaved("bot-1", 1)

	final, ok := st.Teardown("bot-1")
	if !ok {
		t.Fatal("expected teardown to find the session")
	}
	if final.LastSavedIndex != 1 || len(final.Transcript) != 1 {
		t.Errorf("final snapshot incomplete: saved=%d entries=%d", final.LastSavedIndex, len(final.Transcript))
	}

	if _, ok := st.Get("bot-1"); ok {
		t.Error("session still present after teardown")
	}
	if _, ok := st.Teardown("bot-1"); ok {
		t.Error("second teardown should report not found")
	}
}
