package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/coach-sidekick/coach-sidekick-api/internal/session"
)

// AnalysisTrigger decides after each final-entry append whether enough new
// content exists to justify another coaching analysis pass, and maintains
// the monotonic dedup cursor. At most one analysis runs per session;
// concurrent evaluations are dropped, not queued.
type AnalysisTrigger struct {
	store    *session.Store
	analyzer Analyzer
	sink     AnalysisSink
	floor    int
	minNew   int
	logger   *zap.Logger
}

// NewAnalysisTrigger creates the analysis trigger.
func NewAnalysisTrigger(store *session.Store, analyzer Analyzer, sink AnalysisSink, floor, minNew int, logger *zap.Logger) *AnalysisTrigger {
	return &AnalysisTrigger{
		store:    store,
		analyzer: analyzer,
		sink:     sink,
		floor:    floor,
		minNew:   minNew,
		logger:   logger,
	}
}

// MaybeAnalyze evaluates eligibility for one session and, when eligible,
// runs the analysis call to completion. force bypasses the new-entries
// floor (manual requests); it never bypasses the requirement for some new
// content past the cursor, and never the in-flight guard. It reports
// whether an analysis call was made.
func (a *AnalysisTrigger) MaybeAnalyze(ctx context.Context, sessionID string, force bool) (bool, error) {
	s, ok := a.store.Get(sessionID)
	if !ok {
		return false, nil
	}
	finals := s.FinalEntries()
	cursor := a.store.LastAnalyzedIndex(sessionID)

	newCount := len(finals) - cursor
	if newCount <= 0 {
		return false, nil
	}
	if !force && (len(finals) < a.floor || newCount < a.minNew) {
		return false, nil
	}

	if !a.store.TryBeginAnalysis(sessionID) {
		a.logger.Debug("analysis already in flight, dropping",
			zap.String("session_id", sessionID))
		return false, nil
	}
	defer a.store.EndAnalysis(sessionID)

	// Re-read under the claim: a pass that finished between the evaluation
	// and winning the slot has advanced the cursor, and entries may have
	// arrived since.
	s, ok = a.store.Get(sessionID)
	if !ok {
		return false, nil
	}
	finals = s.FinalEntries()
	cursor = a.store.LastAnalyzedIndex(sessionID)
	if len(finals)-cursor <= 0 {
		return false, nil
	}

	record, err := a.analyzer.Analyze(ctx, sessionID, finals, cursor)
	if err != nil {
		// Cursor untouched: the next eligible trigger reattempts over the
		// same, by then larger, new-entry range.
		a.logger.Error("coaching analysis failed",
			zap.String("session_id", sessionID),
			zap.Int("since_index", cursor),
			zap.Int("finals", len(finals)),
			zap.Error(err))
		return true, err
	}

	// The collaborator's cursor is authoritative; it may have consumed
	// less than the full new range. The store clamps regressions.
	a.store.SetAnalysis(sessionID, record)
	a.logger.Info("coaching analysis completed",
		zap.String("session_id", sessionID),
		zap.String("analysis_id", record.ID),
		zap.Int("cursor", record.LastAnalyzedTranscriptIndex),
		zap.Int("suggestions", len(record.Suggestions)))

	if a.sink != nil {
		if err := a.sink.StoreAnalysis(ctx, record); err != nil {
			a.logger.Error("failed to store analysis record",
				zap.String("session_id", sessionID),
				zap.String("analysis_id", record.ID),
				zap.Error(err))
		}
	}
	return true, nil
}
