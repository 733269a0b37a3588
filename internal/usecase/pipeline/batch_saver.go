package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coach-sidekick/coach-sidekick-api/internal/session"
)

// BatchSaver decides after each final-entry append whether enough unsaved
// entries have accumulated to justify a durable write, and performs it.
// At most one persistence call runs per session; concurrent routine
// evaluations skip rather than queue, and the next append re-evaluates.
// Forced flushes wait for the slot instead.
type BatchSaver struct {
	store     *session.Store
	persister Persister
	threshold int
	logger    *zap.Logger
}

// NewBatchSaver creates the persistence trigger.
func NewBatchSaver(store *session.Store, persister Persister, threshold int, logger *zap.Logger) *BatchSaver {
	return &BatchSaver{
		store:     store,
		persister: persister,
		threshold: threshold,
		logger:    logger,
	}
}

// MaybeSave evaluates the trigger for one session and, when it fires, runs
// the persistence call to completion. force skips the threshold check
// (teardown and the manual force-save endpoint). It reports whether a
// persistence call was made and any error from it; a skipped evaluation is
// (false, nil).
//
// A routine evaluation that finds a save in flight skips; a forced one must
// cover the full unsaved range, so it waits for the slot instead, bounded
// by ctx.
func (b *BatchSaver) MaybeSave(ctx context.Context, sessionID string, force bool) (bool, error) {
	s, ok := b.store.Get(sessionID)
	if !ok {
		return false, nil
	}
	if !force && s.UnsavedCount() < b.threshold {
		return false, nil
	}

	if !b.store.TryBeginSave(sessionID) {
		if !force {
			b.logger.Debug("save already in flight, skipping",
				zap.String("session_id", sessionID))
			return false, nil
		}
		if err := b.waitForSaveSlot(ctx, sessionID); err != nil {
			return false, err
		}
	}
	defer b.store.EndSave(sessionID)

	// Re-snapshot under the claim: entries may have arrived or been saved
	// between the evaluation and winning the slot.
	entries, from, ok := b.store.SnapshotUnsaved(sessionID)
	if !ok || len(entries) == 0 {
		return false, nil
	}

	total, err := b.persister.SaveBatch(ctx, sessionID, from, entries)
	if err != nil {
		// Bookkeeping stays untouched so the next qualifying append (or a
		// forced flush) retries the same, by then larger, unsaved range.
		b.logger.Error("batch save failed",
			zap.String("session_id", sessionID),
			zap.Int("from", from),
			zap.Int("batch", len(entries)),
			zap.Error(err))
		return true, err
	}

	// Trust the collaborator's count, not the requested one: it dedupes
	// against what it already stored.
	b.store.MarkEntriesSaved(sessionID, total)
	b.logger.Info("transcript batch saved",
		zap.String("session_id", sessionID),
		zap.Int("from", from),
		zap.Int("sent", len(entries)),
		zap.Int("saved_total", total))
	return true, nil
}

// Flush forces a save of the full unsaved range and waits for it. Used by
// the stop flow as the last chance to persist before teardown. A nil return
// means the unsaved range was covered (or was empty); a busy slot is waited
// out, never skipped.
func (b *BatchSaver) Flush(ctx context.Context, sessionID string) error {
	_, err := b.MaybeSave(ctx, sessionID, true)
	return err
}

// waitForSaveSlot polls for the per-session save claim until it is won or
// ctx expires.
func (b *BatchSaver) waitForSaveSlot(ctx context.Context, sessionID string) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for in-flight save: %w", ctx.Err())
		case <-ticker.C:
		}
		if b.store.TryBeginSave(sessionID) {
			return nil
		}
	}
}
