// Package pipeline drives the live transcript ingestion flow: webhook
// events are normalized onto the session store, and each appended final
// entry is evaluated against the persistence and analysis triggers, which
// run their external calls as detached background work.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	recalldto "github.com/coach-sidekick/coach-sidekick-api/internal/adapter/dto/recall"
	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
	"github.com/coach-sidekick/coach-sidekick-api/internal/session"
	"github.com/coach-sidekick/coach-sidekick-api/pkg/taskctx"
)

// Persister durably stores a range of transcript entries for a session.
// from is the absolute index of the first entry in the batch. The returned
// total is the authoritative count of entries now persisted for the
// session; the implementation is expected to deduplicate overlapping
// ranges against what it already holds.
type Persister interface {
	SaveBatch(ctx context.Context, sessionID string, from int, entries []entities.TranscriptEntry) (total int, err error)
}

// Analyzer runs one incremental coaching analysis pass. sinceIndex is the
// dedup cursor into the final-entries view; the returned record carries the
// collaborator's updated cursor, which may cap how much of the new range it
// consumed.
type Analyzer interface {
	Analyze(ctx context.Context, sessionID string, finalEntries []entities.TranscriptEntry, sinceIndex int) (*entities.CoachingAnalysis, error)
	Summarize(ctx context.Context, sessionID string, finalEntries []entities.TranscriptEntry, last *entities.CoachingAnalysis) (*entities.SessionSummary, error)
}

// AnalysisSink receives completed analysis records for durable storage and
// cache fan-out. Failures are logged and never block the pipeline.
type AnalysisSink interface {
	StoreAnalysis(ctx context.Context, analysis *entities.CoachingAnalysis) error
}

// Config carries the trigger tuning knobs.
type Config struct {
	// SaveThreshold is how many unsaved entries accumulate before a batch
	// save is triggered.
	SaveThreshold int
	// AnalysisFloor is the minimum number of final entries a session needs
	// before analysis ever runs.
	AnalysisFloor int
	// AnalysisMinNew is the minimum number of new final entries past the
	// cursor needed to re-run analysis.
	AnalysisMinNew int
	// CallTimeout bounds each background collaborator call.
	CallTimeout time.Duration
}

// Pipeline wires the normalizer, session store, and triggers together.
type Pipeline struct {
	store    *session.Store
	saver    *BatchSaver
	analysis *AnalysisTrigger
	logger   *zap.Logger

	timeout time.Duration
	wg      sync.WaitGroup
}

// New constructs the pipeline around an existing store and collaborators.
func New(store *session.Store, persister Persister, analyzer Analyzer, sink AnalysisSink, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.SaveThreshold <= 0 {
		cfg.SaveThreshold = 5
	}
	if cfg.AnalysisFloor <= 0 {
		cfg.AnalysisFloor = 3
	}
	if cfg.AnalysisMinNew <= 0 {
		cfg.AnalysisMinNew = 3
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Minute
	}
	return &Pipeline{
		store:    store,
		saver:    NewBatchSaver(store, persister, cfg.SaveThreshold, logger),
		analysis: NewAnalysisTrigger(store, analyzer, sink, cfg.AnalysisFloor, cfg.AnalysisMinNew, logger),
		logger:   logger,
		timeout:  cfg.CallTimeout,
	}
}

// Saver exposes the persistence trigger for forced flushes.
func (p *Pipeline) Saver() *BatchSaver { return p.saver }

// Analysis exposes the analysis trigger for manual invocations.
func (p *Pipeline) Analysis() *AnalysisTrigger { return p.analysis }

// HandleEvent applies one webhook event to the store and, for appended
// final entries, fires both triggers as detached background work. It
// returns as soon as the store mutation is applied; the caller's
// acknowledgement never waits on a collaborator.
func (p *Pipeline) HandleEvent(evt *recalldto.WebhookEvent) Op {
	op := NormalizeEvent(evt, time.Now())

	switch op.Kind {
	case OpStatus:
		p.store.Create(op.SessionID, op.Meta)
		p.store.UpdateStatus(op.SessionID, op.Status)

	case OpAppendFinal:
		total, finals := p.store.Append(op.SessionID, op.Entry)
		p.logger.Debug("final entry appended",
			zap.String("session_id", op.SessionID),
			zap.Int("total", total),
			zap.Int("finals", finals))
		p.fireTriggers(op.SessionID)

	case OpAppendPartial:
		p.store.Append(op.SessionID, op.Entry)

	case OpNone:
		if evt != nil {
			p.logger.Debug("webhook event ignored", zap.String("event", evt.Event))
		}
	}
	return op
}

// fireTriggers evaluates both triggers in the background.
func (p *Pipeline) fireTriggers(sessionID string) {
	p.spawn("batch_save", sessionID, func(ctx context.Context) {
		p.saver.MaybeSave(ctx, sessionID, false)
	})
	p.spawn("analysis", sessionID, func(ctx context.Context) {
		p.analysis.MaybeAnalyze(ctx, sessionID, false)
	})
}

// spawn runs fn on its own goroutine with panic recovery and a bounded,
// task-tagged context, tracked so Drain can wait for in-flight work on
// shutdown.
func (p *Pipeline) spawn(name, sessionID string, fn func(ctx context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := taskctx.Begin(context.Background(), name, sessionID, p.timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("background task panicked",
					append(taskctx.Fields(ctx), zap.Any("panic", r))...)
			}
		}()
		fn(ctx)
	}()
}

// Drain waits for in-flight background work, giving up when ctx expires.
func (p *Pipeline) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
