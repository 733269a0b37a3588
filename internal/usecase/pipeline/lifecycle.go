package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
	"github.com/coach-sidekick/coach-sidekick-api/internal/session"
)

// BotController drives the transcription provider's bot lifecycle.
type BotController interface {
	CreateBot(ctx context.Context, meetingURL string) (botID string, err error)
	StopBot(ctx context.Context, botID string) error
}

// SummaryStore persists the derived session summary produced on stop.
type SummaryStore interface {
	StoreSummary(ctx context.Context, summary *entities.SessionSummary) error
}

// TranscriptArchiver uploads the full transcript of a stopped session to
// object storage. Best effort; a failure never blocks teardown.
type TranscriptArchiver interface {
	ArchiveTranscript(ctx context.Context, sessionID string, payload []byte) (location string, err error)
}

// StopReport is returned from the stop flow so the operator-facing action
// can report partial success: teardown proceeds even when the final flush
// or summary fails, but those failures are surfaced here.
type StopReport struct {
	SessionID       string `json:"session_id"`
	Flushed         bool   `json:"flushed"`
	FlushError      string `json:"flush_error,omitempty"`
	SummarySaved    bool   `json:"summary_saved"`
	SummaryError    string `json:"summary_error,omitempty"`
	ArchiveLocation string `json:"archive_location,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	EntryCount      int    `json:"entry_count"`
	SavedCount      int    `json:"saved_count"`
}

// Lifecycle governs explicit session start and stop. Implicit creation
// (first webhook event for an unseen id) happens inside the store.
type Lifecycle struct {
	store    *session.Store
	saver    *BatchSaver
	analyzer Analyzer
	bots     BotController
	summary  SummaryStore
	archive  TranscriptArchiver
	logger   *zap.Logger
}

// NewLifecycle creates the lifecycle manager. bots, summary, and archive
// may be nil when the corresponding integration is not configured.
func NewLifecycle(store *session.Store, saver *BatchSaver, analyzer Analyzer, bots BotController, summary SummaryStore, archive TranscriptArchiver, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		store:    store,
		saver:    saver,
		analyzer: analyzer,
		bots:     bots,
		summary:  summary,
		archive:  archive,
		logger:   logger,
	}
}

// Start pre-registers a session. When botID is empty a bot is created with
// the provider first, so the session exists with known metadata before any
// webhook event arrives.
func (l *Lifecycle) Start(ctx context.Context, meetingURL, botID string) (*entities.MeetingSession, error) {
	if botID == "" {
		if l.bots == nil {
			return nil, fmt.Errorf("no bot controller configured and no bot id supplied")
		}
		id, err := l.bots.CreateBot(ctx, meetingURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create bot: %w", err)
		}
		botID = id
	}
	s := l.store.Create(botID, session.Metadata{
		MeetingURL: meetingURL,
		Status:     entities.SessionStatusJoining,
	})
	l.logger.Info("session started",
		zap.String("session_id", botID),
		zap.String("meeting_url", meetingURL))
	return s, nil
}

// Stop tears a session down: the bot leaves the call, the full unsaved
// range is force-flushed and awaited, a final summary is derived and
// persisted, the transcript is archived, and the in-memory record is
// discarded. Flush and summary failures are surfaced in the report but do
// not prevent teardown; unflushed entries for that session are gone once
// it returns.
func (l *Lifecycle) Stop(ctx context.Context, sessionID string) (*StopReport, bool) {
	s, ok := l.store.Get(sessionID)
	if !ok {
		return nil, false
	}
	report := &StopReport{SessionID: sessionID}

	if l.bots != nil {
		if err := l.bots.StopBot(ctx, sessionID); err != nil {
			// The bot may already have left; stopping proceeds regardless.
			l.logger.Warn("failed to stop bot",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}

	if err := l.saver.Flush(ctx, sessionID); err != nil {
		report.FlushError = err.Error()
	} else {
		report.Flushed = true
	}

	l.writeSummary(ctx, sessionID, s, report)

	final, ok := l.store.Teardown(sessionID)
	if !ok {
		// Concurrent stop won the race; the other caller owns the report.
		return report, true
	}
	report.DurationSeconds = int(final.Duration().Seconds())
	report.EntryCount = len(final.Transcript)
	report.SavedCount = final.LastSavedIndex

	if l.archive != nil {
		if payload, err := json.Marshal(final); err == nil {
			loc, err := l.archive.ArchiveTranscript(ctx, sessionID, payload)
			if err != nil {
				l.logger.Warn("transcript archive failed",
					zap.String("session_id", sessionID),
					zap.Error(err))
			} else {
				report.ArchiveLocation = loc
			}
		}
	}

	l.logger.Info("session stopped",
		zap.String("session_id", sessionID),
		zap.Bool("flushed", report.Flushed),
		zap.Bool("summary_saved", report.SummarySaved),
		zap.Int("entries", report.EntryCount))
	return report, true
}

// writeSummary requests a final summarization from the analysis
// collaborator using the last-known analysis snapshot and persists the
// derived record.
func (l *Lifecycle) writeSummary(ctx context.Context, sessionID string, s *entities.MeetingSession, report *StopReport) {
	if l.analyzer == nil || l.summary == nil {
		return
	}
	last, _ := l.store.LatestAnalysis(sessionID)
	finals := s.FinalEntries()

	summary, err := l.analyzer.Summarize(ctx, sessionID, finals, last)
	if err != nil {
		report.SummaryError = err.Error()
		l.logger.Error("final summarization failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return
	}
	summary.SessionID = sessionID
	summary.DurationSeconds = int(s.Duration().Seconds())
	summary.EntryCount = len(s.Transcript)
	summary.FinalEntryCount = len(finals)
	if last != nil {
		summary.OverallScore = last.OverallScore
	}
	if summary.Metadata == nil {
		meta, _ := json.Marshal(map[string]interface{}{
			"platform":   s.Platform,
			"meeting_id": s.PlatformMeetingID,
			"status":     s.Status,
		})
		summary.Metadata = datatypes.JSON(meta)
	}

	if err := l.summary.StoreSummary(ctx, summary); err != nil {
		report.SummaryError = err.Error()
		l.logger.Error("failed to persist session summary",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return
	}
	report.SummarySaved = true
}
