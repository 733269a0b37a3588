package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/coach-sidekick/coach-sidekick-api/errors"
	sessiondto "github.com/coach-sidekick/coach-sidekick-api/internal/adapter/dto/session"
	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
	"github.com/coach-sidekick/coach-sidekick-api/internal/session"
	"github.com/coach-sidekick/coach-sidekick-api/internal/usecase/pipeline"
)

// AnalysisReader loads persisted analyses when the in-memory and cached
// snapshots are gone (e.g. after the session was torn down).
type AnalysisReader interface {
	LatestBySession(ctx context.Context, sessionID string) (*entities.CoachingAnalysis, error)
	ListBySession(ctx context.Context, sessionID string) ([]entities.CoachingAnalysis, error)
}

// TranscriptReader serves the persisted transcript, which outlives the
// in-memory session.
type TranscriptReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]entities.TranscriptEntry, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

// SummaryReader loads the end-of-session summary record.
type SummaryReader interface {
	GetBySession(ctx context.Context, sessionID string) (*entities.SessionSummary, error)
}

// Records groups the persisted read-side collaborators. Any field may be
// nil when the backing store is not configured.
type Records struct {
	Transcripts TranscriptReader
	Analyses    AnalysisReader
	Summaries   SummaryReader
}

// ArchiveBrowser lists archived transcript snapshots and issues download
// links for them.
type ArchiveBrowser interface {
	ListArchives(ctx context.Context, sessionID string) ([]string, error)
	GetArchiveURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// Session serves the operator-facing session endpoints: start/stop, state
// inspection, manual trigger invocations, and the suggestion feed.
type Session struct {
	store            *session.Store
	pipeline         *pipeline.Pipeline
	lifecycle        *pipeline.Lifecycle
	fanout           *pipeline.AnalysisFanout
	records          Records
	archives         ArchiveBrowser
	suggestionWindow time.Duration
	logger           *zap.Logger
}

// NewSession creates the session handler. fanout, the records fields, and
// archives may be nil.
func NewSession(store *session.Store, p *pipeline.Pipeline, lifecycle *pipeline.Lifecycle, fanout *pipeline.AnalysisFanout, records Records, archives ArchiveBrowser, suggestionWindow time.Duration, logger *zap.Logger) *Session {
	if suggestionWindow <= 0 {
		suggestionWindow = 5 * time.Minute
	}
	return &Session{
		store:            store,
		pipeline:         p,
		lifecycle:        lifecycle,
		fanout:           fanout,
		records:          records,
		archives:         archives,
		suggestionWindow: suggestionWindow,
		logger:           logger,
	}
}

// List returns the ids of all active sessions.
func (h *Session) List(c echo.Context) error {
	ids := h.store.IDs()
	return HandleSuccess(h.logger, c, sessiondto.ListSessionsResponse{
		Sessions: ids,
		Count:    len(ids),
	})
}

// Start registers a session, creating a Recall bot when none is supplied.
func (h *Session) Start(c echo.Context) error {
	var req sessiondto.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	s, err := h.lifecycle.Start(c.Request().Context(), req.MeetingURL, req.BotID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrBotCreationFailed(err))
	}
	return c.JSON(http.StatusCreated, success{
		Code:    "OK",
		Message: "success",
		Data:    s,
	})
}

// Get returns the live state of one session.
func (h *Session) Get(c echo.Context) error {
	botID := c.Param("botId")
	s, ok := h.store.Get(botID)
	if !ok {
		return HandleError(h.logger, c, errors.ErrSessionNotFound(botID))
	}
	return HandleSuccess(h.logger, c, s)
}

// Stop tears a session down and returns the stop report. Partial failures
// (flush, summary) are reported in the body, not as an error status.
func (h *Session) Stop(c echo.Context) error {
	botID := c.Param("botId")
	report, ok := h.lifecycle.Stop(c.Request().Context(), botID)
	if !ok {
		return HandleError(h.logger, c, errors.ErrSessionNotFound(botID))
	}
	return HandleSuccess(h.logger, c, report)
}

// BatchStatus reports the persistence bookkeeping for one session.
func (h *Session) BatchStatus(c echo.Context) error {
	botID := c.Param("botId")
	s, ok := h.store.Get(botID)
	if !ok {
		return HandleError(h.logger, c, errors.ErrSessionNotFound(botID))
	}
	return HandleSuccess(h.logger, c, sessiondto.BatchStatusResponse{
		SessionID:    botID,
		TotalEntries: len(s.Transcript),
		SavedCount:   s.LastSavedIndex,
		UnsavedCount: s.UnsavedCount(),
		SaveInFlight: h.store.SaveInFlight(botID),
	})
}

// ForceSave flushes the session's unsaved entries and waits for the result.
func (h *Session) ForceSave(c echo.Context) error {
	botID := c.Param("botId")
	if _, ok := h.store.Get(botID); !ok {
		return HandleError(h.logger, c, errors.ErrSessionNotFound(botID))
	}

	if err := h.pipeline.Saver().Flush(c.Request().Context(), botID); err != nil {
		return HandleError(h.logger, c, errors.ErrProcessingFailed(err))
	}

	s, _ := h.store.Get(botID)
	resp := sessiondto.ForceSaveResponse{SessionID: botID, Saved: true}
	if s != nil {
		resp.SavedCount = s.LastSavedIndex
	}
	return HandleSuccess(h.logger, c, resp)
}

// Analyze requests an analysis pass and waits for it. force=true bypasses
// the minimum-new-entries floor; a pass still needs some new content and an
// idle analysis slot.
func (h *Session) Analyze(c echo.Context) error {
	botID := c.Param("botId")
	if _, ok := h.store.Get(botID); !ok {
		return HandleError(h.logger, c, errors.ErrSessionNotFound(botID))
	}
	force := c.QueryParam("force") == "true"

	ran, err := h.pipeline.Analysis().MaybeAnalyze(c.Request().Context(), botID, force)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrAIAnalysisFailed(err))
	}

	resp := sessiondto.AnalyzeResponse{SessionID: botID, Ran: ran}
	if !ran {
		resp.Message = "no new content to analyze or analysis already in flight"
	}
	if analysis, ok := h.store.LatestAnalysis(botID); ok {
		resp.Analysis = analysis
	}
	return HandleSuccess(h.logger, c, resp)
}

// GetAnalysis returns the latest analysis for a session.
func (h *Session) GetAnalysis(c echo.Context) error {
	botID := c.Param("botId")
	analysis := h.latestAnalysis(c.Request().Context(), botID)
	if analysis == nil {
		return HandleError(h.logger, c, errors.ErrAnalysisNotFound(botID))
	}
	return HandleSuccess(h.logger, c, analysis)
}

// Suggestions returns the suggestion feed. With only_active=true, only
// suggestions from the recency window that are timed for the live call
// (now, next_pause) are included.
func (h *Session) Suggestions(c echo.Context) error {
	botID := c.Param("botId")
	analysis := h.latestAnalysis(c.Request().Context(), botID)
	if analysis == nil {
		return HandleError(h.logger, c, errors.ErrAnalysisNotFound(botID))
	}

	onlyActive := c.QueryParam("only_active") == "true"
	suggestions := analysis.Suggestions
	if onlyActive {
		suggestions = analysis.ActiveSuggestions(h.suggestionWindow)
	}
	if suggestions == nil {
		suggestions = []entities.CoachingSuggestion{}
	}

	return HandleSuccess(h.logger, c, sessiondto.SuggestionsResponse{
		SessionID:   botID,
		AnalysisID:  analysis.ID,
		Suggestions: suggestions,
		Count:       len(suggestions),
		OnlyActive:  onlyActive,
	})
}

// Transcript returns the persisted transcript for a session. Unlike Get,
// it keeps working after teardown.
func (h *Session) Transcript(c echo.Context) error {
	botID := c.Param("botId")
	if h.records.Transcripts == nil {
		return HandleError(h.logger, c, errors.ErrNotFound("transcript storage"))
	}

	entries, err := h.records.Transcripts.ListBySession(c.Request().Context(), botID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrDBQueryFailed("list transcript", err))
	}
	if entries == nil {
		entries = []entities.TranscriptEntry{}
	}
	return HandleSuccess(h.logger, c, sessiondto.TranscriptResponse{
		SessionID: botID,
		Entries:   entries,
		Count:     len(entries),
	})
}

// DeleteTranscript removes the persisted transcript for a session.
func (h *Session) DeleteTranscript(c echo.Context) error {
	botID := c.Param("botId")
	if h.records.Transcripts == nil {
		return HandleError(h.logger, c, errors.ErrNotFound("transcript storage"))
	}

	count, err := h.records.Transcripts.CountBySession(c.Request().Context(), botID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrDBQueryFailed("count transcript", err))
	}
	if count == 0 {
		return HandleError(h.logger, c, errors.ErrNotFound("transcript"))
	}
	if err := h.records.Transcripts.DeleteBySession(c.Request().Context(), botID); err != nil {
		return HandleError(h.logger, c, errors.ErrDBQueryFailed("delete transcript", err))
	}
	return HandleSuccess(h.logger, c, map[string]interface{}{
		"session_id": botID,
		"deleted":    count,
	})
}

// AnalysisHistory lists every stored analysis pass for a session.
func (h *Session) AnalysisHistory(c echo.Context) error {
	botID := c.Param("botId")
	if h.records.Analyses == nil {
		return HandleError(h.logger, c, errors.ErrNotFound("analysis storage"))
	}

	analyses, err := h.records.Analyses.ListBySession(c.Request().Context(), botID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrDBQueryFailed("list analyses", err))
	}
	if analyses == nil {
		analyses = []entities.CoachingAnalysis{}
	}
	return HandleSuccess(h.logger, c, sessiondto.AnalysisHistoryResponse{
		SessionID: botID,
		Analyses:  analyses,
		Count:     len(analyses),
	})
}

// Summary returns the end-of-session summary persisted on stop.
func (h *Session) Summary(c echo.Context) error {
	botID := c.Param("botId")
	if h.records.Summaries == nil {
		return HandleError(h.logger, c, errors.ErrNotFound("summary storage"))
	}

	summary, err := h.records.Summaries.GetBySession(c.Request().Context(), botID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrDBQueryFailed("get summary", err))
	}
	if summary == nil {
		return HandleError(h.logger, c, errors.ErrNotFound("summary"))
	}
	return HandleSuccess(h.logger, c, summary)
}

// Archives lists the archived transcript snapshots for a session with
// presigned download links. Works after teardown; archives outlive the
// in-memory session.
func (h *Session) Archives(c echo.Context) error {
	botID := c.Param("botId")
	if h.archives == nil {
		return HandleError(h.logger, c, errors.ErrNotFound("archive storage"))
	}

	keys, err := h.archives.ListArchives(c.Request().Context(), botID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrStorageFailed("list archives", err))
	}

	objects := make([]sessiondto.ArchiveObject, 0, len(keys))
	for _, key := range keys {
		obj := sessiondto.ArchiveObject{Key: key}
		if url, err := h.archives.GetArchiveURL(c.Request().Context(), key, time.Hour); err == nil {
			obj.URL = url
		}
		objects = append(objects, obj)
	}

	return HandleSuccess(h.logger, c, sessiondto.ArchivesResponse{
		SessionID: botID,
		Archives:  objects,
		Count:     len(objects),
	})
}

// latestAnalysis looks the analysis up in order of freshness: the session
// registry, then the cache snapshot, then the database.
func (h *Session) latestAnalysis(ctx context.Context, botID string) *entities.CoachingAnalysis {
	if analysis, ok := h.store.LatestAnalysis(botID); ok {
		return analysis
	}
	if h.fanout != nil {
		if analysis, ok := h.fanout.CachedAnalysis(ctx, botID); ok {
			return analysis
		}
	}
	if h.records.Analyses != nil {
		analysis, err := h.records.Analyses.LatestBySession(ctx, botID)
		if err != nil {
			h.logger.Warn("failed to load persisted analysis",
				zap.String("session_id", botID),
				zap.Error(err))
			return nil
		}
		return analysis
	}
	return nil
}
