package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
	"github.com/coach-sidekick/coach-sidekick-api/internal/infrastructure/cache"
)

// analysisCacheKey is the cache key prefix for latest-analysis snapshots.
const analysisCacheKey = "analysis:latest:"

// AnalysisFanout stores completed analyses durably and mirrors the latest
// one into the cache so the suggestions read path avoids the database.
type AnalysisFanout struct {
	durable AnalysisSink
	cache   cache.Store
	ttl     time.Duration
	logger  *zap.Logger
}

// NewAnalysisFanout creates the fan-out sink. durable and store may each be
// nil when the corresponding backend is not configured.
func NewAnalysisFanout(durable AnalysisSink, store cache.Store, ttl time.Duration, logger *zap.Logger) *AnalysisFanout {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &AnalysisFanout{
		durable: durable,
		cache:   store,
		ttl:     ttl,
		logger:  logger,
	}
}

// StoreAnalysis writes the record to the database and refreshes the cache
// snapshot. The cache write is best effort.
func (f *AnalysisFanout) StoreAnalysis(ctx context.Context, analysis *entities.CoachingAnalysis) error {
	if f.durable != nil {
		if err := f.durable.StoreAnalysis(ctx, analysis); err != nil {
			return err
		}
	}
	if f.cache != nil {
		payload, err := json.Marshal(analysis)
		if err == nil {
			if err := f.cache.Set(ctx, analysisCacheKey+analysis.SessionID, string(payload), f.ttl); err != nil {
				f.logger.Warn("failed to cache analysis snapshot",
					zap.String("session_id", analysis.SessionID),
					zap.Error(err))
			}
		}
	}
	return nil
}

// CachedAnalysis returns the cached latest-analysis snapshot for a session.
func (f *AnalysisFanout) CachedAnalysis(ctx context.Context, sessionID string) (*entities.CoachingAnalysis, bool) {
	if f.cache == nil {
		return nil, false
	}
	payload, ok, err := f.cache.Get(ctx, analysisCacheKey+sessionID)
	if err != nil || !ok {
		return nil, false
	}
	var analysis entities.CoachingAnalysis
	if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
		return nil, false
	}
	return &analysis, true
}
