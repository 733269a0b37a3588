package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
)

// AnalysisRepository persists coaching analysis records
type AnalysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// StoreAnalysis appends a completed analysis record. Records are immutable;
// the latest row per session is the current analysis.
func (r *AnalysisRepository) StoreAnalysis(ctx context.Context, analysis *entities.CoachingAnalysis) error {
	if analysis == nil {
		return errors.New("analysis cannot be nil")
	}
	if err := r.db.WithContext(ctx).Create(analysis).Error; err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}
	return nil
}

// LatestBySession returns the most recent analysis for a session, or nil
// when none exists.
func (r *AnalysisRepository) LatestBySession(ctx context.Context, sessionID string) (*entities.CoachingAnalysis, error) {
	var analysis entities.CoachingAnalysis
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&analysis).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest analysis: %w", err)
	}
	hydrate(&analysis)
	return &analysis, nil
}

// ListBySession returns all analysis passes for a session, oldest first.
func (r *AnalysisRepository) ListBySession(ctx context.Context, sessionID string) ([]entities.CoachingAnalysis, error) {
	var analyses []entities.CoachingAnalysis
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&analyses).Error; err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	for i := range analyses {
		hydrate(&analyses[i])
	}
	return analyses, nil
}

// hydrate unpacks the JSONB mirrors into the structured fields.
func hydrate(a *entities.CoachingAnalysis) {
	if len(a.CriteriaScoresRaw) > 0 {
		_ = json.Unmarshal(a.CriteriaScoresRaw, &a.CriteriaScores)
	}
	if len(a.SuggestionsRaw) > 0 {
		_ = json.Unmarshal(a.SuggestionsRaw, &a.Suggestions)
	}
}
