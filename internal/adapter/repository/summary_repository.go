package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
)

// SummaryRepository persists end-of-session summaries
type SummaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository creates a new summary repository
func NewSummaryRepository(db *gorm.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// StoreSummary upserts the summary for a session. A stop retried after a
// partial failure overwrites the earlier row instead of conflicting.
func (r *SummaryRepository) StoreSummary(ctx context.Context, summary *entities.SessionSummary) error {
	if summary == nil {
		return errors.New("summary cannot be nil")
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).
		Create(summary).Error; err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	return nil
}

// GetBySession returns the summary for a session, or nil when none exists.
func (r *SummaryRepository) GetBySession(ctx context.Context, sessionID string) (*entities.SessionSummary, error) {
	var summary entities.SessionSummary
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}
	return &summary, nil
}
