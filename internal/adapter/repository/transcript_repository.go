package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
)

// TranscriptRepository persists transcript entries in indexed rows, one per
// entry. It deduplicates by entry index, so replayed or overlapping batches
// are safe.
type TranscriptRepository struct {
	db *gorm.DB
}

// NewTranscriptRepository creates a new transcript repository
func NewTranscriptRepository(db *gorm.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// SaveBatch persists the given entries, whose absolute indexes start at
// from, and returns the total number of entries now stored for the session.
// Entries at indexes already present are skipped rather than rewritten;
// rows are immutable once stored.
func (r *TranscriptRepository) SaveBatch(ctx context.Context, sessionID string, from int, entries []entities.TranscriptEntry) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&entities.TranscriptRow{}).
			Where("session_id = ?", sessionID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to count stored entries: %w", err)
		}

		rows := make([]entities.TranscriptRow, 0, len(entries))
		for i, entry := range entries {
			index := from + i
			if index < int(existing) {
				continue
			}
			rows = append(rows, *entities.NewTranscriptRow(sessionID, index, entry))
		}

		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("failed to insert transcript batch: %w", err)
			}
		}
		total = int(existing) + len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// CountBySession returns how many entries are stored for a session.
func (r *TranscriptRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.TranscriptRow{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count stored entries: %w", err)
	}
	return int(count), nil
}

// ListBySession returns the stored entries for a session in index order.
func (r *TranscriptRepository) ListBySession(ctx context.Context, sessionID string) ([]entities.TranscriptEntry, error) {
	var rows []entities.TranscriptRow
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("entry_index ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list transcript entries: %w", err)
	}
	entries := make([]entities.TranscriptEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.Entry())
	}
	return entries, nil
}

// DeleteBySession removes all stored entries for a session.
func (r *TranscriptRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&entities.TranscriptRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete transcript entries: %w", err)
	}
	return nil
}
