package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scanhub/internal/diffs"
)

// DiffStore implements diffs.Store on PostgreSQL. The unique index on the
// (old, new) pair makes Upsert an insert-or-replace.
type DiffStore struct {
	db *gorm.DB
}

func (s *DiffStore) Upsert(ctx context.Context, report *diffs.Report) (*diffs.Report, error) {
	now := time.Now().UTC()
	rec := recordFromReport(report)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "old_job_id"}, {Name: "new_job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"target", "changes", "updated_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return nil, err
	}

	return s.GetByPair(ctx, report.OldJobID, report.NewJobID)
}

func (s *DiffStore) Get(ctx context.Context, id string) (*diffs.Report, error) {
	var rec diffReportRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, diffs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toReport(), nil
}

func (s *DiffStore) GetByPair(ctx context.Context, oldJobID, newJobID string) (*diffs.Report, error) {
	var rec diffReportRecord
	err := s.db.WithContext(ctx).
		First(&rec, "old_job_id = ? AND new_job_id = ?", oldJobID, newJobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, diffs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toReport(), nil
}

func (s *DiffStore) List(ctx context.Context, limit int) ([]*diffs.Report, error) {
	if limit < 1 {
		limit = diffs.DefaultListLimit
	}

	var recs []diffReportRecord
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}

	result := make([]*diffs.Report, 0, len(recs))
	for i := range recs {
		result = append(result, recs[i].toReport())
	}
	return result, nil
}
