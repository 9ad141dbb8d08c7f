package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scanhub/internal/jobs"
)

// JobStore implements jobs.Store on PostgreSQL. Update runs the mutation
// inside a transaction holding a row lock, so read-modify-write cycles for
// one job are serialized the same way the in-memory store serializes them.
type JobStore struct {
	db *gorm.DB
}

func (s *JobStore) Create(ctx context.Context, job *jobs.ScanJob) error {
	return s.db.WithContext(ctx).Create(recordFromJob(job)).Error
}

func (s *JobStore) Get(ctx context.Context, id string) (*jobs.ScanJob, error) {
	var rec scanJobRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toJob(), nil
}

func (s *JobStore) List(ctx context.Context, f jobs.Filters) ([]*jobs.ScanJob, error) {
	f = f.Clamp()

	q := s.db.WithContext(ctx).Model(&scanJobRecord{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Profile != "" {
		q = q.Where("profile = ?", string(f.Profile))
	}

	var recs []scanJobRecord
	if err := q.Order("created_at DESC").Limit(f.Limit).Find(&recs).Error; err != nil {
		return nil, err
	}

	result := make([]*jobs.ScanJob, 0, len(recs))
	for i := range recs {
		result = append(result, recs[i].toJob())
	}
	return result, nil
}

func (s *JobStore) Update(ctx context.Context, id string, mutate func(*jobs.ScanJob) error) (*jobs.ScanJob, error) {
	var out *jobs.ScanJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec scanJobRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jobs.ErrNotFound
		}
		if err != nil {
			return err
		}

		job := rec.toJob()
		if err := mutate(job); err != nil {
			return err
		}
		job.UpdatedAt = time.Now().UTC()

		if err := tx.Save(recordFromJob(job)).Error; err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
