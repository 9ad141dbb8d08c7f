package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scanhub/internal/playbooks"
)

// PlaybookStore implements playbooks.Store on PostgreSQL.
type PlaybookStore struct {
	db *gorm.DB
}

func (s *PlaybookStore) Create(ctx context.Context, pb *playbooks.Playbook) error {
	return s.db.WithContext(ctx).Create(recordFromPlaybook(pb)).Error
}

func (s *PlaybookStore) Get(ctx context.Context, id string) (*playbooks.Playbook, error) {
	var rec playbookRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, playbooks.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toPlaybook(), nil
}

func (s *PlaybookStore) List(ctx context.Context) ([]*playbooks.Playbook, error) {
	var recs []playbookRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}

	result := make([]*playbooks.Playbook, 0, len(recs))
	for i := range recs {
		result = append(result, recs[i].toPlaybook())
	}
	return result, nil
}

func (s *PlaybookStore) Update(ctx context.Context, id string, mutate func(*playbooks.Playbook) error) (*playbooks.Playbook, error) {
	var out *playbooks.Playbook
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec playbookRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return playbooks.ErrNotFound
		}
		if err != nil {
			return err
		}

		pb := rec.toPlaybook()
		if err := mutate(pb); err != nil {
			return err
		}
		pb.UpdatedAt = time.Now().UTC()

		if err := tx.Save(recordFromPlaybook(pb)).Error; err != nil {
			return err
		}
		out = pb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
