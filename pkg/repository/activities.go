package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/fystack/walletstream/pkg/model"
)

// ActivityStore appends enriched activity rows. Rows are insert-only.
type ActivityStore interface {
	Insert(ctx context.Context, activity *model.ActivityLog) error
}

type activityStore struct {
	db *gorm.DB
}

func NewActivityStore(db *gorm.DB) ActivityStore {
	return &activityStore{db: db}
}

func (s *activityStore) Insert(ctx context.Context, activity *model.ActivityLog) error {
	if err := s.db.WithContext(ctx).Create(activity).Error; err != nil {
		return wrapError(err)
	}
	return nil
}
