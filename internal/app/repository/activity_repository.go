package repository

import (
	"context"

	"github.com/zxdlabs/shortlink/internal/app/model"
	"gorm.io/gorm"
)

// ActivityRepository owns Activity creation. Rows are append-only; there is
// deliberately no update method, and bulk deletion lives inside
// LinkRepository.Delete.
type ActivityRepository interface {
	Create(ctx context.Context, activity *model.Activity) error
	CountByLink(ctx context.Context, linkID string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository returns a GORM-backed ActivityRepository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, activity *model.Activity) error {
	// The foreign key on link_id makes the insert and the link-existence
	// check one atomic operation.
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *activityRepository) CountByLink(ctx context.Context, linkID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Activity{}).
		Where("link_id = ?", linkID).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *activityRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Activity{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
