package repository

import (
	"context"
	"errors"

	"github.com/zxdlabs/shortlink/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested link does not exist.
	ErrLinkNotFound = errors.New("link not found")

	// ErrShortLinkExists signals a unique-constraint violation on short_link.
	ErrShortLinkExists = errors.New("short link already exists")
)

// LinkRepository is the only data access path allowed to create, mutate or
// delete Link rows.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByID(ctx context.Context, id string) (*model.Link, error)
	GetByShortLink(ctx context.Context, shortLink string) (*model.Link, error)
	List(ctx context.Context, limit, offset int, status string) ([]model.Link, error)
	ListWithStats(ctx context.Context) ([]model.LinkWithStats, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) (*model.Link, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrShortLinkExists
		}
		return err
	}
	return nil
}

func (r *linkRepository) GetByID(ctx context.Context, id string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) GetByShortLink(ctx context.Context, shortLink string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("short_link = ?", shortLink).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) List(ctx context.Context, limit, offset int, status string) ([]model.Link, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var result []model.Link
	if err := query.Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *linkRepository) ListWithStats(ctx context.Context) ([]model.LinkWithStats, error) {
	var result []model.LinkWithStats
	err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Select("link.*, COALESCE(COUNT(activity.id), 0) AS clicks").
		Joins("LEFT JOIN activity ON activity.link_id = link.id").
		Group("link.id").
		Order("link.created_at DESC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update applies only the columns present in fields and returns the fresh
// row. Omitted columns are left untouched, never nulled.
func (r *linkRepository) Update(ctx context.Context, id string, fields map[string]interface{}) (*model.Link, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrShortLinkExists
		}
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrLinkNotFound
	}

	return r.GetByID(ctx, id)
}

// Delete removes the link and its activity rows in one transaction. This is
// the only path on which activity rows may be deleted.
func (r *linkRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("link_id = ?", id).Delete(&model.Activity{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Link{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrLinkNotFound
		}
		return nil
	})
}

func (r *linkRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Link{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
