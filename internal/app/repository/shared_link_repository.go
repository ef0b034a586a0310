package repository

import (
	"context"
	"errors"
	"time"

	"github.com/clipvault/clipvault/internal/app/model"
	"gorm.io/gorm"
)

// SharedLinkRepository defines the data access contract for share links.
type SharedLinkRepository interface {
	Create(ctx context.Context, link *model.SharedLink) error
	GetByID(ctx context.Context, id string) (*model.SharedLink, error)
	// ListIDs returns every link id; used to warm the negative-lookup
	// filter at startup.
	ListIDs(ctx context.Context) ([]string, error)
	CountExpired(ctx context.Context, now time.Time) (int64, error)
}

type sharedLinkRepository struct {
	db *gorm.DB
}

// NewSharedLinkRepository returns a GORM-backed SharedLinkRepository.
func NewSharedLinkRepository(db *gorm.DB) SharedLinkRepository {
	return &sharedLinkRepository{db: db}
}

func (r *sharedLinkRepository) Create(ctx context.Context, link *model.SharedLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *sharedLinkRepository) GetByID(ctx context.Context, id string) (*model.SharedLink, error) {
	var link model.SharedLink
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *sharedLinkRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&model.SharedLink{}).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *sharedLinkRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.SharedLink{}).
		Where("expires_at < ?", now).
		Count(&count).Error
	return count, err
}
