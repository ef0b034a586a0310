package repository

import (
	"context"
	"errors"
	"time"

	"github.com/clipvault/clipvault/internal/app/model"
	"gorm.io/gorm"
)

// VideoRepository defines the data access contract for video records.
type VideoRepository interface {
	Create(ctx context.Context, video *model.Video) error
	GetByID(ctx context.Context, id string) (*model.Video, error)
	// UpdateFilename swaps the stored filename if and only if the record's
	// updated_at still matches seenUpdatedAt. A stale value yields
	// model.ErrConflict, a missing record model.ErrVideoNotFound.
	UpdateFilename(ctx context.Context, id, filename string, seenUpdatedAt, now time.Time) error
}

type videoRepository struct {
	db *gorm.DB
}

// NewVideoRepository returns a GORM-backed VideoRepository.
func NewVideoRepository(db *gorm.DB) VideoRepository {
	return &videoRepository{db: db}
}

func (r *videoRepository) Create(ctx context.Context, video *model.Video) error {
	if err := r.db.WithContext(ctx).Create(video).Error; err != nil {
		return err
	}
	return nil
}

func (r *videoRepository) GetByID(ctx context.Context, id string) (*model.Video, error) {
	var video model.Video
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrVideoNotFound
		}
		return nil, err
	}
	return &video, nil
}

func (r *videoRepository) UpdateFilename(ctx context.Context, id, filename string, seenUpdatedAt, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Video{}).
		Where("id = ? AND updated_at = ?", id, seenUpdatedAt).
		Updates(map[string]interface{}{
			"filename":   filename,
			"updated_at": now,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a vanished record from a lost race.
		if _, err := r.getAny(ctx, id); err != nil {
			return err
		}
		return model.ErrConflict
	}

	return nil
}

func (r *videoRepository) getAny(ctx context.Context, id string) (*model.Video, error) {
	var video model.Video
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrVideoNotFound
		}
		return nil, err
	}
	return &video, nil
}
