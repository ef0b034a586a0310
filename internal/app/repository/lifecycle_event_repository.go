package repository

import (
	"context"

	"github.com/clipvault/clipvault/internal/app/model"
	"gorm.io/gorm"
)

// LifecycleEventRepository defines the data access contract for lifecycle events.
type LifecycleEventRepository interface {
	Create(ctx context.Context, event *model.LifecycleEvent) error
}

type lifecycleEventRepository struct {
	db *gorm.DB
}

// NewLifecycleEventRepository returns a GORM-backed LifecycleEventRepository.
func NewLifecycleEventRepository(db *gorm.DB) LifecycleEventRepository {
	return &lifecycleEventRepository{db: db}
}

func (r *lifecycleEventRepository) Create(ctx context.Context, event *model.LifecycleEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
