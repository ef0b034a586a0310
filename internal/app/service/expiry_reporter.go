package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	apprepository "github.com/clipvault/clipvault/internal/app/repository"
	metrics "github.com/clipvault/clipvault/internal/infra/prometheus"
)

// ExpiryReporter periodically counts share links past their expiry and
// publishes the figure as a gauge. Expired links are never deleted, so the
// gauge tracks how much dead weight the table carries.
type ExpiryReporter struct {
	logger   *zap.Logger
	repo     apprepository.SharedLinkRepository
	interval time.Duration
	stopChan chan struct{}
}

// NewExpiryReporter creates a reporter sampling once per minute.
func NewExpiryReporter(logger *zap.Logger, repo apprepository.SharedLinkRepository) *ExpiryReporter {
	return &ExpiryReporter{
		logger:   logger,
		repo:     repo,
		interval: time.Minute,
		stopChan: make(chan struct{}),
	}
}

// Start begins periodic sampling.
func (r *ExpiryReporter) Start() {
	go r.run()
}

// Stop halts periodic sampling.
func (r *ExpiryReporter) Stop() {
	close(r.stopChan)
}

func (r *ExpiryReporter) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sample()
		case <-r.stopChan:
			r.logger.Info("expiry reporter stopped")
			return
		}
	}
}

func (r *ExpiryReporter) sample() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := r.repo.CountExpired(ctx, time.Now())
	if err != nil {
		r.logger.Error("failed to count expired share links", zap.Error(err))
		return
	}

	metrics.SetExpiredShareLinks(float64(count))
	r.logger.Debug("expired share links sampled", zap.Int64("count", count))
}
