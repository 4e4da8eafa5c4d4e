package service

import (
	"context"
	"time"

	apprepository "github.com/sifan077/GateLink/internal/app/repository"
	"go.uber.org/zap"
)

// LinkEventPruner periodically deletes audit events older than the retention window.
type LinkEventPruner struct {
	logger    *zap.Logger
	repo      apprepository.LinkEventRepository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
}

// NewLinkEventPruner creates a new pruner.
func NewLinkEventPruner(logger *zap.Logger, repo apprepository.LinkEventRepository, retention time.Duration) *LinkEventPruner {
	return &LinkEventPruner{
		logger:    logger,
		repo:      repo,
		retention: retention,
		interval:  time.Hour,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start begins pruning in the background.
func (p *LinkEventPruner) Start() {
	go p.run()
}

// Stop stops the periodic pruning.
func (p *LinkEventPruner) Stop() {
	close(p.stopChan)
}

func (p *LinkEventPruner) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.prune(context.Background())
		case <-p.stopChan:
			p.logger.Info("link event pruner stopped")
			return
		}
	}
}

func (p *LinkEventPruner) prune(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.retention)

	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to prune link events", zap.Error(err))
		return 0
	}

	if deleted > 0 {
		p.logger.Info("pruned link events",
			zap.Int64("count", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return deleted
}
