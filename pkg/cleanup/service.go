// Package cleanup provides the export-retention background sweep.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/itechmeat/jeex/pkg/config"
)

// ExportExpirer expires exports whose expires_at has passed (C14's
// invariant: "after expiry the row may be marked Expired and the
// artifact removed"). Implemented by pkg/export; defined as an
// interface here to avoid a circular import.
type ExportExpirer interface {
	ExpireOverdue(ctx context.Context) (count int, err error)
}

// Service periodically sweeps for and expires overdue exports. All
// operations are idempotent and safe to run from multiple pods.
type Service struct {
	config   *config.RetentionSettings
	expirer  ExportExpirer

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionSettings, expirer ExportExpirer) *Service {
	return &Service{config: cfg, expirer: expirer}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started", "interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.expireOverdueExports(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.expireOverdueExports(ctx)
		}
	}
}

func (s *Service) expireOverdueExports(ctx context.Context) {
	count, err := s.expirer.ExpireOverdue(ctx)
	if err != nil {
		slog.Error("retention: export expiry sweep failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: expired overdue exports", "count", count)
	}
}
