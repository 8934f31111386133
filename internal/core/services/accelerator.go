package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// Ensure AcceleratorService implements the interface.
var _ driving.AcceleratorService = (*AcceleratorService)(nil)

// rebuildBatchSize bounds the entries written per Upsert call.
const rebuildBatchSize = 500

// AcceleratorService rebuilds and inspects the accelerator mirror.
type AcceleratorService struct {
	store       driven.KnowledgeStore
	accelerator driven.AcceleratorIndex
}

// NewAcceleratorService creates an accelerator service.
func NewAcceleratorService(store driven.KnowledgeStore, accelerator driven.AcceleratorIndex) *AcceleratorService {
	return &AcceleratorService{store: store, accelerator: accelerator}
}

// Rebuild clears the mirror and writes every chunk of every active document.
func (s *AcceleratorService) Rebuild(ctx context.Context) (int, error) {
	if !s.accelerator.Enabled() {
		return 0, domain.ErrAcceleratorUnavailable
	}
	logger.Section("Accelerator Rebuild")

	entries, err := s.store.AcceleratorEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("load entries: %w", err)
	}
	if err := s.accelerator.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear accelerator: %w", err)
	}

	written := 0
	for start := 0; start < len(entries); start += rebuildBatchSize {
		end := min(start+rebuildBatchSize, len(entries))
		if err := s.accelerator.Upsert(ctx, entries[start:end]); err != nil {
			return written, fmt.Errorf("upsert entries %d-%d: %w", start, end, err)
		}
		written = end
		logger.Debug("Mirrored %d/%d chunks", written, len(entries))
	}

	logger.Info("Accelerator rebuilt with %d chunks", written)
	return written, nil
}

// Stats describes the accelerator index.
func (s *AcceleratorService) Stats(ctx context.Context) (*domain.AcceleratorStats, error) {
	stats, err := s.accelerator.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("accelerator stats: %w", err)
	}
	return stats, nil
}

// Clear drops all mirrored entries.
func (s *AcceleratorService) Clear(ctx context.Context) error {
	if !s.accelerator.Enabled() {
		return nil
	}
	if err := s.accelerator.Clear(ctx); err != nil {
		return fmt.Errorf("clear accelerator: %w", err)
	}
	return nil
}
