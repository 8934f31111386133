package driving

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// Scheduler runs the recurring crawl, embedding backfill and metrics
// cleanup jobs.
type Scheduler interface {
	// Start registers the configured tasks and runs due ones until ctx is
	// cancelled or Stop is called. Returns nil at once when the scheduler
	// is disabled.
	Start(ctx context.Context) error

	// Stop ends the loop and waits for running tasks.
	Stop() error

	// RunNow executes a built-in task immediately and records the run.
	// Returns domain.ErrInvalidInput for an unknown task ID.
	RunNow(ctx context.Context, taskID string) (*domain.TaskRun, error)

	// Tasks lists the persisted task states.
	Tasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// History returns the latest runs of a task, newest first.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error)
}
