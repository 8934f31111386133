package driven

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// SchedulerStore keeps scheduled task state and the run log, so schedules
// survive restarts of "lexindex serve".
type SchedulerStore interface {
	// Task returns a task by ID, or nil and no error if it was never saved.
	Task(ctx context.Context, id string) (*domain.ScheduledTask, error)

	// Tasks returns every saved task ordered by ID.
	Tasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// PutTask creates or replaces a task.
	PutTask(ctx context.Context, task *domain.ScheduledTask) error

	// AppendRun adds a run to the log.
	AppendRun(ctx context.Context, run *domain.TaskRun) error

	// Runs returns up to limit runs of a task, newest first.
	Runs(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error)

	// TrimRuns keeps the newest keep runs per task and returns how many
	// were deleted.
	TrimRuns(ctx context.Context, keep int) (int64, error)
}
