package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// schedulerStore implements driven.SchedulerStore.
type schedulerStore struct {
	store *Store
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const taskColumns = `id, title, interval_seconds, enabled, last_run, next_run, last_success, last_error, failures`

// Task returns a task by ID, or nil when it was never saved.
func (s *schedulerStore) Task(ctx context.Context, id string) (*domain.ScheduledTask, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

// Tasks returns every saved task ordered by ID.
func (s *schedulerStore) Tasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying scheduled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scheduled tasks: %w", err)
	}
	return tasks, nil
}

// PutTask creates or replaces a task.
func (s *schedulerStore) PutTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task without ID", domain.ErrInvalidInput)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			interval_seconds = excluded.interval_seconds,
			enabled = excluded.enabled,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_success = excluded.last_success,
			last_error = excluded.last_error,
			failures = excluded.failures
	`, task.ID, task.Title, int64(task.Interval/time.Second), boolToInt(task.Enabled),
		formatNullableTime(task.LastRun), formatNullableTime(task.NextRun),
		formatNullableTime(task.LastSuccess), nullString(task.LastError), task.Failures)
	if err != nil {
		return fmt.Errorf("saving scheduled task %s: %w", task.ID, err)
	}
	return nil
}

// AppendRun adds a run to the log.
func (s *schedulerStore) AppendRun(ctx context.Context, run *domain.TaskRun) error {
	if run == nil || run.TaskID == "" {
		return fmt.Errorf("%w: run without task ID", domain.ErrInvalidInput)
	}
	trigger := run.Trigger
	if trigger == "" {
		trigger = domain.TriggerSchedule
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO task_runs (task_id, trigger, started_at, ended_at, error, items)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.TaskID, string(trigger), formatTime(run.StartedAt), formatTime(run.EndedAt),
		nullString(run.Err), run.Items)
	if err != nil {
		return fmt.Errorf("recording run of %s: %w", run.TaskID, err)
	}
	return nil
}

// Runs returns up to limit runs of a task, newest first.
func (s *schedulerStore) Runs(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT task_id, trigger, started_at, ended_at, error, items
		FROM task_runs
		WHERE task_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs of %s: %w", taskID, err)
	}
	defer rows.Close()

	runs := make([]domain.TaskRun, 0, limit)
	for rows.Next() {
		var run domain.TaskRun
		var trigger, startedAt, endedAt string
		var errMsg sql.NullString
		if err := rows.Scan(&run.TaskID, &trigger, &startedAt, &endedAt, &errMsg, &run.Items); err != nil {
			return nil, fmt.Errorf("scanning task run: %w", err)
		}
		run.Trigger = domain.Trigger(trigger)
		run.StartedAt = parseTime(startedAt)
		run.EndedAt = parseTime(endedAt)
		run.Err = errMsg.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs of %s: %w", taskID, err)
	}
	return runs, nil
}

// TrimRuns keeps the newest keep runs per task.
func (s *schedulerStore) TrimRuns(ctx context.Context, keep int) (int64, error) {
	res, err := s.store.db.ExecContext(ctx, `
		DELETE FROM task_runs
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY started_at DESC, id DESC) AS rn
				FROM task_runs
			) WHERE rn > ?
		)
	`, max(keep, 0))
	if err != nil {
		return 0, fmt.Errorf("trimming task runs: %w", err)
	}
	return res.RowsAffected()
}

func scanTask(row rowScanner) (*domain.ScheduledTask, error) {
	var task domain.ScheduledTask
	var intervalSeconds int64
	var enabled int
	var lastRun, nextRun, lastSuccess, lastError sql.NullString

	if err := row.Scan(&task.ID, &task.Title, &intervalSeconds, &enabled,
		&lastRun, &nextRun, &lastSuccess, &lastError, &task.Failures); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning scheduled task: %w", err)
	}

	task.Interval = time.Duration(intervalSeconds) * time.Second
	task.Enabled = enabled == 1
	task.LastRun = parseNullableTime(lastRun)
	task.NextRun = parseNullableTime(nextRun)
	task.LastSuccess = parseNullableTime(lastSuccess)
	task.LastError = lastError.String
	return &task, nil
}
