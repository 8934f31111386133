package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

var schedBase = time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)

func TestSchedulerStore_PutAndGetTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	tasks := store.SchedulerStore()

	task := &domain.ScheduledTask{
		ID:          domain.TaskIDSourceCrawl,
		Title:       "Source crawl",
		Interval:    6 * time.Hour,
		Enabled:     true,
		LastRun:     schedBase,
		NextRun:     schedBase.Add(5 * time.Minute),
		LastSuccess: schedBase.Add(-6 * time.Hour),
		LastError:   "drive: 403 rate limit",
		Failures:    2,
	}
	require.NoError(t, tasks.PutTask(ctx, task))

	got, err := tasks.Task(ctx, domain.TaskIDSourceCrawl)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *task, *got)

	task.Enabled = false
	task.Failures = 0
	task.LastError = ""
	require.NoError(t, tasks.PutTask(ctx, task))

	got, err = tasks.Task(ctx, domain.TaskIDSourceCrawl)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Zero(t, got.Failures)
	assert.Empty(t, got.LastError)
}

func TestSchedulerStore_MissingAndInvalidTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	tasks := store.SchedulerStore()

	got, err := tasks.Task(ctx, "never-saved")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, tasks.PutTask(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, tasks.PutTask(ctx, &domain.ScheduledTask{}), domain.ErrInvalidInput)
	assert.ErrorIs(t, tasks.AppendRun(ctx, &domain.TaskRun{}), domain.ErrInvalidInput)
}

func TestSchedulerStore_TasksOrderedByID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	tasks := store.SchedulerStore()

	empty, err := tasks.Tasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, id := range domain.BuiltinTaskIDs() {
		require.NoError(t, tasks.PutTask(ctx, &domain.ScheduledTask{ID: id, Title: domain.TaskTitle(id), Interval: time.Hour}))
	}

	all, err := tasks.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.TaskIDEmbeddingBackfill, all[0].ID)
	assert.Equal(t, domain.TaskIDMetricsCleanup, all[1].ID)
	assert.Equal(t, domain.TaskIDSourceCrawl, all[2].ID)
	assert.True(t, all[0].NextRun.IsZero())
}

func TestSchedulerStore_RunsNewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	tasks := store.SchedulerStore()

	for i := range 4 {
		start := schedBase.Add(time.Duration(i) * time.Hour)
		run := &domain.TaskRun{
			TaskID:    domain.TaskIDEmbeddingBackfill,
			StartedAt: start,
			EndedAt:   start.Add(30 * time.Second),
			Items:     i * 100,
		}
		if i == 2 {
			run.Err = "embedding provider unreachable"
			run.Trigger = domain.TriggerManual
		}
		require.NoError(t, tasks.AppendRun(ctx, run))
	}
	require.NoError(t, tasks.AppendRun(ctx, &domain.TaskRun{TaskID: domain.TaskIDSourceCrawl, StartedAt: schedBase, EndedAt: schedBase}))

	runs, err := tasks.Runs(ctx, domain.TaskIDEmbeddingBackfill, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 300, runs[0].Items)
	assert.Equal(t, domain.TriggerSchedule, runs[0].Trigger)
	assert.True(t, runs[0].OK())
	assert.Equal(t, domain.TriggerManual, runs[1].Trigger)
	assert.Equal(t, "embedding provider unreachable", runs[1].Err)
	assert.Equal(t, 30*time.Second, runs[2].Elapsed())

	none, err := tasks.Runs(ctx, domain.TaskIDEmbeddingBackfill, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSchedulerStore_TrimRuns(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	tasks := store.SchedulerStore()

	for _, id := range []string{domain.TaskIDSourceCrawl, domain.TaskIDMetricsCleanup} {
		for i := range 5 {
			start := schedBase.Add(time.Duration(i) * time.Minute)
			require.NoError(t, tasks.AppendRun(ctx, &domain.TaskRun{TaskID: id, StartedAt: start, EndedAt: start, Items: i}))
		}
	}

	removed, err := tasks.TrimRuns(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(6), removed)

	runs, err := tasks.Runs(ctx, domain.TaskIDSourceCrawl, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 4, runs[0].Items)
	assert.Equal(t, 3, runs[1].Items)

	removed, err = tasks.TrimRuns(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
