package domain

import "time"

// Built-in task IDs.
const (
	TaskIDSourceCrawl       = "source-crawl"
	TaskIDEmbeddingBackfill = "embedding-backfill"
	TaskIDMetricsCleanup    = "metrics-cleanup"
)

// builtinTasks lists the jobs the scheduler can run, in registration order.
var builtinTasks = []struct {
	id, title string
	interval  time.Duration
}{
	{TaskIDSourceCrawl, "Source crawl", 6 * time.Hour},
	{TaskIDEmbeddingBackfill, "Embedding backfill", time.Hour},
	{TaskIDMetricsCleanup, "Health metrics cleanup", 24 * time.Hour},
}

// BuiltinTaskIDs returns the IDs of the built-in tasks.
func BuiltinTaskIDs() []string {
	ids := make([]string, len(builtinTasks))
	for i, t := range builtinTasks {
		ids[i] = t.id
	}
	return ids
}

// TaskTitle returns the display title of a built-in task, or "" for an
// unknown ID.
func TaskTitle(id string) string {
	for _, t := range builtinTasks {
		if t.id == id {
			return t.title
		}
	}
	return ""
}

// Trigger says what started a task run.
type Trigger string

// Run triggers.
const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// Retry delays after a failed scheduled run.
const (
	firstRetryDelay = 5 * time.Minute
	maxRetryShift   = 6
)

// ScheduledTask is the persisted state of a recurring job.
type ScheduledTask struct {
	ID       string
	Title    string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time
	LastError   string

	// Failures counts consecutive failed runs. A success resets it.
	Failures int
}

// Due reports whether an enabled task should run at now.
// A task that never ran is due immediately.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// Complete applies the outcome of run and schedules the next one.
// After a failure the next attempt comes sooner than the interval:
// 5 minutes, doubling per consecutive failure, never later than a
// regular run would.
func (t *ScheduledTask) Complete(run *TaskRun) {
	t.LastRun = run.StartedAt
	if run.OK() {
		t.LastError = ""
		t.LastSuccess = run.EndedAt
		t.Failures = 0
		t.NextRun = run.EndedAt.Add(t.Interval)
		return
	}

	t.LastError = run.Err
	t.Failures++
	delay := firstRetryDelay << min(t.Failures-1, maxRetryShift)
	if t.Interval > 0 && delay > t.Interval {
		delay = t.Interval
	}
	t.NextRun = run.EndedAt.Add(delay)
}

// TaskRun records one execution of a task.
type TaskRun struct {
	TaskID    string
	Trigger   Trigger
	StartedAt time.Time
	EndedAt   time.Time

	// Err is the failure message. Empty on success.
	Err string

	// Items counts the work done: files crawled, chunks embedded or
	// metric buckets removed.
	Items int
}

// OK reports whether the run succeeded.
func (r *TaskRun) OK() bool { return r.Err == "" }

// Elapsed returns the run duration.
func (r *TaskRun) Elapsed() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch. A disabled scheduler still runs tasks
	// on demand.
	Enabled bool

	// Tasks holds per-task settings keyed by task ID.
	Tasks map[string]TaskConfig
}

// TaskConfig holds the settings of one task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Task returns the settings for a task ID, zero when not configured.
func (c SchedulerConfig) Task(id string) TaskConfig {
	return c.Tasks[id]
}

// DefaultSchedulerConfig enables every built-in task at its default interval.
func DefaultSchedulerConfig() SchedulerConfig {
	tasks := make(map[string]TaskConfig, len(builtinTasks))
	for _, t := range builtinTasks {
		tasks[t.id] = TaskConfig{Enabled: true, Interval: t.interval}
	}
	return SchedulerConfig{Enabled: true, Tasks: tasks}
}
