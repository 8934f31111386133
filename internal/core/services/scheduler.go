package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduled task limits.
const (
	// DefaultBackfillPerRun bounds the chunks embedded by one backfill run.
	DefaultBackfillPerRun = 500

	historyRetention = 100
)

// SchedulerTasks holds the services the built-in tasks drive.
// Nil services turn their task into a no-op.
type SchedulerTasks struct {
	Crawler          driving.Crawler
	Embeddings       driving.EmbeddingGenerator
	Monitor          driving.HealthMonitor
	MetricsRetention time.Duration
	BackfillPerRun   int
}

// Scheduler manages background task execution.
type Scheduler struct {
	config domain.SchedulerConfig
	store  driven.SchedulerStore
	tasks  SchedulerTasks

	now  func() time.Time
	tick time.Duration

	mu       sync.Mutex
	running  bool
	inFlight map[string]bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	tasks SchedulerTasks,
) *Scheduler {
	if tasks.BackfillPerRun <= 0 {
		tasks.BackfillPerRun = DefaultBackfillPerRun
	}
	return &Scheduler{
		config:   config,
		store:    store,
		tasks:    tasks,
		now:      time.Now,
		tick:     time.Minute,
		inFlight: make(map[string]bool),
	}
}

// Start registers the configured tasks, then runs due ones every tick until
// ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logger.Info("scheduler: disabled by configuration")
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.registerTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to register tasks: %v", err)
	}
	return s.loop(ctx)
}

// Stop ends the loop and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// registerTasks saves every built-in task, applying configured intervals
// and enabled flags to tasks that already exist.
func (s *Scheduler) registerTasks(ctx context.Context) error {
	for _, id := range domain.BuiltinTaskIDs() {
		cfg := s.config.Task(id)
		task, err := s.store.Task(ctx, id)
		if err != nil {
			return err
		}

		switch {
		case task == nil:
			task = &domain.ScheduledTask{
				ID:       id,
				Title:    domain.TaskTitle(id),
				Interval: cfg.Interval,
				Enabled:  cfg.Enabled,
				NextRun:  s.now().Add(cfg.Interval),
			}
		case task.Interval != cfg.Interval:
			task.Interval = cfg.Interval
			task.NextRun = s.now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled

		if err := s.store.PutTask(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context) error {
	s.runDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue starts every due task that is not already running.
func (s *Scheduler) runDue(ctx context.Context) {
	tasks, err := s.store.Tasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if !task.Due(now) || !s.claim(task.ID) {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(task.ID)
			if _, err := s.execute(ctx, &task, domain.TriggerSchedule); err != nil {
				logger.Warn("scheduler: %v", err)
			}
		}()
	}
}

// claim marks a task as running. Returns false if it already is.
func (s *Scheduler) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[id] {
		return false
	}
	s.inFlight[id] = true
	return true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

// RunNow executes a task synchronously, regardless of its schedule.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) (*domain.TaskRun, error) {
	if domain.TaskTitle(taskID) == "" {
		return nil, fmt.Errorf("%w: unknown task %q", domain.ErrInvalidInput, taskID)
	}
	if !s.claim(taskID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskRunning, taskID)
	}
	defer s.release(taskID)

	task, err := s.store.Task(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		cfg := s.config.Task(taskID)
		task = &domain.ScheduledTask{ID: taskID, Title: domain.TaskTitle(taskID), Interval: cfg.Interval, Enabled: cfg.Enabled}
	}
	return s.execute(ctx, task, domain.TriggerManual)
}

// Tasks lists the persisted task states.
func (s *Scheduler) Tasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	return s.store.Tasks(ctx)
}

// History returns the latest runs of a task, newest first.
func (s *Scheduler) History(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error) {
	if domain.TaskTitle(taskID) == "" {
		return nil, fmt.Errorf("%w: unknown task %q", domain.ErrInvalidInput, taskID)
	}
	if limit <= 0 || limit > historyRetention {
		limit = historyRetention
	}
	return s.store.Runs(ctx, taskID, limit)
}

// execute runs a task, then persists its state and the run.
func (s *Scheduler) execute(ctx context.Context, task *domain.ScheduledTask, trigger domain.Trigger) (*domain.TaskRun, error) {
	run := &domain.TaskRun{TaskID: task.ID, Trigger: trigger, StartedAt: s.now()}

	var err error
	switch task.ID {
	case domain.TaskIDSourceCrawl:
		run.Items, err = s.runSourceCrawl(ctx)
	case domain.TaskIDEmbeddingBackfill:
		run.Items, err = s.runEmbeddingBackfill(ctx)
	case domain.TaskIDMetricsCleanup:
		run.Items, err = s.runMetricsCleanup(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown task %q", domain.ErrInvalidInput, task.ID)
	}
	run.EndedAt = s.now()
	if err != nil {
		run.Err = err.Error()
	}
	task.Complete(run)
	logger.Debug("scheduler: %s (%s) finished in %s, %d items", task.ID, trigger, run.Elapsed(), run.Items)

	if err := s.store.PutTask(ctx, task); err != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, err)
	}
	if err := s.store.AppendRun(ctx, run); err != nil {
		logger.Warn("scheduler: failed to record run of %s: %v", task.ID, err)
	}
	if _, err := s.store.TrimRuns(ctx, historyRetention); err != nil {
		logger.Warn("scheduler: failed to trim run history: %v", err)
	}
	return run, nil
}

// runSourceCrawl crawls and ingests every active source the monitor allows.
// Returns the number of files processed.
func (s *Scheduler) runSourceCrawl(ctx context.Context) (int, error) {
	if s.tasks.Crawler == nil {
		return 0, nil
	}

	results, err := s.tasks.Crawler.CrawlAll(ctx, domain.CrawlOptions{Ingest: true})
	if err != nil {
		return 0, err
	}

	processed, failed := 0, 0
	for sourceID, r := range results {
		processed += r.PagesProcessed
		if !r.Success {
			failed++
			logger.Warn("scheduler: crawl of %s failed with %d errors", sourceID, len(r.Errors))
		}
	}
	if failed > 0 && failed == len(results) {
		return processed, fmt.Errorf("all %d source crawls failed", failed)
	}
	return processed, nil
}

// runEmbeddingBackfill fills missing primary embeddings.
func (s *Scheduler) runEmbeddingBackfill(ctx context.Context) (int, error) {
	if s.tasks.Embeddings == nil {
		return 0, nil
	}

	result, err := s.tasks.Embeddings.Backfill(ctx, domain.BackfillOptions{MaxChunks: s.tasks.BackfillPerRun})
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return result.Processed, nil
}

// runMetricsCleanup removes expired health buckets.
func (s *Scheduler) runMetricsCleanup(ctx context.Context) (int, error) {
	if s.tasks.Monitor == nil {
		return 0, nil
	}
	removed, err := s.tasks.Monitor.CleanOldMetrics(ctx, s.tasks.MetricsRetention)
	return int(removed), err
}
