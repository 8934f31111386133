package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Ensure SchedulerStore implements the interface.
var _ driven.SchedulerStore = (*SchedulerStore)(nil)

// SchedulerStore is an in-memory implementation of driven.SchedulerStore.
type SchedulerStore struct {
	mu    sync.RWMutex
	tasks map[string]domain.ScheduledTask
	runs  map[string][]domain.TaskRun // oldest first
}

// NewSchedulerStore creates a new in-memory scheduler store.
func NewSchedulerStore() *SchedulerStore {
	return &SchedulerStore{
		tasks: make(map[string]domain.ScheduledTask),
		runs:  make(map[string][]domain.TaskRun),
	}
}

// Task returns a task by ID, or nil when it was never saved.
func (s *SchedulerStore) Task(_ context.Context, id string) (*domain.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

// Tasks returns every saved task ordered by ID.
func (s *SchedulerStore) Tasks(_ context.Context) ([]domain.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ScheduledTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutTask creates or replaces a task.
func (s *SchedulerStore) PutTask(_ context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task without ID", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

// AppendRun adds a run to the log.
func (s *SchedulerStore) AppendRun(_ context.Context, run *domain.TaskRun) error {
	if run == nil || run.TaskID == "" {
		return fmt.Errorf("%w: run without task ID", domain.ErrInvalidInput)
	}
	stored := *run
	if stored.Trigger == "" {
		stored.Trigger = domain.TriggerSchedule
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.TaskID] = append(s.runs[run.TaskID], stored)
	return nil
}

// Runs returns up to limit runs of a task, newest first.
func (s *SchedulerStore) Runs(_ context.Context, taskID string, limit int) ([]domain.TaskRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.runs[taskID]
	n := min(max(limit, 0), len(log))
	out := make([]domain.TaskRun, 0, n)
	for i := len(log) - 1; i >= len(log)-n; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

// TrimRuns keeps the newest keep runs per task.
func (s *SchedulerStore) TrimRuns(_ context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep = max(keep, 0)
	var removed int64
	for id, log := range s.runs {
		if extra := len(log) - keep; extra > 0 {
			s.runs[id] = append([]domain.TaskRun(nil), log[extra:]...)
			removed += int64(extra)
		}
	}
	return removed, nil
}
