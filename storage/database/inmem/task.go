package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/smartcampus/campus/core/task"
)

type taskRepository struct {
	db *taskTable
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db.task}
}

func (repo *taskRepository) get(owner, id string) (*task.Task, bool) {
	t, ok := repo.db.table[id]
	if !ok || t.User != owner {
		return nil, false
	}
	return t, true
}

func (repo *taskRepository) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.ID = newID()
	repo.db.table[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) GetTask(_ context.Context, owner, id string) (task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.get(owner, id); ok {
		return *t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) QueryTasks(_ context.Context, owner string, filter task.QueryFilter) ([]task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tasks := make([]task.Task, 0)
	for _, t := range repo.db.table {
		if t.User == owner && matchTask(*t, filter) {
			tasks = append(tasks, *t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Deadline.Equal(tasks[j].Deadline) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].Deadline.Before(tasks[j].Deadline)
	})
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.get(t.User, t.ID)
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	t.Notified = t.Notified || orig.Notified // never reset
	repo.db.table[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) MarkNotified(_ context.Context, owner, id string, at time.Time) (task.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t, ok := repo.get(owner, id)
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	if !t.Notified {
		t.Notified = true
		t.UpdatedAt = at
	}
	return *t, nil
}

func (repo *taskRepository) DeleteTask(_ context.Context, owner, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.get(owner, id); !ok {
		return task.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *taskRepository) ArchiveCompleted(_ context.Context, before, at time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, t := range repo.db.table {
		if t.IsCompleted() && !t.Archived && t.Deadline.Before(before) {
			t.Archived = true
			t.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func matchTask(t task.Task, filter task.QueryFilter) bool {
	if len(filter.Statuses) > 0 && !inStrings(t.Status, filter.Statuses) {
		return false
	}
	if len(filter.Priorities) > 0 && !inStrings(t.Priority, filter.Priorities) {
		return false
	}
	if filter.Archived != nil && t.Archived != *filter.Archived {
		return false
	}
	if !filter.DeadlineFrom.IsZero() && t.Deadline.Before(filter.DeadlineFrom) {
		return false
	}
	if !filter.DeadlineTo.IsZero() && t.Deadline.After(filter.DeadlineTo) {
		return false
	}
	if filter.Search != "" && !(containsFold(t.Title, filter.Search) || containsFold(t.Description, filter.Search)) {
		return false
	}
	return true
}

func inStrings(s string, list []string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
