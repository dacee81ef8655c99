// Package alarm sounds the alarm of tasks whose deadline just passed.
package alarm

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/smartcampus/campus/client"
	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/services/scheduler"
)

const (
	TickInterval = time.Second
	// Window is how late a tick may notice a deadline and still ring.
	Window = 60 * time.Second
)

var ErrUnknownTask = errors.New("alarm: unknown task")

// TaskAPI is the part of *client.Client the Loop persists through.
type TaskAPI interface {
	MarkTaskNotified(ctx context.Context, id string) (task.Task, error)
	SetTaskStatus(ctx context.Context, id, status string) (task.Task, error)
}

var _ TaskAPI = (*client.Client)(nil)

// Player plays the looping alarm sound of a task until stopped.
type Player interface {
	Start(taskID, sound string)
	Stop(taskID string)
}

// Loop checks the held tasks once per tick. A task rings at most once per Loop, even when the
// persisted notified flag has not round-tripped yet. Deadlines older than Window are never caught up.
type Loop struct {
	api    TaskAPI
	player Player
	logger core.Logger
	now    func() time.Time

	mu        sync.Mutex
	tasks     []task.Task
	triggered map[string]struct{}
	sounding  map[string]struct{}
	onTrigger []func(task.Task)
}

func New(api TaskAPI, player Player, logger core.Logger) *Loop {
	return &Loop{
		api:       api,
		player:    player,
		logger:    logger,
		now:       time.Now,
		triggered: make(map[string]struct{}),
		sounding:  make(map[string]struct{}),
	}
}

// SetTasks replaces the held task list, e.g. after a refetch.
func (l *Loop) SetTasks(tasks []task.Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = append(l.tasks[:0:0], tasks...)
}

// Tasks returns a copy of the held task list, with the local changes.
func (l *Loop) Tasks() []task.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]task.Task{}, l.tasks...)
}

// OnTrigger registers fn, called with every task that starts ringing.
func (l *Loop) OnTrigger(fn func(task.Task)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onTrigger = append(l.onTrigger, fn)
}

// Sounding returns the ids of the tasks currently ringing.
func (l *Loop) Sounding() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.sounding))
	for id := range l.sounding {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l *Loop) due(t task.Task, now time.Time) bool {
	if _, ok := l.triggered[t.ID]; ok {
		return false
	}
	return t.AlarmDue(now, Window)
}

// Tick runs one check and returns the tasks it triggered.
func (l *Loop) Tick(ctx context.Context) []task.Task {
	now := l.now()

	l.mu.Lock()
	var fired []task.Task
	for i := range l.tasks {
		t := &l.tasks[i]
		if !l.due(*t, now) {
			continue
		}
		l.triggered[t.ID] = struct{}{}
		l.sounding[t.ID] = struct{}{}
		t.Notified = true
		fired = append(fired, *t)
	}
	listeners := append([]func(task.Task){}, l.onTrigger...)
	l.mu.Unlock()

	for _, t := range fired {
		l.ring(t)
		for _, fn := range listeners {
			fn(t)
		}
		if _, err := l.api.MarkTaskNotified(ctx, t.ID); err != nil {
			// the triggered set keeps it from ringing again anyway
			l.logger.Warn("alarm: persisting notified flag", map[string]interface{}{"task": t.ID, "error": err.Error()})
		}
	}
	return fired
}

// ring starts the sound of t, and stops it again when t was dismissed or completed meanwhile.
func (l *Loop) ring(t task.Task) {
	l.player.Start(t.ID, t.AlarmSound)

	l.mu.Lock()
	_, ok := l.sounding[t.ID]
	l.mu.Unlock()
	if !ok {
		l.player.Stop(t.ID)
	}
}

// Dismiss stops the sound of task id. It keeps its place in the triggered set.
func (l *Loop) Dismiss(id string) {
	l.mu.Lock()
	_, ok := l.sounding[id]
	delete(l.sounding, id)
	l.mu.Unlock()

	if ok {
		l.player.Stop(id)
	}
}

// Complete stops the sound of task id and persists its completion.
func (l *Loop) Complete(ctx context.Context, id string) (task.Task, error) {
	l.mu.Lock()
	idx := -1
	for i := range l.tasks {
		if l.tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return task.Task{}, ErrUnknownTask
	}
	// never ring again, whatever the server says
	l.triggered[id] = struct{}{}
	l.mu.Unlock()

	l.Dismiss(id)

	updated, err := l.api.SetTaskStatus(ctx, id, task.StatusCompleted)
	if err != nil {
		return task.Task{}, err
	}

	l.mu.Lock()
	for i := range l.tasks {
		if l.tasks[i].ID == id {
			l.tasks[i] = updated
		}
	}
	l.mu.Unlock()
	return updated, nil
}

// Schedule registers the ticks on sched.
func (l *Loop) Schedule(sched *scheduler.Scheduler) error {
	_, err := sched.Every(TickInterval, func(ctx context.Context) { l.Tick(ctx) })
	return errors.Wrap(err, "scheduling alarm ticks")
}

// Run ticks every second until ctx is cancelled, then silences every alarm.
func (l *Loop) Run(ctx context.Context) error {
	sched := scheduler.New(l.logger)
	if err := l.Schedule(sched); err != nil {
		return err
	}
	sched.Run(ctx)

	for _, id := range l.Sounding() {
		l.Dismiss(id)
	}
	return nil
}
