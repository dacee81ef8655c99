package alarm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/tests"
)

type fakeTasks struct {
	mu          sync.Mutex
	notified    []string
	statuses    map[string]string
	notifiedErr error
}

func (f *fakeTasks) MarkTaskNotified(_ context.Context, id string) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, id)
	return task.Task{ID: id, Notified: true}, f.notifiedErr
}

func (f *fakeTasks) SetTaskStatus(_ context.Context, id, status string) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = make(map[string]string)
	}
	f.statuses[id] = status
	return task.Task{ID: id, Status: status, Notified: true, IsAlarmEnabled: true}, nil
}

func (f *fakeTasks) notifiedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.notified...)
}

type fakePlayer struct {
	mu          sync.Mutex
	playing     map[string]string // id -> sound
	starts      int
	beforeStart func(id string)
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{playing: make(map[string]string)}
}

func (p *fakePlayer) Start(id, sound string) {
	if p.beforeStart != nil {
		p.beforeStart(id)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing[id] = sound
	p.starts++
}

func (p *fakePlayer) Stop(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.playing, id)
}

func (p *fakePlayer) isPlaying(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.playing[id]
	return ok
}

func (p *fakePlayer) startCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLoop(t *testing.T) (*Loop, *fakeTasks, *fakePlayer, *clock) {
	t.Helper()
	api := &fakeTasks{}
	player := newFakePlayer()
	clk := &clock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	l := New(api, player, testutil.NewLogger(testutil.NewConfig()))
	l.now = clk.now
	return l, api, player, clk
}

func newTask(id string, deadline time.Time, mutate ...func(*task.Task)) task.Task {
	t := task.Task{
		ID:             id,
		Title:          "task " + id,
		Deadline:       deadline,
		Priority:       task.PriorityMedium,
		Status:         task.StatusPending,
		AlarmSound:     task.DefaultAlarmSound,
		IsAlarmEnabled: true,
	}
	for _, fn := range mutate {
		fn(&t)
	}
	return t
}

func TestLoop_Tick_futureDeadline(t *testing.T) {
	l, api, player, clk := newLoop(t)
	l.SetTasks([]task.Task{newTask("1", clk.now().Add(2*time.Minute))})

	for i := 0; i < 60; i++ {
		assert.Empty(t, l.Tick(context.Background()))
		clk.advance(time.Second)
	}
	assert.Empty(t, api.notifiedCalls())
	assert.Equal(t, 0, player.startCount())
}

func TestLoop_Tick_triggersOnce(t *testing.T) {
	l, api, player, clk := newLoop(t)
	l.SetTasks([]task.Task{newTask("1", clk.now().Add(-30*time.Second))})

	var triggered []string
	l.OnTrigger(func(t task.Task) { triggered = append(triggered, t.ID) })

	for i := 0; i < 60; i++ {
		l.Tick(context.Background())
		clk.advance(time.Second)
	}
	assert.Equal(t, []string{"1"}, triggered)
	assert.Equal(t, []string{"1"}, api.notifiedCalls())
	assert.Equal(t, 1, player.startCount())
	assert.True(t, player.isPlaying("1"), "keeps ringing until dismissed")
	assert.True(t, l.Tasks()[0].Notified, "marked locally")
	assert.Equal(t, []string{"1"}, l.Sounding())
}

func TestLoop_Tick_window(t *testing.T) {
	l, _, _, clk := newLoop(t)
	now := clk.now()
	l.SetTasks([]task.Task{
		newTask("now", now),
		newTask("edge", now.Add(-Window)),
		newTask("too late", now.Add(-Window-time.Second)),
		newTask("completed", now, func(t *task.Task) { t.Status = task.StatusCompleted }),
		newTask("silent", now, func(t *task.Task) { t.IsAlarmEnabled = false }),
		newTask("notified", now, func(t *task.Task) { t.Notified = true }),
		newTask("in progress", now, func(t *task.Task) { t.Status = task.StatusInProgress }),
	})

	var ids []string
	for _, t := range l.Tick(context.Background()) {
		ids = append(ids, t.ID)
	}
	assert.ElementsMatch(t, []string{"now", "edge", "in progress"}, ids)
}

func TestLoop_Tick_triggeredSetSurvivesRefetch(t *testing.T) {
	l, api, player, clk := newLoop(t)
	api.notifiedErr = errors.New("network down")
	tsk := newTask("1", clk.now().Add(-10*time.Second))
	l.SetTasks([]task.Task{tsk})

	require.Len(t, l.Tick(context.Background()), 1)

	// the server still says notified=false
	l.SetTasks([]task.Task{tsk})
	clk.advance(time.Second)
	assert.Empty(t, l.Tick(context.Background()))
	assert.Equal(t, 1, player.startCount())
}

func TestLoop_Dismiss(t *testing.T) {
	l, _, player, clk := newLoop(t)
	l.SetTasks([]task.Task{newTask("1", clk.now())})
	l.Tick(context.Background())
	require.True(t, player.isPlaying("1"))

	l.Dismiss("1")
	assert.False(t, player.isPlaying("1"))
	assert.Empty(t, l.Sounding())

	clk.advance(time.Second)
	assert.Empty(t, l.Tick(context.Background()))
}

func TestLoop_Complete(t *testing.T) {
	ctx := context.Background()
	l, api, player, clk := newLoop(t)
	l.SetTasks([]task.Task{newTask("1", clk.now().Add(-5*time.Second)), newTask("2", clk.now().Add(time.Hour))})
	l.Tick(ctx)
	require.True(t, player.isPlaying("1"))

	got, err := l.Complete(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.False(t, player.isPlaying("1"), "stops the sound")
	assert.Equal(t, task.StatusCompleted, api.statuses["1"])
	assert.Equal(t, task.StatusCompleted, l.Tasks()[0].Status)

	for i := 0; i < 60; i++ {
		clk.advance(time.Second)
		assert.Empty(t, l.Tick(ctx))
	}
	assert.Equal(t, 1, player.startCount())

	// completing ahead of time keeps it from ringing
	_, err = l.Complete(ctx, "2")
	require.NoError(t, err)
	l.SetTasks([]task.Task{newTask("2", clk.now())})
	assert.Empty(t, l.Tick(ctx))

	_, err = l.Complete(ctx, "lol")
	assert.Equal(t, ErrUnknownTask, err)
}

func TestLoop_Complete_beforeSoundStarts(t *testing.T) {
	ctx := context.Background()
	l, api, player, clk := newLoop(t)
	l.SetTasks([]task.Task{newTask("1", clk.now())})

	var completeErr error
	player.beforeStart = func(id string) {
		_, completeErr = l.Complete(ctx, id)
	}
	require.Len(t, l.Tick(ctx), 1)
	require.NoError(t, completeErr)
	assert.Equal(t, task.StatusCompleted, api.statuses["1"])
	assert.False(t, player.isPlaying("1"), "completed task must not keep ringing")
	assert.Empty(t, l.Sounding())
}

func TestLoop_Run(t *testing.T) {
	l, api, player, _ := newLoop(t)
	l.now = time.Now
	l.SetTasks([]task.Task{newTask("1", time.Now().Add(-time.Second))})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool { return player.isPlaying("1") }, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{"1"}, api.notifiedCalls())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	assert.False(t, player.isPlaying("1"), "silenced on stop")
}
