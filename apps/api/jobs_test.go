package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/core/user"
	"github.com/smartcampus/campus/services/scheduler"
	"github.com/smartcampus/campus/storage/database"
	inmemdb "github.com/smartcampus/campus/storage/database/inmem"
	"github.com/smartcampus/campus/tests"
)

func newHousekeeping(t *testing.T) (housekeeping, *database.Repositories) {
	t.Helper()
	conf := testutil.NewConfig()
	conf.Jobs.TaskArchiveAfter = 24 * time.Hour
	conf.Jobs.NotificationRetention = 24 * time.Hour
	repos := database.InMem(inmemdb.Open())
	return housekeeping{
		conf:     conf,
		logger:   testutil.NewLogger(conf),
		tasks:    task.NewService(repos.Task),
		notifier: notification.NewService(repos.Notification, nil),
	}, repos
}

func Test_housekeeping_archiveTasks(t *testing.T) {
	hk, repos := newHousekeeping(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repos.User, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)

	completed := func(tsk *task.Task) { tsk.Status = task.StatusCompleted }
	old := testutil.CreateTask(t, repos.Task, usr.ID, "old & done", time.Now().Add(-48*time.Hour), completed)
	recent := testutil.CreateTask(t, repos.Task, usr.ID, "recent & done", time.Now().Add(-1*time.Hour), completed)
	pending := testutil.CreateTask(t, repos.Task, usr.ID, "old & pending", time.Now().Add(-48*time.Hour))

	hk.archiveTasks(ctx)

	for _, tt := range []struct {
		tsk      task.Task
		archived bool
	}{
		{old, true},
		{recent, false},
		{pending, false},
	} {
		got, err := repos.Task.GetTask(ctx, usr.ID, tt.tsk.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.archived, got.Archived, tt.tsk.Title)
	}
}

func Test_housekeeping_purgeNotifications(t *testing.T) {
	hk, repos := newHousekeeping(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repos.User, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)

	_ = testutil.CreateNotification(t, repos.Notification, usr.ID, "old & read", true, time.Now().Add(-48*time.Hour))
	oldUnread := testutil.CreateNotification(t, repos.Notification, usr.ID, "old & unread", false, time.Now().Add(-48*time.Hour))
	recent := testutil.CreateNotification(t, repos.Notification, usr.ID, "recent & read", true)

	hk.purgeNotifications(ctx)

	list, err := hk.notifier.List(ctx, usr.ID)
	require.NoError(t, err)
	ids := make([]string, 0, len(list.Notifications))
	for _, n := range list.Notifications {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []string{recent.ID, oldUnread.ID}, ids)
}

func Test_housekeeping_schedule(t *testing.T) {
	hk, _ := newHousekeeping(t)
	sched := scheduler.New(hk.logger)
	require.NoError(t, hk.schedule(sched))
	require.NoError(t, sched.Stop(context.Background()))
}
