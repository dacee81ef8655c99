package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/services/scheduler"
)

const (
	archiveTasksEvery    = time.Hour
	purgeNotificationsAt = "03:00" // UTC
)

type housekeeping struct {
	conf     *core.Config
	logger   core.Logger
	tasks    task.Service
	notifier notification.Service
}

// schedule registers the periodic cleanups on sched.
func (hk housekeeping) schedule(sched *scheduler.Scheduler) error {
	if _, err := sched.Every(archiveTasksEvery, hk.archiveTasks); err != nil {
		return errors.Wrap(err, "scheduling task archiving")
	}
	if _, err := sched.Daily(purgeNotificationsAt, hk.purgeNotifications); err != nil {
		return errors.Wrap(err, "scheduling notification purge")
	}
	return nil
}

func (hk housekeeping) archiveTasks(ctx context.Context) {
	n, err := hk.tasks.ArchiveCompleted(ctx, hk.conf.Jobs.TaskArchiveAfter)
	if err != nil {
		hk.logger.Error("archiving completed tasks", err)
		return
	}
	if n > 0 {
		hk.logger.Info(fmt.Sprintf("archived %d completed task(s)", n))
	}
}

func (hk housekeeping) purgeNotifications(ctx context.Context) {
	n, err := hk.notifier.Purge(ctx, hk.conf.Jobs.NotificationRetention)
	if err != nil {
		hk.logger.Error("purging notifications", err)
		return
	}
	if n > 0 {
		hk.logger.Info(fmt.Sprintf("purged %d notification(s)", n))
	}
}
