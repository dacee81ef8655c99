package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/smartcampus/campus/client"
	"github.com/smartcampus/campus/client/alarm"
	"github.com/smartcampus/campus/client/bell"
	"github.com/smartcampus/campus/client/session"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/services/scheduler"
)

const refetchTasksEvery = time.Minute

// terminalPlayer rings the terminal bell. A terminal cannot loop a sound, so Stop only reports.
type terminalPlayer struct {
	out io.Writer
}

func (p terminalPlayer) Start(taskID, sound string) {
	_, _ = fmt.Fprintf(p.out, "\a[%s] ringing %s\n", taskID, sound)
}

func (p terminalPlayer) Stop(taskID string) {
	_, _ = fmt.Fprintf(p.out, "[%s] alarm stopped\n", taskID)
}

// watch logs in to the API at baseURL and runs the task alarm & notification bell loops until ctx is done.
func (cli *commandLine) watch(ctx context.Context, baseURL, uname, pwd string) error {
	var api *client.Client
	var err error
	if baseURL == "" {
		api, err = client.NewFromEnv()
	} else {
		api, err = client.New(baseURL, nil)
	}
	if err != nil {
		return err
	}

	sess := session.New(api)
	usr, err := sess.Login(ctx, client.Credentials{Username: uname, Password: pwd})
	if err != nil {
		return err
	}
	cli.printf("watching as %s (%s)\n", usr.Name, usr.Role)
	defer func() {
		if err := sess.Logout(context.Background()); err != nil {
			cli.logger.Warn("watch: logging out", map[string]interface{}{"error": err.Error()})
		}
	}()

	alarms := alarm.New(api, terminalPlayer{out: cli.out}, cli.logger)
	alarms.OnTrigger(func(t task.Task) {
		cli.printf("%s is due (%s)\n", t.Title, t.Deadline.Local().Format(time.Kitchen))
	})
	notifs := bell.New(api, cli.logger)
	notifs.OnChange(func(unread int) {
		cli.printf("%d unread notification(s)\n", unread)
	})

	notArchived := false
	refetch := func(ctx context.Context) {
		tasks, err := api.Tasks(ctx, client.TaskFilter{Archived: &notArchived})
		if err != nil {
			if ctx.Err() == nil {
				cli.logger.Warn("watch: fetching tasks", map[string]interface{}{"error": err.Error()})
			}
			return
		}
		alarms.SetTasks(tasks)
	}

	sched := scheduler.New(cli.logger)
	if _, err := sched.Every(refetchTasksEvery, refetch); err != nil {
		return err
	}
	if err := alarms.Schedule(sched); err != nil {
		return err
	}
	if err := notifs.Schedule(sched); err != nil {
		return err
	}

	refetch(ctx)
	if err := notifs.Refresh(ctx); err != nil {
		cli.logger.Warn("watch: fetching notifications", map[string]interface{}{"error": err.Error()})
	}
	sched.Run(ctx)

	for _, id := range alarms.Sounding() {
		alarms.Dismiss(id)
	}
	return nil
}
