// Package bell keeps the unread notification count fresh.
package bell

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/smartcampus/campus/client"
	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/services/scheduler"
)

const RefreshInterval = 60 * time.Second

type NotificationAPI interface {
	Notifications(ctx context.Context) (notification.List, error)
}

var _ NotificationAPI = (*client.Client)(nil)

type Bell struct {
	api    NotificationAPI
	logger core.Logger

	mu            sync.RWMutex
	notifications []notification.Notification
	unread        int
	fetched       bool
	listeners     []func(unread int)
}

func New(api NotificationAPI, logger core.Logger) *Bell {
	return &Bell{api: api, logger: logger}
}

func (b *Bell) Unread() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.unread
}

func (b *Bell) Notifications() []notification.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]notification.Notification{}, b.notifications...)
}

// OnChange registers fn, called when a refresh changes the unread count.
func (b *Bell) OnChange(fn func(unread int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Refresh refetches the list and recounts the unread notifications from their isRead flag.
// On failure the previous state is kept.
func (b *Bell) Refresh(ctx context.Context) error {
	list, err := b.api.Notifications(ctx)
	if err != nil {
		return err
	}
	unread := notification.CountUnread(list.Notifications)

	b.mu.Lock()
	changed := !b.fetched || unread != b.unread
	b.notifications = list.Notifications
	b.unread = unread
	b.fetched = true
	listeners := append([]func(int){}, b.listeners...)
	b.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(unread)
		}
	}
	return nil
}

func (b *Bell) refresh(ctx context.Context) {
	if err := b.Refresh(ctx); err != nil && ctx.Err() == nil {
		b.logger.Warn("bell: refreshing notifications", map[string]interface{}{"error": err.Error()})
	}
}

// Schedule registers the refreshes on sched.
func (b *Bell) Schedule(sched *scheduler.Scheduler) error {
	_, err := sched.Every(RefreshInterval, b.refresh)
	return errors.Wrap(err, "scheduling bell refresh")
}

// Run refreshes at once, then every minute until ctx is cancelled.
func (b *Bell) Run(ctx context.Context) error {
	sched := scheduler.New(b.logger)
	if err := b.Schedule(sched); err != nil {
		return err
	}
	b.refresh(ctx)
	sched.Run(ctx)
	return nil
}
