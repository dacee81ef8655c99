package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/smartcampus/campus/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotifications(_ context.Context, ns []notification.Notification) ([]notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	created := make([]notification.Notification, 0, len(ns))
	for _, n := range ns {
		n := n
		n.ID = newID()
		repo.db.table[n.ID] = &n
		created = append(created, n)
	}
	return created, nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, user string, limit int) ([]notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ns := make([]notification.Notification, 0)
	for _, n := range repo.db.table {
		if n.User == user {
			ns = append(ns, *n)
		}
	}
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].ID < ns[j].ID
		}
		return ns[i].CreatedAt.After(ns[j].CreatedAt)
	})
	if limit > 0 && len(ns) > limit {
		ns = ns[:limit]
	}
	return ns, nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, user string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, n := range repo.db.table {
		if n.User == user && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, user, id string) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n, ok := repo.db.table[id]
	if !ok || n.User != user {
		return notification.Notification{}, notification.ErrNotFound
	}
	n.IsRead = true
	return *n, nil
}

func (repo *notificationRepository) MarkAllRead(_ context.Context, user string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var count int
	for _, n := range repo.db.table {
		if n.User == user && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) DeleteReadBefore(_ context.Context, before time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var count int
	for id, n := range repo.db.table {
		if n.IsRead && n.CreatedAt.Before(before) {
			delete(repo.db.table, id)
			count++
		}
	}
	return count, nil
}
