// Package inmemdb keeps everything in process memory. Used by tests and the "inmem" database engine.
package inmemdb

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/smartcampus/campus/core/knowledge"
	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/core/user"
)

type (
	DB struct {
		user         *userTable
		task         *taskTable
		knowledge    *knowledgeTable
		notification *notificationTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	taskTable struct {
		table map[string]*task.Task
		mutex sync.RWMutex
	}

	knowledgeTable struct {
		table map[string]*knowledge.Item
		mutex sync.RWMutex
	}

	notificationTable struct {
		table map[string]*notification.Notification
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		task:         &taskTable{table: make(map[string]*task.Task)},
		knowledge:    &knowledgeTable{table: make(map[string]*knowledge.Item)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
}

// Reset drops all the data. Repositories created before the call stay valid.
func (db *DB) Reset() {
	db.user.mutex.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.mutex.Unlock()

	db.task.mutex.Lock()
	db.task.table = make(map[string]*task.Task)
	db.task.mutex.Unlock()

	db.knowledge.mutex.Lock()
	db.knowledge.table = make(map[string]*knowledge.Item)
	db.knowledge.mutex.Unlock()

	db.notification.mutex.Lock()
	db.notification.table = make(map[string]*notification.Notification)
	db.notification.mutex.Unlock()
}

func (db *DB) Close() error { return nil }

func newID() string {
	return uuid.New().String()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
