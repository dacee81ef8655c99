// Package testutil holds the fixtures shared by the test suites.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/knowledge"
	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/core/user"
	logsvc "github.com/smartcampus/campus/services/logger"
	inmemdb "github.com/smartcampus/campus/storage/database/inmem"
)

// NewConfig returns the TEST configuration, on in-memory storage.
func NewConfig() *core.Config {
	_ = os.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Database.Engine = "inmem"
	conf.Cache.RedisAddr = ""
	conf.SendgridApiKey = ""
	conf.RollbarToken = ""
	return conf
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewSilent(conf)
}

// NewValidator returns a validator with every custom tag & translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	task.InitValidators(validate, translator)
	knowledge.InitValidators(validate, translator)
	notification.InitValidators(validate, translator)
	return validate, translator
}

func ResetDB(t *testing.T, db *inmemdb.DB) {
	t.Helper()
	db.Reset()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateTask stores a pending, alarmed task of owner. mutate may adjust it before it is saved.
func CreateTask(t *testing.T, repo task.Repository, owner, title string, deadline time.Time, mutate ...func(*task.Task)) task.Task {
	t.Helper()
	now := time.Now().UTC()
	tsk := task.Task{
		User:           owner,
		Title:          title,
		Deadline:       deadline.UTC(),
		Priority:       task.PriorityMedium,
		Status:         task.StatusPending,
		AlarmSound:     task.DefaultAlarmSound,
		IsAlarmEnabled: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, fn := range mutate {
		fn(&tsk)
	}
	tsk, err := repo.CreateTask(context.Background(), tsk)
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	return tsk
}

func CreateItem(
	t *testing.T,
	repo knowledge.Repository,
	creator, category, question, content string,
	tags []string,
	isActive bool,
	createdAt ...time.Time,
) knowledge.Item {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if tags == nil {
		tags = []string{}
	}
	it, err := repo.CreateItem(context.Background(), knowledge.Item{
		Category:  category,
		Question:  question,
		Content:   content,
		Tags:      tags,
		CreatedBy: creator,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}
	return it
}

func CreateNotification(t *testing.T, repo notification.Repository, recipient, title string, isRead bool, createdAt ...time.Time) notification.Notification {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	ns, err := repo.CreateNotifications(context.Background(), []notification.Notification{{
		User:      recipient,
		Title:     title,
		Message:   title,
		Type:      notification.TypeInfo,
		IsRead:    isRead,
		CreatedAt: tstamp,
	}})
	if err != nil {
		t.Fatalf("CreateNotification() failed: %v", err)
	}
	return ns[0]
}
