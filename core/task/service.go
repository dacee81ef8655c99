package task

import (
	"context"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core"
)

var (
	// errors
	ErrNotFound = errors.New("task not found")

	priorityTag  = "taskpriority"
	priorityText = "priority must be one of: " + strings.Join(Priorities, ", ")
	statusTag    = "taskstatus"
	statusText   = "status must be one of: " + strings.Join(Statuses, ", ")
)

// InitValidators registers the task validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnumValidation(validate, translator, priorityTag, priorityText, Priorities...)
	core.RegisterEnumValidation(validate, translator, statusTag, statusText, Statuses...)
}

type (
	// Repository stores tasks. Every lookup is scoped by the owner: a task of another user is ErrNotFound.
	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		GetTask(ctx context.Context, owner, id string) (Task, error)
		// QueryTasks returns the owner's tasks matching filter, ordered by deadline (soonest first).
		QueryTasks(ctx context.Context, owner string, filter QueryFilter) ([]Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		// MarkNotified sets the notified flag. It never resets it.
		MarkNotified(ctx context.Context, owner, id string, at time.Time) (Task, error)
		DeleteTask(ctx context.Context, owner, id string) error
		// ArchiveCompleted archives every completed task whose deadline is before `before`, for all owners.
		ArchiveCompleted(ctx context.Context, before, at time.Time) (int, error)
	}

	Service interface {
		Create(ctx context.Context, owner string, nt NewTask) (Task, error)
		Query(ctx context.Context, owner string, filter QueryFilter) ([]Task, error)
		Get(ctx context.Context, owner, id string) (Task, error)
		Update(ctx context.Context, owner, id string, ut UpdateTask) (Task, error)
		SetStatus(ctx context.Context, owner, id, status string) (Task, error)
		MarkNotified(ctx context.Context, owner, id string) (Task, error)
		SetArchived(ctx context.Context, owner, id string, archived bool) (Task, error)
		Delete(ctx context.Context, owner, id string) error
		ArchiveCompleted(ctx context.Context, olderThan time.Duration) (int, error)
	}

	service struct {
		repo Repository
		now  func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

func (svc *service) Create(ctx context.Context, owner string, nt NewTask) (Task, error) {
	now := svc.now().UTC()
	t := Task{
		User:           owner,
		Title:          nt.Title,
		Description:    nt.Description,
		Deadline:       nt.Deadline.UTC().Truncate(DeadlinePrecision),
		Priority:       nt.Priority,
		Status:         nt.Status,
		AlarmSound:     nt.AlarmSound,
		IsAlarmEnabled: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.AlarmSound == "" {
		t.AlarmSound = DefaultAlarmSound
	}
	if nt.IsAlarmEnabled != nil {
		t.IsAlarmEnabled = *nt.IsAlarmEnabled
	}
	return svc.repo.CreateTask(ctx, t)
}

func (svc *service) Query(ctx context.Context, owner string, filter QueryFilter) ([]Task, error) {
	filter.Clean()
	return svc.repo.QueryTasks(ctx, owner, filter)
}

func (svc *service) Get(ctx context.Context, owner, id string) (Task, error) {
	return svc.repo.GetTask(ctx, owner, id)
}

func (svc *service) Update(ctx context.Context, owner, id string, ut UpdateTask) (Task, error) {
	t, err := svc.repo.GetTask(ctx, owner, id)
	if err != nil {
		return Task{}, err
	}
	ut.apply(&t)
	t.UpdatedAt = svc.now().UTC()
	return svc.repo.UpdateTask(ctx, t)
}

func (svc *service) SetStatus(ctx context.Context, owner, id, status string) (Task, error) {
	return svc.Update(ctx, owner, id, UpdateTask{Status: &status})
}

func (svc *service) MarkNotified(ctx context.Context, owner, id string) (Task, error) {
	return svc.repo.MarkNotified(ctx, owner, id, svc.now().UTC())
}

func (svc *service) SetArchived(ctx context.Context, owner, id string, archived bool) (Task, error) {
	return svc.Update(ctx, owner, id, UpdateTask{Archived: &archived})
}

func (svc *service) Delete(ctx context.Context, owner, id string) error {
	return svc.repo.DeleteTask(ctx, owner, id)
}

func (svc *service) ArchiveCompleted(ctx context.Context, olderThan time.Duration) (int, error) {
	now := svc.now().UTC()
	n, err := svc.repo.ArchiveCompleted(ctx, now.Add(-olderThan), now)
	return n, errors.Wrap(err, "archiving completed tasks")
}
