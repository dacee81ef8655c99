package task

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smartcampus/campus/core"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Statuses
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

const DefaultAlarmSound = "digital_alarm"

// DeadlinePrecision is the finest deadline resolution every storage engine keeps.
const DeadlinePrecision = time.Millisecond

var (
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}
	Statuses   = []string{StatusPending, StatusInProgress, StatusCompleted}
)

type Task struct {
	ID             string    `json:"id"`
	User           string    `json:"user"` // owner ID
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Deadline       time.Time `json:"deadline"`
	Priority       string    `json:"priority"`
	Status         string    `json:"status"`
	Archived       bool      `json:"archived"`
	Notified       bool      `json:"notified"`
	AlarmSound     string    `json:"alarmSound"`
	IsAlarmEnabled bool      `json:"isAlarmEnabled"`
	CreatedAt      time.Time `json:"createdAt"` // UTC
	UpdatedAt      time.Time `json:"updatedAt"` // UTC
}

func (t Task) IsCompleted() bool { return t.Status == StatusCompleted }

// AlarmDue reports whether the deadline alarm of t should go off at `now`:
// t is still open, alarmed, not yet notified, and its deadline passed less than `window` ago.
func (t Task) AlarmDue(now time.Time, window time.Duration) bool {
	if t.IsCompleted() || !t.IsAlarmEnabled || t.Notified {
		return false
	}
	return !t.Deadline.After(now) && !t.Deadline.Before(now.Add(-window))
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	Title          string    `json:"title" validate:"required,notblank,max=200"`
	Description    string    `json:"description" validate:"max=2000"`
	Deadline       time.Time `json:"deadline" validate:"required"`
	Priority       string    `json:"priority" validate:"taskpriority"`
	Status         string    `json:"status" validate:"taskstatus"`
	AlarmSound     string    `json:"alarmSound" validate:"max=100"`
	IsAlarmEnabled *bool     `json:"isAlarmEnabled"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.Priority = core.CleanString(nt.Priority, true /* lower */)
	nt.Status = core.CleanString(nt.Status, true /* lower */)
	nt.AlarmSound = core.CleanString(nt.AlarmSound)
	return validate.Struct(nt)
}

// UpdateTask defines what information may be provided to modify an existing Task.
// Nil fields are left untouched. `notified` is not part of it: see Service.MarkNotified.
type UpdateTask struct {
	Title          *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description    *string    `json:"description" validate:"omitempty,max=2000"`
	Deadline       *time.Time `json:"deadline"`
	Priority       *string    `json:"priority" validate:"omitempty,taskpriority"`
	Status         *string    `json:"status" validate:"omitempty,taskstatus"`
	Archived       *bool      `json:"archived"`
	AlarmSound     *string    `json:"alarmSound" validate:"omitempty,max=100"`
	IsAlarmEnabled *bool      `json:"isAlarmEnabled"`
}

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	cleanPtr := func(s *string, lower bool) {
		if s != nil {
			*s = core.CleanString(*s, lower)
		}
	}
	cleanPtr(ut.Title, false)
	cleanPtr(ut.Description, false)
	cleanPtr(ut.Priority, true)
	cleanPtr(ut.Status, true)
	cleanPtr(ut.AlarmSound, false)
	if ut.Title != nil && *ut.Title == "" {
		return core.NewFieldError("title", "this field is required")
	}
	if ut.Deadline != nil && ut.Deadline.IsZero() {
		return core.NewFieldError("deadline", "this field is required")
	}
	return validate.Struct(ut)
}

func (ut UpdateTask) apply(t *Task) {
	if ut.Title != nil {
		t.Title = *ut.Title
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.Deadline != nil {
		t.Deadline = ut.Deadline.UTC().Truncate(DeadlinePrecision)
	}
	if ut.Priority != nil && *ut.Priority != "" {
		t.Priority = *ut.Priority
	}
	if ut.Status != nil && *ut.Status != "" {
		t.Status = *ut.Status
	}
	if ut.Archived != nil {
		t.Archived = *ut.Archived
	}
	if ut.AlarmSound != nil {
		t.AlarmSound = *ut.AlarmSound
		if t.AlarmSound == "" {
			t.AlarmSound = DefaultAlarmSound
		}
	}
	if ut.IsAlarmEnabled != nil {
		t.IsAlarmEnabled = *ut.IsAlarmEnabled
	}
}

type UpdateStatus struct {
	Status string `json:"status" validate:"required,taskstatus"`
}

func (us *UpdateStatus) Validate(validate *validator.Validate) error {
	us.Status = core.CleanString(us.Status, true /* lower */)
	return validate.Struct(us)
}

// QueryFilter narrows down the tasks of a single owner.
type QueryFilter struct {
	Statuses     []string
	Priorities   []string
	Archived     *bool
	DeadlineFrom time.Time
	DeadlineTo   time.Time
	Search       string // case-insensitive match on title or description
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	for i, s := range qf.Statuses {
		qf.Statuses[i] = core.CleanString(s, true /* lower */)
	}
	for i, p := range qf.Priorities {
		qf.Priorities[i] = core.CleanString(p, true /* lower */)
	}
}
