package pgrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core/task"
)

const taskColumns = `id, user_id, title, description, deadline, priority, status, archived, notified, alarm_sound,
	is_alarm_enabled, created_at, updated_at`

type taskRow struct {
	ID             string    `db:"id"`
	User           string    `db:"user_id"`
	Title          string    `db:"title"`
	Description    string    `db:"description"`
	Deadline       time.Time `db:"deadline"`
	Priority       string    `db:"priority"`
	Status         string    `db:"status"`
	Archived       bool      `db:"archived"`
	Notified       bool      `db:"notified"`
	AlarmSound     string    `db:"alarm_sound"`
	IsAlarmEnabled bool      `db:"is_alarm_enabled"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (row taskRow) toTask() task.Task {
	return task.Task{
		ID:             row.ID,
		User:           row.User,
		Title:          row.Title,
		Description:    row.Description,
		Deadline:       row.Deadline.UTC(),
		Priority:       row.Priority,
		Status:         row.Status,
		Archived:       row.Archived,
		Notified:       row.Notified,
		AlarmSound:     row.AlarmSound,
		IsAlarmEnabled: row.IsAlarmEnabled,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

func newTaskRow(t task.Task) taskRow {
	return taskRow{
		ID:             t.ID,
		User:           t.User,
		Title:          t.Title,
		Description:    t.Description,
		Deadline:       t.Deadline.UTC(),
		Priority:       t.Priority,
		Status:         t.Status,
		Archived:       t.Archived,
		Notified:       t.Notified,
		AlarmSound:     t.AlarmSound,
		IsAlarmEnabled: t.IsAlarmEnabled,
		CreatedAt:      t.CreatedAt.UTC(),
		UpdatedAt:      t.UpdatedAt.UTC(),
	}
}

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *sqlx.DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	t.ID = uuid.New().String()
	row := newTaskRow(t)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO task (`+taskColumns+`)
		VALUES (:id, :user_id, :title, :description, :deadline, :priority, :status, :archived, :notified,
			:alarm_sound, :is_alarm_enabled, :created_at, :updated_at)`, row)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return row.toTask(), nil
}

func (repo taskRepository) GetTask(ctx context.Context, owner, id string) (task.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return task.Task{}, task.ErrNotFound
	}
	var row taskRow
	q := repo.db.Rebind(`SELECT ` + taskColumns + ` FROM task WHERE id = ? AND user_id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id, owner); err != nil {
		return task.Task{}, trapNoRowsErr(err, task.ErrNotFound, "getting task")
	}
	return row.toTask(), nil
}

func (repo taskRepository) QueryTasks(ctx context.Context, owner string, filter task.QueryFilter) ([]task.Task, error) {
	var w where
	w.add("user_id = ?", owner)
	if len(filter.Statuses) > 0 {
		if err := w.addIn("status", filter.Statuses); err != nil {
			return nil, errors.Wrap(err, "querying tasks")
		}
	}
	if len(filter.Priorities) > 0 {
		if err := w.addIn("priority", filter.Priorities); err != nil {
			return nil, errors.Wrap(err, "querying tasks")
		}
	}
	if filter.Archived != nil {
		w.add("archived = ?", *filter.Archived)
	}
	if !filter.DeadlineFrom.IsZero() {
		w.add("deadline >= ?", filter.DeadlineFrom.UTC())
	}
	if !filter.DeadlineTo.IsZero() {
		w.add("deadline <= ?", filter.DeadlineTo.UTC())
	}
	if filter.Search != "" {
		val := containsPattern(filter.Search)
		w.add(`(title ILIKE ? ESCAPE '\' OR description ILIKE ? ESCAPE '\')`, val, val)
	}

	var rows []taskRow
	q := repo.db.Rebind(`SELECT ` + taskColumns + ` FROM task` + w.String() + ` ORDER BY deadline ASC, created_at ASC`)
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toTask())
	}
	return tasks, nil
}

func (repo taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	// notified is OR-ed so that it never goes back to false
	var row taskRow
	q, args, err := repo.db.BindNamed(`
		UPDATE task SET
			title = :title, description = :description, deadline = :deadline, priority = :priority,
			status = :status, archived = :archived, notified = notified OR :notified, alarm_sound = :alarm_sound,
			is_alarm_enabled = :is_alarm_enabled, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id
		RETURNING `+taskColumns, newTaskRow(t))
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	if err = repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return task.Task{}, trapNoRowsErr(err, task.ErrNotFound, "updating task")
	}
	return row.toTask(), nil
}

func (repo taskRepository) MarkNotified(ctx context.Context, owner, id string, at time.Time) (task.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return task.Task{}, task.ErrNotFound
	}
	var row taskRow
	q := repo.db.Rebind(`
		UPDATE task SET
			updated_at = CASE WHEN notified THEN updated_at ELSE ? END,
			notified = TRUE
		WHERE id = ? AND user_id = ?
		RETURNING ` + taskColumns)
	if err := repo.db.GetContext(ctx, &row, q, at.UTC(), id, owner); err != nil {
		return task.Task{}, trapNoRowsErr(err, task.ErrNotFound, "marking task as notified")
	}
	return row.toTask(), nil
}

func (repo taskRepository) DeleteTask(ctx context.Context, owner, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return task.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM task WHERE id = ? AND user_id = ?`), id, owner)
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (repo taskRepository) ArchiveCompleted(ctx context.Context, before, at time.Time) (int, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`
		UPDATE task SET archived = TRUE, updated_at = ?
		WHERE status = ? AND NOT archived AND deadline < ?`),
		at.UTC(), task.StatusCompleted, before.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "archiving tasks")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "archiving tasks")
}
