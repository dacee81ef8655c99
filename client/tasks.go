package client

import (
	"context"
	"net/url"
	"time"

	"github.com/sendgrid/rest"

	"github.com/smartcampus/campus/core/task"
)

// TaskFilter narrows the task list. Zero values do not filter.
type TaskFilter struct {
	Statuses   []string
	Priorities []string
	Search     string
	Archived   *bool
	From, To   time.Time // deadline window
}

func (f TaskFilter) query() url.Values {
	q := make(url.Values)
	setList(q, "status", f.Statuses)
	setList(q, "priority", f.Priorities)
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	setBool(q, "archived", f.Archived)
	setTime(q, "from", f.From)
	setTime(q, "to", f.To)
	return q
}

// Tasks lists the session user's tasks, by deadline.
func (c *Client) Tasks(ctx context.Context, filter TaskFilter) ([]task.Task, error) {
	var tasks []task.Task
	if err := c.do(ctx, rest.Get, "/tasks", filter.query(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) taskCall(ctx context.Context, method rest.Method, path string, in interface{}) (task.Task, error) {
	var t task.Task
	if err := c.do(ctx, method, path, nil, in, &t); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (c *Client) CreateTask(ctx context.Context, nt task.NewTask) (task.Task, error) {
	return c.taskCall(ctx, rest.Post, "/tasks", nt)
}

func (c *Client) Task(ctx context.Context, id string) (task.Task, error) {
	return c.taskCall(ctx, rest.Get, "/tasks/"+escape(id), nil)
}

func (c *Client) UpdateTask(ctx context.Context, id string, ut task.UpdateTask) (task.Task, error) {
	return c.taskCall(ctx, rest.Put, "/tasks/"+escape(id), ut)
}

func (c *Client) SetTaskStatus(ctx context.Context, id, status string) (task.Task, error) {
	return c.taskCall(ctx, rest.Patch, "/tasks/"+escape(id)+"/status", task.UpdateStatus{Status: status})
}

// MarkTaskNotified records that the alarm of the task fired. It cannot be undone.
func (c *Client) MarkTaskNotified(ctx context.Context, id string) (task.Task, error) {
	return c.taskCall(ctx, rest.Patch, "/tasks/"+escape(id)+"/notified", nil)
}

func (c *Client) ArchiveTask(ctx context.Context, id string, archived bool) (task.Task, error) {
	return c.taskCall(ctx, rest.Patch, "/tasks/"+escape(id)+"/archive", map[string]bool{"archived": archived})
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, rest.Delete, "/tasks/"+escape(id), nil, nil, nil)
}
