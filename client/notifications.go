package client

import (
	"context"

	"github.com/sendgrid/rest"

	"github.com/smartcampus/campus/core/notification"
)

// Notifications returns the latest notifications of the session user.
func (c *Client) Notifications(ctx context.Context) (notification.List, error) {
	var list notification.List
	err := c.do(ctx, rest.Get, "/notifications", nil, nil, &list)
	return list, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	var n notification.Notification
	if err := c.do(ctx, rest.Patch, "/notifications/"+escape(id)+"/read", nil, nil, &n); err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

// MarkAllNotificationsRead returns how many notifications were unread.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var resp struct {
		Updated int `json:"updated"`
	}
	err := c.do(ctx, rest.Patch, "/notifications/read-all", nil, nil, &resp)
	return resp.Updated, err
}
