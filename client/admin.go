package client

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sendgrid/rest"

	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/user"
)

// UserFilter narrows the admin user list. Ordering takes field names, "-" prefixed for descending.
type UserFilter struct {
	Search                 string
	Roles                  []string
	IsActive               *bool
	CreatedFrom, CreatedTo time.Time
	Ordering               []string
	Pagination
}

func (f UserFilter) query() url.Values {
	q := make(url.Values)
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	setList(q, "role", f.Roles)
	setBool(q, "is_active", f.IsActive)
	setTime(q, "created_from", f.CreatedFrom)
	setTime(q, "created_to", f.CreatedTo)
	if len(f.Ordering) > 0 {
		q.Set("ordering", strings.Join(f.Ordering, ","))
	}
	f.Pagination.encode(q)
	return q
}

type UserPage struct {
	Page
	Users []user.User `json:"users"`
}

func (c *Client) Users(ctx context.Context, filter UserFilter) (UserPage, error) {
	var page UserPage
	err := c.do(ctx, rest.Get, "/admin/users", filter.query(), nil, &page)
	return page, err
}

func (c *Client) adminUserCall(ctx context.Context, method rest.Method, path string, in interface{}) (user.User, error) {
	var usr user.User
	if err := c.do(ctx, method, path, nil, in, &usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (c *Client) CreateUser(ctx context.Context, nu user.NewUser) (user.User, error) {
	return c.adminUserCall(ctx, rest.Post, "/admin/users", nu)
}

func (c *Client) User(ctx context.Context, id string) (user.User, error) {
	return c.adminUserCall(ctx, rest.Get, "/admin/users/"+escape(id), nil)
}

func (c *Client) UpdateUser(ctx context.Context, id string, uu user.UpdateUser) (user.User, error) {
	return c.adminUserCall(ctx, rest.Put, "/admin/users/"+escape(id), uu)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, rest.Delete, "/admin/users/"+escape(id), nil, nil, nil)
}

// DeleteUsers deletes every user of ids in one call.
func (c *Client) DeleteUsers(ctx context.Context, ids ...string) error {
	q := make(url.Values)
	setList(q, "id", ids)
	return c.do(ctx, rest.Delete, "/admin/users", q, nil, nil)
}

func (c *Client) Roles(ctx context.Context) ([]user.Role, error) {
	var roles []user.Role
	if err := c.do(ctx, rest.Get, "/admin/roles", nil, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// Broadcast notifies every active user of role, or everybody when role is empty.
// It returns how many users were notified.
func (c *Client) Broadcast(ctx context.Context, nn notification.NewNotification, role string) (int, error) {
	body := struct {
		notification.NewNotification
		Role string `json:"role,omitempty"`
	}{nn, role}
	var resp struct {
		Sent int `json:"sent"`
	}
	err := c.do(ctx, rest.Post, "/admin/notifications", nil, body, &resp)
	return resp.Sent, err
}
