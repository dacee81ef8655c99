package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/knowledge"
	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/core/user"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(Open())

	now := time.Now().UTC()
	alice, err := repo.CreateUser(ctx, user.User{Name: "Alice", Username: "alice", Email: "alice@campus.test", Role: user.RoleStudent, IsActive: true, CreatedAt: now.Add(-time.Hour)})
	require.NoError(t, err)
	bob, err := repo.CreateUser(ctx, user.User{Name: "Bob", Username: "bob", Email: "bob@campus.test", Role: user.RoleFaculty, IsActive: true, CreatedAt: now})
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, user.User{Name: "Carol", Username: "carol", Role: user.RoleAdmin, CreatedAt: now.Add(-2 * time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, user.ErrUsernameExists, repo.CheckUniqueness(ctx, "alice", ""))
	assert.Equal(t, user.ErrEmailExists, repo.CheckUniqueness(ctx, "", "bob@campus.test"))
	assert.NoError(t, repo.CheckUniqueness(ctx, "alice", "alice@campus.test", alice))

	got, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "bob@campus.test"})
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)

	_, err = repo.GetUser(ctx, user.GetFilter{GoogleID: "nope"})
	assert.Equal(t, user.ErrNotFound, err)

	page := core.Pagination{Page: 1, Limit: 2}
	users, total, err := repo.QueryUsers(ctx, user.QueryFilter{}, nil, page)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, users, 2)
	assert.Equal(t, "bob", users[0].Username) // newest first

	users, total, err = repo.QueryUsers(ctx, user.QueryFilter{Search: "ALI"}, nil, page)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, alice.ID, users[0].ID)

	users, _, err = repo.QueryUsers(ctx, user.QueryFilter{}, []core.DBOrdering{{Field: "role", Ascending: false}}, core.Pagination{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob", "alice"}, []string{users[0].Username, users[1].Username, users[2].Username})

	ids, err := repo.QueryActiveUserIDs(ctx, user.StaffRoles...)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, ids)

	bob.Department = "Physics"
	_, err = repo.UpdateUser(ctx, bob)
	require.NoError(t, err)
	got, _ = repo.GetUser(ctx, user.GetFilter{ID: bob.ID})
	assert.Equal(t, "Physics", got.Department)

	require.NoError(t, repo.DeleteUsersByID(ctx, bob.ID))
	_, err = repo.UpdateUser(ctx, bob)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestTaskRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(Open())

	now := time.Now().UTC()
	late, _ := repo.CreateTask(ctx, task.Task{User: "u1", Title: "Late essay", Deadline: now.Add(48 * time.Hour), Status: task.StatusPending})
	soon, _ := repo.CreateTask(ctx, task.Task{User: "u1", Title: "Lab report", Deadline: now.Add(time.Hour), Status: task.StatusCompleted})
	other, _ := repo.CreateTask(ctx, task.Task{User: "u2", Title: "Not yours", Deadline: now})

	tasks, err := repo.QueryTasks(ctx, "u1", task.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, soon.ID, tasks[0].ID)
	assert.Equal(t, late.ID, tasks[1].ID)

	tasks, _ = repo.QueryTasks(ctx, "u1", task.QueryFilter{Search: "essay"})
	require.Len(t, tasks, 1)
	assert.Equal(t, late.ID, tasks[0].ID)

	_, err = repo.GetTask(ctx, "u1", other.ID)
	assert.Equal(t, task.ErrNotFound, err)
	assert.Equal(t, task.ErrNotFound, repo.DeleteTask(ctx, "u1", other.ID))

	notified, err := repo.MarkNotified(ctx, "u1", late.ID, now)
	require.NoError(t, err)
	assert.True(t, notified.Notified)

	// a full update never clears the flag
	late.Title = "Essay"
	late.Notified = false
	updated, err := repo.UpdateTask(ctx, late)
	require.NoError(t, err)
	assert.True(t, updated.Notified)

	n, err := repo.ArchiveCompleted(ctx, now.Add(2*time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	archived := true
	tasks, _ = repo.QueryTasks(ctx, "u1", task.QueryFilter{Archived: &archived})
	require.Len(t, tasks, 1)
	assert.Equal(t, soon.ID, tasks[0].ID)
}

func TestKnowledgeRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewKnowledgeRepository(Open())

	now := time.Now().UTC()
	fees, _ := repo.CreateItem(ctx, knowledge.Item{Category: knowledge.CategoryFinancial, Question: "When are fees due?", Content: "Fees are due in September.", Tags: []string{"fees"}, IsActive: true, CreatedAt: now.Add(-time.Minute)})
	library, _ := repo.CreateItem(ctx, knowledge.Item{Category: knowledge.CategoryGeneral, Content: "The library opens at 8am.", Tags: []string{"library", "hours"}, IsActive: true, CreatedAt: now})
	_, _ = repo.CreateItem(ctx, knowledge.Item{Category: knowledge.CategoryGeneral, Content: "Old library hours.", IsActive: false, CreatedAt: now})

	page := core.Pagination{Page: 1, Limit: 10}
	items, total, err := repo.QueryItems(ctx, knowledge.QueryFilter{}, page)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, library.ID, items[0].ID)

	items, total, _ = repo.QueryItems(ctx, knowledge.QueryFilter{IncludeInactive: true, Search: "library"}, page)
	assert.Equal(t, 2, total)

	items, _, _ = repo.QueryItems(ctx, knowledge.QueryFilter{Tags: []string{"fees"}}, page)
	require.Len(t, items, 1)
	assert.Equal(t, fees.ID, items[0].ID)

	items, _, _ = repo.QueryItems(ctx, knowledge.QueryFilter{Category: knowledge.CategoryFinancial, Search: "SEPTEMBER"}, page)
	require.Len(t, items, 1)

	fees.IsActive = false
	_, err = repo.UpdateItem(ctx, fees)
	require.NoError(t, err)
	got, err := repo.GetItem(ctx, fees.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = repo.GetItem(ctx, "missing")
	assert.Equal(t, knowledge.ErrNotFound, err)
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository(Open())

	now := time.Now().UTC()
	created, err := repo.CreateNotifications(ctx, []notification.Notification{
		{User: "u1", Title: "old", Message: "m", Type: notification.TypeInfo, CreatedAt: now.Add(-100 * 24 * time.Hour)},
		{User: "u1", Title: "new", Message: "m", Type: notification.TypeAlert, CreatedAt: now},
		{User: "u2", Title: "other", Message: "m", Type: notification.TypeInfo, CreatedAt: now},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.NotEqual(t, created[0].ID, created[1].ID)

	ns, err := repo.QueryNotifications(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "new", ns[0].Title)

	unread, _ := repo.CountUnread(ctx, "u1")
	assert.Equal(t, 2, unread)

	_, err = repo.MarkRead(ctx, "u2", created[0].ID)
	assert.Equal(t, notification.ErrNotFound, err)

	read, err := repo.MarkRead(ctx, "u1", created[0].ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	n, _ := repo.MarkAllRead(ctx, "u1")
	assert.Equal(t, 1, n)

	n, _ = repo.DeleteReadBefore(ctx, now.Add(-90*24*time.Hour))
	assert.Equal(t, 1, n)
	ns, _ = repo.QueryNotifications(ctx, "u1", 0)
	assert.Len(t, ns, 1)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewTaskRepository(db)
	_, _ = repo.CreateTask(ctx, task.Task{User: "u1", Title: "x"})

	db.Reset()
	tasks, err := repo.QueryTasks(ctx, "u1", task.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
