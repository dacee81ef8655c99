package notification_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcampus/campus/core/notification"
	inmemdb "github.com/smartcampus/campus/storage/database/inmem"
)

type publisherMock struct {
	mu        sync.Mutex
	published []notification.Notification
}

func (p *publisherMock) Publish(n notification.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n)
}

func TestService_Notify(t *testing.T) {
	ctx := context.Background()
	pub := &publisherMock{}
	svc := notification.NewService(inmemdb.NewNotificationRepository(inmemdb.Open()), pub)

	ns, err := svc.Notify(ctx, nil, notification.NewNotification{Title: "Hi", Message: "Hello"})
	require.NoError(t, err)
	assert.Empty(t, ns)
	assert.Empty(t, pub.published)

	ns, err = svc.Notify(ctx, []string{"hero", "sidekick"}, notification.NewNotification{Title: "Hi", Message: "Hello"})
	require.NoError(t, err)
	require.Len(t, ns, 2)
	for _, n := range ns {
		assert.NotEmpty(t, n.ID)
		assert.Equal(t, notification.TypeInfo, n.Type)
		assert.False(t, n.IsRead)
	}
	assert.Equal(t, ns, pub.published, "pushed live")

	list, err := svc.List(ctx, "hero")
	require.NoError(t, err)
	assert.Len(t, list.Notifications, 1)
	assert.Equal(t, 1, list.UnreadCount)

	list, err = svc.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, notification.List{Notifications: []notification.Notification{}}, list)
}

func TestService_List_limit(t *testing.T) {
	ctx := context.Background()
	svc := notification.NewService(inmemdb.NewNotificationRepository(inmemdb.Open()), nil)

	for i := 0; i < notification.ListLimit+5; i++ {
		_, err := svc.Notify(ctx, []string{"hero"}, notification.NewNotification{Title: fmt.Sprintf("#%d", i), Message: "."})
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, "hero")
	require.NoError(t, err)
	assert.Len(t, list.Notifications, notification.ListLimit)
	assert.Equal(t, notification.ListLimit+5, list.UnreadCount, "counts beyond the page")
}

func TestService_read(t *testing.T) {
	ctx := context.Background()
	svc := notification.NewService(inmemdb.NewNotificationRepository(inmemdb.Open()), nil)
	ns, err := svc.Notify(ctx, []string{"hero", "hero", "sidekick"}, notification.NewNotification{Title: "Hi", Message: "Hello"})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, "hero", ns[2].ID)
	assert.Equal(t, notification.ErrNotFound, err, "not the recipient")

	n, err := svc.MarkRead(ctx, "hero", ns[0].ID)
	require.NoError(t, err)
	assert.True(t, n.IsRead)

	updated, err := svc.MarkAllRead(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	list, err := svc.List(ctx, "sidekick")
	require.NoError(t, err)
	assert.Equal(t, 1, list.UnreadCount, "others untouched")
}

func TestService_Purge(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewNotificationRepository(inmemdb.Open())
	svc := notification.NewService(repo, nil)
	now := time.Now().UTC()

	_, err := repo.CreateNotifications(ctx, []notification.Notification{
		{User: "hero", Title: "old read", IsRead: true, CreatedAt: now.Add(-100 * 24 * time.Hour)},
		{User: "hero", Title: "old unread", CreatedAt: now.Add(-100 * 24 * time.Hour)},
		{User: "hero", Title: "recent read", IsRead: true, CreatedAt: now.Add(-time.Hour)},
	})
	require.NoError(t, err)

	n, err := svc.Purge(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := svc.List(ctx, "hero")
	require.NoError(t, err)
	titles := make([]string, 0, len(list.Notifications))
	for _, n := range list.Notifications {
		titles = append(titles, n.Title)
	}
	assert.ElementsMatch(t, []string{"old unread", "recent read"}, titles)
}
