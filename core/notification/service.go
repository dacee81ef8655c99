package notification

import (
	"context"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core"
)

// ListLimit caps how many notifications a user gets back at once.
const ListLimit = 50

var (
	// errors
	ErrNotFound = errors.New("notification not found")

	typeTag  = "notiftype"
	typeText = "type must be one of: " + strings.Join(Types, ", ")
)

// InitValidators registers the notification validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnumValidation(validate, translator, typeTag, typeText, Types...)
}

type (
	Repository interface {
		CreateNotifications(ctx context.Context, ns []Notification) ([]Notification, error)
		// QueryNotifications returns the user's latest notifications, newest first.
		QueryNotifications(ctx context.Context, user string, limit int) ([]Notification, error)
		CountUnread(ctx context.Context, user string) (int, error)
		MarkRead(ctx context.Context, user, id string) (Notification, error)
		MarkAllRead(ctx context.Context, user string) (int, error)
		DeleteReadBefore(ctx context.Context, before time.Time) (int, error)
	}

	// Publisher pushes freshly created notifications to connected clients.
	Publisher interface {
		Publish(n Notification)
	}

	Service interface {
		Notify(ctx context.Context, users []string, nn NewNotification) ([]Notification, error)
		List(ctx context.Context, user string) (List, error)
		MarkRead(ctx context.Context, user, id string) (Notification, error)
		MarkAllRead(ctx context.Context, user string) (int, error)
		Purge(ctx context.Context, olderThan time.Duration) (int, error)
	}

	service struct {
		repo      Repository
		publisher Publisher
	}
)

var _ Service = (*service)(nil)

// NewService returns a notification Service. publisher may be nil.
func NewService(repo Repository, publisher Publisher) Service {
	return &service{repo: repo, publisher: publisher}
}

func (svc *service) Notify(ctx context.Context, users []string, nn NewNotification) ([]Notification, error) {
	if len(users) == 0 {
		return []Notification{}, nil
	}
	if nn.Type == "" {
		nn.Type = TypeInfo
	}

	now := time.Now().UTC()
	ns := make([]Notification, 0, len(users))
	for _, usr := range users {
		ns = append(ns, Notification{
			User:      usr,
			Title:     nn.Title,
			Message:   nn.Message,
			Type:      nn.Type,
			Link:      nn.Link,
			CreatedAt: now,
		})
	}

	ns, err := svc.repo.CreateNotifications(ctx, ns)
	if err != nil {
		return nil, errors.Wrap(err, "creating notifications")
	}
	if svc.publisher != nil {
		for _, n := range ns {
			svc.publisher.Publish(n)
		}
	}
	return ns, nil
}

func (svc *service) List(ctx context.Context, user string) (List, error) {
	ns, err := svc.repo.QueryNotifications(ctx, user, ListLimit)
	if err != nil {
		return List{}, errors.Wrap(err, "querying notifications")
	}
	if ns == nil {
		ns = []Notification{}
	}
	unread, err := svc.repo.CountUnread(ctx, user)
	if err != nil {
		return List{}, errors.Wrap(err, "counting unread notifications")
	}
	return List{Notifications: ns, UnreadCount: unread}, nil
}

func (svc *service) MarkRead(ctx context.Context, user, id string) (Notification, error) {
	return svc.repo.MarkRead(ctx, user, id)
}

func (svc *service) MarkAllRead(ctx context.Context, user string) (int, error) {
	return svc.repo.MarkAllRead(ctx, user)
}

func (svc *service) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	n, err := svc.repo.DeleteReadBefore(ctx, time.Now().UTC().Add(-olderThan))
	return n, errors.Wrap(err, "purging read notifications")
}
