package pgrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core/notification"
)

const notificationColumns = `id, user_id, title, message, type, link, is_read, created_at`

type notificationRow struct {
	ID        string    `db:"id"`
	User      string    `db:"user_id"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Type      string    `db:"type"`
	Link      string    `db:"link"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

func (row notificationRow) toNotification() notification.Notification {
	return notification.Notification{
		ID:        row.ID,
		User:      row.User,
		Title:     row.Title,
		Message:   row.Message,
		Type:      row.Type,
		Link:      row.Link,
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo notificationRepository) CreateNotifications(ctx context.Context, ns []notification.Notification) ([]notification.Notification, error) {
	if len(ns) == 0 {
		return []notification.Notification{}, nil
	}

	rows := make([]notificationRow, 0, len(ns))
	for _, n := range ns {
		rows = append(rows, notificationRow{
			ID:        uuid.New().String(),
			User:      n.User,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			Link:      n.Link,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.UTC(),
		})
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	// batch insert
	if _, err = tx.NamedExecContext(ctx, `
		INSERT INTO notification (`+notificationColumns+`)
		VALUES (:id, :user_id, :title, :message, :type, :link, :is_read, :created_at)`, rows); err != nil {
		_ = tx.Rollback()
		return nil, errors.Wrap(err, "inserting notifications")
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing notifications")
	}

	created := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		created = append(created, row.toNotification())
	}
	return created, nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, user string, limit int) ([]notification.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notification WHERE user_id = ? ORDER BY created_at DESC, id ASC`
	args := []interface{}{user}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	ns := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		ns = append(ns, row.toNotification())
	}
	return ns, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, user string) (int, error) {
	var count int
	q := repo.db.Rebind(`SELECT COUNT(*) FROM notification WHERE user_id = ? AND NOT is_read`)
	if err := repo.db.GetContext(ctx, &count, q, user); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

func (repo notificationRepository) MarkRead(ctx context.Context, user, id string) (notification.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return notification.Notification{}, notification.ErrNotFound
	}
	var row notificationRow
	q := repo.db.Rebind(`UPDATE notification SET is_read = TRUE WHERE id = ? AND user_id = ? RETURNING ` + notificationColumns)
	if err := repo.db.GetContext(ctx, &row, q, id, user); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "marking notification as read")
	}
	return row.toNotification(), nil
}

func (repo notificationRepository) MarkAllRead(ctx context.Context, user string) (int, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`UPDATE notification SET is_read = TRUE WHERE user_id = ? AND NOT is_read`), user)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications as read")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "marking notifications as read")
}

func (repo notificationRepository) DeleteReadBefore(ctx context.Context, before time.Time) (int, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM notification WHERE is_read AND created_at < ?`), before.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "deleting read notifications")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting read notifications")
}
