package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smartcampus/campus/core/notification"
)

type notificationDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	User      primitive.ObjectID `bson:"user"`
	Title     string             `bson:"title"`
	Message   string             `bson:"message"`
	Type      string             `bson:"type"`
	Link      string             `bson:"link,omitempty"`
	IsRead    bool               `bson:"isRead"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (doc notificationDoc) toNotification() notification.Notification {
	return notification.Notification{
		ID:        doc.ID.Hex(),
		User:      doc.User.Hex(),
		Title:     doc.Title,
		Message:   doc.Message,
		Type:      doc.Type,
		Link:      doc.Link,
		IsRead:    doc.IsRead,
		CreatedAt: doc.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	coll *mongo.Collection
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *mongo.Database) notification.Repository {
	return &notificationRepository{coll: db.Collection(notificationsCollection)}
}

func (repo notificationRepository) CreateNotifications(ctx context.Context, ns []notification.Notification) ([]notification.Notification, error) {
	docs := make([]interface{}, 0, len(ns))
	created := make([]notification.Notification, 0, len(ns))
	for _, n := range ns {
		uid, err := primitive.ObjectIDFromHex(n.User)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing recipient %q", n.User)
		}
		doc := notificationDoc{
			ID:        primitive.NewObjectID(),
			User:      uid,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			Link:      n.Link,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.UTC(),
		}
		docs = append(docs, doc)
		created = append(created, doc.toNotification())
	}
	if len(docs) == 0 {
		return created, nil
	}
	if _, err := repo.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return nil, errors.Wrap(err, "inserting notifications")
	}
	return created, nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, user string, limit int) ([]notification.Notification, error) {
	uid, err := primitive.ObjectIDFromHex(user)
	if err != nil {
		return []notification.Notification{}, nil
	}
	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	cur, err := repo.coll.Find(ctx, bson.M{"user": uid}, findOptions(sort, 0, limit))
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	var docs []notificationDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding notifications")
	}
	ns := make([]notification.Notification, 0, len(docs))
	for _, doc := range docs {
		ns = append(ns, doc.toNotification())
	}
	return ns, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, user string) (int, error) {
	uid, err := primitive.ObjectIDFromHex(user)
	if err != nil {
		return 0, nil
	}
	n, err := repo.coll.CountDocuments(ctx, bson.M{"user": uid, "isRead": false})
	if err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return int(n), nil
}

func (repo notificationRepository) MarkRead(ctx context.Context, user, id string) (notification.Notification, error) {
	oid, err := objectID(id, notification.ErrNotFound)
	if err != nil {
		return notification.Notification{}, err
	}
	uid, err := objectID(user, notification.ErrNotFound)
	if err != nil {
		return notification.Notification{}, err
	}
	var doc notificationDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid, "user": uid}, bson.M{"$set": bson.M{"isRead": true}}, opts).Decode(&doc)
	if err != nil {
		return notification.Notification{}, trapNoDocErr(err, notification.ErrNotFound, "marking notification as read")
	}
	return doc.toNotification(), nil
}

func (repo notificationRepository) MarkAllRead(ctx context.Context, user string) (int, error) {
	uid, err := primitive.ObjectIDFromHex(user)
	if err != nil {
		return 0, nil
	}
	res, err := repo.coll.UpdateMany(ctx, bson.M{"user": uid, "isRead": false}, bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications as read")
	}
	return int(res.ModifiedCount), nil
}

func (repo notificationRepository) DeleteReadBefore(ctx context.Context, before time.Time) (int, error) {
	res, err := repo.coll.DeleteMany(ctx, bson.M{"isRead": true, "createdAt": bson.M{"$lt": before.UTC()}})
	if err != nil {
		return 0, errors.Wrap(err, "deleting read notifications")
	}
	return int(res.DeletedCount), nil
}
