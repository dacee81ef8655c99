// Package mongorepos implements the repositories on top of MongoDB.
package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smartcampus/campus/core"
)

// Collections
const (
	usersCollection         = "users"
	tasksCollection         = "tasks"
	knowledgeCollection     = "knowledgebases"
	notificationsCollection = "notifications"
)

// Open connects to the configured MongoDB server and makes sure the indexes exist.
func Open(ctx context.Context, conf *core.Config) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Database.URL))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "pinging mongodb")
	}

	db := client.Database(conf.Database.Name)
	if err = EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return db, nil
}

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	// empty usernames, emails & google IDs are not stored (omitempty)
	nonEmpty := func(field string) bson.M {
		return bson.M{field: bson.M{"$exists": true}}
	}

	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(nonEmpty("username"))},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(nonEmpty("email"))},
			{Keys: bson.D{{Key: "googleId", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(nonEmpty("googleId"))},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		},
		tasksCollection: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "deadline", Value: 1}}},
		},
		knowledgeCollection: {
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "tags", Value: 1}}},
			{Keys: bson.D{{Key: "question", Value: "text"}, {Key: "content", Value: "text"}}},
		},
		notificationsCollection: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", coll)
		}
	}
	return nil
}

func Close(ctx context.Context, db *mongo.Database) error {
	return db.Client().Disconnect(ctx)
}

// objectID parses hex. Malformed IDs can never match a document, so they map to notFound.
func objectID(hex string, notFound error) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, notFound
	}
	return oid, nil
}

// hexOrEmpty is the inverse of objectID for optional references.
func hexOrEmpty(oid primitive.ObjectID) string {
	if oid.IsZero() {
		return ""
	}
	return oid.Hex()
}

// trapNoDocErr maps mongo "no documents" err to notFound
func trapNoDocErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == mongo.ErrNoDocuments {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func findOptions(sort bson.D, skip, limit int) *options.FindOptions {
	opts := options.Find()
	if len(sort) > 0 {
		opts.SetSort(sort)
	}
	if skip > 0 {
		opts.SetSkip(int64(skip))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}
