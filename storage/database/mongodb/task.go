package mongorepos

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smartcampus/campus/core/task"
)

type taskDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	User           primitive.ObjectID `bson:"user"`
	Title          string             `bson:"title"`
	Description    string             `bson:"description,omitempty"`
	Deadline       time.Time          `bson:"deadline"`
	Priority       string             `bson:"priority"`
	Status         string             `bson:"status"`
	Archived       bool               `bson:"archived"`
	Notified       bool               `bson:"notified"`
	AlarmSound     string             `bson:"alarmSound"`
	IsAlarmEnabled bool               `bson:"isAlarmEnabled"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func (doc taskDoc) toTask() task.Task {
	return task.Task{
		ID:             doc.ID.Hex(),
		User:           doc.User.Hex(),
		Title:          doc.Title,
		Description:    doc.Description,
		Deadline:       doc.Deadline.UTC(),
		Priority:       doc.Priority,
		Status:         doc.Status,
		Archived:       doc.Archived,
		Notified:       doc.Notified,
		AlarmSound:     doc.AlarmSound,
		IsAlarmEnabled: doc.IsAlarmEnabled,
		CreatedAt:      doc.CreatedAt.UTC(),
		UpdatedAt:      doc.UpdatedAt.UTC(),
	}
}

type taskRepository struct {
	coll *mongo.Collection
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *mongo.Database) task.Repository {
	return &taskRepository{coll: db.Collection(tasksCollection)}
}

// ownedBy builds the filter of a single task of owner.
func (repo taskRepository) ownedBy(owner, id string) (bson.M, error) {
	oid, err := objectID(id, task.ErrNotFound)
	if err != nil {
		return nil, err
	}
	uid, err := objectID(owner, task.ErrNotFound)
	if err != nil {
		return nil, err
	}
	return bson.M{"_id": oid, "user": uid}, nil
}

func (repo taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	uid, err := primitive.ObjectIDFromHex(t.User)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "parsing task owner")
	}
	doc := taskDoc{
		ID:             primitive.NewObjectID(),
		User:           uid,
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
	if _, err = repo.coll.InsertOne(ctx, doc); err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return doc.toTask(), nil
}

func (repo taskRepository) GetTask(ctx context.Context, owner, id string) (task.Task, error) {
	f, err := repo.ownedBy(owner, id)
	if err != nil {
		return task.Task{}, err
	}
	var doc taskDoc
	if err = repo.coll.FindOne(ctx, f).Decode(&doc); err != nil {
		return task.Task{}, trapNoDocErr(err, task.ErrNotFound, "getting task")
	}
	return doc.toTask(), nil
}

func (repo taskRepository) QueryTasks(ctx context.Context, owner string, filter task.QueryFilter) ([]task.Task, error) {
	uid, err := primitive.ObjectIDFromHex(owner)
	if err != nil {
		return []task.Task{}, nil
	}
	f := bson.M{"user": uid}
	if len(filter.Statuses) > 0 {
		f["status"] = bson.M{"$in": filter.Statuses}
	}
	if len(filter.Priorities) > 0 {
		f["priority"] = bson.M{"$in": filter.Priorities}
	}
	if filter.Archived != nil {
		f["archived"] = *filter.Archived
	}
	deadline := bson.M{}
	if !filter.DeadlineFrom.IsZero() {
		deadline["$gte"] = filter.DeadlineFrom.UTC()
	}
	if !filter.DeadlineTo.IsZero() {
		deadline["$lte"] = filter.DeadlineTo.UTC()
	}
	if len(deadline) > 0 {
		f["deadline"] = deadline
	}
	if filter.Search != "" {
		rgx := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		f["$or"] = bson.A{bson.M{"title": rgx}, bson.M{"description": rgx}}
	}

	sort := bson.D{{Key: "deadline", Value: 1}, {Key: "createdAt", Value: 1}}
	cur, err := repo.coll.Find(ctx, f, findOptions(sort, 0, 0))
	if err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	var docs []taskDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding tasks")
	}
	tasks := make([]task.Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, doc.toTask())
	}
	return tasks, nil
}

func (repo taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	f, err := repo.ownedBy(t.User, t.ID)
	if err != nil {
		return task.Task{}, err
	}
	set := bson.M{
		"title":          t.Title,
		"description":    t.Description,
		"deadline":       t.Deadline.UTC(),
		"priority":       t.Priority,
		"status":         t.Status,
		"archived":       t.Archived,
		"alarmSound":     t.AlarmSound,
		"isAlarmEnabled": t.IsAlarmEnabled,
		"updatedAt":      t.UpdatedAt.UTC(),
	}
	// notified only ever goes from false to true
	if t.Notified {
		set["notified"] = true
	}

	var doc taskDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err = repo.coll.FindOneAndUpdate(ctx, f, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		return task.Task{}, trapNoDocErr(err, task.ErrNotFound, "updating task")
	}
	return doc.toTask(), nil
}

func (repo taskRepository) MarkNotified(ctx context.Context, owner, id string, at time.Time) (task.Task, error) {
	f, err := repo.ownedBy(owner, id)
	if err != nil {
		return task.Task{}, err
	}
	var doc taskDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	unnotified := bson.M{"_id": f["_id"], "user": f["user"], "notified": false}
	err = repo.coll.FindOneAndUpdate(ctx, unnotified, bson.M{"$set": bson.M{"notified": true, "updatedAt": at.UTC()}}, opts).Decode(&doc)
	if err == nil {
		return doc.toTask(), nil
	}
	if errors.Cause(err) != mongo.ErrNoDocuments {
		return task.Task{}, errors.Wrap(err, "marking task as notified")
	}
	// already notified, or missing
	return repo.GetTask(ctx, owner, id)
}

func (repo taskRepository) DeleteTask(ctx context.Context, owner, id string) error {
	f, err := repo.ownedBy(owner, id)
	if err != nil {
		return err
	}
	res, err := repo.coll.DeleteOne(ctx, f)
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	if res.DeletedCount == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (repo taskRepository) ArchiveCompleted(ctx context.Context, before, at time.Time) (int, error) {
	res, err := repo.coll.UpdateMany(ctx,
		bson.M{"status": task.StatusCompleted, "archived": false, "deadline": bson.M{"$lt": before.UTC()}},
		bson.M{"$set": bson.M{"archived": true, "updatedAt": at.UTC()}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "archiving tasks")
	}
	return int(res.ModifiedCount), nil
}
