package mongorepos

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/user"
)

var userOrderingFields = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"role":       "rolePriority",
	"is_active":  "isActive",
	"created_at": "createdAt",
	"last_login": "lastLogin",
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Username     string             `bson:"username,omitempty"`
	Email        string             `bson:"email,omitempty"`
	Role         string             `bson:"role"`
	RolePriority int                `bson:"rolePriority"`
	Department   string             `bson:"department,omitempty"`
	Phone        string             `bson:"phone,omitempty"`
	Bio          string             `bson:"bio,omitempty"`
	Avatar       string             `bson:"avatar,omitempty"`
	IsActive     bool               `bson:"isActive"`
	GoogleID     string             `bson:"googleId,omitempty"`
	PasswordHash []byte             `bson:"password,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
	LastLogin    *time.Time         `bson:"lastLogin,omitempty"`
}

func newUserDoc(usr user.User) userDoc {
	doc := userDoc{
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         usr.Role,
		RolePriority: user.RolePriority(usr.Role),
		Department:   usr.Department,
		Phone:        usr.Phone,
		Bio:          usr.Bio,
		Avatar:       usr.Avatar,
		IsActive:     usr.IsActive,
		GoogleID:     usr.GoogleID,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
	}
	if oid, err := primitive.ObjectIDFromHex(usr.ID); err == nil {
		doc.ID = oid
	}
	if !usr.LastLogin.IsZero() {
		t := usr.LastLogin.UTC()
		doc.LastLogin = &t
	}
	return doc
}

func (doc userDoc) toUser() user.User {
	usr := user.User{
		ID:           doc.ID.Hex(),
		Name:         doc.Name,
		Username:     doc.Username,
		Email:        doc.Email,
		Role:         doc.Role,
		Department:   doc.Department,
		Phone:        doc.Phone,
		Bio:          doc.Bio,
		Avatar:       doc.Avatar,
		IsActive:     doc.IsActive,
		GoogleID:     doc.GoogleID,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt.UTC(),
		UpdatedAt:    doc.UpdatedAt.UTC(),
	}
	if doc.LastLogin != nil {
		usr.LastLogin = doc.LastLogin.UTC()
	}
	return usr
}

type userRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *mongo.Database) user.Repository {
	return &userRepository{coll: db.Collection(usersCollection)}
}

// trapDuplicateErr maps unique index violations to the matching user error.
func (repo userRepository) trapDuplicateErr(err error, msg string) error {
	if !mongo.IsDuplicateKeyError(err) {
		return errors.Wrap(err, msg)
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			switch {
			case strings.Contains(e.Message, "username"):
				return user.ErrUsernameExists
			case strings.Contains(e.Message, "googleId"):
				return user.ErrGoogleIDExists
			}
		}
	}
	return user.ErrEmailExists
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	or := bson.A{}
	if username != "" {
		or = append(or, bson.M{"username": username})
	}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if len(or) == 0 {
		return nil
	}
	filter := bson.M{"$or": or}
	if len(excludedUsers) > 0 {
		ids := make(bson.A, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			if oid, err := primitive.ObjectIDFromHex(u.ID); err == nil {
				ids = append(ids, oid)
			}
		}
		filter["_id"] = bson.M{"$nin": ids}
	}

	cur, err := repo.coll.Find(ctx, filter, findOptions(nil, 0, 2))
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, doc := range docs {
		if username != "" && doc.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(docs) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	doc := newUserDoc(usr)
	doc.ID = primitive.NewObjectID()
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		return user.User{}, repo.trapDuplicateErr(err, "inserting user")
	}
	return doc.toUser(), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var f bson.M
	switch {
	case filter.ID != "":
		oid, err := objectID(filter.ID, user.ErrNotFound)
		if err != nil {
			return user.User{}, err
		}
		f = bson.M{"_id": oid}
	case filter.UsernameOrEmail != "":
		f = bson.M{"$or": bson.A{
			bson.M{"username": filter.UsernameOrEmail},
			bson.M{"email": filter.UsernameOrEmail},
		}}
	case filter.Email != "":
		f = bson.M{"email": filter.Email}
	case filter.GoogleID != "":
		f = bson.M{"googleId": filter.GoogleID}
	default:
		return user.User{}, user.ErrNotFound
	}

	var doc userDoc
	if err := repo.coll.FindOne(ctx, f).Decode(&doc); err != nil {
		return user.User{}, trapNoDocErr(err, user.ErrNotFound, "getting user")
	}
	return doc.toUser(), nil
}

func (repo userRepository) QueryUsers(
	ctx context.Context,
	filter user.QueryFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
) ([]user.User, int, error) {
	f := bson.M{}
	// users with Name, Username or Email matching the search keyword
	if filter.Search != "" {
		rgx := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		f["$or"] = bson.A{bson.M{"name": rgx}, bson.M{"username": rgx}, bson.M{"email": rgx}}
	}
	if len(filter.Roles) > 0 {
		f["role"] = bson.M{"$in": filter.Roles}
	}
	if filter.IsActive != nil {
		f["isActive"] = *filter.IsActive
	}
	created := bson.M{}
	if !filter.CreatedFrom.IsZero() {
		created["$gte"] = filter.CreatedFrom.UTC()
	}
	if !filter.CreatedTo.IsZero() {
		created["$lte"] = filter.CreatedTo.UTC()
	}
	if len(created) > 0 {
		f["createdAt"] = created
	}

	total, err := repo.coll.CountDocuments(ctx, f)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting users")
	}

	sort := bson.D{}
	for _, ord := range ordering {
		if field, ok := userOrderingFields[ord.Field]; ok {
			dir := -1
			if ord.Ascending {
				dir = 1
			}
			sort = append(sort, bson.E{Key: field, Value: dir})
		}
	}
	if len(sort) == 0 {
		sort = append(sort, bson.E{Key: "createdAt", Value: -1})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})

	cur, err := repo.coll.Find(ctx, f, findOptions(sort, page.Offset(), page.Limit))
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(err, "decoding users")
	}

	users := make([]user.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.toUser())
	}
	return users, int(total), nil
}

func (repo userRepository) QueryActiveUserIDs(ctx context.Context, roles ...string) ([]string, error) {
	f := bson.M{"isActive": true}
	if len(roles) > 0 {
		f["role"] = bson.M{"$in": roles}
	}
	cur, err := repo.coll.Find(ctx, f, findOptions(bson.D{{Key: "_id", Value: 1}}, 0, 0).SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "querying active users")
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding active users")
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID.Hex())
	}
	return ids, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	oid, err := objectID(usr.ID, user.ErrNotFound)
	if err != nil {
		return user.User{}, err
	}
	doc := newUserDoc(usr)
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return user.User{}, repo.trapDuplicateErr(err, "updating user")
	}
	if res.MatchedCount == 0 {
		return user.User{}, user.ErrNotFound
	}
	return doc.toUser(), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	oids := make(bson.A, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil
	}
	if _, err := repo.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}}); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
