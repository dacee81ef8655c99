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

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/knowledge"
)

type knowledgeDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Category  string             `bson:"category"`
	Question  string             `bson:"question,omitempty"`
	Content   string             `bson:"content"`
	Tags      []string           `bson:"tags"`
	CreatedBy primitive.ObjectID `bson:"createdBy,omitempty"`
	IsActive  bool               `bson:"isActive"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func newKnowledgeDoc(it knowledge.Item) knowledgeDoc {
	doc := knowledgeDoc{
		Category:  it.Category,
		Question:  it.Question,
		Content:   it.Content,
		Tags:      it.Tags,
		IsActive:  it.IsActive,
		CreatedAt: it.CreatedAt.UTC(),
		UpdatedAt: it.UpdatedAt.UTC(),
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if oid, err := primitive.ObjectIDFromHex(it.ID); err == nil {
		doc.ID = oid
	}
	if oid, err := primitive.ObjectIDFromHex(it.CreatedBy); err == nil {
		doc.CreatedBy = oid
	}
	return doc
}

func (doc knowledgeDoc) toItem() knowledge.Item {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return knowledge.Item{
		ID:        doc.ID.Hex(),
		Category:  doc.Category,
		Question:  doc.Question,
		Content:   doc.Content,
		Tags:      tags,
		CreatedBy: hexOrEmpty(doc.CreatedBy),
		IsActive:  doc.IsActive,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}

type knowledgeRepository struct {
	coll *mongo.Collection
}

var _ knowledge.Repository = (*knowledgeRepository)(nil) // interface compliance check

func NewKnowledgeRepository(db *mongo.Database) knowledge.Repository {
	return &knowledgeRepository{coll: db.Collection(knowledgeCollection)}
}

func (repo knowledgeRepository) CreateItem(ctx context.Context, it knowledge.Item) (knowledge.Item, error) {
	doc := newKnowledgeDoc(it)
	doc.ID = primitive.NewObjectID()
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		return knowledge.Item{}, errors.Wrap(err, "inserting knowledge item")
	}
	return doc.toItem(), nil
}

func (repo knowledgeRepository) GetItem(ctx context.Context, id string) (knowledge.Item, error) {
	oid, err := objectID(id, knowledge.ErrNotFound)
	if err != nil {
		return knowledge.Item{}, err
	}
	var doc knowledgeDoc
	if err = repo.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return knowledge.Item{}, trapNoDocErr(err, knowledge.ErrNotFound, "getting knowledge item")
	}
	return doc.toItem(), nil
}

// QueryItems matches the search against the $text index (stems) and, in the same pass, as a
// case-insensitive substring of the question or the content (partial words, stop words).
func (repo knowledgeRepository) QueryItems(ctx context.Context, filter knowledge.QueryFilter, page core.Pagination) ([]knowledge.Item, int, error) {
	f := bson.M{}
	if !filter.IncludeInactive {
		f["isActive"] = true
	}
	if filter.Category != "" {
		f["category"] = filter.Category
	}
	if len(filter.Tags) > 0 {
		f["tags"] = bson.M{"$in": filter.Tags}
	}

	if filter.Search == "" {
		return repo.find(ctx, f, page)
	}

	// $text cannot sit in an $or next to unindexed clauses: its hits are resolved to IDs first
	stemmed, err := repo.textMatches(ctx, f, filter.Search)
	if err != nil {
		return nil, 0, err
	}
	f["$or"] = searchClauses(filter.Search, stemmed)
	return repo.find(ctx, f, page)
}

func (repo knowledgeRepository) textMatches(ctx context.Context, f bson.M, search string) ([]primitive.ObjectID, error) {
	textFilter := bson.M{"$text": bson.M{"$search": search}}
	for k, v := range f {
		textFilter[k] = v
	}
	cur, err := repo.coll.Find(ctx, textFilter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "text searching knowledge items")
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding knowledge item ids")
	}
	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

// searchClauses is the union of the $text hits and the substring matches of search.
func searchClauses(search string, stemmed []primitive.ObjectID) bson.A {
	rgx := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
	clauses := bson.A{bson.M{"question": rgx}, bson.M{"content": rgx}}
	if len(stemmed) > 0 {
		clauses = append(clauses, bson.M{"_id": bson.M{"$in": stemmed}})
	}
	return clauses
}

func (repo knowledgeRepository) find(ctx context.Context, f bson.M, page core.Pagination) ([]knowledge.Item, int, error) {
	total, err := repo.coll.CountDocuments(ctx, f)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting knowledge items")
	}
	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	cur, err := repo.coll.Find(ctx, f, findOptions(sort, page.Offset(), page.Limit))
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying knowledge items")
	}
	var docs []knowledgeDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(err, "decoding knowledge items")
	}
	items := make([]knowledge.Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toItem())
	}
	return items, int(total), nil
}

func (repo knowledgeRepository) UpdateItem(ctx context.Context, it knowledge.Item) (knowledge.Item, error) {
	oid, err := objectID(it.ID, knowledge.ErrNotFound)
	if err != nil {
		return knowledge.Item{}, err
	}
	doc := newKnowledgeDoc(it)
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return knowledge.Item{}, errors.Wrap(err, "updating knowledge item")
	}
	if res.MatchedCount == 0 {
		return knowledge.Item{}, knowledge.ErrNotFound
	}
	return doc.toItem(), nil
}
