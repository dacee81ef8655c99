package pgrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/knowledge"
)

const knowledgeColumns = `id, category, question, content, tags, created_by, is_active, created_at, updated_at`

type knowledgeRow struct {
	ID        string         `db:"id"`
	Category  string         `db:"category"`
	Question  string         `db:"question"`
	Content   string         `db:"content"`
	Tags      pq.StringArray `db:"tags"`
	CreatedBy null.String    `db:"created_by"`
	IsActive  bool           `db:"is_active"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (row knowledgeRow) toItem() knowledge.Item {
	tags := []string(row.Tags)
	if tags == nil {
		tags = []string{}
	}
	return knowledge.Item{
		ID:        row.ID,
		Category:  row.Category,
		Question:  row.Question,
		Content:   row.Content,
		Tags:      tags,
		CreatedBy: row.CreatedBy.String,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func newKnowledgeRow(it knowledge.Item) knowledgeRow {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	return knowledgeRow{
		ID:        it.ID,
		Category:  it.Category,
		Question:  it.Question,
		Content:   it.Content,
		Tags:      pq.StringArray(tags),
		CreatedBy: null.NewString(it.CreatedBy, it.CreatedBy != ""),
		IsActive:  it.IsActive,
		CreatedAt: it.CreatedAt.UTC(),
		UpdatedAt: it.UpdatedAt.UTC(),
	}
}

type knowledgeRepository struct {
	db *sqlx.DB
}

var _ knowledge.Repository = (*knowledgeRepository)(nil) // interface compliance check

func NewKnowledgeRepository(db *sqlx.DB) knowledge.Repository {
	return &knowledgeRepository{db: db}
}

func (repo knowledgeRepository) CreateItem(ctx context.Context, it knowledge.Item) (knowledge.Item, error) {
	it.ID = uuid.New().String()
	row := newKnowledgeRow(it)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO knowledge_item (`+knowledgeColumns+`)
		VALUES (:id, :category, :question, :content, :tags, :created_by, :is_active, :created_at, :updated_at)`, row)
	if err != nil {
		return knowledge.Item{}, errors.Wrap(err, "inserting knowledge item")
	}
	return row.toItem(), nil
}

func (repo knowledgeRepository) GetItem(ctx context.Context, id string) (knowledge.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return knowledge.Item{}, knowledge.ErrNotFound
	}
	var row knowledgeRow
	q := repo.db.Rebind(`SELECT ` + knowledgeColumns + ` FROM knowledge_item WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return knowledge.Item{}, trapNoRowsErr(err, knowledge.ErrNotFound, "getting knowledge item")
	}
	return row.toItem(), nil
}

func (repo knowledgeRepository) QueryItems(ctx context.Context, filter knowledge.QueryFilter, page core.Pagination) ([]knowledge.Item, int, error) {
	var w where
	if !filter.IncludeInactive {
		w.add("is_active")
	}
	if filter.Category != "" {
		w.add("category = ?", filter.Category)
	}
	if len(filter.Tags) > 0 {
		w.add("tags && ?", pq.Array(filter.Tags))
	}
	if filter.Search != "" {
		// full-text match, plus a plain substring match for partial words
		pattern := containsPattern(filter.Search)
		w.add(`(search @@ plainto_tsquery('english', ?) OR question ILIKE ? ESCAPE '\' OR content ILIKE ? ESCAPE '\')`,
			filter.Search, pattern, pattern)
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, repo.db.Rebind(`SELECT COUNT(*) FROM knowledge_item`+w.String()), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting knowledge items")
	}

	q := fmt.Sprintf(`SELECT %s FROM knowledge_item%s ORDER BY created_at DESC, id ASC LIMIT %d OFFSET %d`,
		knowledgeColumns, w.String(), page.Limit, page.Offset())
	var rows []knowledgeRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying knowledge items")
	}
	items := make([]knowledge.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toItem())
	}
	return items, total, nil
}

func (repo knowledgeRepository) UpdateItem(ctx context.Context, it knowledge.Item) (knowledge.Item, error) {
	row := newKnowledgeRow(it)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE knowledge_item SET
			category = :category, question = :question, content = :content, tags = :tags,
			is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return knowledge.Item{}, errors.Wrap(err, "updating knowledge item")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return knowledge.Item{}, knowledge.ErrNotFound
	}
	return row.toItem(), nil
}
