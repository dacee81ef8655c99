package inmemdb

import (
	"context"
	"sort"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/knowledge"
)

type knowledgeRepository struct {
	db *knowledgeTable
}

var _ knowledge.Repository = (*knowledgeRepository)(nil)

func NewKnowledgeRepository(db *DB) knowledge.Repository {
	return &knowledgeRepository{db: db.knowledge}
}

func (repo *knowledgeRepository) CreateItem(_ context.Context, it knowledge.Item) (knowledge.Item, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	it.ID = newID()
	it.Tags = append([]string{}, it.Tags...)
	repo.db.table[it.ID] = &it
	return it, nil
}

func (repo *knowledgeRepository) GetItem(_ context.Context, id string) (knowledge.Item, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if it, ok := repo.db.table[id]; ok {
		return *it, nil
	}
	return knowledge.Item{}, knowledge.ErrNotFound
}

func (repo *knowledgeRepository) QueryItems(_ context.Context, filter knowledge.QueryFilter, page core.Pagination) ([]knowledge.Item, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	items := make([]knowledge.Item, 0)
	for _, it := range repo.db.table {
		if !filter.IncludeInactive && !it.IsActive {
			continue
		}
		if filter.Category != "" && it.Category != filter.Category {
			continue
		}
		if len(filter.Tags) > 0 && !it.HasTag(filter.Tags...) {
			continue
		}
		if !it.Matches(filter.Search) {
			continue
		}
		items = append(items, *it)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	start, end := page.Window(len(items))
	return items[start:end], len(items), nil
}

func (repo *knowledgeRepository) UpdateItem(_ context.Context, it knowledge.Item) (knowledge.Item, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[it.ID]; !ok {
		return knowledge.Item{}, knowledge.ErrNotFound
	}
	it.Tags = append([]string{}, it.Tags...)
	repo.db.table[it.ID] = &it
	return it, nil
}
