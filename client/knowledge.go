package client

import (
	"context"
	"net/url"

	"github.com/sendgrid/rest"

	"github.com/smartcampus/campus/core/knowledge"
)

type KnowledgeFilter struct {
	Categories []string
	Tags       []string // any of
	Query      string   // full-text search over question & content
	// IncludeInactive is only honored for faculty & admins.
	IncludeInactive bool
	Pagination
}

func (f KnowledgeFilter) query() url.Values {
	q := make(url.Values)
	setList(q, "category", f.Categories)
	setList(q, "tag", f.Tags)
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.IncludeInactive {
		q.Set("include_inactive", "true")
	}
	f.Pagination.encode(q)
	return q
}

type KnowledgePage struct {
	Page
	Items []knowledge.Item `json:"items"`
}

func (c *Client) KnowledgeItems(ctx context.Context, filter KnowledgeFilter) (KnowledgePage, error) {
	var page KnowledgePage
	err := c.do(ctx, rest.Get, "/knowledge", filter.query(), nil, &page)
	return page, err
}

func (c *Client) knowledgeCall(ctx context.Context, method rest.Method, path string, in interface{}) (knowledge.Item, error) {
	var it knowledge.Item
	if err := c.do(ctx, method, path, nil, in, &it); err != nil {
		return knowledge.Item{}, err
	}
	return it, nil
}

func (c *Client) KnowledgeItem(ctx context.Context, id string) (knowledge.Item, error) {
	return c.knowledgeCall(ctx, rest.Get, "/knowledge/"+escape(id), nil)
}

func (c *Client) CreateKnowledgeItem(ctx context.Context, ni knowledge.NewItem) (knowledge.Item, error) {
	return c.knowledgeCall(ctx, rest.Post, "/knowledge", ni)
}

func (c *Client) UpdateKnowledgeItem(ctx context.Context, id string, ui knowledge.UpdateItem) (knowledge.Item, error) {
	return c.knowledgeCall(ctx, rest.Put, "/knowledge/"+escape(id), ui)
}

// DisableKnowledgeItem soft-deletes the item.
func (c *Client) DisableKnowledgeItem(ctx context.Context, id string) error {
	return c.do(ctx, rest.Delete, "/knowledge/"+escape(id), nil, nil, nil)
}
