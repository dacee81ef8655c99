package knowledge

import (
	"context"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core"
)

var (
	// errors
	ErrNotFound = errors.New("knowledge item not found")

	categoryTag  = "kcategory"
	categoryText = "category must be one of: " + strings.Join(Categories, ", ")
)

// InitValidators registers the knowledge validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnumValidation(validate, translator, categoryTag, categoryText, Categories...)
}

type (
	Repository interface {
		CreateItem(ctx context.Context, it Item) (Item, error)
		GetItem(ctx context.Context, id string) (Item, error)
		// QueryItems returns the requested page of items matching filter, newest first, with the total count.
		QueryItems(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Item, int, error)
		UpdateItem(ctx context.Context, it Item) (Item, error)
	}

	Service interface {
		Create(ctx context.Context, creator string, ni NewItem) (Item, error)
		// Get hides inactive items unless includeInactive.
		Get(ctx context.Context, id string, includeInactive bool) (Item, error)
		Query(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Item, int, error)
		Update(ctx context.Context, id string, ui UpdateItem) (Item, error)
		// Disable soft-deletes the item: it stays stored with isActive=false.
		Disable(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, creator string, ni NewItem) (Item, error) {
	now := time.Now().UTC()
	it := Item{
		Category:  ni.Category,
		Question:  ni.Question,
		Content:   ni.Content,
		Tags:      ni.Tags,
		CreatedBy: creator,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if it.Category == "" {
		it.Category = CategoryGeneral
	}
	if it.Tags == nil {
		it.Tags = []string{}
	}
	return svc.repo.CreateItem(ctx, it)
}

func (svc *service) Get(ctx context.Context, id string, includeInactive bool) (Item, error) {
	it, err := svc.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if !it.IsActive && !includeInactive {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Item, int, error) {
	filter.Clean()
	page.Clean()
	return svc.repo.QueryItems(ctx, filter, page)
}

func (svc *service) Update(ctx context.Context, id string, ui UpdateItem) (Item, error) {
	it, err := svc.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	ui.apply(&it)
	it.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateItem(ctx, it)
}

func (svc *service) Disable(ctx context.Context, id string) error {
	inactive := false
	_, err := svc.Update(ctx, id, UpdateItem{IsActive: &inactive})
	return err
}
