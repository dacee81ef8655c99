package knowledge

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smartcampus/campus/core"
)

// Categories
const (
	CategoryInstitutional = "institutional"
	CategoryAcademic      = "academic"
	CategoryScholarship   = "scholarship"
	CategoryFinancial     = "financial"
	CategorySupport       = "support"
	CategoryPolicy        = "policy"
	CategoryGeneral       = "general"
)

var Categories = []string{
	CategoryInstitutional,
	CategoryAcademic,
	CategoryScholarship,
	CategoryFinancial,
	CategorySupport,
	CategoryPolicy,
	CategoryGeneral,
}

// Item is a knowledge base entry fed to the campus assistant.
type Item struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Question  string    `json:"question,omitempty"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedBy string    `json:"createdBy"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"` // UTC
	UpdatedAt time.Time `json:"updatedAt"` // UTC
}

// Matches reports whether the lowered `search` is a substring of the question or the content.
func (it Item) Matches(search string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(it.Question), search) || strings.Contains(strings.ToLower(it.Content), search)
}

func (it Item) HasTag(tags ...string) bool {
	for _, want := range tags {
		for _, tag := range it.Tags {
			if tag == want {
				return true
			}
		}
	}
	return false
}

// NewItem contains information needed to create a new Item.
type NewItem struct {
	Category string   `json:"category" validate:"kcategory"`
	Question string   `json:"question" validate:"max=500"`
	Content  string   `json:"content" validate:"required,notblank,max=10000"`
	Tags     []string `json:"tags" validate:"max=20,dive,max=50"`
}

func (ni *NewItem) Validate(validate *validator.Validate) error {
	ni.Category = core.CleanString(ni.Category, true /* lower */)
	ni.Question = core.CleanString(ni.Question)
	ni.Content = core.CleanString(ni.Content)
	ni.Tags = core.CleanTags(ni.Tags)
	return validate.Struct(ni)
}

// UpdateItem defines what information may be provided to modify an existing Item. Nil fields are left untouched.
type UpdateItem struct {
	Category *string  `json:"category" validate:"omitempty,kcategory"`
	Question *string  `json:"question" validate:"omitempty,max=500"`
	Content  *string  `json:"content" validate:"omitempty,max=10000"`
	Tags     []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	IsActive *bool    `json:"isActive"`
}

func (ui *UpdateItem) Validate(validate *validator.Validate) error {
	if ui.Category != nil {
		*ui.Category = core.CleanString(*ui.Category, true /* lower */)
	}
	if ui.Question != nil {
		*ui.Question = core.CleanString(*ui.Question)
	}
	if ui.Content != nil {
		*ui.Content = core.CleanString(*ui.Content)
		if *ui.Content == "" {
			return core.NewFieldError("content", "this field is required")
		}
	}
	ui.Tags = core.CleanTags(ui.Tags)
	return validate.Struct(ui)
}

func (ui UpdateItem) apply(it *Item) {
	if ui.Category != nil && *ui.Category != "" {
		it.Category = *ui.Category
	}
	if ui.Question != nil {
		it.Question = *ui.Question
	}
	if ui.Content != nil {
		it.Content = *ui.Content
	}
	if ui.Tags != nil {
		it.Tags = ui.Tags
	}
	if ui.IsActive != nil {
		it.IsActive = *ui.IsActive
	}
}

type QueryFilter struct {
	Category        string
	Tags            []string // any of
	Search          string   // full-text over question & content
	IncludeInactive bool
}

func (qf *QueryFilter) Clean() {
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Tags = core.CleanTags(qf.Tags)
	qf.Search = core.CleanString(qf.Search)
}
