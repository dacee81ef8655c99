package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core/knowledge"
	"github.com/smartcampus/campus/core/user"
)

type knowledgeApi struct {
	svc      knowledge.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerKnowledgeAPI(g *echo.Group, session echo.MiddlewareFunc, s *server) {
	api := knowledgeApi{
		svc:      s.KnowledgeSvc,
		userSvc:  s.UserSvc,
		validate: s.Validate,
	}
	staffOnly := requireRoles(s.UserSvc, user.StaffRoles...)

	kg := g.Group("/knowledge", session)
	kg.GET("", api.list)
	kg.GET("/:id", api.get)
	kg.POST("", api.create, staffOnly)
	kg.PUT("/:id", api.update, staffOnly)
	kg.DELETE("/:id", api.disable, staffOnly)
}

// includeInactive is honored for staff only: students never see disabled items.
func (api *knowledgeApi) includeInactive(ctx echo.Context) (bool, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return false, errors.Wrap(err, "getting context user")
	}
	if !usr.IsStaff() {
		return false, nil
	}
	incl, err := boolParam(ctx, "include_inactive")
	if err != nil {
		return false, err
	}
	return incl != nil && *incl, nil
}

func (api *knowledgeApi) list(ctx echo.Context) error {
	filter := knowledge.QueryFilter{
		Category: ctx.QueryParam("category"),
		Tags:     listParam(ctx, "tag"),
		Search:   ctx.QueryParam("q"),
	}
	var err error
	if filter.IncludeInactive, err = api.includeInactive(ctx); err != nil {
		return err
	}
	page := bindPagination(ctx)

	items, total, err := api.svc.Query(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying knowledge items")
	}
	if items == nil {
		items = []knowledge.Item{}
	}
	return ctx.JSON(http.StatusOK, KnowledgeListResponse{
		PageResponse: newPageResponse(page, total),
		Items:        items,
	})
}

func (api *knowledgeApi) get(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	it, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), usr.IsStaff())
	if err != nil {
		return errors.Wrap(err, "getting knowledge item")
	}
	return ctx.JSON(http.StatusOK, it)
}

func (api *knowledgeApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data knowledge.NewItem
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	it, err := api.svc.Create(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating knowledge item")
	}
	return ctx.JSON(http.StatusCreated, it)
}

func (api *knowledgeApi) update(ctx echo.Context) error {
	var data knowledge.UpdateItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	it, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating knowledge item")
	}
	return ctx.JSON(http.StatusOK, it)
}

func (api *knowledgeApi) disable(ctx echo.Context) error {
	if err := api.svc.Disable(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "disabling knowledge item")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type KnowledgeListResponse struct {
	PageResponse
	Items []knowledge.Item `json:"items"`
}
