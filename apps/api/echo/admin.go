package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/user"
)

var (
	errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")
	errNoPermsToSetRole = "not enough rights to set this role"
)

type adminApi struct {
	svc             user.Service
	notificationSvc notification.Service
	validate        *validator.Validate
}

func registerAdminAPI(g *echo.Group, session echo.MiddlewareFunc, s *server) {
	api := adminApi{
		svc:             s.UserSvc,
		notificationSvc: s.NotificationSvc,
		validate:        s.Validate,
	}

	ag := g.Group("/admin", session, requireRoles(s.UserSvc, user.RoleAdmin))
	ag.GET("/roles", api.queryRoles)
	ag.POST("/notifications", api.broadcast)

	ug := ag.Group("/users")
	ug.GET("", api.query)
	ug.POST("", api.create)
	ug.DELETE("", api.destroyMultiple)

	// detail endpoints
	dg := ug.Group("/:id", objectUserMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *adminApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.CanAssignRole(data.Role) {
		return core.NewFieldError("role", errNoPermsToSetRole)
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *adminApi) query(ctx echo.Context) error {
	filter := user.QueryFilter{
		Search: ctx.QueryParam("search"),
		Roles:  listParam(ctx, "role"),
	}
	var err error
	if filter.IsActive, err = boolParam(ctx, "is_active"); err != nil {
		return err
	}
	if filter.CreatedFrom, err = timeParam(ctx, "created_from"); err != nil {
		return err
	}
	if filter.CreatedTo, err = timeParam(ctx, "created_to"); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	page := bindPagination(ctx)

	users, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, UserListResponse{
		PageResponse: newPageResponse(page, total),
		Users:        users,
	})
}

func (api *adminApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *adminApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err := data.Validate(ctx.Request().Context(), usr, api.validate, api.svc); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.CanAssignRole(data.Role) {
		return core.NewFieldError("role", errNoPermsToSetRole)
	}
	// nor lock themselves out
	if usr.ID == ctxUsr.ID && data.IsActive != nil && !*data.IsActive {
		return errHttpForbidden
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *adminApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID || !ctxUsr.CanAssignRole(usr.Role) {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) destroyMultiple(ctx echo.Context) error {
	ids := listParam(ctx, "id")
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if core.StringInSlice(ctxUsr.ID, ids) {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

// broadcast notifies every active user having Role, or everybody when Role is empty.
func (api *adminApi) broadcast(ctx echo.Context) error {
	var data BroadcastRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BroadcastRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	var roles []string
	if data.Role != "" {
		roles = append(roles, data.Role)
	}
	ids, err := api.svc.ActiveUserIDs(ctx.Request().Context(), roles...)
	if err != nil {
		return errors.Wrap(err, "querying recipients")
	}
	sent, err := api.notificationSvc.Notify(ctx.Request().Context(), ids, data.NewNotification)
	if err != nil {
		return errors.Wrap(err, "notifying users")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"sent": len(sent)})
}

// objectUserMiddleware loads the User of the `:id` path param into the context object.
func objectUserMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding user by ID")
			}
			ctx.Set(contextObjectKey, usr)
			return next(ctx)
		}
	}
}

type (
	UserListResponse struct {
		PageResponse
		Users []user.User `json:"users"`
	}

	BroadcastRequest struct {
		notification.NewNotification
		Role string `json:"role" validate:"omitempty,role"`
	}
)

func (br *BroadcastRequest) Validate(validate *validator.Validate) error {
	if err := br.NewNotification.Validate(validate); err != nil {
		return err
	}
	br.Role = core.CleanString(br.Role, true /* lower */)
	return validate.Struct(br)
}
