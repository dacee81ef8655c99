package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/core/user"
)

type taskApi struct {
	svc      task.Service
	userSvc  user.Service
	metrics  *Metrics
	validate *validator.Validate
}

// registerTaskAPI exposes the tasks of the session user. Tasks of other users do not exist, whatever the role.
func registerTaskAPI(g *echo.Group, session echo.MiddlewareFunc, s *server) {
	api := taskApi{
		svc:      s.TaskSvc,
		userSvc:  s.UserSvc,
		metrics:  s.Metrics,
		validate: s.Validate,
	}

	tg := g.Group("/tasks", session)
	tg.GET("", api.list)
	tg.POST("", api.create)
	tg.GET("/:id", api.get)
	tg.PUT("/:id", api.update)
	tg.PATCH("/:id/status", api.setStatus)
	tg.PATCH("/:id/notified", api.markNotified)
	tg.PATCH("/:id/archive", api.archive)
	tg.DELETE("/:id", api.delete)
}

func (api *taskApi) owner(ctx echo.Context) (string, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	return usr.ID, nil
}

func (api *taskApi) list(ctx echo.Context) error {
	owner, err := api.owner(ctx)
	if err != nil {
		return err
	}

	filter := task.QueryFilter{
		Statuses:   listParam(ctx, "status"),
		Priorities: listParam(ctx, "priority"),
		Search:     ctx.QueryParam("search"),
	}
	if filter.Archived, err = boolParam(ctx, "archived"); err != nil {
		return err
	}
	if filter.DeadlineFrom, err = timeParam(ctx, "from"); err != nil {
		return err
	}
	if filter.DeadlineTo, err = timeParam(ctx, "to"); err != nil {
		return err
	}

	tasks, err := api.svc.Query(ctx.Request().Context(), owner, filter)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) create(ctx echo.Context) error {
	owner, err := api.owner(ctx)
	if err != nil {
		return err
	}

	var data task.NewTask
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), owner, data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) get(ctx echo.Context) error {
	owner, err := api.owner(ctx)
	if err != nil {
		return err
	}
	t, err := api.svc.Get(ctx.Request().Context(), owner, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) update(ctx echo.Context) error {
	owner, err := api.owner(ctx)
	if err != nil {
		return err
	}

	var data task.UpdateTask
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), owner, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) setStatus(ctx echo.Context) error {
	owner, err := api.owner(ctx)
	if err != nil {
		return err
	}

	var data task.UpdateStatus
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.SetStatus(ctx.Request().Context(), owner, ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "setting task status")
	}
	return ctx.JSON(http.StatusOK, t)
}

// markNotified records that the deadline alarm of the task went off. There is no way back.
func (api *taskApi) markNotified(ctx echo.Context) error {
	owner, err := api.owner(ctx)
	if err != nil {
		return err
	}
	t, err := api.svc.MarkNotified(ctx.Request().Context(), owner, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking task as notified")
	}
	api.metrics.alarmsAcknowledged.Inc()
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) archive(ctx echo.Context) error {
	owner, err := api.owner(ctx)
	if err != nil {
		return err
	}

	var data ArchiveRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ArchiveRequest")
	}
	archived := data.Archived == nil || *data.Archived

	t, err := api.svc.SetArchived(ctx.Request().Context(), owner, ctx.Param("id"), archived)
	if err != nil {
		return errors.Wrap(err, "archiving task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) delete(ctx echo.Context) error {
	owner, err := api.owner(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), owner, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ArchiveRequest archives (default) or restores a task.
type ArchiveRequest struct {
	Archived *bool `json:"archived"`
}
