package echoapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/user"
)

type notificationApi struct {
	svc      notification.Service
	userSvc  user.Service
	hub      *Hub
	upgrader websocket.Upgrader
}

func registerNotificationAPI(g *echo.Group, session echo.MiddlewareFunc, s *server) {
	api := notificationApi{
		svc:     s.NotificationSvc,
		userSvc: s.UserSvc,
		hub:     s.Hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(s.Conf),
		},
	}

	ng := g.Group("/notifications", session)
	ng.GET("", api.list)
	ng.PATCH("/read-all", api.markAllRead)
	ng.PATCH("/:id/read", api.markRead)
	if s.Hub != nil {
		ng.GET("/ws", api.subscribe)
	}
}

func (api *notificationApi) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.List(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.MarkRead(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification as read")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	updated, err := api.svc.MarkAllRead(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "marking all notifications as read")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"updated": updated})
}

// subscribe upgrades the request to a websocket receiving the session user's new notifications as JSON.
func (api *notificationApi) subscribe(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already answered the client
		return nil
	}
	api.hub.serve(conn, usr.ID)
	return nil
}

// checkOrigin accepts requests without Origin (non-browser clients) and the CORS allowed origins.
func checkOrigin(conf *core.Config) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range conf.Server.AllowedOrigins {
			if allowed == "*" || strings.EqualFold(allowed, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
