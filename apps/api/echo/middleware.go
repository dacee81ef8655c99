package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core/user"
	"github.com/smartcampus/campus/storage/cache"
)

// sessionMiddleware authenticates the request through jwtMw, then rejects revoked sessions
// and sessions whose user was deleted or deactivated since the token was issued.
func sessionMiddleware(jwtMw echo.MiddlewareFunc, svc user.Service, blocklist cache.Blocklist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMw(func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}

			revoked, err := blocklist.IsRevoked(ctx.Request().Context(), claims.Id)
			if err != nil {
				return errors.Wrap(err, "checking session revocation")
			}
			if revoked {
				return errSessionEnded
			}

			usr, err := getContextUser(ctx, svc, claims)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errSessionEnded
				}
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			return next(ctx)
		})
	}
}

// requireRoles lets through the session users having one of roles. No roles: any session user.
func requireRoles(svc user.Service, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if len(roles) == 0 || usr.HasRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
