package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/user"
	googlesvc "github.com/smartcampus/campus/services/google"
	"github.com/smartcampus/campus/storage/cache"
)

const (
	passwordResetRequested = "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."
	passwordResetDone = "Password has been reset with the new password."
	loggedOut         = "Logged out."
)

var errRefreshExpired = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")

type authApi struct {
	conf       *core.Config
	logger     core.Logger
	svc        user.Service
	blocklist  cache.Blocklist
	google     googlesvc.Verifier
	metrics    *Metrics
	validate   *validator.Validate
	translator ut.Translator
}

func registerAuthAPI(g *echo.Group, session echo.MiddlewareFunc, s *server) {
	api := authApi{
		conf:       s.Conf,
		logger:     s.Logger,
		svc:        s.UserSvc,
		blocklist:  s.Blocklist,
		google:     s.GoogleVerifier,
		metrics:    s.Metrics,
		validate:   s.Validate,
		translator: s.Translator,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/google", api.googleLogin)
	ag.POST("/logout", api.logout)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.GET("/me", api.me, session)
	ag.PUT("/profile", api.updateProfile, session)
	ag.POST("/refresh", api.refresh, session)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := authenticate(ctx, data.Username, data.Password, api.svc)
	api.metrics.login("password", err)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	if err = startSession(ctx, usr, api.conf); err != nil {
		return errors.Wrap(err, "starting session")
	}
	return ctx.JSON(http.StatusOK, UserResponse{User: usr})
}

// googleLogin signs in the existing account owning the email of a verified Google ID token.
func (api *authApi) googleLogin(ctx echo.Context) error {
	var data GoogleLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GoogleLoginRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	usr, err := api.googleUser(ctx, data.Token)
	api.metrics.login("google", err)
	if err != nil {
		return err
	}
	if usr, err = api.svc.SetLastLogin(ctx.Request().Context(), usr); err != nil {
		return errors.Wrap(err, "setting lastLogin")
	}
	if err = startSession(ctx, usr, api.conf); err != nil {
		return errors.Wrap(err, "starting session")
	}
	return ctx.JSON(http.StatusOK, UserResponse{User: usr})
}

func (api *authApi) googleUser(ctx echo.Context, token string) (user.User, error) {
	id, err := api.google.Verify(ctx.Request().Context(), token)
	if err != nil {
		return user.User{}, errors.Wrap(err, "verifying google token")
	}
	usr, err := api.svc.LinkGoogleAccount(ctx.Request().Context(), id.Email, id.GoogleID)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrNotFound:
			return user.User{}, errAuthenticationFailed
		case user.ErrInactiveAccount:
			return user.User{}, errAccountDeactivated
		}
		return user.User{}, errors.Wrap(err, "linking google account")
	}
	return usr, nil
}

// logout always succeeds: the session cookie is cleared and, when it still holds a valid token, the token is revoked.
func (api *authApi) logout(ctx echo.Context) error {
	if cookie, err := ctx.Cookie(api.conf.Server.SessionCookie); err == nil && cookie.Value != "" {
		claims := new(Claims)
		token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
			}
			return []byte(api.conf.SecretKey), nil
		})
		if err == nil && token.Valid && claims.Id != "" {
			if err = api.blocklist.Revoke(ctx.Request().Context(), claims.Id, claims.ExpiresAtTime()); err != nil {
				return errors.Wrap(err, "revoking session")
			}
		}
	}
	clearSessionCookie(ctx, api.conf)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: loggedOut})
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, UserResponse{User: usr})
}

func (api *authApi) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, UserResponse{User: usr})
}

// refresh swaps the session token for a fresh one, as long as the session started
// less than JWTRefreshExpirationDelta ago.
func (api *authApi) refresh(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	usr, err := getContextUser(ctx, api.svc, claims)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	origIssuedAt := time.Unix(claims.OrigIssuedAt(), 0)
	if time.Now().After(origIssuedAt.Add(api.conf.Server.JWTRefreshExpirationDelta)) {
		return errRefreshExpired
	}

	newClaims := NewClaims(usr, api.conf)
	newClaims.OrigIat = claims.OrigIssuedAt()
	token, err := GenerateToken(newClaims, api.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	if err = api.blocklist.Revoke(ctx.Request().Context(), claims.Id, claims.ExpiresAtTime()); err != nil {
		return errors.Wrap(err, "revoking previous session")
	}
	ctx.SetCookie(SessionCookie(api.conf, token, newClaims.ExpiresAtTime()))
	return ctx.JSON(http.StatusOK, UserResponse{User: usr})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetRequested})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetDone})
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	GoogleLoginRequest struct {
		Token string `json:"token" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	UserResponse struct {
		User user.User `json:"user"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
