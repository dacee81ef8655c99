package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/user"
)

const (
	contextTokenKey  = "sessionToken"
	contextUserKey   = "user"
	contextObjectKey = "object"

	tokenAudience = "campus"
)

// newJWTConfig reads the session token from the session cookie.
func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
		TokenLookup:   "cookie:" + conf.Server.SessionCookie,
	}
}

// Claims represents the session claims transmitted via a JWT.
// StandardClaims.Id (jti) identifies the session, for revocation.
type Claims struct {
	jwt.StandardClaims
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	// OrigIat is the issue time of the first token of the session, kept across refreshes.
	OrigIat int64 `json:"oriat,omitempty"`
}

func NewClaims(usr user.User, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:    usr.Name,
		Role:    usr.Role,
		OrigIat: now.Unix(),
	}
}

func (c Claims) ExpiresAtTime() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

func (c Claims) OrigIssuedAt() int64 {
	if c.OrigIat == 0 {
		return c.IssuedAt
	}
	return c.OrigIat
}

// GenerateToken generates a signed JWT token string representing the session Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// SessionCookie wraps a session token into the HttpOnly cookie the API reads it from.
func SessionCookie(conf *core.Config, token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     conf.Server.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   conf.Server.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func clearSessionCookie(ctx echo.Context, conf *core.Config) {
	cookie := SessionCookie(conf, "", time.Unix(0, 0))
	cookie.MaxAge = -1
	ctx.SetCookie(cookie)
}

// startSession issues a new session token for usr and sets the session cookie.
func startSession(ctx echo.Context, usr user.User, conf *core.Config) error {
	claims := NewClaims(usr, conf)
	token, err := GenerateToken(claims, conf)
	if err != nil {
		return err
	}
	ctx.SetCookie(SessionCookie(conf, token, claims.ExpiresAtTime()))
	ctx.Set(contextUserKey, usr)
	return nil
}

func authenticate(ctx echo.Context, uname, pwd string, svc user.Service) (user.User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx.Request().Context(), uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx.Request().Context(), usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}
