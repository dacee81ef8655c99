package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/knowledge"
	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/core/user"
	googlesvc "github.com/smartcampus/campus/services/google"
	"github.com/smartcampus/campus/storage/cache"
)

type (
	ServerDeps struct {
		Conf            *core.Config
		Logger          core.Logger
		UserSvc         user.Service
		TaskSvc         task.Service
		KnowledgeSvc    knowledge.Service
		NotificationSvc notification.Service
		Hub             *Hub
		Blocklist       cache.Blocklist
		GoogleVerifier  googlesvc.Verifier
		Metrics         *Metrics
		Validate        *validator.Validate
		Translator      ut.Translator
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	s := &server{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.Conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.Conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.Conf.Server.AllowedOrigins,
		AllowCredentials: true,
	}))
	s.app.Use(s.Metrics.middleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)

	s.app.GET("/", home)

	api := s.app.Group("/api")
	session := sessionMiddleware(middleware.JWTWithConfig(newJWTConfig(s.Conf)), s.UserSvc, s.Blocklist)

	registerAuthAPI(api, session, s)
	registerTaskAPI(api, session, s)
	registerKnowledgeAPI(api, session, s)
	registerNotificationAPI(api, session, s)
	registerAdminAPI(api, session, s)
}

func (s *server) Start() {
	s.Logger.Info("API listening on " + s.Conf.Server.Host)
	if err := s.app.Start(s.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Smart Campus API!")
}
