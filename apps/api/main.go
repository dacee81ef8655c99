package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/smartcampus/campus/apps/api/echo"
	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/knowledge"
	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/core/user"
	emailsvc "github.com/smartcampus/campus/services/email"
	googlesvc "github.com/smartcampus/campus/services/google"
	logsvc "github.com/smartcampus/campus/services/logger"
	"github.com/smartcampus/campus/services/scheduler"
	"github.com/smartcampus/campus/storage/cache"
	"github.com/smartcampus/campus/storage/database"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.New("API", conf)
	dbLogger := logsvc.New("DB", conf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up DB
	repos, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer closeCancel()
		if err = repos.Close(closeCtx); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()
	if repos.SQL != nil {
		if err = database.Migrate(repos.SQL.DB, "up"); err != nil {
			dbLogger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
		}
	}

	blocklist, err := cache.New(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up cache: %v", err), err)
	}
	defer func() { _ = blocklist.Close() }()

	// metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := echoapi.NewMetrics(registry)

	hub := echoapi.NewHub(logger, metrics)
	go hub.Run(ctx)

	// set up services
	usrSvc := user.NewService(repos.User, emailsvc.NewService(conf, logger), logger, conf)
	taskSvc := task.NewService(repos.Task)
	knowledgeSvc := knowledge.NewService(repos.Knowledge)
	notificationSvc := notification.NewService(repos.Notification, hub)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q, storage %q", conf.Build, repos.Engine))
	defer logger.Info("Application stopped")

	validate, translator := newValidator()

	core.ParseEmailTemplates(logger, false)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Jobs

	sched := scheduler.New(logger)
	hk := housekeeping{conf: conf, logger: logger, tasks: taskSvc, notifier: notificationSvc}
	if err = hk.schedule(sched); err != nil {
		logger.Fatal(fmt.Sprintf("scheduling jobs: %v", err), err)
	}
	sched.Start()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - prometheus scrape endpoint.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("storage").Set(repos.Engine)
	expvar.Publish("notification_subscribers", expvar.Func(func() interface{} { return hub.Subscribers() }))

	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			UserSvc:         usrSvc,
			TaskSvc:         taskSvc,
			KnowledgeSvc:    knowledgeSvc,
			NotificationSvc: notificationSvc,
			Hub:             hub,
			Blocklist:       blocklist,
			GoogleVerifier:  googlesvc.NewVerifier(conf),
			Metrics:         metrics,
			Validate:        validate,
			Translator:      translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests and jobs a deadline for completion
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err = sched.Stop(shutdownCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop jobs gracefully: %v", err), err)
		}

		// asking listener to shutdown and shed load
		if err = server.Shutdown(shutdownCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}

		// close the websockets
		cancel()
	}
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	task.InitValidators(validate, translator)
	knowledge.InitValidators(validate, translator)
	notification.InitValidators(validate, translator)
	return validate, translator
}
