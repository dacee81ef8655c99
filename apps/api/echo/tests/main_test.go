package tests

import (
	"context"
	"os"
	"testing"

	. "github.com/smartcampus/campus/apps/api/echo"
	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/knowledge"
	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/core/user"
	emailsvc "github.com/smartcampus/campus/services/email"
	googlesvc "github.com/smartcampus/campus/services/google"
	"github.com/smartcampus/campus/storage/cache"
	"github.com/smartcampus/campus/storage/database"
	inmemdb "github.com/smartcampus/campus/storage/database/inmem"
	"github.com/smartcampus/campus/tests"
)

var (
	conf      *core.Config
	db        *inmemdb.DB
	app       Server
	hub       *Hub
	blocklist cache.Blocklist

	usrRepo   user.Repository
	taskRepo  task.Repository
	itemRepo  knowledge.Repository
	notifRepo notification.Repository

	googleIdentities = map[string]googlesvc.Identity{}
)

func TestMain(m *testing.M) {
	conf = testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	validate, translator := testutil.NewValidator()
	core.ParseEmailTemplates(logger, true /* strict */)
	user.LoadCommonPasswords(logger)

	// set up DB & repos
	db = inmemdb.Open()
	repos := database.InMem(db)
	usrRepo = repos.User
	taskRepo = repos.Task
	itemRepo = repos.Knowledge
	notifRepo = repos.Notification

	ctx, cancel := context.WithCancel(context.Background())
	hub = NewHub(logger, nil)
	go hub.Run(ctx)
	blocklist = cache.NewMemoryBlocklist()

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	app = NewServer(ServerDeps{
		Conf:            conf,
		Logger:          logger,
		UserSvc:         user.NewServiceMock(usrRepo, mailSvc, logger, conf),
		TaskSvc:         task.NewService(taskRepo),
		KnowledgeSvc:    knowledge.NewService(itemRepo),
		NotificationSvc: notification.NewService(notifRepo, hub),
		Hub:             hub,
		Blocklist:       blocklist,
		GoogleVerifier:  googlesvc.NewVerifierMock(googleIdentities),
		Validate:        validate,
		Translator:      translator,
	})

	// run tests
	code := m.Run()

	// clean up
	cancel()
	_ = blocklist.Close()
	os.Exit(code)
}
