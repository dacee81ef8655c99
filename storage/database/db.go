package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/knowledge"
	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/core/user"
	"github.com/smartcampus/campus/fs"
	"github.com/smartcampus/campus/storage/database/inmem"
	"github.com/smartcampus/campus/storage/database/mongodb"
	"github.com/smartcampus/campus/storage/database/postgres"
)

// Engines
const (
	EngineMongoDB  = "mongodb"
	EnginePostgres = "postgres"
	EngineInMem    = "inmem"
)

// Repositories bundles the repositories of one storage engine.
type Repositories struct {
	Engine       string
	User         user.Repository
	Task         task.Repository
	Knowledge    knowledge.Repository
	Notification notification.Repository

	// SQL is only set for the postgres engine.
	SQL   *sqlx.DB
	close func(ctx context.Context) error
}

func (r *Repositories) Close(ctx context.Context) error {
	if r.close == nil {
		return nil
	}
	return r.close(ctx)
}

// Open connects to the configured engine.
// The postgres schema is not migrated here: see Migrate.
func Open(ctx context.Context, conf *core.Config) (*Repositories, error) {
	switch conf.Database.Engine {
	case EngineMongoDB:
		db, err := mongorepos.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		return mongoRepositories(db), nil
	case EnginePostgres:
		db, err := OpenPostgres(conf)
		if err != nil {
			return nil, err
		}
		if err = ping(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Repositories{
			Engine:       EnginePostgres,
			User:         pgrepos.NewUserRepository(db),
			Task:         pgrepos.NewTaskRepository(db),
			Knowledge:    pgrepos.NewKnowledgeRepository(db),
			Notification: pgrepos.NewNotificationRepository(db),
			SQL:          db,
			close:        func(context.Context) error { return db.Close() },
		}, nil
	case EngineInMem:
		return InMem(inmemdb.Open()), nil
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}

func InMem(db *inmemdb.DB) *Repositories {
	return &Repositories{
		Engine:       EngineInMem,
		User:         inmemdb.NewUserRepository(db),
		Task:         inmemdb.NewTaskRepository(db),
		Knowledge:    inmemdb.NewKnowledgeRepository(db),
		Notification: inmemdb.NewNotificationRepository(db),
	}
}

func mongoRepositories(db *mongo.Database) *Repositories {
	return &Repositories{
		Engine:       EngineMongoDB,
		User:         mongorepos.NewUserRepository(db),
		Task:         mongorepos.NewTaskRepository(db),
		Knowledge:    mongorepos.NewKnowledgeRepository(db),
		Notification: mongorepos.NewNotificationRepository(db),
		close:        func(ctx context.Context) error { return mongorepos.Close(ctx, db) },
	}
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	usr := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		usr = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     usr,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return sqlx.Open("postgres", u.String())
}

func OpenPostgres(conf *core.Config) (*sqlx.DB, error) {
	return open(conf.Database.Name, false, conf)
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sqlx.DB, query, name string) (bool, error) {
	var found bool
	if err := db.Get(&found, query, name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return found, nil
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the postgres app user & database when missing.
func CreateIfNotExist(conf *core.Config) error {
	// connect as admin
	db, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db.DB); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf); err != nil {
		return errors.Wrap(err, "creating app user")
	}

	// create DB as app user
	appDB, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	if err = createDB(appDB, conf); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

// Migrate runs a goose command (up, down, status, redo...) against the embedded migrations.
func Migrate(db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(EnginePostgres); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.Run(command, db, "migrations", args...); err != nil {
		return errors.Wrapf(err, "running migration %q", command)
	}
	return nil
}
