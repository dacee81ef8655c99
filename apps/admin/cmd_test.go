package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/core/user"
	"github.com/smartcampus/campus/storage/database"
	inmemdb "github.com/smartcampus/campus/storage/database/inmem"
	"github.com/smartcampus/campus/tests"
)

// safeBuffer is read by the tests while the watch loops write to it.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setup(t *testing.T) (*commandLine, *database.Repositories, *safeBuffer) {
	conf := testutil.NewConfig()
	repos := database.InMem(inmemdb.Open())
	out := &safeBuffer{}
	return newCommandLine(context.Background(), conf, testutil.NewLogger(conf), repos, out), repos, out
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_help(t *testing.T) {
	cli, _, out := setup(t)
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate: no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "watch: no username", args: []string{"watch", "-url", "http://localhost/api"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
	assert.Contains(t, out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)
	defer func(orig func(*sql.DB, string, ...string) error) { gooseRunFunc = orig }(gooseRunFunc)

	var gotCommand string
	var gotArgs []string
	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		gotCommand, gotArgs = command, args
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	t.Run("in-memory engine", func(t *testing.T) {
		assert.Equal(t, errNoSQL, cli.run([]string{"admin", "migrate", "up"}))
	})

	tests := []cliTest{
		{name: "unknown subcommand", args: []string{"lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"up"}},
		{name: "up-to", args: []string{"up-to", "2"}},
		{name: "down-to", args: []string{"down-to", "1"}},
		{name: "status", args: []string{"status"}},
		{name: "create", args: []string{"create", "add_courses", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, runMigration(nil, tt.args))
			assert.Equal(t, tt.args[0], gotCommand)
			assert.Equal(t, tt.args[1:], gotArgs)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, repos, _ := setup(t)
	ctx := context.Background()
	existing := testutil.CreateUser(t, repos.User, "Awe", "awe", "awe@test.cd", "mdr", user.RoleStudent, false)

	tests := []cliTest{
		{name: "no identifier", args: []string{"adduser", "-name", "Nope"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "new"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"adduser", "-username", "new", "-role", "janitor"}, pwd: "pwd", wantErr: errUnknownRole},
		{name: "matched by email", args: []string{"adduser", "-username", "other", "-email", "AWE@test.cd"}, pwd: "pwd"},
		{name: "create", args: []string{"adduser", "-username", " Boss ", "-email", "boss@test.cd", "-name", "The Boss"}, pwd: "pwd"},
		{name: "promote existing", args: []string{"adduser", "-email", "awe@test.cd", "-role", "faculty"}, pwd: "new-pwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(tt.pwd)
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	boss, err := repos.User.GetUser(ctx, user.GetFilter{UsernameOrEmail: "boss"})
	require.NoError(t, err)
	assert.Equal(t, "The Boss", boss.Name)
	assert.Equal(t, user.RoleAdmin, boss.Role, "admin by default")
	assert.True(t, boss.IsActive)
	assert.NoError(t, boss.CheckPassword("pwd"))

	awe, err := repos.User.GetUser(ctx, user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, "Awe", awe.Name, "name kept")
	assert.Equal(t, user.RoleFaculty, awe.Role)
	assert.True(t, awe.IsActive, "reactivated")
	assert.NoError(t, awe.CheckPassword("new-pwd"))

	// "matched by email" updated the existing account
	_, err = repos.User.GetUser(ctx, user.GetFilter{UsernameOrEmail: "other"})
	assert.Equal(t, user.ErrNotFound, err)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, repos, _ := setup(t)
	usr := testutil.CreateUser(t, repos.User, "User", "awe", "awe@test.cd", "mdr", user.RoleStudent, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(tt.pwd)
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	refreshed, err := repos.User.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

// fakeAPI serves just enough of the API for the watch loops.
func fakeAPI(t *testing.T, tasks []task.Task, notifs notification.List) (*httptest.Server, *sync.Map) {
	calls := &sync.Map{}
	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "pwd" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]string{"error": "authentication failed"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "token", Path: "/"})
		writeJSON(w, map[string]interface{}{"user": user.User{ID: "1", Name: "Hero", Role: user.RoleStudent}})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		calls.Store("logout", true)
		writeJSON(w, map[string]string{"success": "Logged out."})
	})
	mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		calls.Store("tasks?"+r.URL.RawQuery, true)
		writeJSON(w, tasks)
	})
	mux.HandleFunc("/api/tasks/", func(w http.ResponseWriter, r *http.Request) {
		calls.Store(r.Method+" "+r.URL.Path, true)
		writeJSON(w, task.Task{ID: strings.Split(r.URL.Path, "/")[3], Notified: true})
	})
	mux.HandleFunc("/api/notifications", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, notifs)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, calls
}

func Test_commandLine_watch(t *testing.T) {
	due := task.Task{
		ID:             "42",
		Title:          "Submit essay",
		Deadline:       time.Now().Add(-time.Second),
		Status:         task.StatusPending,
		AlarmSound:     task.DefaultAlarmSound,
		IsAlarmEnabled: true,
	}
	notifs := notification.List{Notifications: []notification.Notification{{ID: "1"}, {ID: "2", IsRead: true}}}
	srv, calls := fakeAPI(t, []task.Task{due}, notifs)

	t.Run("bad credentials", func(t *testing.T) {
		cli, _, _ := setup(t)
		mockPassword("lol")
		err := cli.run([]string{"admin", "watch", "-url", srv.URL + "/api", "-username", "hero"})
		assert.Error(t, err)
	})

	t.Run("rings & counts", func(t *testing.T) {
		cli, _, out := setup(t)
		ctx, cancel := context.WithCancel(context.Background())
		cli.ctx = ctx
		mockPassword("pwd")

		done := make(chan error)
		go func() { done <- cli.run([]string{"admin", "watch", "-url", srv.URL + "/api", "-username", "hero"}) }()

		require.Eventually(t, func() bool {
			return strings.Contains(out.String(), "Submit essay is due")
		}, 5*time.Second, 50*time.Millisecond, out.String())
		assert.Contains(t, out.String(), "watching as Hero (student)")
		assert.Contains(t, out.String(), "1 unread notification(s)")
		assert.Contains(t, out.String(), "[42] ringing digital_alarm")
		require.Eventually(t, func() bool {
			_, ok := calls.Load("PATCH /api/tasks/42/notified")
			return ok
		}, 2*time.Second, 50*time.Millisecond)
		_, ok := calls.Load("tasks?archived=false")
		assert.True(t, ok, "only live tasks")

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watch did not return after cancel")
		}
		assert.Contains(t, out.String(), "[42] alarm stopped")
		_, ok = calls.Load("logout")
		assert.True(t, ok, "logged out")
	})
}
