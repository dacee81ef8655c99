package client

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcampus/campus/core/notification"
	"github.com/smartcampus/campus/core/task"
	"github.com/smartcampus/campus/core/user"
)

const sessionCookie = "session"

// fakeAPI answers like the API server, recording the last request it got.
type fakeAPI struct {
	*httptest.Server
	mux      *http.ServeMux
	lastReq  *http.Request
	lastBody []byte
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{mux: http.NewServeMux()}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		f.lastReq, f.lastBody = r, body
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeAPI) client(t *testing.T) *Client {
	c, err := New(f.URL+"/api/", nil)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew(t *testing.T) {
	_, err := New("  ", nil)
	assert.Equal(t, errNoBaseURL, err)

	c, err := New("http://campus.test/api/", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://campus.test/api", c.BaseURL())
}

func TestClient_AssetURL(t *testing.T) {
	withAPI, _ := New("https://campus.test/api", nil)
	withoutAPI, _ := New("https://campus.test", nil)

	tests := []struct {
		name string
		c    *Client
		path string
		want string
	}{
		{name: "strips /api", c: withAPI, path: "/uploads/me.png", want: "https://campus.test/uploads/me.png"},
		{name: "no /api", c: withoutAPI, path: "/uploads/me.png", want: "https://campus.test/uploads/me.png"},
		{name: "relative", c: withAPI, path: "uploads/me.png", want: "https://campus.test/uploads/me.png"},
		{name: "absolute", c: withAPI, path: "https://cdn.test/me.png", want: "https://cdn.test/me.png"},
		{name: "empty", c: withAPI, path: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.AssetURL(tt.path))
		})
	}
}

func TestClient_errors(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or malformed jwt"})
	})
	api.mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"title": "this field is required", "deadline": "this field is required"})
	})
	api.mux.HandleFunc("/api/notifications", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	c := api.client(t)
	ctx := context.Background()

	_, err := c.Me(ctx)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "missing or malformed jwt", err.Error())

	_, err = c.CreateTask(ctx, task.NewTask{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, map[string]string{"title": "this field is required", "deadline": "this field is required"}, apiErr.Fields)
	assert.Equal(t, "deadline: this field is required; title: this field is required", apiErr.Message)

	_, err = c.Notifications(ctx)
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	assert.Equal(t, "upstream down", err.Error())

	t.Run("transport errors are returned unchanged", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		dead.Close()
		c, err := New(dead.URL+"/api", nil)
		require.NoError(t, err)

		_, err = c.Me(ctx)
		require.Error(t, err)
		assert.Equal(t, 0, StatusCode(err))
		var urlErr *url.Error
		assert.ErrorAs(t, err, &urlErr)
	})
}

func TestClient_keepsSessionCookie(t *testing.T) {
	api := newFakeAPI(t)
	hero := user.User{ID: "1", Name: "Hero", Role: user.RoleStudent, IsActive: true}
	api.mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		_ = json.Unmarshal(api.lastBody, &creds)
		if r.Method != http.MethodPost || creds.Username != "hero" || creds.Password != "pwd" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authentication failed"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "token", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": hero})
	})
	api.mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie(sessionCookie); err != nil || ck.Value != "token" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or malformed jwt"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": hero})
	})
	api.mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
		writeJSON(w, http.StatusOK, map[string]string{"success": "Logged out."})
	})
	c := api.client(t)
	ctx := context.Background()

	_, err := c.Me(ctx)
	require.True(t, IsUnauthorized(err))

	_, err = c.Login(ctx, Credentials{Username: "hero", Password: "lol"})
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))

	usr, err := c.Login(ctx, Credentials{Username: "hero", Password: "pwd"})
	require.NoError(t, err)
	assert.Equal(t, hero.ID, usr.ID)
	assert.Equal(t, "application/json", api.lastReq.Header.Get("Content-Type"))

	usr, err = c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, hero.Name, usr.Name)

	require.NoError(t, c.Logout(ctx))
	_, err = c.Me(ctx)
	assert.True(t, IsUnauthorized(err))
}

func TestClient_requests(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/api/tasks":
			writeJSON(w, http.StatusOK, json.RawMessage(`[]`))
		default:
			writeJSON(w, http.StatusOK, json.RawMessage(`{}`))
		}
	})
	c := api.client(t)
	ctx := context.Background()
	deadline := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		call       func() error
		wantMethod string
		wantPath   string
		wantQuery  url.Values
		wantBody   string
	}{
		{
			name: "tasks",
			call: func() error {
				archived := false
				_, err := c.Tasks(ctx, TaskFilter{Statuses: []string{"pending", "in-progress"}, Archived: &archived, From: deadline})
				return err
			},
			wantMethod: http.MethodGet, wantPath: "/api/tasks",
			wantQuery: url.Values{"status": {"pending,in-progress"}, "archived": {"false"}, "from": {"2026-06-01T08:00:00Z"}},
		},
		{
			name:       "task status",
			call:       func() error { _, err := c.SetTaskStatus(ctx, "t 1", task.StatusCompleted); return err },
			wantMethod: http.MethodPatch, wantPath: "/api/tasks/t 1/status", wantBody: `{"status":"completed"}`,
		},
		{
			name:       "task notified",
			call:       func() error { _, err := c.MarkTaskNotified(ctx, "1"); return err },
			wantMethod: http.MethodPatch, wantPath: "/api/tasks/1/notified",
		},
		{
			name:       "archive task",
			call:       func() error { _, err := c.ArchiveTask(ctx, "1", true); return err },
			wantMethod: http.MethodPatch, wantPath: "/api/tasks/1/archive", wantBody: `{"archived":true}`,
		},
		{
			name:       "delete task",
			call:       func() error { return c.DeleteTask(ctx, "1") },
			wantMethod: http.MethodDelete, wantPath: "/api/tasks/1",
		},
		{
			name: "knowledge",
			call: func() error {
				_, err := c.KnowledgeItems(ctx, KnowledgeFilter{Tags: []string{"fees"}, Query: "due", IncludeInactive: true, Pagination: Pagination{Page: 2}})
				return err
			},
			wantMethod: http.MethodGet, wantPath: "/api/knowledge",
			wantQuery: url.Values{"tag": {"fees"}, "q": {"due"}, "include_inactive": {"true"}, "page": {"2"}},
		},
		{
			name:       "read all",
			call:       func() error { _, err := c.MarkAllNotificationsRead(ctx); return err },
			wantMethod: http.MethodPatch, wantPath: "/api/notifications/read-all",
		},
		{
			name: "users",
			call: func() error {
				_, err := c.Users(ctx, UserFilter{Roles: []string{"admin"}, Ordering: []string{"-created_at", "name"}, Pagination: Pagination{Limit: 5}})
				return err
			},
			wantMethod: http.MethodGet, wantPath: "/api/admin/users",
			wantQuery: url.Values{"role": {"admin"}, "ordering": {"-created_at,name"}, "limit": {"5"}},
		},
		{
			name:       "bulk delete",
			call:       func() error { return c.DeleteUsers(ctx, "1", "2") },
			wantMethod: http.MethodDelete, wantPath: "/api/admin/users", wantQuery: url.Values{"id": {"1,2"}},
		},
		{
			name: "broadcast",
			call: func() error {
				_, err := c.Broadcast(ctx, notification.NewNotification{Title: "Hi", Message: "Hello"}, user.RoleStudent)
				return err
			},
			wantMethod: http.MethodPost, wantPath: "/api/admin/notifications",
			wantBody: `{"title":"Hi","message":"Hello","type":"","link":"","role":"student"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.call())
			assert.Equal(t, tt.wantMethod, api.lastReq.Method)
			assert.Equal(t, tt.wantPath, api.lastReq.URL.Path)
			if tt.wantQuery == nil {
				tt.wantQuery = url.Values{}
			}
			assert.Equal(t, tt.wantQuery, api.lastReq.URL.Query())
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, string(api.lastBody))
			}
		})
	}
}
