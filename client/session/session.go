// Package session holds who is logged in, for the lifetime of one client.
package session

import (
	"context"
	"sync"

	"github.com/smartcampus/campus/client"
	"github.com/smartcampus/campus/core/user"
)

type State int

const (
	// Loading until the first CheckAuth resolves.
	Loading State = iota
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return "unknown"
}

// AuthAPI is the part of *client.Client a Session drives.
type AuthAPI interface {
	Me(ctx context.Context) (user.User, error)
	Login(ctx context.Context, creds client.Credentials) (user.User, error)
	GoogleLogin(ctx context.Context, idToken string) (user.User, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, data user.UpdateProfile) (user.User, error)
}

var _ AuthAPI = (*client.Client)(nil)

// Snapshot is a consistent view of a Session. User is only set when Authenticated.
type Snapshot struct {
	State State
	User  user.User
}

func (s Snapshot) Authenticated() bool { return s.State == Authenticated }

// Session is safe for concurrent use.
type Session struct {
	api AuthAPI

	mu        sync.RWMutex
	state     State
	usr       user.User
	listeners []func(Snapshot)
}

func New(api AuthAPI) *Session {
	return &Session{api: api, state: Loading}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{State: s.state, User: s.usr}
}

// OnChange registers fn, called after every state or user change with the new snapshot.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) set(state State, usr user.User) {
	s.mu.Lock()
	s.state = state
	s.usr = usr
	s.unlockAndNotify()
}

// unlockAndNotify releases s.mu, then calls the listeners outside of the lock.
func (s *Session) unlockAndNotify() {
	snap := Snapshot{State: s.state, User: s.usr}
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// CheckAuth asks the server who is logged in. Any failure, network included, leaves the session Anonymous.
func (s *Session) CheckAuth(ctx context.Context) Snapshot {
	usr, err := s.api.Me(ctx)
	if err != nil {
		s.set(Anonymous, user.User{})
	} else {
		s.set(Authenticated, usr)
	}
	return s.Snapshot()
}

// On failure, Login returns the call error untouched and leaves the session as it was.
func (s *Session) Login(ctx context.Context, creds client.Credentials) (user.User, error) {
	usr, err := s.api.Login(ctx, creds)
	if err != nil {
		return user.User{}, err
	}
	s.set(Authenticated, usr)
	return usr, nil
}

func (s *Session) GoogleLogin(ctx context.Context, idToken string) (user.User, error) {
	usr, err := s.api.GoogleLogin(ctx, idToken)
	if err != nil {
		return user.User{}, err
	}
	s.set(Authenticated, usr)
	return usr, nil
}

// Logout waits for the server, then forgets the user whatever the outcome. The call error is returned.
func (s *Session) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	s.set(Anonymous, user.User{})
	return err
}

// UpdateUser merges the non-zero fields of partial into the held user, without calling the server.
// It reports false when nobody is logged in.
func (s *Session) UpdateUser(partial user.User) bool {
	s.mu.Lock()
	if s.state != Authenticated {
		s.mu.Unlock()
		return false
	}

	usr := &s.usr
	merge(&usr.Name, partial.Name)
	merge(&usr.Username, partial.Username)
	merge(&usr.Email, partial.Email)
	merge(&usr.Role, partial.Role)
	merge(&usr.Department, partial.Department)
	merge(&usr.Phone, partial.Phone)
	merge(&usr.Bio, partial.Bio)
	merge(&usr.Avatar, partial.Avatar)
	if !partial.UpdatedAt.IsZero() {
		usr.UpdatedAt = partial.UpdatedAt
	}
	if !partial.LastLogin.IsZero() {
		usr.LastLogin = partial.LastLogin
	}
	s.unlockAndNotify()
	return true
}

// UpdateProfile replaces the held user with the server's answer.
func (s *Session) UpdateProfile(ctx context.Context, data user.UpdateProfile) (user.User, error) {
	usr, err := s.api.UpdateProfile(ctx, data)
	if err != nil {
		return user.User{}, err
	}
	s.set(Authenticated, usr)
	return usr, nil
}

func merge(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}
