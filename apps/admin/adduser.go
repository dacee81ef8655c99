package main

import (
	"time"

	"github.com/pkg/errors"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/user"
)

var errUnknownRole = errors.New("role must be one of student, faculty or admin")

// addUser updates or creates an active user.User with the given role.
func (cli *commandLine) addUser(name, uname, email, role, pwd string) (user.User, error) {
	ctx := cli.ctx
	repo := cli.repos.User
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	role = core.CleanString(role, true /* lower */)
	if user.RolePriority(role) == 0 {
		return user.User{}, errUnknownRole
	}

	var usr user.User
	var err error
	for _, key := range []string{uname, email} {
		if key == "" {
			continue
		}
		if usr, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: key}); err == nil {
			break
		}
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
	}

	now := time.Now().UTC()
	if usr.ID == "" {
		if err := repo.CheckUniqueness(ctx, uname, email); err != nil {
			return user.User{}, err
		}
		usr = user.User{Username: uname, Email: email, CreatedAt: now}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "setting password")
	}

	if usr.ID == "" {
		usr, err = repo.CreateUser(ctx, usr)
	} else {
		usr, err = repo.UpdateUser(ctx, usr)
	}
	if err != nil {
		return user.User{}, err
	}
	cli.printf("%s %q is now an active %s\n", usr.Name, usr.ID, usr.Role)
	return usr, nil
}
