package main

import (
	"time"

	"github.com/smartcampus/campus/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	usr, err := cli.repos.User.GetUser(cli.ctx, user.GetFilter{UsernameOrEmail: uname})
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err := cli.repos.User.UpdateUser(cli.ctx, usr); err != nil {
		return err
	}
	cli.printf("password of %q updated\n", usr.ID)
	return nil
}
