package main

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/smartcampus/campus/storage/database"
)

var gooseRunFunc = database.Migrate // mockable

var errNoSQL = errors.New("migrations only apply to the postgres engine")

func (cli *commandLine) migrate(args []string) error {
	if cli.repos.SQL == nil {
		return errNoSQL
	}
	return runMigration(cli.repos.SQL.DB, args)
}

func runMigration(db *sql.DB, args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(db, args[0], arguments...)
}
