package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sync"
	"syscall"

	"golang.org/x/term"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/user"
	"github.com/smartcampus/campus/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	ctx    context.Context
	conf   *core.Config
	logger core.Logger
	repos  *database.Repositories
	out    io.Writer
}

func newCommandLine(ctx context.Context, conf *core.Config, logger core.Logger, repos *database.Repositories, out io.Writer) *commandLine {
	return &commandLine{
		ctx:    ctx,
		conf:   conf,
		logger: logger,
		repos:  repos,
		out:    &lockedWriter{w: out},
	}
}

// lockedWriter serializes the writes of the watch loops.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  adduser -name NAME -username USERNAME -email EMAIL -role ROLE - create or update an active user\n")
	cli.printf("  resetpassword -username USERNAME|EMAIL - reset user's password\n")
	cli.printf("  migrate COMMAND [ARGS...] - run a goose command against the postgres database\n")
	cli.printf("  watch -url API_URL -username USERNAME|EMAIL - ring task alarms & count unread notifications\n")
}

func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name. Defaults to the username.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRole := addUserCmd.String("role", user.RoleAdmin, "One of student, faculty or admin.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	watchCmd := flag.NewFlagSet("watch", flag.ExitOnError)
	watchURL := watchCmd.String("url", "", "The API base URL, e.g. http://localhost:8000/api. Defaults to $SMARTCAMPUS_API_URL.")
	watchUname := watchCmd.String("username", "", "The username or email to log in with. The password will be prompted next.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		_, err = cli.addUser(*addUserName, *addUserUname, *addUserEmail, *addUserRole, pwd)
		return err

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printf("Usage: migrate up|up-by-one|up-to|down|down-to|redo|reset|status|version|create|fix [ARGS...]\n")
			return errHelp
		}
		return cli.migrate(args[2:])

	case "watch":
		if err := watchCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *watchUname == "" {
			watchCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(watchCmd)
		if err != nil {
			return err
		}
		return cli.watch(cli.ctx, *watchURL, *watchUname, pwd)

	default:
		cli.printUsage()
		return errHelp
	}
}
