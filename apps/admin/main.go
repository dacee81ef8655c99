package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/smartcampus/campus/core"
	logsvc "github.com/smartcampus/campus/services/logger"
	"github.com/smartcampus/campus/storage/database"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.New("ADMIN", conf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// set up DB
	repos, err := database.Open(ctx, conf)
	errAndDie(err)

	// start CLI
	cli := newCommandLine(ctx, conf, logger, repos, os.Stdout)
	err = cli.run(os.Args)

	_ = repos.Close(context.Background())
	stop()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("admin: %v", err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
}
