package main

import (
	"fmt"
	"os"

	"code.cloudfoundry.org/clock"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"

	"github.com/cloudfoundry/disk-planner/app"
)

const mainLogTag = "main"

func main() {
	logger := boshlog.NewWriterLogger(boshlog.LevelError, os.Stderr)
	defer logger.HandlePanic("Main")

	fs := boshsys.NewOsFileSystem(logger)
	runner := boshsys.NewExecCmdRunner(logger)

	planner := app.New(logger, fs, runner, app.RandomUUIDGenerator{}, clock.NewClock(), os.Stdin, os.Stdout, os.Stderr)

	err := planner.Run(os.Args[1:])
	if err != nil {
		logger.Debug(mainLogTag, "Run failed: %#v", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(app.ExitCode(err))
	}
}
