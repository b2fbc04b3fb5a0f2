package app

import (
	"io"
	"path/filepath"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
	boshuuid "github.com/cloudfoundry/bosh-utils/uuid"
	"github.com/gofrs/uuid"

	"github.com/cloudfoundry/disk-planner/platform/disk"
)

const scriptPrefix = "disk-planner-"

// ShellExecutor runs synthesized invocations. Commands whose arguments are
// all literals run directly; anything else (variables, scripts) goes through
// a scratch bash script that is removed afterwards.
type ShellExecutor struct {
	runner     boshsys.CmdRunner
	fs         boshsys.FileSystem
	uuidGen    boshuuid.Generator
	scratchDir string
	stdout     io.Writer
	stderr     io.Writer
	logger     boshlog.Logger
	logTag     string
}

func NewShellExecutor(
	runner boshsys.CmdRunner,
	fs boshsys.FileSystem,
	uuidGen boshuuid.Generator,
	scratchDir string,
	stdout io.Writer,
	stderr io.Writer,
	logger boshlog.Logger,
) *ShellExecutor {
	return &ShellExecutor{
		runner:     runner,
		fs:         fs,
		uuidGen:    uuidGen,
		scratchDir: scratchDir,
		stdout:     stdout,
		stderr:     stderr,
		logger:     logger,
		logTag:     "ShellExecutor",
	}
}

func (e *ShellExecutor) Execute(workflowID string, invocation disk.Invocation) (int, error) {
	if cmd, ok := invocation.(disk.Command); ok {
		if argv, literal := cmd.Argv(); literal {
			e.logger.Debug(e.logTag, "Workflow %s running %s", workflowID, cmd.String())
			return e.run(boshsys.Command{Name: cmd.Name, Args: argv})
		}
	}

	return e.runScript(workflowID, invocation)
}

func (e *ShellExecutor) runScript(workflowID string, invocation disk.Invocation) (int, error) {
	id, err := e.uuidGen.Generate()
	if err != nil {
		return -1, bosherr.WrapError(err, "Generating script name")
	}

	scriptPath := filepath.Join(e.scratchDir, scriptPrefix+id+".sh")
	contents := scriptContents(invocation)

	e.logger.Debug(e.logTag, "Workflow %s writing script '%s':\n%s", workflowID, scriptPath, contents)

	err = e.fs.WriteFileString(scriptPath, contents)
	if err != nil {
		return -1, bosherr.WrapErrorf(err, "Writing script '%s'", scriptPath)
	}

	defer func() {
		if rmErr := e.fs.RemoveAll(scriptPath); rmErr != nil {
			e.logger.Warn(e.logTag, "Removing script '%s': %s", scriptPath, rmErr.Error())
		}
	}()

	err = e.fs.Chmod(scriptPath, 0700)
	if err != nil {
		return -1, bosherr.WrapErrorf(err, "Making script '%s' executable", scriptPath)
	}

	return e.run(boshsys.Command{Name: "/bin/bash", Args: []string{scriptPath}})
}

// scriptContents keeps the header of a Script and gives a bare command line
// one of its own.
func scriptContents(invocation disk.Invocation) string {
	contents := invocation.String()
	if !strings.HasPrefix(contents, "#!") {
		contents = "#!/bin/bash\n" + contents
	}
	if !strings.HasSuffix(contents, "\n") {
		contents += "\n"
	}
	return contents
}

func (e *ShellExecutor) run(cmd boshsys.Command) (int, error) {
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	_, _, exitStatus, err := e.runner.RunComplexCommand(cmd)
	if err != nil && exitStatus <= 0 {
		return exitStatus, bosherr.WrapErrorf(err, "Running '%s'", cmd.Name)
	}

	// A non-zero exit is reported through the status; the sequencer decides
	// which statuses are acceptable.
	return exitStatus, nil
}

// RandomUUIDGenerator produces version 4 UUIDs for scratch file names.
type RandomUUIDGenerator struct{}

func (RandomUUIDGenerator) Generate() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
