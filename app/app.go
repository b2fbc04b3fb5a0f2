package app

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"code.cloudfoundry.org/clock"
	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
	boshuuid "github.com/cloudfoundry/bosh-utils/uuid"
	sigar "github.com/cloudfoundry/gosigar"

	"github.com/cloudfoundry/disk-planner/journal"
	"github.com/cloudfoundry/disk-planner/platform/disk"
	"github.com/cloudfoundry/disk-planner/workflow"
)

type App interface {
	Setup(config Config) error
	Run(args []string) error
}

type app struct {
	logger  boshlog.Logger
	fs      boshsys.FileSystem
	runner  boshsys.CmdRunner
	uuidGen boshuuid.Generator
	clock   clock.Clock
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	logTag  string

	config      Config
	synthesizer disk.Synthesizer
	inventory   disk.DeviceInventoryParser
	freeSpace   disk.FreeSpaceTableParser
	sectorSizes disk.SectorSizeSource
	unmounter   disk.Unmounter
	rereader    disk.PartitionTableRereader
	planner     workflow.Planner
	registry    workflow.DeviceRegistry
	refresher   *InventoryCache
	journal     journal.Journal

	options Options
}

// Options are the persistent command line flags.
type Options struct {
	ConfigPath string
	Yes        bool
	DryRun     bool
}

func New(
	logger boshlog.Logger,
	fs boshsys.FileSystem,
	runner boshsys.CmdRunner,
	uuidGen boshuuid.Generator,
	clock clock.Clock,
	in io.Reader,
	out io.Writer,
	errOut io.Writer,
) App {
	return &app{
		logger:  logger,
		fs:      fs,
		runner:  runner,
		uuidGen: uuidGen,
		clock:   clock,
		in:      in,
		out:     out,
		errOut:  errOut,
		logTag:  "App",
		journal: journal.NewNopJournal(),
	}
}

func (app *app) Setup(config Config) error {
	level, err := boshlog.Levelify(config.LogLevel)
	if err != nil {
		return bosherr.WrapError(err, "Parsing log level")
	}

	app.config = config
	app.logger = boshlog.NewWriterLogger(level, app.errOut)

	queryRunner := NewTimeoutRunner(app.runner, config.QueryTimeout)

	typeDetector := disk.NewBlkidDetector(queryRunner)
	tableReader := disk.NewPartedTableReader(queryRunner, app.logger)
	app.sectorSizes = disk.NewBlockdevSectorSizeSource(queryRunner, config.DefaultSectorSize, app.logger)
	spaceProbe := workflow.NewSigarSpaceProbe(&sigar.ConcreteSigar{})

	app.inventory = disk.NewLsblkInventoryParser(queryRunner, app.logger)
	app.freeSpace = disk.NewFreeSpaceTableParser(queryRunner, typeDetector, app.logger)
	app.unmounter = disk.NewLinuxUnmounter(app.runner, app.mountsSearcher(queryRunner), config.Unmount.Timeout, app.logger)
	app.rereader = disk.NewPartitionTableRereader(app.runner, app.logger)
	app.synthesizer = disk.NewSynthesizer(config.SynthesizerOptions())
	app.registry = workflow.NewDeviceRegistry()
	app.refresher = NewInventoryCache(app.inventory, app.logger)

	app.planner = workflow.NewPlanner(
		app.synthesizer,
		app.inventory,
		tableReader,
		app.sectorSizes,
		typeDetector,
		spaceProbe,
		config.RefreshPolicy(),
		app.logger,
	)

	err = app.journal.Close()
	if err != nil {
		app.logger.Warn(app.logTag, "Closing previous journal: %s", err.Error())
	}

	if config.Journal.Path == "" {
		app.journal = journal.NewNopJournal()
		return nil
	}

	app.journal, err = journal.NewSQLiteJournal(app.fs, config.Journal.Path, app.logger)
	if err != nil {
		return bosherr.WrapError(err, "Opening journal")
	}

	return nil
}

func (app *app) mountsSearcher(runner boshsys.CmdRunner) disk.MountsSearcher {
	if app.fs.FileExists(disk.ProcMountsPath) {
		return disk.NewProcMountsSearcher(app.fs)
	}

	app.logger.Warn(app.logTag, "%s is not available, listing mounts with the mount command", disk.ProcMountsPath)
	return disk.NewCmdMountsSearcher(runner)
}

func (app *app) Run(args []string) error {
	defer func() {
		if err := app.journal.Close(); err != nil {
			app.logger.Warn(app.logTag, "Closing journal: %s", err.Error())
		}
	}()

	cmd := app.rootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(app.in)
	cmd.SetOut(app.out)
	cmd.SetErr(app.errOut)

	return cmd.Execute()
}

func (app *app) prompter() workflow.Prompter {
	if app.options.Yes {
		return YesPrompter{}
	}
	return NewTerminalPrompter(app.in, app.out)
}

// runWorkflow takes a planned workflow through confirmation and execution
// and records the outcome in the journal.
func (app *app) runWorkflow(w workflow.Workflow) error {
	gate := workflow.NewOperationSafetyGate(app.prompter(), app.logger)

	if app.options.DryRun {
		err := gate.CheckScope(w)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.out, "%s\n\n%s\n", w.Description, w.Invocation) //nolint:errcheck
		return nil
	}

	renderer := NewStatusRenderer(app.out)
	executor := NewShellExecutor(app.runner, app.fs, app.uuidGen, app.config.ScratchDir, renderer.Bypass(), renderer.Bypass(), app.logger)

	sequencer := workflow.NewOperationSequencer(
		w,
		app.unmounter,
		app.rereader,
		executor,
		app.refresher,
		app.registry,
		app.clock,
		app.config.SequencerOptions(),
		app.logger,
	)
	sequencer.OnStateChanged(func(state workflow.State) {
		renderer.Render(w, state)
	})

	err := sequencer.Begin()
	if err != nil {
		return err
	}

	confirmed, err := sequencer.Confirm(gate)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Fprintln(app.out, "Cancelled.") //nolint:errcheck
		return nil
	}

	startedAt := app.clock.Now()

	renderer.Start()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	stopWatching := make(chan struct{})
	go app.cancelOnInterrupt(sequencer, interrupts, stopWatching)

	err = sequencer.Start()
	if err != nil {
		signal.Stop(interrupts)
		close(stopWatching)
		renderer.Stop()
		return err
	}

	result := sequencer.Wait()

	signal.Stop(interrupts)
	close(stopWatching)
	renderer.Stop()

	app.record(w, result, startedAt)

	return result.Err
}

func (app *app) cancelOnInterrupt(sequencer workflow.OperationSequencer, interrupts <-chan os.Signal, stop <-chan struct{}) {
	for {
		select {
		case <-interrupts:
			err := sequencer.Cancel()
			if err != nil {
				app.logger.Warn(app.logTag, "Ignoring interrupt: %s", err.Error())
			}
		case <-stop:
			return
		}
	}
}

func (app *app) record(w workflow.Workflow, result workflow.Result, startedAt time.Time) {
	reason := ""
	if result.Err != nil {
		reason = result.Err.Error()
	}

	err := app.journal.Record(journal.Entry{
		ID:          w.ID,
		Kind:        string(w.Kind),
		Target:      w.Target,
		Description: w.Description,
		FinalState:  string(result.State),
		Reason:      reason,
		StartedAt:   startedAt,
		FinishedAt:  app.clock.Now(),
	})
	if err != nil {
		app.logger.Warn(app.logTag, "Recording workflow '%s' in the journal: %s", w.ID, err.Error())
	}
}
