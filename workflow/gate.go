package workflow

import (
	"fmt"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"

	plannererr "github.com/cloudfoundry/disk-planner/errors"
	"github.com/cloudfoundry/disk-planner/platform/disk"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 . Prompter

type Prompter interface {
	Confirm(question string) (bool, error)
}

// OperationSafetyGate stands between a planned workflow and the sequencer.
type OperationSafetyGate interface {
	// CheckScope refuses disk-only workflows on partitions and the reverse.
	CheckScope(workflow Workflow) error
	// Confirm asks once for destructive workflows and twice for
	// irreversible ones. Workflows without severity pass unasked.
	Confirm(workflow Workflow) (bool, error)
}

type operationSafetyGate struct {
	prompter Prompter
	logger   boshlog.Logger
	logTag   string
}

func NewOperationSafetyGate(prompter Prompter, logger boshlog.Logger) OperationSafetyGate {
	return operationSafetyGate{
		prompter: prompter,
		logger:   logger,
		logTag:   "OperationSafetyGate",
	}
}

func (g operationSafetyGate) CheckScope(workflow Workflow) error {
	isPartition := disk.IsPartitionName(workflow.Target)

	switch workflow.Scope {
	case ScopeDisk:
		if isPartition {
			return plannererr.NewPreconditionError(
				"'%s' is a partition; %s needs a whole disk", workflow.Target, workflow.Kind)
		}
	case ScopePartition:
		if !isPartition {
			return plannererr.NewPreconditionError(
				"'%s' is a whole disk; %s needs a partition", workflow.Target, workflow.Kind)
		}
	}

	return nil
}

func (g operationSafetyGate) Confirm(workflow Workflow) (bool, error) {
	if !workflow.IsDestructive() {
		return true, nil
	}

	g.logger.Debug(g.logTag, "Asking for %s confirmation of %s on '%s'", workflow.Severity, workflow.Kind, workflow.Target)

	question := fmt.Sprintf("%s\nTarget device: %s\nProceed?", workflow.Description, workflow.Target)
	proceed, err := g.prompter.Confirm(question)
	if err != nil {
		return false, bosherr.WrapErrorf(err, "Confirming %s on '%s'", workflow.Kind, workflow.Target)
	}
	if !proceed || workflow.Severity != SeverityIrreversible {
		return proceed, nil
	}

	final := fmt.Sprintf("FINAL WARNING: all data on %s will be lost and this cannot be undone.\nReally proceed?", workflow.Target)
	proceed, err = g.prompter.Confirm(final)
	if err != nil {
		return false, bosherr.WrapErrorf(err, "Confirming %s on '%s'", workflow.Kind, workflow.Target)
	}

	return proceed, nil
}
