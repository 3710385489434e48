package pipeline

import (
	"context"

	"github.com/CZERTAINLY/runway/internal/model"
	"github.com/CZERTAINLY/runway/internal/runner"

	"go.temporal.io/sdk/workflow"
)

// Local runs the stages of a task in process, once each, without the
// engine. Each stage gets the start-to-close deadline it has on a worker.
type Local struct {
	acts *Activities
}

func NewLocal(cfg model.Config) Local {
	acts := NewActivities(cfg).WithRunner(runner.NewRunner(cfg.Runner.Interval()))
	return Local{acts: acts}
}

func (l Local) RunShell(ctx context.Context, in model.TaskInput) (model.ShellResult, error) {
	if err := within(ctx, ValidateOptions, func(ctx context.Context) error {
		return l.acts.ValidateCommand(ctx, in)
	}); err != nil {
		return model.ShellResult{}, err
	}

	var raw model.ExecResult
	if err := within(ctx, ExecuteOptions, func(ctx context.Context) (err error) {
		raw, err = l.acts.RunCommand(ctx, in)
		return err
	}); err != nil {
		return model.ShellResult{}, err
	}

	var res model.ShellResult
	err := within(ctx, StructureOptions, func(ctx context.Context) (err error) {
		res, err = l.acts.FormatOutput(ctx, raw)
		return err
	})
	return res, err
}

func (l Local) RunScan(ctx context.Context, in model.TaskInput) (model.ScanResult, error) {
	if err := within(ctx, ValidateOptions, func(ctx context.Context) error {
		return l.acts.ValidateScan(ctx, in)
	}); err != nil {
		return model.ScanResult{}, err
	}

	var raw model.ExecResult
	if err := within(ctx, ExecuteOptions, func(ctx context.Context) (err error) {
		raw, err = l.acts.RunScan(ctx, in)
		return err
	}); err != nil {
		return model.ScanResult{}, err
	}

	var res model.ScanResult
	err := within(ctx, StructureOptions, func(ctx context.Context) (err error) {
		res, err = l.acts.ParseScan(ctx, raw)
		return err
	})
	return res, err
}

func within(ctx context.Context, opts workflow.ActivityOptions, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, opts.StartToCloseTimeout)
	defer cancel()
	return fn(ctx)
}
