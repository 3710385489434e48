package pipeline

import (
	"errors"

	"github.com/CZERTAINLY/runway/internal/model"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ShellWorkflow validates, runs and summarizes a shell command
func ShellWorkflow(ctx workflow.Context, in model.TaskInput) (model.ShellResult, error) {
	var a *Activities
	logger := workflow.GetLogger(ctx)
	logger.Info("shell task started", "task_id", in.TaskID)

	if err := stage(ctx, ValidateOptions, a.ValidateCommand, in).Get(ctx, nil); err != nil {
		return model.ShellResult{}, err
	}

	var raw model.ExecResult
	if err := stage(ctx, ExecuteOptions, a.RunCommand, in).Get(ctx, &raw); err != nil {
		return model.ShellResult{}, executeError(err)
	}

	var res model.ShellResult
	if err := stage(ctx, StructureOptions, a.FormatOutput, raw).Get(ctx, &res); err != nil {
		return model.ShellResult{}, err
	}

	logger.Info("shell task finished", "task_id", in.TaskID, "exit_code", res.ExitCode)
	return res, nil
}

// ScanWorkflow validates the scan request, runs nmap and parses its report
func ScanWorkflow(ctx workflow.Context, in model.TaskInput) (model.ScanResult, error) {
	var a *Activities
	logger := workflow.GetLogger(ctx)
	logger.Info("scan started", "task_id", in.TaskID, "target", in.Target)

	if err := stage(ctx, ValidateOptions, a.ValidateScan, in).Get(ctx, nil); err != nil {
		return model.ScanResult{}, err
	}

	var raw model.ExecResult
	if err := stage(ctx, ExecuteOptions, a.RunScan, in).Get(ctx, &raw); err != nil {
		return model.ScanResult{}, executeError(err)
	}

	var res model.ScanResult
	if err := stage(ctx, StructureOptions, a.ParseScan, raw).Get(ctx, &res); err != nil {
		return model.ScanResult{}, err
	}

	logger.Info("scan finished", "task_id", in.TaskID, "hosts", len(res.Hosts))
	return res, nil
}

func stage(ctx workflow.Context, opts workflow.ActivityOptions, activity any, args ...any) workflow.Future {
	return workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, opts), activity, args...)
}

// executeError reports an execute stage which ran out of attempts on
// timeouts, missed heartbeats included, as an ExecutionError
func executeError(err error) error {
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return temporal.NewApplicationErrorWithCause(
			"process lost: "+timeoutErr.TimeoutType().String()+" timeout",
			model.ErrTypeExecution,
			err,
		)
	}
	return err
}
