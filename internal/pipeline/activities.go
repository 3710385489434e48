package pipeline

import (
	"context"
	"log/slog"

	"github.com/CZERTAINLY/runway/internal/log"
	"github.com/CZERTAINLY/runway/internal/model"
	"github.com/CZERTAINLY/runway/internal/nmap"
	"github.com/CZERTAINLY/runway/internal/runner"
	"github.com/CZERTAINLY/runway/internal/shell"
	"github.com/CZERTAINLY/runway/internal/validate"

	"go.temporal.io/sdk/activity"
)

// Activities hold the stage implementations of both task kinds. Methods are
// registered with the Temporal worker by name, a nil *Activities is enough
// to reference them from workflow code.
type Activities struct {
	runner      runner.Runner
	interpreter string
	scanner     nmap.Scanner
}

// NewActivities returns activities heartbeating into the Temporal activity
// context.
func NewActivities(cfg model.Config) *Activities {
	return &Activities{
		runner:      runner.NewRunner(cfg.Runner.Interval()).WithHeartbeat(activity.RecordHeartbeat),
		interpreter: cfg.Shell.Shell,
		scanner:     nmap.NewScanner().WithNmapBinary(cfg.Nmap.Binary),
	}
}

// WithRunner returns a copy using r for the execute stage
func (a *Activities) WithRunner(r runner.Runner) *Activities {
	ret := *a
	ret.runner = r
	return &ret
}

func stageContext(ctx context.Context, in model.TaskInput, stage string) context.Context {
	return log.ContextAttrs(ctx,
		slog.String("task_id", in.TaskID),
		slog.String("stage", stage),
	)
}

// ValidateCommand is the validate stage of the shell kind
func (a *Activities) ValidateCommand(ctx context.Context, in model.TaskInput) error {
	ctx = stageContext(ctx, in, "validate")
	if err := validate.Command(in); err != nil {
		slog.WarnContext(ctx, "rejected", "error", err)
		return appError(err)
	}
	return nil
}

// RunCommand runs the command through the configured shell
func (a *Activities) RunCommand(ctx context.Context, in model.TaskInput) (model.ExecResult, error) {
	ctx = stageContext(ctx, in, "execute")
	path, args := shell.Argv(a.interpreter, in.Command)
	res, err := a.runner.Run(ctx, runner.Command{
		Path: path,
		Args: args,
		Note: "command running for task " + in.TaskID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "command failed", "error", err)
		return model.ExecResult{}, appError(err)
	}
	return res.ExecResult(), nil
}

// FormatOutput is the structure stage of the shell kind
func (a *Activities) FormatOutput(ctx context.Context, raw model.ExecResult) (model.ShellResult, error) {
	return shell.Format(raw), nil
}

// ValidateScan is the validate stage of the nmap kind
func (a *Activities) ValidateScan(ctx context.Context, in model.TaskInput) error {
	ctx = stageContext(ctx, in, "validate")
	if _, err := validate.Scan(in); err != nil {
		slog.WarnContext(ctx, "rejected", "error", err)
		return appError(err)
	}
	return nil
}

// RunScan runs nmap with XML output to stdout. The input is checked and
// tokenized again, so an attempt never depends on the validate stage's result.
func (a *Activities) RunScan(ctx context.Context, in model.TaskInput) (model.ExecResult, error) {
	ctx = stageContext(ctx, in, "execute")
	tokens, err := validate.Scan(in)
	if err != nil {
		return model.ExecResult{}, appError(err)
	}
	res, err := a.runner.Run(ctx, a.scanner.Command(in.Target, tokens))
	if err != nil {
		slog.ErrorContext(ctx, "scan failed", "error", err)
		return model.ExecResult{}, appError(err)
	}
	return res.ExecResult(), nil
}

// ParseScan is the structure stage of the nmap kind
func (a *Activities) ParseScan(ctx context.Context, raw model.ExecResult) (model.ScanResult, error) {
	res, err := nmap.Parse(raw.Stdout)
	if err != nil {
		slog.ErrorContext(ctx, "parsing nmap output", "error", err, "stdout_bytes", len(raw.Stdout))
		return model.ScanResult{}, appError(err)
	}
	return res, nil
}
