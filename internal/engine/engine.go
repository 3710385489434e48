// Package engine wraps the Temporal client. Engine status values are
// translated into model.Status here and never leave the package raw.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/runway/internal/model"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

// Engine starts workflows and reads their status and results
type Engine struct {
	c client.Client
}

func New(c client.Client) *Engine {
	return &Engine{c: c}
}

// Client returns the underlying Temporal client
func (e *Engine) Client() client.Client {
	return e.c
}

func (e *Engine) Close() {
	e.c.Close()
}

// Start starts workflow with id on queue and returns without waiting for it.
// An id, which was already used, is rejected with model.ErrDuplicateTask.
func (e *Engine) Start(ctx context.Context, id, queue string, workflow any, in model.TaskInput) error {
	opts := client.StartWorkflowOptions{
		ID:                                       id,
		TaskQueue:                                queue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	run, err := e.c.ExecuteWorkflow(ctx, opts, workflow, in)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return fmt.Errorf("%w: %s", model.ErrDuplicateTask, id)
		}
		return fmt.Errorf("starting workflow %s: %w", id, err)
	}
	slog.DebugContext(ctx, "workflow started", "task_id", id, "task_queue", queue, "run_id", run.GetRunID())
	return nil
}

// Status returns the translated status of the latest run of id. Unknown ids
// return model.ErrUnknownTask.
func (e *Engine) Status(ctx context.Context, id string) (model.Status, error) {
	resp, err := e.c.DescribeWorkflowExecution(ctx, id, "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return model.StatusUnknown, fmt.Errorf("%w: %s", model.ErrUnknownTask, id)
		}
		return model.StatusUnknown, fmt.Errorf("describing workflow %s: %w", id, err)
	}
	return TranslateStatus(resp.GetWorkflowExecutionInfo().GetStatus()), nil
}

// Result blocks until the workflow id finishes and decodes its result into
// out.
func (e *Engine) Result(ctx context.Context, id string, out any) error {
	err := e.c.GetWorkflow(ctx, id, "").Get(ctx, out)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %s", model.ErrUnknownTask, id)
		}
		return fmt.Errorf("workflow %s: %w", id, err)
	}
	return nil
}

// TranslateStatus maps engine execution statuses onto the closed
// model.Status set
func TranslateStatus(s enumspb.WorkflowExecutionStatus) model.Status {
	switch s {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return model.StatusRunning
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return model.StatusCompleted
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT,
		enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED,
		enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return model.StatusFailed
	default:
		return model.StatusUnknown
	}
}

// DialFunc connects to Temporal, client.Dial is the production one
type DialFunc func(client.Options) (client.Client, error)

// Dial connects to Temporal, retrying cfg.ConnectAttempts times with
// cfg.Delay() between attempts. When all attempts fail the error wraps
// model.ErrEngineUnavailable and the last dial error.
func Dial(ctx context.Context, cfg model.Temporal, logger *slog.Logger) (*Engine, error) {
	return DialWith(ctx, client.Dial, cfg, logger)
}

func DialWith(ctx context.Context, dial DialFunc, cfg model.Temporal, logger *slog.Logger) (*Engine, error) {
	opts := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	}
	attempts := max(cfg.ConnectAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		logger.InfoContext(ctx, "connecting to temporal",
			"host_port", cfg.HostPort,
			"attempt", attempt,
			"attempts", attempts,
		)
		c, err := dial(opts)
		if err == nil {
			return New(c), nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(cfg.Delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %w", model.ErrEngineUnavailable, cfg.HostPort, ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", model.ErrEngineUnavailable, cfg.HostPort, attempts, lastErr)
}
