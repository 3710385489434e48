package pipeline_test

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CZERTAINLY/runway/internal/model"
	"github.com/CZERTAINLY/runway/internal/pipeline"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

type WorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env  *testsuite.TestWorkflowEnvironment
	acts *pipeline.Activities
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.acts = pipeline.NewActivities(model.DefaultConfig())
	pipeline.Register(s.env, model.KindShell, s.acts)
	pipeline.Register(s.env, model.KindNmap, s.acts)
}

func (s *WorkflowSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

func (s *WorkflowSuite) errorType() string {
	err := s.env.GetWorkflowError()
	s.Require().Error(err)
	var appErr *temporal.ApplicationError
	s.Require().True(errors.As(err, &appErr), "want ApplicationError in %v", err)
	return appErr.Type()
}

func (s *WorkflowSuite) TestShell() {
	in := model.TaskInput{TaskID: "task-000000000001", Command: "echo hello"}
	s.env.OnActivity(s.acts.RunCommand, mock.Anything, in).
		Return(model.ExecResult{Stdout: "hello\n"}, nil).Once()

	s.env.ExecuteWorkflow(pipeline.ShellWorkflow, in)

	s.Require().True(s.env.IsWorkflowCompleted())
	s.Require().NoError(s.env.GetWorkflowError())
	var res model.ShellResult
	s.Require().NoError(s.env.GetWorkflowResult(&res))
	s.Require().Equal("hello\n", res.Stdout)
	s.Require().Equal(0, res.ExitCode)
	s.Require().Equal("Command exited with code 0.\n\nstdout (6 bytes):\nhello\n", res.Summary)
}

func (s *WorkflowSuite) TestShell_InvalidInputIsNotRetried() {
	var validations, executions atomic.Int32
	s.env.OnActivity(s.acts.ValidateCommand, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in model.TaskInput) error {
			validations.Add(1)
			return s.acts.ValidateCommand(ctx, in)
		})
	s.env.OnActivity(s.acts.RunCommand, mock.Anything, mock.Anything).
		Return(func(context.Context, model.TaskInput) (model.ExecResult, error) {
			executions.Add(1)
			return model.ExecResult{}, nil
		}).Maybe()

	s.env.ExecuteWorkflow(pipeline.ShellWorkflow, model.TaskInput{TaskID: "task-000000000002", Command: "   "})

	s.Require().True(s.env.IsWorkflowCompleted())
	s.Require().Equal(model.ErrTypeInvalidInput, s.errorType())
	s.Require().Equal(int32(1), validations.Load())
	s.Require().Zero(executions.Load())
}

func (s *WorkflowSuite) TestShell_ExecuteRetriedThreeTimes() {
	var executions, formats atomic.Int32
	s.env.OnActivity(s.acts.RunCommand, mock.Anything, mock.Anything).
		Return(func(context.Context, model.TaskInput) (model.ExecResult, error) {
			executions.Add(1)
			return model.ExecResult{}, temporal.NewApplicationError("spawn failed", model.ErrTypeExecution)
		})
	s.env.OnActivity(s.acts.FormatOutput, mock.Anything, mock.Anything).
		Return(func(context.Context, model.ExecResult) (model.ShellResult, error) {
			formats.Add(1)
			return model.ShellResult{}, nil
		}).Maybe()

	s.env.ExecuteWorkflow(pipeline.ShellWorkflow, model.TaskInput{TaskID: "task-000000000003", Command: "true"})

	s.Require().True(s.env.IsWorkflowCompleted())
	s.Require().Equal(model.ErrTypeExecution, s.errorType())
	s.Require().Equal(int32(pipeline.ExecuteAttempts), executions.Load())
	s.Require().Zero(formats.Load())
}

func (s *WorkflowSuite) TestShell_LostHeartbeat() {
	var executions atomic.Int32
	s.env.OnActivity(s.acts.RunCommand, mock.Anything, mock.Anything).
		Return(func(context.Context, model.TaskInput) (model.ExecResult, error) {
			executions.Add(1)
			return model.ExecResult{}, temporal.NewTimeoutError(enumspb.TIMEOUT_TYPE_HEARTBEAT, nil)
		})

	s.env.ExecuteWorkflow(pipeline.ShellWorkflow, model.TaskInput{TaskID: "task-000000000006", Command: "sleep 1d"})

	s.Require().True(s.env.IsWorkflowCompleted())
	s.Require().Equal(model.ErrTypeExecution, s.errorType())
	s.Require().Equal(int32(pipeline.ExecuteAttempts), executions.Load())

	var timeoutErr *temporal.TimeoutError
	s.Require().ErrorAs(s.env.GetWorkflowError(), &timeoutErr)
	s.Require().Equal(enumspb.TIMEOUT_TYPE_HEARTBEAT, timeoutErr.TimeoutType())
}

func (s *WorkflowSuite) TestShell_TransientFailureRecovers() {
	var executions atomic.Int32
	s.env.OnActivity(s.acts.RunCommand, mock.Anything, mock.Anything).
		Return(func(context.Context, model.TaskInput) (model.ExecResult, error) {
			if executions.Add(1) < pipeline.ExecuteAttempts {
				return model.ExecResult{}, temporal.NewApplicationError("resource busy", model.ErrTypeExecution)
			}
			return model.ExecResult{Stdout: "ok", ExitCode: 0}, nil
		})

	s.env.ExecuteWorkflow(pipeline.ShellWorkflow, model.TaskInput{TaskID: "task-000000000004", Command: "true"})

	s.Require().NoError(s.env.GetWorkflowError())
	var res model.ShellResult
	s.Require().NoError(s.env.GetWorkflowResult(&res))
	s.Require().Equal("ok", res.Stdout)
	s.Require().Equal(int32(pipeline.ExecuteAttempts), executions.Load())
}

func (s *WorkflowSuite) TestShell_StructureRetriedTwice() {
	var formats atomic.Int32
	s.env.OnActivity(s.acts.RunCommand, mock.Anything, mock.Anything).
		Return(model.ExecResult{Stdout: "x"}, nil).Once()
	s.env.OnActivity(s.acts.FormatOutput, mock.Anything, mock.Anything).
		Return(func(context.Context, model.ExecResult) (model.ShellResult, error) {
			formats.Add(1)
			return model.ShellResult{}, temporal.NewApplicationError("bug", model.ErrTypeStructuring)
		})

	s.env.ExecuteWorkflow(pipeline.ShellWorkflow, model.TaskInput{TaskID: "task-000000000005", Command: "true"})

	s.Require().Equal(model.ErrTypeStructuring, s.errorType())
	s.Require().Equal(int32(pipeline.StructureAttempts), formats.Load())
}

func (s *WorkflowSuite) TestScan() {
	xml, err := os.ReadFile("../nmap/testdata/ssh.xml")
	s.Require().NoError(err)

	in := model.TaskInput{TaskID: "scan-000000000001", Target: "127.0.0.1", Args: "-p 22"}
	s.env.OnActivity(s.acts.RunScan, mock.Anything, in).
		Return(model.ExecResult{Stdout: string(xml)}, nil).Once()

	s.env.ExecuteWorkflow(pipeline.ScanWorkflow, in)

	s.Require().NoError(s.env.GetWorkflowError())
	var res model.ScanResult
	s.Require().NoError(s.env.GetWorkflowResult(&res))
	s.Require().Len(res.Hosts, 1)
	s.Require().Equal("22/tcp (ssh)", res.Hosts[0].OpenPortsSummary)
	s.Require().Contains(res.Summary, "Open ports: 22/tcp (ssh)")
}

func (s *WorkflowSuite) TestScan_BlockedFlag() {
	var executions atomic.Int32
	s.env.OnActivity(s.acts.RunScan, mock.Anything, mock.Anything).
		Return(func(context.Context, model.TaskInput) (model.ExecResult, error) {
			executions.Add(1)
			return model.ExecResult{}, nil
		}).Maybe()

	s.env.ExecuteWorkflow(pipeline.ScanWorkflow, model.TaskInput{
		TaskID: "scan-000000000002",
		Target: "127.0.0.1",
		Args:   "-oN /tmp/x",
	})

	s.Require().Equal(model.ErrTypeInvalidInput, s.errorType())
	s.Require().Zero(executions.Load())
}

func (s *WorkflowSuite) TestScan_MalformedXML() {
	s.env.OnActivity(s.acts.RunScan, mock.Anything, mock.Anything).
		Return(model.ExecResult{Stdout: "<nmaprun><host>"}, nil).Once()

	s.env.ExecuteWorkflow(pipeline.ScanWorkflow, model.TaskInput{TaskID: "scan-000000000003", Target: "127.0.0.1"})

	s.Require().Equal(model.ErrTypeStructuring, s.errorType())
}

func TestWorkflowOf(t *testing.T) {
	t.Parallel()
	require.NotNil(t, pipeline.Workflow(model.KindShell))
	require.NotNil(t, pipeline.Workflow(model.KindNmap))
}

func TestOptions(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario  string
		given     workflow.ActivityOptions
		attempts  int32
		timeout   time.Duration
		heartbeat time.Duration
	}{
		{scenario: "validate", given: pipeline.ValidateOptions, attempts: 1, timeout: 30 * time.Second},
		{scenario: "execute", given: pipeline.ExecuteOptions, attempts: 3, timeout: 4 * time.Hour, heartbeat: 2 * time.Minute},
		{scenario: "structure", given: pipeline.StructureOptions, attempts: 2, timeout: 60 * time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.timeout, tc.given.StartToCloseTimeout)
			require.Equal(t, tc.heartbeat, tc.given.HeartbeatTimeout)
			require.NotNil(t, tc.given.RetryPolicy)
			require.Equal(t, tc.attempts, tc.given.RetryPolicy.MaximumAttempts)
			require.Contains(t, tc.given.RetryPolicy.NonRetryableErrorTypes, model.ErrTypeInvalidInput)
		})
	}
}
