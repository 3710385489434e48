package tools

import (
	"context"
	"errors"

	"github.com/CZERTAINLY/runway/internal/model"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const taskID = "task_id"

func (t *Tools) registerShell(s *server.MCPServer) {
	s.AddTool(mcp.NewTool(ToolStartCommand,
		mcp.WithDescription("Start a shell command in the background. Returns a task_id immediately, use check_task_status and get_task_results to follow it."),
		mcp.WithString("command", mcp.Required(), mcp.Description("Shell command, executed with sh -c")),
		mcp.WithString("label", mcp.Description("Optional human friendly label")),
	), t.StartCommand)

	s.AddTool(mcp.NewTool(ToolCheckTaskStatus,
		mcp.WithDescription("Check the status of a running or completed task."),
		mcp.WithString(taskID, mcp.Required(), mcp.Description("Task id returned by start_command")),
	), t.CheckTaskStatus)

	s.AddTool(mcp.NewTool(ToolGetTaskResults,
		mcp.WithDescription("Fetch stdout, stderr, exit code and a summary of a completed task."),
		mcp.WithString(taskID, mcp.Required(), mcp.Description("Task id returned by start_command")),
	), t.GetTaskResults)

	s.AddTool(mcp.NewTool(ToolRunQuickCommand,
		mcp.WithDescription("Run a shell command and wait for its result. For long running commands use start_command."),
		mcp.WithString("command", mcp.Required(), mcp.Description("Shell command, executed with sh -c")),
	), t.RunQuickCommand)

	s.AddTool(mcp.NewTool(ToolListRecentTasks,
		mcp.WithDescription("List the tasks started by this server with their current status."),
	), t.ListRecentTasks)
}

func commandInput(in model.TaskInput, m map[string]any) {
	m["command"] = in.Command
}

func (t *Tools) StartCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := request.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := t.shell.Start(ctx, model.TaskInput{Command: command}, request.GetString("label", ""))
	if err != nil {
		return mcp.NewToolResultError("starting command: " + err.Error()), nil
	}
	return jsonResult(map[string]any{
		taskID:    rec.TaskID,
		"status":  rec.Status,
		"message": t.shell.StartMessage(rec.TaskID),
	})
}

func (t *Tools) CheckTaskStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString(taskID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(check(taskID, t.shell.Check(ctx, id), commandInput))
}

func (t *Tools) GetTaskResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString(taskID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := t.shell.Fetch(ctx, id)
	if errors.Is(err, model.ErrNotReady) {
		return notReady(taskID, id, f.Status, err)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return fetched(taskID, f)
}

func (t *Tools) RunQuickCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := request.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := t.shell.RunBlocking(ctx, model.TaskInput{Command: command}, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return fetched(taskID, f)
}

func (t *Tools) ListRecentTasks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs := t.shell.List(ctx)
	tasks := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		tasks = append(tasks, record(taskID, rec, commandInput))
	}
	return jsonResult(map[string]any{
		"total": len(tasks),
		"tasks": tasks,
	})
}
