// Package tools exposes the task registries as MCP tools.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/CZERTAINLY/runway/internal/model"
	"github.com/CZERTAINLY/runway/internal/pipeline"
	"github.com/CZERTAINLY/runway/internal/registry"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool names
const (
	ToolStartCommand    = "start_command"
	ToolCheckTaskStatus = "check_task_status"
	ToolGetTaskResults  = "get_task_results"
	ToolRunQuickCommand = "run_quick_command"
	ToolListRecentTasks = "list_recent_tasks"

	ToolStartNmapScan   = "start_nmap_scan"
	ToolCheckScanStatus = "check_scan_status"
	ToolGetScanResults  = "get_scan_results"
	ToolRunQuickScan    = "run_quick_scan"
	ToolListRecentScans = "list_recent_scans"
	ToolExportScanBOM   = "export_scan_bom"
)

const QuickScanArgs = "-sT --top-ports 20"

// ShellKind describes shell command tasks
func ShellKind(queue string) registry.Kind {
	return registry.Kind{
		Kind:      model.KindShell,
		Prefix:    "task",
		TaskQueue: queue,
		Workflow:  pipeline.ShellWorkflow,
		Noun:      "Task",
		CheckTool: ToolCheckTaskStatus,
		FetchTool: ToolGetTaskResults,
	}
}

// ScanKind describes nmap scans
func ScanKind(queue string) registry.Kind {
	return registry.Kind{
		Kind:      model.KindNmap,
		Prefix:    "scan",
		TaskQueue: queue,
		Workflow:  pipeline.ScanWorkflow,
		Noun:      "Scan",
		CheckTool: ToolCheckScanStatus,
		FetchTool: ToolGetScanResults,
	}
}

// Tools holds a registry per enabled task kind. Registries of disabled
// kinds are nil.
type Tools struct {
	cfg   model.Config
	shell *registry.Registry[model.ShellResult]
	scan  *registry.Registry[model.ScanResult]
}

func New(cfg model.Config, engine registry.Engine) *Tools {
	t := &Tools{cfg: cfg}
	if cfg.Shell.Enabled {
		t.shell = registry.New[model.ShellResult](engine, ShellKind(cfg.Shell.TaskQueue))
	}
	if cfg.Nmap.Enabled {
		t.scan = registry.New[model.ScanResult](engine, ScanKind(cfg.Nmap.TaskQueue))
	}
	return t
}

func (t *Tools) Shell() *registry.Registry[model.ShellResult] {
	return t.shell
}

func (t *Tools) Scan() *registry.Registry[model.ScanResult] {
	return t.scan
}

// NewMCPServer returns a server named runway with the tools of all enabled
// kinds
func NewMCPServer(t *Tools, version string) *server.MCPServer {
	var instructions []string
	if t.shell != nil {
		instructions = append(instructions, shellInstructions)
	}
	if t.scan != nil {
		instructions = append(instructions, scanInstructions)
	}

	s := server.NewMCPServer("runway", version,
		server.WithToolCapabilities(false),
		server.WithInstructions(strings.Join(instructions, "\n")),
		server.WithRecovery(),
	)
	t.Register(s)
	return s
}

// Register adds the tools of enabled kinds to s
func (t *Tools) Register(s *server.MCPServer) {
	if t.shell != nil {
		t.registerShell(s)
	}
	if t.scan != nil {
		t.registerScan(s)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// flatten merges the JSON fields of v into base
func flatten(base map[string]any, v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	for k, val := range fields {
		base[k] = val
	}
	return base, nil
}

func check(idKey string, c registry.Check, input func(model.TaskInput, map[string]any)) map[string]any {
	ret := map[string]any{
		idKey:    c.TaskID,
		"status": c.Status,
	}
	if c.Record != nil {
		ret["label"] = c.Record.Label
		ret["started_at"] = c.Record.StartedAt.Format(time.RFC3339)
		input(c.Record.Input, ret)
	}
	ret["message"] = c.Message
	return ret
}

func record(idKey string, rec model.TaskRecord, input func(model.TaskInput, map[string]any)) map[string]any {
	ret := map[string]any{
		idKey:        rec.TaskID,
		"label":      rec.Label,
		"started_at": rec.StartedAt.Format(time.RFC3339),
		"status":     rec.Status,
	}
	input(rec.Input, ret)
	return ret
}

func fetched[R any](idKey string, f registry.Fetched[R]) (*mcp.CallToolResult, error) {
	ret, err := flatten(map[string]any{
		idKey:    f.TaskID,
		"status": model.StatusCompleted,
	}, f.Result)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return jsonResult(ret)
}

func notReady(idKey, id string, status model.Status, err error) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		idKey:    id,
		"status": status,
		"error":  err.Error(),
	})
}

const shellInstructions = `Runway runs shell commands on the worker host as Temporal workflows.

Start a command with start_command, it returns a task_id at once. Poll it with
check_task_status(task_id) and read stdout, stderr, exit code and a summary
with get_task_results(task_id) once it is COMPLETED. run_quick_command blocks
until the command ends, use it only for commands finishing in a few seconds.
list_recent_tasks shows every task started by this server.

When a new user message arrives and tasks may still be running, call
check_task_status for each of them first.

Commands run through sh -c, so pipes and redirects work. Running commands
heartbeat every 10 seconds and failed attempts are retried.
`

const scanInstructions = `Runway runs nmap scans as Temporal workflows.

Start a scan with start_nmap_scan, it returns a scan_id at once. Poll it with
check_scan_status(scan_id) and read the parsed hosts, ports, services and a
summary with get_scan_results(scan_id) once it is COMPLETED. run_quick_scan
blocks until the scan ends. list_recent_scans shows every scan started by
this server. export_scan_bom(scan_id) returns a completed scan as a
CycloneDX BOM.

When a new user message arrives and scans may still be running, call
check_scan_status for each of them first.

Useful nmap flags: -sT (TCP connect, no root), -sV (service versions),
-p 22,80,443 or -p- (ports), --top-ports N, -T4 (faster timing), -Pn (skip
host discovery). Output, input list, data directory and script argument
flags are rejected. Service version scans take minutes, prefer
start_nmap_scan for them.
`
