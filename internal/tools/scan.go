package tools

import (
	"bytes"
	"context"
	"errors"

	"github.com/CZERTAINLY/runway/internal/bom"
	"github.com/CZERTAINLY/runway/internal/model"
	"github.com/CZERTAINLY/runway/internal/nmap"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const scanID = "scan_id"

func (t *Tools) registerScan(s *server.MCPServer) {
	s.AddTool(mcp.NewTool(ToolStartNmapScan,
		mcp.WithDescription("Start a background nmap scan. Returns a scan_id immediately, use check_scan_status and get_scan_results to follow it."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Host, IP address or CIDR to scan, e.g. scanme.nmap.org or 192.168.1.0/24")),
		mcp.WithString("nmap_args", mcp.Description("nmap options"), mcp.DefaultString(t.cfg.Nmap.DefaultArgs)),
		mcp.WithString("label", mcp.Description("Optional human friendly label")),
	), t.StartNmapScan)

	s.AddTool(mcp.NewTool(ToolCheckScanStatus,
		mcp.WithDescription("Check the status of a running or completed scan."),
		mcp.WithString(scanID, mcp.Required(), mcp.Description("Scan id returned by start_nmap_scan")),
	), t.CheckScanStatus)

	s.AddTool(mcp.NewTool(ToolGetScanResults,
		mcp.WithDescription("Fetch the parsed result of a completed scan: hosts, open ports, services, OS guesses, script output and a summary."),
		mcp.WithString(scanID, mcp.Required(), mcp.Description("Scan id returned by start_nmap_scan")),
	), t.GetScanResults)

	s.AddTool(mcp.NewTool(ToolRunQuickScan,
		mcp.WithDescription("Run a fast nmap scan and wait for its result. For longer scans use start_nmap_scan."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Host, IP address or CIDR to scan")),
		mcp.WithString("nmap_args", mcp.Description("nmap options"), mcp.DefaultString(QuickScanArgs)),
	), t.RunQuickScan)

	s.AddTool(mcp.NewTool(ToolListRecentScans,
		mcp.WithDescription("List the scans started by this server with their current status."),
	), t.ListRecentScans)

	s.AddTool(mcp.NewTool(ToolExportScanBOM,
		mcp.WithDescription("Export a completed scan as a CycloneDX 1.6 BOM with a component per host and port."),
		mcp.WithString(scanID, mcp.Required(), mcp.Description("Scan id returned by start_nmap_scan")),
	), t.ExportScanBOM)
}

func scanInput(in model.TaskInput, m map[string]any) {
	m["target"] = in.Target
	m["nmap_args"] = in.Args
}

func (t *Tools) StartNmapScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := request.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := model.TaskInput{
		Target: target,
		Args:   request.GetString("nmap_args", t.cfg.Nmap.DefaultArgs),
	}
	rec, err := t.scan.Start(ctx, in, request.GetString("label", ""))
	if err != nil {
		return mcp.NewToolResultError("starting scan: " + err.Error()), nil
	}
	return jsonResult(map[string]any{
		scanID:    rec.TaskID,
		"status":  rec.Status,
		"message": t.scan.StartMessage(rec.TaskID),
	})
}

func (t *Tools) CheckScanStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString(scanID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(check(scanID, t.scan.Check(ctx, id), scanInput))
}

func (t *Tools) GetScanResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString(scanID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := t.scan.Fetch(ctx, id)
	if errors.Is(err, model.ErrNotReady) {
		return notReady(scanID, id, f.Status, err)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return fetched(scanID, f)
}

func (t *Tools) RunQuickScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := request.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := model.TaskInput{
		Target: target,
		Args:   request.GetString("nmap_args", QuickScanArgs),
	}
	f, err := t.scan.RunBlocking(ctx, in, "Quick scan of "+target)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return fetched(scanID, f)
}

func (t *Tools) ListRecentScans(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs := t.scan.List(ctx)
	scans := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		scans = append(scans, record(scanID, rec, scanInput))
	}
	return jsonResult(map[string]any{
		"total": len(scans),
		"scans": scans,
	})
}

func (t *Tools) ExportScanBOM(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString(scanID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := t.scan.Fetch(ctx, id)
	if errors.Is(err, model.ErrNotReady) {
		return notReady(scanID, id, f.Status, err)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var buf bytes.Buffer
	if err := ScanBOM(id, f.Result).AsJSON(&buf); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// ScanBOM returns a BOM builder filled with the hosts and ports of res
func ScanBOM(id string, res model.ScanResult) *bom.Builder {
	compos, deps := nmap.Components(res)
	return bom.NewBuilder(id).
		AppendComponents(compos...).
		AppendDependencies(deps...).
		Property("kind", string(model.KindNmap)).
		Property("nmap_args", res.ScanInfo.Args).
		Property("scan_started", res.ScanInfo.StartTime)
}
