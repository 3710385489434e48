package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/CZERTAINLY/runway/internal/log"
	"github.com/CZERTAINLY/runway/internal/model"
	"github.com/CZERTAINLY/runway/internal/pipeline"
	"github.com/CZERTAINLY/runway/internal/registry"
	"github.com/CZERTAINLY/runway/internal/tools"

	"github.com/spf13/cobra"
)

var (
	flagNmapArgs string
	flagBOM      bool
)

var runCmd = &cobra.Command{
	Use:   "run -- <command>",
	Short: "run a shell command through the pipeline without the engine",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doRun,
}

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "run an nmap scan through the pipeline without the engine",
	Args:  cobra.ExactArgs(1),
	RunE:  doScan,
}

func doRun(cmd *cobra.Command, args []string) error {
	if !config.Shell.Enabled {
		return errors.New("shell tasks are disabled")
	}
	in := model.TaskInput{
		TaskID:  registry.NewID("task"),
		Command: strings.Join(args, " "),
	}
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("runway",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	))

	res, err := pipeline.NewLocal(config).RunShell(ctx, in)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func doScan(cmd *cobra.Command, args []string) error {
	if !config.Nmap.Enabled {
		return errors.New("nmap scans are disabled")
	}
	in := model.TaskInput{
		TaskID: registry.NewID("scan"),
		Target: args[0],
		Args:   config.Nmap.DefaultArgs,
	}
	if cmd.Flags().Changed("nmap-args") {
		in.Args = flagNmapArgs
	}
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("runway",
		slog.String("cmd", "scan"),
		slog.Int("pid", os.Getpid()),
	))

	res, err := pipeline.NewLocal(config).RunScan(ctx, in)
	if err != nil {
		return err
	}
	if flagBOM {
		return tools.ScanBOM(in.TaskID, res).AsJSON(os.Stdout)
	}
	return printJSON(res)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
