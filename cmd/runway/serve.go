package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/CZERTAINLY/runway/internal/engine"
	"github.com/CZERTAINLY/runway/internal/log"
	"github.com/CZERTAINLY/runway/internal/model"
	"github.com/CZERTAINLY/runway/internal/pipeline"
	"github.com/CZERTAINLY/runway/internal/tools"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var (
	flagStdio  bool
	flagListen string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the task tools to MCP clients",
	RunE:  doServe,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "run the pipeline workers of enabled task kinds",
	RunE:  doWorker,
}

func doServe(cmd *cobra.Command, _ []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("runway",
		slog.String("cmd", "serve"),
		slog.Int("pid", os.Getpid()),
	))

	transport := config.Server.Transport
	if flagStdio {
		transport = model.TransportStdio
	}
	listen := config.Server.Listen
	if flagListen != "" {
		listen = flagListen
	}

	eng, err := engine.Dial(ctx, config.Temporal, slog.Default())
	if err != nil {
		return err
	}
	defer eng.Close()

	s := tools.NewMCPServer(tools.New(config, eng), version())

	switch transport {
	case model.TransportStdio:
		slog.InfoContext(ctx, "serving tools", "transport", transport)
		return server.ServeStdio(s)
	default:
		return serveHTTP(ctx, server.NewStreamableHTTPServer(s), listen)
	}
}

func serveHTTP(ctx context.Context, srv *server.StreamableHTTPServer, listen string) error {
	slog.InfoContext(ctx, "serving tools", "transport", model.TransportHTTP, "listen", listen)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", listen, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		slog.InfoContext(ctx, "shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func doWorker(cmd *cobra.Command, _ []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("runway",
		slog.String("cmd", "worker"),
		slog.Int("pid", os.Getpid()),
	))

	eng, err := engine.Dial(ctx, config.Temporal, slog.Default())
	if err != nil {
		return err
	}
	defer eng.Close()

	workers := pipeline.Workers(eng.Client(), config, pipeline.NewActivities(config))
	if len(workers) == 0 {
		return errors.New("no task kind is enabled, check shell.enabled and nmap.enabled")
	}

	for i, w := range workers {
		if err := w.Start(); err != nil {
			for _, started := range workers[:i] {
				started.Stop()
			}
			return fmt.Errorf("starting worker: %w", err)
		}
	}
	slog.InfoContext(ctx, "workers started",
		"shell", config.Shell.Enabled,
		"nmap", config.Nmap.Enabled,
	)

	<-ctx.Done()
	slog.InfoContext(ctx, "stopping workers")
	for _, w := range workers {
		w.Stop()
	}
	return nil
}
