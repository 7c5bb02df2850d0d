package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/starford/jstcode/internal"
	"github.com/starford/jstcode/internal/mcpserver"
)

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the project tools over the Model Context Protocol",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Usage:   "Transport: stdio, http or sse",
				Value:   mcpserver.TransportStdio,
				Sources: cli.EnvVars("MCP_TRANSPORT"),
			},
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the http and sse transports",
				Value:   "8081",
				Sources: cli.EnvVars("MCP_PORT"),
			},
		},
		Action: runMCP,
	}
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// stdout carries the stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	slog.SetDefault(logger)

	sess, err := internal.NewSession(logger, cfg)
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}
	sess.Workspace.Start(ctx)

	ctx, cancel := context.WithCancel(ctx)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sess.Engine.Init(); err != nil {
			logger.Error("mcp: toolchain unavailable", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		return sess.Workspace.Run(gCtx)
	})

	transport := cmd.String("transport")
	addr := ":" + cmd.String("port")
	logger.Info("mcp: serving", slog.String("transport", transport), slog.String("address", addr))

	serveErr := mcpserver.New(sess.Workspace, version).Serve(transport, addr)
	cancel()
	if err := g.Wait(); err != nil {
		logger.Warn("mcp: background loop", slog.String("error", err.Error()))
	}
	if err := sess.Close(); err != nil {
		logger.Warn("mcp: close", slog.String("error", err.Error()))
	}
	if serveErr != nil {
		return fmt.Errorf("mcp: %w", serveErr)
	}
	return nil
}
