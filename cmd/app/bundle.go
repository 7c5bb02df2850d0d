package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/jstcode/internal"
	"github.com/starford/jstcode/internal/bundler"
	"github.com/starford/jstcode/internal/deps"
	"github.com/starford/jstcode/internal/importer"
	"github.com/starford/jstcode/internal/preview"
)

func bundleCommand() *cli.Command {
	return &cli.Command{
		Name:      "bundle",
		Usage:     "Build a project folder once and write the preview output",
		ArgsUsage: "DIR",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output file (default: stdout)",
			},
			&cli.BoolFlag{
				Name:  "html",
				Usage: "Wrap a script bundle in the preview host document",
			},
			&cli.StringFlag{
				Name:  "entry",
				Usage: "Entry file (default: resolved from the project layout)",
			},
		},
		Action: runBundle,
	}
}

func runBundle(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("bundle: project folder is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))

	files, err := importer.FromDir(dir, cfg.Import.Limits())
	if err != nil {
		return fmt.Errorf("bundle: %w", err)
	}
	entry, ok := bundler.ResolveEntry(files, cmd.String("entry"))
	if !ok {
		return fmt.Errorf("bundle: no entry point in %s", dir)
	}

	engine := bundler.NewEngine(logger,
		bundler.WithEngineCDN(cfg.Preview.CDNBase),
		bundler.WithInitTimeout(cfg.Bundler.InitTimeout),
	)
	if err := engine.Init(); err != nil {
		return fmt.Errorf("bundle: %w", err)
	}

	res := engine.Build(ctx, bundler.Request{Entry: entry, Files: files, Manifest: deps.Infer(files)})
	if !res.OK {
		loc := res.File
		if loc != "" && res.Line > 0 {
			loc = fmt.Sprintf("%s:%d:%d", res.File, res.Line, res.Column)
		}
		if loc != "" {
			return fmt.Errorf("bundle: %s failed: %s: %s", res.Stage, loc, res.Message)
		}
		return fmt.Errorf("bundle: %s failed: %s", res.Stage, res.Message)
	}
	logger.Info("bundle: built",
		slog.String("entry", res.Entry),
		slog.String("format", string(res.Format)),
		slog.Duration("took", res.Duration))

	return writeResult(res, cfg, cmd.String("out"), cmd.Bool("html"))
}

// writeResult writes the raw bundle, or a standalone preview document
// when html is set or the project is a set of static pages.
func writeResult(res bundler.Result, cfg *internal.Config, out string, html bool) error {
	data := []byte(res.Bundle)
	var err error
	switch {
	case res.Format == bundler.FormatPages:
		data, err = preview.PagesDocument(res, cfg.Preview.Title)
	case html:
		data, err = preview.HostDocument(cfg.Preview.Title, res.Bundle, cfg.Preview.CDNBase)
	}
	if err != nil {
		return fmt.Errorf("bundle: render: %w", err)
	}

	if out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(out, data, 0o644)
}
