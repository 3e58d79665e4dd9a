package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/starford/cpbuild/internal"
	pkgconfig "github.com/starford/cpbuild/pkg/config"
)

type runner func(ctx context.Context, opts ...internal.Option) error

// loadConfig reads the config file when present, applies flag overrides and
// validates the result.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadIfExists(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found && cmd.IsSet("config") {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	if cmd.IsSet("input-dir") {
		cfg.Paths.Input = cmd.String("input-dir")
	}
	if cmd.IsSet("output-dir") {
		cfg.Paths.Output = cmd.String("output-dir")
	}
	if cmd.IsSet("template-dir") {
		cfg.Paths.Templates = cmd.String("template-dir")
	}
	if cmd.IsSet("static-dir") {
		cfg.Paths.Static = cmd.String("static-dir")
	}
	if cmd.IsSet("baseurl") {
		cfg.Site.BaseURL = cmd.String("baseurl")
	}
	if cmd.IsSet("show-progress") {
		cfg.Build.ShowProgress = cmd.Bool("show-progress")
	}
	if cmd.IsSet("force") {
		cfg.Build.Force = cmd.Bool("force")
	}
	if cmd.IsSet("workers") {
		cfg.Build.Workers = int(cmd.Int("workers"))
	}

	if err := pkgconfig.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func action(run runner) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := run(ctx, internal.WithConfig(cfg)); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		return nil
	}
}

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		slog.Warn("failed to set GOMAXPROCS", slog.String("error", err.Error()))
	}

	cmd := &cli.Command{
		Name:  "cpbuild",
		Usage: "Build an HTML site from Markdown articles with math, code and heading anchors",
		// Without a subcommand, behave like build.
		Action: action(internal.Build),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "input-dir",
				Aliases: []string{"i"},
				Usage:   "Directory with Markdown sources",
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory for generated HTML",
			},
			&cli.StringFlag{
				Name:  "template-dir",
				Usage: "Directory with page templates",
			},
			&cli.StringFlag{
				Name:  "static-dir",
				Usage: "Directory copied over the output after a build",
			},
			&cli.StringFlag{
				Name:  "baseurl",
				Usage: "Value of &baseurl& in templates (default: <output-dir>/)",
			},
			&cli.BoolFlag{
				Name:  "show-progress",
				Usage: "Log build progress",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Rebuild every page even when unchanged",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of pages converted in parallel",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Convert every Markdown source once",
				Action: action(internal.Build),
			},
			{
				Name:   "serve",
				Usage:  "Build, then serve the site and the HTTP API and rebuild on change",
				Action: action(internal.Serve),
			},
			{
				Name:   "mcp",
				Usage:  "Build, then serve MCP tools over stdio",
				Action: action(internal.ServeMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
