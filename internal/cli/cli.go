// Package cli wires the strata command tree: model lifecycle, element
// mutation, dependency queries, changesets, spec-version migration, and the
// element search index. Commands print structured results to stdout; logs
// go to stderr as JSON.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/strata/internal"
	"github.com/starford/strata/internal/model"
	pkgconfig "github.com/starford/strata/pkg/config"
)

// New builds the root command.
func New() *cli.Command {
	return &cli.Command{
		Name:  "strata",
		Usage: "Build, query, and evolve a multi-layer architecture model",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config/config.yaml",
				Sources: cli.EnvVars("STRATA_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "Model root directory (overrides config)",
				Sources: cli.EnvVars("STRATA_MODEL_PATH"),
			},
		},
		Commands: []*cli.Command{
			initCommand(),
			infoCommand(),
			layersCommand(),
			elementCommand(),
			depsCommand(),
			impactCommand(),
			cyclesCommand(),
			depthCommand(),
			metricsCommand(),
			changesetCommand(),
			migrateCommand(),
			searchCommand(),
			syncCommand(),
			watchCommand(),
		},
	}
}

// runtime carries the resolved configuration and logger into command
// actions.
type runtime struct {
	cfg    *internal.Config
	logger *slog.Logger
}

// setup loads the configuration (falling back to defaults when the file is
// absent) and initializes the JSON logger.
func setup(cmd *cli.Command) (*runtime, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfPresent(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if p := cmd.String("model"); p != "" {
		cfg.Model.Path = p
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	return &runtime{cfg: cfg, logger: logger}, nil
}

// openModel loads the model at the configured root.
func (r *runtime) openModel(lazy bool) (*model.Model, error) {
	return model.Load(r.cfg.Model.Path, model.Options{LazyLoad: lazy})
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
