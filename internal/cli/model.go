package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/starford/strata/internal/migrate"
	"github.com/starford/strata/internal/model"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Create a new model directory with a manifest",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "description", Usage: "Model description"},
			&cli.StringFlag{Name: "author", Usage: "Model author"},
			&cli.StringFlag{Name: "version", Usage: "Initial model version", Value: "0.1.0"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return fmt.Errorf("init: model NAME is required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			manifest := &model.Manifest{
				Name:        name,
				Version:     cmd.String("version"),
				Description: cmd.String("description"),
				Author:      cmd.String("author"),
				SpecVersion: migrate.LatestVersion,
			}
			m, err := model.Init(rt.cfg.Model.Path, manifest)
			if err != nil {
				return err
			}
			if err := migrate.WriteVersion(m.Store(), migrate.LatestVersion); err != nil {
				return err
			}
			rt.logger.Info("model initialized",
				slog.String("name", name),
				slog.String("root", m.Root()),
				slog.String("spec_version", migrate.LatestVersion))
			return printJSON(m.Manifest())
		},
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the model manifest and layer summary",
		Action: func(_ context.Context, cmd *cli.Command) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(false)
			if err != nil {
				return err
			}
			counts := make(map[string]int, len(model.Names))
			total := 0
			for _, layer := range m.LoadedLayers() {
				counts[layer.Name()] = layer.Len()
				total += layer.Len()
			}
			return printJSON(map[string]any{
				"manifest": m.Manifest(),
				"layers":   counts,
				"elements": total,
			})
		},
	}
}

func layersCommand() *cli.Command {
	return &cli.Command{
		Name:  "layers",
		Usage: "List the fixed layers and their element counts",
		Action: func(_ context.Context, cmd *cli.Command) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(false)
			if err != nil {
				return err
			}
			for _, layer := range m.LoadedLayers() {
				fmt.Printf("%-12s %d\n", layer.Name(), layer.Len())
			}
			return nil
		},
	}
}
