package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/starford/strata/internal/migrate"
	"github.com/starford/strata/internal/model"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Migrate the model across specification versions",
		Commands: []*cli.Command{
			migratePlanCommand(),
			migrateRunCommand(),
		},
	}
}

// currentSpecVersion resolves the model's spec version: the marker file
// wins, with the manifest as fallback for first-generation models that
// predate the marker.
func currentSpecVersion(m *model.Model) (string, error) {
	version, ok, err := migrate.ReadVersion(m.Store())
	if err != nil {
		return "", err
	}
	if ok {
		return version, nil
	}
	return m.Manifest().SpecVersion, nil
}

func migratePlanCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Show the migration steps between the current and target spec versions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to", Usage: "Target spec version", Value: migrate.LatestVersion},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(true)
			if err != nil {
				return err
			}
			from, err := currentSpecVersion(m)
			if err != nil {
				return err
			}
			summary, err := migrate.Default().Summary(from, cmd.String("to"))
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
}

func migrateRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Apply the migration steps to the model directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to", Usage: "Target spec version", Value: migrate.LatestVersion},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(true)
			if err != nil {
				return err
			}
			from, err := currentSpecVersion(m)
			if err != nil {
				return err
			}
			to := cmd.String("to")
			if err := migrate.Default().Run(m.Store(), from, to, rt.logger); err != nil {
				return err
			}
			m.Manifest().SpecVersion = to
			if err := m.SaveManifest(); err != nil {
				return err
			}
			fmt.Printf("migrated %s -> %s\n", from, to)
			return nil
		},
	}
}
