package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/starford/strata/internal/changeset"
)

func changesetCommand() *cli.Command {
	return &cli.Command{
		Name:    "changeset",
		Aliases: []string{"cs"},
		Usage:   "Stage, apply, and revert batches of element edits",
		Commands: []*cli.Command{
			changesetCreateCommand(),
			changesetAddCommand(),
			changesetListCommand(),
			changesetShowCommand(),
			changesetApplyCommand(),
			changesetRevertCommand(),
		},
	}
}

func changesetCreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a new draft changeset",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "description", Usage: "Changeset description"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return fmt.Errorf("changeset create: NAME is required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(true)
			if err != nil {
				return err
			}
			cs, err := changeset.NewManager(m.Store()).Create(name, cmd.String("description"))
			if err != nil {
				return err
			}
			return printJSON(cs)
		},
	}
}

func changesetAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Append a change to a changeset",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Usage: "Change type: add, update, or delete", Required: true},
			&cli.StringFlag{Name: "element", Usage: "Element id", Required: true},
			&cli.StringFlag{Name: "layer", Usage: "Layer name", Required: true},
			&cli.StringFlag{Name: "before", Usage: "Prior element state or fields as a JSON object"},
			&cli.StringFlag{Name: "after", Usage: "New element state or fields as a JSON object"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return fmt.Errorf("changeset add: NAME is required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(true)
			if err != nil {
				return err
			}

			before, err := parseStateFlag(cmd.String("before"))
			if err != nil {
				return fmt.Errorf("changeset add: parse before: %w", err)
			}
			after, err := parseStateFlag(cmd.String("after"))
			if err != nil {
				return fmt.Errorf("changeset add: parse after: %w", err)
			}

			mgr := changeset.NewManager(m.Store())
			cs, err := mgr.Load(name)
			if err != nil {
				return err
			}
			c := cs.AddChange(changeset.Type(cmd.String("type")), cmd.String("element"), cmd.String("layer"), before, after)
			if err := mgr.Save(cs); err != nil {
				return err
			}
			return printJSON(c)
		},
	}
}

func changesetListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored changesets",
		Action: func(_ context.Context, cmd *cli.Command) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(true)
			if err != nil {
				return err
			}
			all, err := changeset.NewManager(m.Store()).List()
			if err != nil {
				return err
			}
			for _, cs := range all {
				fmt.Printf("%-24s %-8s %d change(s)\n", cs.Name, cs.Status, len(cs.Changes))
			}
			return nil
		},
	}
}

func changesetShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a changeset's changes and status",
		ArgsUsage: "NAME",
		Action: func(_ context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return fmt.Errorf("changeset show: NAME is required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(true)
			if err != nil {
				return err
			}
			cs, err := changeset.NewManager(m.Store()).Load(name)
			if err != nil {
				return err
			}
			return printJSON(cs)
		},
	}
}

func changesetApplyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "Apply a changeset to the model",
		ArgsUsage: "NAME",
		Action: func(_ context.Context, cmd *cli.Command) error {
			return runBatch(cmd, "apply")
		},
	}
}

func changesetRevertCommand() *cli.Command {
	return &cli.Command{
		Name:      "revert",
		Usage:     "Revert a previously applied changeset",
		ArgsUsage: "NAME",
		Action: func(_ context.Context, cmd *cli.Command) error {
			return runBatch(cmd, "revert")
		},
	}
}

// runBatch executes apply or revert with the shared persistence convention:
// the model is saved only when every change succeeded, so a partial run
// never reaches disk.
func runBatch(cmd *cli.Command, op string) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("changeset %s: NAME is required", op)
	}
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	m, err := rt.openModel(false)
	if err != nil {
		return err
	}

	mgr := changeset.NewManager(m.Store())
	var res *changeset.Result
	if op == "apply" {
		res, err = mgr.Apply(m, name)
	} else {
		res, err = mgr.Revert(m, name)
	}
	if err != nil {
		return err
	}
	if err := printJSON(res); err != nil {
		return err
	}
	if res.Failed > 0 {
		rt.logger.Warn("changeset run had failures; model not persisted",
			slog.String("changeset", name),
			slog.Int("applied", res.Applied),
			slog.Int("failed", res.Failed))
		return fmt.Errorf("changeset %s: %d of %d changes failed", op, res.Failed, res.Applied+res.Failed)
	}
	return m.Save()
}

// parseStateFlag decodes an optional JSON object flag.
func parseStateFlag(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
