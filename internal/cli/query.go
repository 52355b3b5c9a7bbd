package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/strata/internal/graph"
)

// buildTracker loads the full model and builds a fresh graph snapshot.
// Registries are never cached across commands; a stale snapshot would hide
// edits made since it was built.
func buildTracker(rt *runtime) (*graph.Tracker, error) {
	m, err := rt.openModel(false)
	if err != nil {
		return nil, err
	}
	reg := graph.NewRegistry()
	if err := reg.RegisterModel(m); err != nil {
		return nil, err
	}
	return graph.NewTracker(reg.Graph()), nil
}

func depsCommand() *cli.Command {
	return &cli.Command{
		Name:      "deps",
		Usage:     "Show what an element depends on (or what depends on it)",
		ArgsUsage: "ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "transitive", Aliases: []string{"t"}, Usage: "Follow edges transitively"},
			&cli.BoolFlag{Name: "reverse", Aliases: []string{"r"}, Usage: "Show dependents instead of dependencies"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("deps: ID is required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			tracker, err := buildTracker(rt)
			if err != nil {
				return err
			}

			var ids []string
			switch {
			case cmd.Bool("reverse") && cmd.Bool("transitive"):
				ids = tracker.TransitiveDependents(id)
			case cmd.Bool("reverse"):
				ids = tracker.Dependents(id)
			case cmd.Bool("transitive"):
				ids = tracker.TransitiveDependencies(id)
			default:
				ids = tracker.Dependencies(id)
			}
			return printJSON(ids)
		},
	}
}

func impactCommand() *cli.Command {
	return &cli.Command{
		Name:      "impact",
		Usage:     "Count and list the elements transitively affected by a change",
		ArgsUsage: "ID",
		Action: func(_ context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("impact: ID is required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			tracker, err := buildTracker(rt)
			if err != nil {
				return err
			}
			affected := tracker.TransitiveDependents(id)
			return printJSON(map[string]any{
				"id":       id,
				"radius":   len(affected),
				"affected": affected,
			})
		},
	}
}

func cyclesCommand() *cli.Command {
	return &cli.Command{
		Name:  "cycles",
		Usage: "Detect reference cycles in the model",
		Action: func(_ context.Context, cmd *cli.Command) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			tracker, err := buildTracker(rt)
			if err != nil {
				return err
			}
			cycles := tracker.DetectCycles()
			if len(cycles) == 0 {
				fmt.Println("no cycles")
				return nil
			}
			for _, c := range cycles {
				fmt.Println(strings.Join(c, " -> "))
			}
			return nil
		},
	}
}

func depthCommand() *cli.Command {
	return &cli.Command{
		Name:      "depth",
		Usage:     "Show the longest dependency chain starting at an element",
		ArgsUsage: "ID",
		Action: func(_ context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("depth: ID is required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			tracker, err := buildTracker(rt)
			if err != nil {
				return err
			}
			fmt.Println(tracker.DependencyDepth(id))
			return nil
		},
	}
}

func metricsCommand() *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "Show aggregate dependency graph metrics",
		Action: func(_ context.Context, cmd *cli.Command) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			tracker, err := buildTracker(rt)
			if err != nil {
				return err
			}
			return printJSON(tracker.Metrics())
		},
	}
}
