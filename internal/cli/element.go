package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/strata/internal/model"
)

func elementCommand() *cli.Command {
	return &cli.Command{
		Name:  "element",
		Usage: "Add, inspect, update, and remove elements",
		Commands: []*cli.Command{
			elementAddCommand(),
			elementShowCommand(),
			elementUpdateCommand(),
			elementRemoveCommand(),
			elementListCommand(),
		},
	}
}

func elementAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add an element to a layer",
		ArgsUsage: "LAYER ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Usage: "Element type", Required: true},
			&cli.StringFlag{Name: "name", Usage: "Element name", Required: true},
			&cli.StringFlag{Name: "description", Usage: "Element description"},
			&cli.StringFlag{Name: "properties", Usage: "Properties as a JSON object"},
			&cli.StringSliceFlag{Name: "ref", Usage: "Reference as TARGET:TYPE (repeatable)"},
			&cli.StringSliceFlag{Name: "rel", Usage: "Relationship as PREDICATE:TARGET (repeatable)"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			layerName, id := cmd.Args().Get(0), cmd.Args().Get(1)
			if layerName == "" || id == "" {
				return fmt.Errorf("element add: LAYER and ID are required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(true)
			if err != nil {
				return err
			}

			e := &model.Element{
				ID:          id,
				Type:        cmd.String("type"),
				Name:        cmd.String("name"),
				Description: cmd.String("description"),
				Properties:  map[string]any{},
			}
			if raw := cmd.String("properties"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &e.Properties); err != nil {
					return fmt.Errorf("element add: parse properties: %w", err)
				}
			}
			for _, spec := range cmd.StringSlice("ref") {
				target, refType, err := splitPair(spec)
				if err != nil {
					return fmt.Errorf("element add: ref %q: %w", spec, err)
				}
				e.References = append(e.References, model.Reference{Source: id, Target: target, Type: refType})
			}
			for _, spec := range cmd.StringSlice("rel") {
				predicate, target, err := splitPair(spec)
				if err != nil {
					return fmt.Errorf("element add: rel %q: %w", spec, err)
				}
				e.Relationships = append(e.Relationships, model.Relationship{Predicate: predicate, Target: target})
			}

			if err := m.AddElement(layerName, e); err != nil {
				return err
			}
			if err := m.Save(); err != nil {
				return err
			}
			return printJSON(e)
		},
	}
}

func elementShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show an element by id",
		ArgsUsage: "ID",
		Action: func(_ context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("element show: ID is required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(true)
			if err != nil {
				return err
			}
			e, layerName, err := m.FindElement(id)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"layer": layerName, "element": e})
		},
	}
}

func elementUpdateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Merge fields into an element",
		ArgsUsage: "LAYER ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fields", Usage: "Fields to merge as a JSON object", Required: true},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			layerName, id := cmd.Args().Get(0), cmd.Args().Get(1)
			if layerName == "" || id == "" {
				return fmt.Errorf("element update: LAYER and ID are required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(true)
			if err != nil {
				return err
			}
			var fields map[string]any
			if err := json.Unmarshal([]byte(cmd.String("fields")), &fields); err != nil {
				return fmt.Errorf("element update: parse fields: %w", err)
			}
			if err := m.UpdateElement(layerName, id, fields); err != nil {
				return err
			}
			if err := m.Save(); err != nil {
				return err
			}
			layer, err := m.GetLayer(layerName)
			if err != nil {
				return err
			}
			e, _ := layer.Get(id)
			return printJSON(e)
		},
	}
}

func elementRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Remove an element from a layer",
		ArgsUsage: "LAYER ID",
		Action: func(_ context.Context, cmd *cli.Command) error {
			layerName, id := cmd.Args().Get(0), cmd.Args().Get(1)
			if layerName == "" || id == "" {
				return fmt.Errorf("element rm: LAYER and ID are required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(true)
			if err != nil {
				return err
			}
			removed, err := m.DeleteElement(layerName, id)
			if err != nil {
				return err
			}
			if err := m.Save(); err != nil {
				return err
			}
			return printJSON(removed)
		},
	}
}

func elementListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List a layer's elements",
		ArgsUsage: "LAYER",
		Action: func(_ context.Context, cmd *cli.Command) error {
			layerName := cmd.Args().First()
			if layerName == "" {
				return fmt.Errorf("element list: LAYER is required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			m, err := rt.openModel(true)
			if err != nil {
				return err
			}
			layer, err := m.GetLayer(layerName)
			if err != nil {
				return err
			}
			return printJSON(layer.Elements())
		},
	}
}

// splitPair splits a COLON-separated flag value into its two parts.
func splitPair(spec string) (string, string, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected two colon-separated values")
	}
	return parts[0], parts[1], nil
}
