package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/starford/strata/internal/index"
	"github.com/starford/strata/internal/model"
	"github.com/starford/strata/internal/storage"
)

// openIndex opens the configured SQLite index together with the model's
// storage provider.
func openIndex(rt *runtime) (*index.DB, storage.Provider, error) {
	store, err := storage.NewDir(rt.cfg.Model.Path)
	if err != nil {
		return nil, nil, err
	}
	db, err := index.Open(rt.cfg.Index.Path)
	if err != nil {
		return nil, nil, err
	}
	return db, store, nil
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search indexed elements by name and description",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "Maximum results", Value: 20},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			query := cmd.Args().First()
			if query == "" {
				return fmt.Errorf("search: QUERY is required")
			}
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			db, store, err := openIndex(rt)
			if err != nil {
				return err
			}
			defer db.Close()

			// Refresh before querying so results reflect the latest saves.
			if err := index.Sync(db, store, rt.logger); err != nil {
				return err
			}
			results, err := db.Search(query, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Bring the element index up to date with the model files",
		Action: func(_ context.Context, cmd *cli.Command) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			db, store, err := openIndex(rt)
			if err != nil {
				return err
			}
			defer db.Close()
			return index.Sync(db, store, rt.logger)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the model directory and keep the element index in sync",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			db, store, err := openIndex(rt)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := index.Sync(db, store, rt.logger); err != nil {
				rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
			}

			sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			layersDir := filepath.Join(rt.cfg.Model.Path, model.LayersDir)
			g, gCtx := errgroup.WithContext(sigCtx)
			g.Go(func() error {
				return index.Watch(gCtx, db, store, layersDir, rt.logger, nil)
			})
			return g.Wait()
		},
	}
}
