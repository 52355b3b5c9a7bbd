package index

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/strata/internal/apperr"
	"github.com/starford/strata/internal/model"
	"github.com/starford/strata/internal/storage"
)

// Sync walks the model's layer files and brings the index up to date:
//   - layers whose file checksum changed are reindexed wholesale
//   - layers whose file disappeared are dropped from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	infos, err := store.List(model.LayersDir)
	if err != nil {
		return err
	}
	recorded, err := db.LayerChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		name := layerNameFromPath(info.Path)
		if name == "" {
			continue
		}
		disk[name] = struct{}{}

		if recorded[name] == info.Checksum {
			continue
		}
		if err := syncLayerFile(db, store, name, info.Path, info.Checksum); err != nil {
			logger.Warn("sync: index failed", slog.String("layer", name), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("layer", name))
		}
	}

	// Remove stale layers.
	for name := range recorded {
		if _, ok := disk[name]; !ok {
			if err := db.DeleteLayer(name); err != nil {
				logger.Warn("sync: delete failed", slog.String("layer", name), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("layer", name))
			}
		}
	}

	return nil
}

// syncLayerFile parses one layer document and replaces its index rows.
func syncLayerFile(db *DB, store storage.Provider, name, filePath, checksum string) error {
	data, err := store.Read(filePath)
	if err != nil {
		return err
	}
	var doc struct {
		Elements []*model.Element `json:"elements"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("index: parse layer %s: %v: %w", name, err, apperr.ErrInvalidJSON)
	}
	return db.ReplaceLayer(name, checksum, doc.Elements)
}

// layerNameFromPath maps layers/{name}.json to the layer name, or "" when
// the file is not a recognized layer document.
func layerNameFromPath(p string) string {
	name := strings.TrimSuffix(path.Base(p), ".json")
	if !model.IsLayerName(name) {
		return ""
	}
	return name
}
