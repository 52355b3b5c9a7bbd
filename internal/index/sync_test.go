package index

import (
	"io"
	"log/slog"
	"testing"

	"github.com/starford/strata/internal/model"
	"github.com/starford/strata/internal/testutil"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSyncIndexesLayers(t *testing.T) {
	m := testutil.TestModel(t)
	db := openTestDB(t)

	if err := m.AddElement("motivation", testutil.Goal("g1", "Goal one")); err != nil {
		t.Fatal(err)
	}
	if err := m.AddElement("business", testutil.Goal("b1", "Service")); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}

	if err := Sync(db, m.Store(), discard()); err != nil {
		t.Fatal(err)
	}

	counts, err := db.CountByLayer()
	if err != nil {
		t.Fatal(err)
	}
	if counts["motivation"] != 1 || counts["business"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestSyncSkipsUnchangedLayers(t *testing.T) {
	m := testutil.TestModel(t)
	db := openTestDB(t)

	if err := m.AddElement("motivation", testutil.Goal("g1", "Goal one")); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, m.Store(), discard()); err != nil {
		t.Fatal(err)
	}
	before, err := db.LayerChecksums()
	if err != nil {
		t.Fatal(err)
	}

	// Second sync with no changes keeps the same recorded state.
	if err := Sync(db, m.Store(), discard()); err != nil {
		t.Fatal(err)
	}
	after, err := db.LayerChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if before["motivation"] != after["motivation"] || after["motivation"] == "" {
		t.Errorf("checksums drifted: before=%v after=%v", before, after)
	}
}

func TestSyncReindexesChangedLayer(t *testing.T) {
	m := testutil.TestModel(t)
	db := openTestDB(t)

	if err := m.AddElement("motivation", testutil.Goal("g1", "Goal one")); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, m.Store(), discard()); err != nil {
		t.Fatal(err)
	}

	if err := m.AddElement("motivation", testutil.Goal("g2", "Goal two")); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, m.Store(), discard()); err != nil {
		t.Fatal(err)
	}

	counts, err := db.CountByLayer()
	if err != nil {
		t.Fatal(err)
	}
	if counts["motivation"] != 2 {
		t.Errorf("count = %d, want 2", counts["motivation"])
	}
}

func TestSyncRemovesStaleLayers(t *testing.T) {
	m := testutil.TestModel(t)
	db := openTestDB(t)

	if err := m.AddElement("motivation", testutil.Goal("g1", "Goal one")); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, m.Store(), discard()); err != nil {
		t.Fatal(err)
	}

	if err := m.Store().Delete(model.LayerPath("motivation")); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, m.Store(), discard()); err != nil {
		t.Fatal(err)
	}

	counts, err := db.CountByLayer()
	if err != nil {
		t.Fatal(err)
	}
	if counts["motivation"] != 0 {
		t.Errorf("count = %d, want 0", counts["motivation"])
	}
	checksums, err := db.LayerChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := checksums["motivation"]; ok {
		t.Error("stale layer state should be removed")
	}
}

func TestLayerNameFromPath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"layers/motivation.json", "motivation"},
		{"layers/data-model.json", "data-model"},
		{"layers/unknown.json", ""},
		{"layers/notes.txt", ""},
	}
	for _, c := range cases {
		if got := layerNameFromPath(c.in); got != c.want {
			t.Errorf("layerNameFromPath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
