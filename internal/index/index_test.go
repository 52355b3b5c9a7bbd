package index

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/strata/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func elem(id, name, desc string) *model.Element {
	return &model.Element{
		ID:          id,
		Type:        "goal",
		Name:        name,
		Description: desc,
		Properties:  map[string]any{},
	}
}

func TestReplaceLayerAndGet(t *testing.T) {
	db := openTestDB(t)

	err := db.ReplaceLayer("motivation", "cs-1", []*model.Element{
		elem("g1", "Goal one", "the first goal"),
		elem("g2", "Goal two", ""),
	})
	if err != nil {
		t.Fatal(err)
	}

	row, err := db.GetElement("g1")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.Layer != "motivation" || row.Name != "Goal one" {
		t.Errorf("row = %+v", row)
	}

	missing, err := db.GetElement("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("missing element should be nil, got %+v", missing)
	}
}

func TestReplaceLayerDropsStaleRows(t *testing.T) {
	db := openTestDB(t)

	if err := db.ReplaceLayer("motivation", "v1", []*model.Element{
		elem("g1", "Goal one", ""),
		elem("g2", "Goal two", ""),
	}); err != nil {
		t.Fatal(err)
	}
	// Second pass drops g2.
	if err := db.ReplaceLayer("motivation", "v2", []*model.Element{
		elem("g1", "Goal one renamed", ""),
	}); err != nil {
		t.Fatal(err)
	}

	counts, err := db.CountByLayer()
	if err != nil {
		t.Fatal(err)
	}
	if counts["motivation"] != 1 {
		t.Errorf("count = %d, want 1", counts["motivation"])
	}
	row, err := db.GetElement("g1")
	if err != nil {
		t.Fatal(err)
	}
	if row.Name != "Goal one renamed" {
		t.Errorf("name = %q", row.Name)
	}
	if gone, _ := db.GetElement("g2"); gone != nil {
		t.Error("g2 should be dropped")
	}
}

func TestEdgesAndBacklinks(t *testing.T) {
	db := openTestDB(t)

	g1 := elem("g1", "Goal", "")
	g1.References = []model.Reference{{Source: "g1", Target: "svc1", Type: "realizes"}}
	g2 := elem("g2", "Other goal", "")
	g2.Relationships = []model.Relationship{{Predicate: "supports", Target: "svc1"}}

	if err := db.ReplaceLayer("motivation", "v1", []*model.Element{g1, g2}); err != nil {
		t.Fatal(err)
	}

	back, err := db.Backlinks("svc1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, []string{"g1", "g2"}) {
		t.Errorf("backlinks = %v", back)
	}

	if back, _ := db.Backlinks("unknown"); len(back) != 0 {
		t.Errorf("backlinks = %v, want none", back)
	}
}

func TestEmptyReferenceSourceDefaultsToElement(t *testing.T) {
	db := openTestDB(t)

	g1 := elem("g1", "Goal", "")
	g1.References = []model.Reference{{Target: "svc1", Type: "realizes"}}
	if err := db.ReplaceLayer("motivation", "v1", []*model.Element{g1}); err != nil {
		t.Fatal(err)
	}
	back, err := db.Backlinks("svc1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, []string{"g1"}) {
		t.Errorf("backlinks = %v", back)
	}
}

func TestDeleteLayer(t *testing.T) {
	db := openTestDB(t)

	g1 := elem("g1", "Goal", "")
	g1.References = []model.Reference{{Source: "g1", Target: "x", Type: "uses"}}
	if err := db.ReplaceLayer("motivation", "v1", []*model.Element{g1}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceLayer("business", "v1", []*model.Element{elem("b1", "Service", "")}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteLayer("motivation"); err != nil {
		t.Fatal(err)
	}

	if row, _ := db.GetElement("g1"); row != nil {
		t.Error("g1 should be gone")
	}
	if row, _ := db.GetElement("b1"); row == nil {
		t.Error("b1 should survive")
	}
	if back, _ := db.Backlinks("x"); len(back) != 0 {
		t.Errorf("edges should be gone, got %v", back)
	}
	checksums, err := db.LayerChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := checksums["motivation"]; ok {
		t.Error("layer state should be gone")
	}
	if checksums["business"] != "v1" {
		t.Errorf("checksums = %v", checksums)
	}
}

func TestClosedDBSurfacesErrors(t *testing.T) {
	// Database failures must not masquerade as "element absent" or as a
	// clean layer delete.
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceLayer("motivation", "v1", []*model.Element{elem("g1", "Goal", "")}); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetElement("g1"); err == nil {
		t.Error("GetElement on a closed db should fail, not report absence")
	}
	if err := db.DeleteLayer("motivation"); err == nil {
		t.Error("DeleteLayer on a closed db should fail")
	}
}

func TestLayerChecksums(t *testing.T) {
	db := openTestDB(t)

	if err := db.ReplaceLayer("motivation", "abc", nil); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceLayer("motivation", "def", nil); err != nil {
		t.Fatal(err)
	}
	checksums, err := db.LayerChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if checksums["motivation"] != "def" {
		t.Errorf("checksum = %q, want def", checksums["motivation"])
	}
}

func TestSearch(t *testing.T) {
	db := openTestDB(t)

	if err := db.ReplaceLayer("motivation", "v1", []*model.Element{
		elem("g-payments", "Payment goals", "streamline checkout payments"),
		elem("g-auth", "Authentication", "secure sign-in"),
	}); err != nil {
		t.Fatal(err)
	}

	hits, err := db.Search("payment", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "g-payments" {
		t.Errorf("hits = %+v", hits)
	}

	// Matches in the description count too.
	hits, err = db.Search("sign-in", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "g-auth" {
		t.Errorf("hits = %+v", hits)
	}

	hits, err = db.Search("nothing-matches-this", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %+v, want none", hits)
	}
}

func TestSearchLimit(t *testing.T) {
	db := openTestDB(t)

	elements := make([]*model.Element, 5)
	for i, id := range []string{"g-a", "g-b", "g-c", "g-d", "g-e"} {
		elements[i] = elem(id, "Common name", "")
	}
	if err := db.ReplaceLayer("motivation", "v1", elements); err != nil {
		t.Fatal(err)
	}

	hits, err := db.Search("Common", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("len = %d, want 2", len(hits))
	}
}
