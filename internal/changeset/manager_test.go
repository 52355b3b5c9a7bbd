package changeset

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/starford/strata/internal/apperr"
	"github.com/starford/strata/internal/testutil"
)

func TestSlug(t *testing.T) {
	cases := []struct{ in, want string }{
		{"cs1", "cs1"},
		{"Add Payment Goals", "add-payment-goals"},
		{"  spaced  out  ", "spaced-out"},
		{"v2.0/refactor", "v2-0-refactor"},
	}
	for _, c := range cases {
		if got := Slug(c.in); got != c.want {
			t.Errorf("Slug(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCreateAndLoad(t *testing.T) {
	m := testutil.TestModel(t)
	mgr := NewManager(m.Store())

	cs, err := mgr.Create("cs1", "first changeset")
	if err != nil {
		t.Fatal(err)
	}
	if cs.Status != StatusDraft {
		t.Errorf("status = %q, want draft", cs.Status)
	}

	loaded, err := mgr.Load("cs1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != "cs1" || loaded.Description != "first changeset" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestCreateDuplicate(t *testing.T) {
	m := testutil.TestModel(t)
	mgr := NewManager(m.Store())

	if _, err := mgr.Create("cs1", ""); err != nil {
		t.Fatal(err)
	}
	_, err := mgr.Create("cs1", "again")
	if !errors.Is(err, apperr.ErrChangesetExists) {
		t.Errorf("err = %v, want ErrChangesetExists", err)
	}
}

func TestLoadMissing(t *testing.T) {
	m := testutil.TestModel(t)
	mgr := NewManager(m.Store())

	_, err := mgr.Load("nope")
	if !errors.Is(err, apperr.ErrChangesetNotFound) {
		t.Errorf("err = %v, want ErrChangesetNotFound", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := testutil.TestModel(t)
	mgr := NewManager(m.Store())

	cs, err := mgr.Create("round-trip", "")
	if err != nil {
		t.Fatal(err)
	}
	cs.AddChange(TypeAdd, "g1", "motivation", nil, goalState("g1", "G1"))
	cs.AddChange(TypeDelete, "g2", "business", goalState("g2", "G2"), nil)
	if err := mgr.Save(cs); err != nil {
		t.Fatal(err)
	}

	loaded, err := mgr.Load("round-trip")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(loaded.Changes))
	}
	if loaded.Changes[0].Seq != 1 || loaded.Changes[0].Type != TypeAdd {
		t.Errorf("change[0] = %+v", loaded.Changes[0])
	}
	if loaded.Changes[1].Layer != "business" || loaded.Changes[1].Before == nil {
		t.Errorf("change[1] = %+v", loaded.Changes[1])
	}
}

func TestLoadLegacyFlatLayout(t *testing.T) {
	// Pre-2.0.0 models stored changesets as changesets/{slug}.json.
	m := testutil.TestModel(t)
	data, err := json.Marshal(&Changeset{Name: "old", Status: StatusDraft})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Store().Write("changesets/old.json", data); err != nil {
		t.Fatal(err)
	}

	mgr := NewManager(m.Store())
	loaded, err := mgr.Load("old")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != "old" {
		t.Errorf("name = %q", loaded.Name)
	}

	// Names are still reserved across layouts.
	if _, err := mgr.Create("old", ""); !errors.Is(err, apperr.ErrChangesetExists) {
		t.Errorf("err = %v, want ErrChangesetExists", err)
	}
}

func TestApplyPromotesLegacyLayout(t *testing.T) {
	// Applying a changeset loaded from the flat layout must leave exactly
	// one stored copy; a surviving flat file would show up as a second List
	// entry with a stale status and would be renamed over the fresh copy by
	// the 2.0.0 restructure migration.
	m := testutil.TestModel(t)
	data, err := json.Marshal(&Changeset{Name: "cs1", Status: StatusDraft})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Store().Write("changesets/cs1.json", data); err != nil {
		t.Fatal(err)
	}

	mgr := NewManager(m.Store())
	res, err := mgr.Apply(m, "cs1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}

	flat, err := m.Store().Exists("changesets/cs1.json")
	if err != nil {
		t.Fatal(err)
	}
	if flat {
		t.Error("flat file should be removed once the status is persisted")
	}

	all, err := mgr.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("List = %d entries, want 1", len(all))
	}
	if all[0].Name != "cs1" || all[0].Status != StatusApplied {
		t.Errorf("entry = %+v", all[0])
	}
}

func TestListSortedByName(t *testing.T) {
	m := testutil.TestModel(t)
	mgr := NewManager(m.Store())

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := mgr.Create(name, ""); err != nil {
			t.Fatal(err)
		}
	}

	out, err := mgr.List()
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, len(out))
	for i, cs := range out {
		got[i] = cs.Name
	}
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names = %v, want %v", got, want)
		}
	}
}

func TestListEmpty(t *testing.T) {
	m := testutil.TestModel(t)
	mgr := NewManager(m.Store())

	out, err := mgr.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("len = %d, want 0", len(out))
	}
}

func TestApplyPersistsStatusOnSuccess(t *testing.T) {
	m := testutil.TestModel(t)
	mgr := NewManager(m.Store())

	cs, err := mgr.Create("cs1", "")
	if err != nil {
		t.Fatal(err)
	}
	cs.AddChange(TypeAdd, "g2", "motivation", nil, goalState("g2", "G2"))
	if err := mgr.Save(cs); err != nil {
		t.Fatal(err)
	}

	res, err := mgr.Apply(m, "cs1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}

	loaded, err := mgr.Load("cs1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != StatusApplied {
		t.Errorf("status = %q, want applied", loaded.Status)
	}

	res, err = mgr.Revert(m, "cs1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 0 {
		t.Fatalf("revert = %+v", res)
	}
	loaded, err = mgr.Load("cs1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != StatusReverted {
		t.Errorf("status = %q, want reverted", loaded.Status)
	}
}

func TestApplyLeavesStatusOnFailure(t *testing.T) {
	m := testutil.TestModel(t)
	mgr := NewManager(m.Store())

	cs, err := mgr.Create("cs-bad", "")
	if err != nil {
		t.Fatal(err)
	}
	cs.AddChange(TypeUpdate, "ghost", "motivation", nil, map[string]any{"name": "x"})
	if err := mgr.Save(cs); err != nil {
		t.Fatal(err)
	}

	res, err := mgr.Apply(m, "cs-bad")
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}

	loaded, err := mgr.Load("cs-bad")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != StatusDraft {
		t.Errorf("status = %q, want draft unchanged", loaded.Status)
	}
}
