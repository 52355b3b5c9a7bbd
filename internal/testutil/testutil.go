// Package testutil provides shared test helpers for setting up temp models
// and index databases.
package testutil

import (
	"testing"
	"time"

	"github.com/starford/strata/internal/model"
	"github.com/starford/strata/internal/storage"
)

// TestModel creates a temporary model directory with a minimal manifest and
// returns the loaded model.
func TestModel(t *testing.T) *model.Model {
	t.Helper()
	root := t.TempDir()
	m, err := model.Init(root, &model.Manifest{
		Name:        "test-model",
		Version:     "0.1.0",
		SpecVersion: "2.0.0",
		Created:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// TestStore creates a temporary model root with a storage provider.
func TestStore(t *testing.T) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewDir(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// Goal returns a minimal valid element for the motivation layer.
func Goal(id, name string) *model.Element {
	return &model.Element{
		ID:         id,
		Type:       "goal",
		Name:       name,
		Properties: map[string]any{},
	}
}
