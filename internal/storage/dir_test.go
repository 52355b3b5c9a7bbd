package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempDir(t *testing.T) *Dir {
	t.Helper()
	root := t.TempDir()
	d, err := NewDir(root)
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	return d
}

func TestWriteAndRead(t *testing.T) {
	s := tempDir(t)
	content := []byte(`{"name":"m"}`)
	if err := s.Write("manifest.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("manifest.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempDir(t)
	if err := s.Write("changesets/cs1/changeset.json", []byte("{}")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("changesets/cs1/changeset.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("gone.json", []byte("{}"))
	if err := s.Delete("gone.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("gone.json"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestExists(t *testing.T) {
	s := tempDir(t)
	ok, err := s.Exists("missing.json")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("missing file reported as present")
	}
	_ = s.Write("here.json", []byte("{}"))
	ok, err = s.Exists("here.json")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Error("present file reported as missing")
	}
}

func TestRename(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("changesets/old.json", []byte(`{"name":"old"}`))
	if err := s.Rename("changesets/old.json", "changesets/old/changeset.json"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	got, err := s.Read("changesets/old/changeset.json")
	if err != nil {
		t.Fatalf("Read after rename: %v", err)
	}
	if string(got) != `{"name":"old"}` {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("changesets/old.json"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("layers/api.json", []byte("{}"))
	_ = s.Write("layers/business.json", []byte("{}"))
	_ = s.Write("layers/notes.txt", []byte("not json"))

	items, err := s.List("layers")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
}

func TestListMissingDirIsEmpty(t *testing.T) {
	s := tempDir(t)
	items, err := s.List("changesets")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len = %d, want 0", len(items))
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempDir(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("atomic.json", []byte(`{"v":1}`))

	if err := s.Write("atomic.json", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.json")
	if string(got) != `{"v":2}` {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".strata-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewDir_NonExistent(t *testing.T) {
	_, err := NewDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewDir_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "strata-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewDir(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
