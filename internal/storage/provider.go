package storage

// Provider abstracts file access under a model root so model, changeset,
// and migration code can be tested against temp directories.
type Provider interface {
	List(dir string) ([]FileInfo, error)
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
	Delete(path string) error
	Exists(path string) (bool, error)
	Rename(oldPath, newPath string) error
}

// Verify *Dir satisfies Provider at compile time.
var _ Provider = (*Dir)(nil)
