package stamp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oshokin/snaplauncher/internal/fsutil"
)

// Repository defines persistence operations for the compile key of the cached artifact.
type Repository interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, key string) error
}

// FileRepository keeps the compile key as the whole content of a single file.
type FileRepository struct {
	// path is the filesystem location of the stamp file.
	path string
	// mu serializes access from goroutines of the same process.
	mu sync.Mutex
}

// FileMode is the permission of the stamp file.
const FileMode os.FileMode = 0o644

// ErrNotFound is returned when the stamp file does not exist yet.
var ErrNotFound = errors.New("stamp not found")

// NewFileRepository creates a repository reading and writing the stamp at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the stamp file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load returns the recorded key with trailing line breaks removed.
// An existing empty file yields an empty key and no error.
func (r *FileRepository) Load(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("read stamp file: %w", err)
	}

	return strings.TrimRight(string(contents), "\r\n"), nil
}

// Save replaces the stamp content with key. Readers never see a partially
// written key.
func (r *FileRepository) Save(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := fsutil.ReplaceFile(r.path, []byte(key), FileMode); err != nil {
		return fmt.Errorf("write stamp file: %w", err)
	}

	return nil
}
