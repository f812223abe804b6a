package fsutil

import (
	"os"
	"path/filepath"
)

const dirMode os.FileMode = 0o755

// ensureDir creates the parent directories of path.
func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), dirMode)
}
