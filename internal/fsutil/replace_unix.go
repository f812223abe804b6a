//go:build !windows

package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// ReplaceFile atomically replaces path with data and mode. Missing parent
// directories are created. The temporary file lives in the target directory,
// so the final rename never crosses a file system.
func ReplaceFile(path string, data []byte, mode os.FileMode) error {
	path = filepath.Clean(path)

	if err := ensureDir(path); err != nil {
		return fmt.Errorf("prepare %s: %w", path, err)
	}

	pending, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return fmt.Errorf("create temporary file for %s: %w", path, err)
	}

	defer func() {
		_ = pending.Cleanup()
	}()

	if _, err = pending.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err = pending.Chmod(mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}

	if err = pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}
