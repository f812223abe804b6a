//go:build windows

package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReplaceFile replaces path with data and mode. Missing parent directories
// are created. os.Rename uses MoveFileEx with MOVEFILE_REPLACE_EXISTING here.
func ReplaceFile(path string, data []byte, mode os.FileMode) error {
	path = filepath.Clean(path)

	if err := ensureDir(path); err != nil {
		return fmt.Errorf("prepare %s: %w", path, err)
	}

	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary file for %s: %w", path, err)
	}

	name := temp.Name()

	defer func() {
		_ = os.Remove(name)
	}()

	_, writeErr := temp.Write(data)
	syncErr := temp.Sync()
	closeErr := temp.Close()

	for _, err = range []error{writeErr, syncErr, closeErr} {
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	if err = os.Chmod(name, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}

	if err = os.Rename(name, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}
