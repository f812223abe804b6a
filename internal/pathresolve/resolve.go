package pathresolve

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// MaxLinks bounds the number of symlinks followed before giving up.
const MaxLinks = 64

// ResolutionError reports that the launcher path could not be canonicalized.
type ResolutionError struct {
	// Path is the path being resolved when the failure happened.
	Path string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve launcher path %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

var errTooManyLinks = fmt.Errorf("more than %d symbolic links", MaxLinks)

// Resolve follows invoked through any chain of symlinks and returns the
// absolute, symlink-free path of the final regular file.
// Directories on the way are resolved physically, relative link targets are
// taken relative to the directory holding the link.
func Resolve(invoked string) (string, error) {
	file, err := physical(invoked)
	if err != nil {
		return "", &ResolutionError{Path: invoked, Err: err}
	}

	for range MaxLinks {
		info, err := os.Lstat(file)
		if err != nil {
			return "", &ResolutionError{Path: file, Err: err}
		}

		if info.Mode()&os.ModeSymlink == 0 {
			return file, nil
		}

		target, err := os.Readlink(file)
		if err != nil {
			return "", &ResolutionError{Path: file, Err: err}
		}

		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(file), target)
		}

		if file, err = physical(target); err != nil {
			return "", &ResolutionError{Path: target, Err: err}
		}
	}

	return "", &ResolutionError{Path: invoked, Err: errTooManyLinks}
}

// InvokedPath turns argv[0] into a path: a bare program name is looked up on
// the search path, anything else is returned as is.
func InvokedPath(argv0 string) string {
	if strings.ContainsRune(argv0, filepath.Separator) || strings.ContainsRune(argv0, '/') {
		return argv0
	}

	if found, err := exec.LookPath(argv0); err == nil {
		return found
	}

	if self, err := os.Executable(); err == nil {
		return self
	}

	return argv0
}

// InstallationRoot returns the parent of the directory holding the launcher.
func InstallationRoot(launcher string) string {
	return filepath.Dir(filepath.Dir(launcher))
}

// physical makes path absolute and resolves symlinks in its directory part,
// leaving the last element untouched. Clean collapses duplicate slashes.
func physical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, filepath.Base(abs)), nil
}
