package snapshot

import (
	"path/filepath"

	"github.com/oshokin/snaplauncher/internal/config"
)

// Directory is the handle on an installation's cache and tool sources.
// Every path it returns is absolute. It is passed explicitly to each component
// that touches the shared cache.
type Directory struct {
	// root is the absolute installation root.
	root string
	// layout holds the configured relative paths.
	layout config.Layout
}

// NewDirectory binds a layout to an absolute installation root.
func NewDirectory(root string, layout config.Layout) Directory {
	return Directory{
		root:   filepath.Clean(root),
		layout: layout,
	}
}

// Root returns the installation root.
func (d Directory) Root() string {
	return d.root
}

// CacheDir returns the directory holding the artifact, the stamp and the lock files.
func (d Directory) CacheDir() string {
	return d.fromRoot(d.layout.CacheDir)
}

// Artifact returns the path of the compiled tool.
func (d Directory) Artifact() string {
	return d.fromRoot(d.layout.Artifact)
}

// Staging returns where the compile step writes before the artifact is swapped in.
func (d Directory) Staging() string {
	return filepath.Join(d.CacheDir(), "."+filepath.Base(d.Artifact())+".staging")
}

// Stamp returns the path of the file recording the compile key of the artifact.
func (d Directory) Stamp() string {
	return d.fromRoot(d.layout.Stamp)
}

// LockFile returns the file advisory locks are taken on.
func (d Directory) LockFile() string {
	return d.fromRoot(d.layout.LockFile)
}

// SpinLockFile returns the PID file used where advisory locks are unavailable.
func (d Directory) SpinLockFile() string {
	return d.fromRoot(d.layout.SpinLockFile)
}

// VersionMarkers returns the files reporting the resolved tool version.
// They are removed before every rebuild.
func (d Directory) VersionMarkers() []string {
	markers := make([]string, 0, len(d.layout.VersionMarkers))
	for _, marker := range d.layout.VersionMarkers {
		markers = append(markers, d.fromRoot(marker))
	}

	return markers
}

// ToolDir returns the directory holding the tool sources and its manifest.
func (d Directory) ToolDir() string {
	return d.fromRoot(d.layout.ToolDir)
}

// Manifest returns the dependency manifest path.
func (d Directory) Manifest() string {
	return d.fromTool(d.layout.Manifest)
}

// ManifestLock returns the resolved dependency lock path.
func (d Directory) ManifestLock() string {
	return d.fromTool(d.layout.ManifestLock)
}

// EntryPoint returns the tool entry point handed to the compile step.
func (d Directory) EntryPoint() string {
	return d.fromTool(d.layout.EntryPoint)
}

func (d Directory) fromRoot(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(d.root, path)
}

func (d Directory) fromTool(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(d.ToolDir(), path)
}
