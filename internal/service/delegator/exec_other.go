//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package delegator

// New returns the preferred delegator for the current platform.
// Without process image replacement the tool runs as a child.
func New() Delegator {
	return NewSpawn()
}
