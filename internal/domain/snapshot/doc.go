// Package snapshot models the cached tool snapshot.
//
// Directory is the explicit handle on the installation's cache paths, and
// Evaluate is the pure freshness decision over what was observed on disk.
package snapshot
