// Package rebuilder regenerates the cached tool artifact.
//
// Dependency resolution is retried a bounded number of times with a fixed
// delay; the toolchain bootstrap and the compile step run once. The stamp is
// only written after the new artifact is in place.
package rebuilder
