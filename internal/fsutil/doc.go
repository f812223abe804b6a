// Package fsutil provides file system utility functions.
//
// ReplaceFile writes new content next to the target and renames it over the
// target, so the path always names either the previous or the new file.
package fsutil
