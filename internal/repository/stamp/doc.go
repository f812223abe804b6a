// Package stamp implements persistence for the compile key of the cached artifact.
//
// The FileRepository stores the key as the entire content of the stamp file
// and swaps new content in with fsutil.ReplaceFile.
package stamp
