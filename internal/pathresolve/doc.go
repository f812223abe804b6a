// Package pathresolve finds where the launcher really lives on disk.
package pathresolve
