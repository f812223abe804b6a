// Package vcs checks the source-control prerequisites of an installation and
// reads the revision its cache is keyed on.
package vcs
