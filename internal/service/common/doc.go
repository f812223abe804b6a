// Package common holds helpers shared by several services.
//
// It provides the Runner abstraction used to execute external programs, and
// argv templates with placeholders for installation paths.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
