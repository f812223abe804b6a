// Package cachestate answers whether the cached tool artifact can be launched
// without a rebuild.
package cachestate
