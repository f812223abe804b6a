// Package launcher sequences one launcher invocation: locate the installation,
// check the cached tool, rebuild it under the rebuild lock when stale and hand
// the original arguments over to it.
//
// Freshness is evaluated a second time once the lock is held, so concurrent
// invocations that waited for a rebuild reuse its result instead of repeating it.
package launcher
