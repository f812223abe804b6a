// Package delegator hands the launcher's invocation over to the cached tool.
//
// On Unix the launcher process is replaced by the tool, so arguments, standard
// streams and the exit code pass through untouched. Elsewhere the tool runs
// as a child that receives forwarded termination signals, and its exit code
// is returned to the caller to exit with.
package delegator
