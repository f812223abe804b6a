// Package lock provides the cross-process rebuild lock.
//
// Select probes the host once and picks an AdvisoryFileLock (flock on a file
// in the cache directory), a SpinFileLock (PID file created with
// exclusive-create) or NoLock when neither works. Locking is best effort:
// callers treat acquisition errors as a reason to continue unsynchronized.
package lock
