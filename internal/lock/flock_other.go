//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package lock

import "os"

func tryLock(*os.File) error {
	return errAdvisoryUnsupported
}

func unlock(*os.File) error {
	return errAdvisoryUnsupported
}
