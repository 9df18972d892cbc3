//go:build !(darwin || dragonfly || freebsd || linux || netbsd || openbsd || windows)

package fileutil

import "os"

type nopLock struct{}

func (nopLock) Release() error { return nil }

// NewLock is a no-op where advisory locks are unavailable; the in-process
// mutex still serializes access.
func NewLock(_ *os.File) (Releaser, error) {
	return nopLock{}, nil
}

func IsLocked(error) bool {
	return false
}
