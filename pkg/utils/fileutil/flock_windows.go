package fileutil

import (
	"golang.org/x/sys/windows"
	"os"
)

// https://docs.microsoft.com/en-us/windows/win32/api/fileapi/nf-fileapi-lockfileex
type windowsLock struct {
	fd windows.Handle
}

var _ Releaser = (*windowsLock)(nil)

func (fl *windowsLock) Release() error {
	return windows.UnlockFileEx(fl.fd, 0, 1, 0, &windows.Overlapped{})
}

func (fl *windowsLock) lock() error {
	return windows.LockFileEx(fl.fd, windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, &windows.Overlapped{})
}

// NewLock takes an exclusive advisory lock on f without blocking.
func NewLock(f *os.File) (Releaser, error) {
	l := &windowsLock{windows.Handle(f.Fd())}
	return l, l.lock()
}

// lookup err from https://docs.microsoft.com/zh-cn/windows/win32/debug/system-error-codes--0-499-?redirectedfrom=MSDN
func IsLocked(err error) bool {
	return err == windows.ERROR_LOCK_VIOLATION
}
