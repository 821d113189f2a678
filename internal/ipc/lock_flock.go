//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package ipc

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// instanceLock is an exclusive flock on a file next to the socket. It is held
// for the server's lifetime and released by the kernel if the process dies.
type instanceLock struct {
	f *os.File
}

func acquireInstanceLock(path string) (*instanceLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "open lock file %s", path)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, errors.Wrapf(err, "lock %s", path)
	}
	return &instanceLock{f: f}, nil
}

func (l *instanceLock) release() {
	if l == nil {
		return
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
}
