//go:build !js && !wasip1 && !plan9

package ipc

import (
	"errors"
	"io/fs"
	"syscall"
)

// Supported reports whether this platform has a daemon endpoint.
const Supported = true

func dialErrorKind(err error) ErrorKind {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) {
		return NotListening
	}
	return ConnectedFailed
}
