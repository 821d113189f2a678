//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package ipc

// instanceLock is a no-op here; Start falls back to the dial probe alone.
type instanceLock struct{}

func acquireInstanceLock(string) (*instanceLock, error) { return &instanceLock{}, nil }

func (l *instanceLock) release() {}
