//go:build js || wasip1 || plan9

package ipc

const Supported = false

func dialErrorKind(err error) ErrorKind {
	return ConnectedFailed
}
