package ipc

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorKind discriminates transport failures.
type ErrorKind int

const (
	// NotListening means no daemon owns the endpoint.
	NotListening ErrorKind = iota
	// ConnectedFailed covers failures after or during a connection to a
	// live peer: broken pipes, resets, timeouts.
	ConnectedFailed
	// Protocol means the peer answered with something undecodable.
	Protocol
)

func (k ErrorKind) String() string {
	switch k {
	case NotListening:
		return "not listening"
	case ConnectedFailed:
		return "connection failed"
	case Protocol:
		return "protocol error"
	default:
		return "unknown"
	}
}

// TransportError is returned by the client for every failure that happens
// below the request/response level.
type TransportError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Kind == NotListening {
		return fmt.Sprintf("Failed to connect to server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a well-formed error reply from the daemon.
type ServerError struct {
	Command CommandType
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server rejected %s: %s", e.Command, e.Message)
}

// absentMarkers are message fragments that other daemon builds use for "no
// endpoint": the Windows named-pipe texts and HRESULT for file not found.
var absentMarkers = []string{
	"パイプを開くことができません",
	"ファイルが見つかりません",
	"0x80070002",
	"Failed to connect to server",
}

// IsEndpointAbsent reports whether err means nothing is listening on the
// endpoint, as opposed to a live peer failing.
func IsEndpointAbsent(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if stderrors.As(err, &te) {
		return te.Kind == NotListening
	}
	var se *ServerError
	if stderrors.As(err, &se) {
		return false
	}
	msg := err.Error()
	for _, m := range absentMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
