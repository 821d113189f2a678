// Package ipc carries commands from the front end to the playback daemon
// over a local Unix-domain socket, one JSON object per line.
package ipc

import (
	"os"
	"path/filepath"
)

// SocketName is the endpoint file created in the system temp directory.
const SocketName = "ym2151-log-play-server.sock"

// DefaultSocketPath returns the well-known endpoint shared by every client
// and the daemon.
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), SocketName)
}

// CommandType identifies a request.
type CommandType string

const (
	CommandPlayJSON CommandType = "play_json"
	CommandStop     CommandType = "stop"
	CommandShutdown CommandType = "shutdown"
)

// Request is sent by the client. Data carries the event log for
// play_json and is opaque to the transport.
type Request struct {
	Command CommandType `json:"command"`
	Data    string      `json:"data,omitempty"`
}

type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Response is the daemon's reply to a single request.
type Response struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

func OK(message string) Response {
	return Response{Status: StatusOK, Message: message}
}

func Fail(message string) Response {
	return Response{Status: StatusError, Message: message}
}
