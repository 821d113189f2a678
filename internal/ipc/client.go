package ipc

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"github.com/pkg/errors"
)

// dialTimeout bounds connecting only. The exchange itself has no deadline:
// the daemon may take a while to validate a large log and open the device.
const dialTimeout = 5 * time.Second

// Client sends one request per connection to the daemon.
type Client struct {
	path        string
	dialTimeout time.Duration
}

// NewClient returns a client for the socket at path. An empty path selects
// DefaultSocketPath.
func NewClient(path string) *Client {
	if path == "" {
		path = DefaultSocketPath()
	}
	return &Client{path: path, dialTimeout: dialTimeout}
}

// SocketPath returns the socket path.
func (c *Client) SocketPath() string {
	return c.path
}

// SendPayload asks the daemon to play the event log.
func (c *Client) SendPayload(payload string) error {
	return errors.Wrap(c.call(Request{Command: CommandPlayJSON, Data: payload}), "Failed to send JSON to server")
}

// SendStop asks the daemon to stop the current playback.
func (c *Client) SendStop() error {
	return errors.Wrap(c.call(Request{Command: CommandStop}), "Failed to stop playback")
}

// SendShutdown asks the daemon to exit.
func (c *Client) SendShutdown() error {
	return errors.Wrap(c.call(Request{Command: CommandShutdown}), "Failed to shutdown server")
}

func (c *Client) call(req Request) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	if resp.Status != StatusOK {
		return &ServerError{Command: req.Command, Message: resp.Message}
	}
	return nil
}

// Do performs a raw request/response exchange.
func (c *Client) Do(req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", c.path, c.dialTimeout)
	if err != nil {
		return Response{}, &TransportError{Kind: dialErrorKind(err), Op: "dial " + c.path, Err: err}
	}
	defer conn.Close()

	line, err := json.Marshal(req)
	if err != nil {
		return Response{}, &TransportError{Kind: Protocol, Op: "encode request", Err: err}
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return Response{}, &TransportError{Kind: ConnectedFailed, Op: "write request", Err: err}
	}

	reader := bufio.NewReader(conn)
	raw, err := reader.ReadBytes('\n')
	if err != nil && len(raw) == 0 {
		return Response{}, &TransportError{Kind: ConnectedFailed, Op: "read response", Err: err}
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, &TransportError{Kind: Protocol, Op: "decode response", Err: err}
	}
	return resp, nil
}
