package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cory-johannsen/lobby/internal/lobby/wire"
)

// StatusError is a non-success status returned by the server.
type StatusError struct {
	Code    wire.ErrorCode
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client speaks the framed lobby protocol over one TCP connection.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// Dial connects to a lobby server.
//
// Postcondition: Returns a connected Client, or an error.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn), timeout: timeout}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send writes req as one frame.
func (c *Client) Send(req wire.Request) error {
	if c.timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	if _, err := c.conn.Write(wire.AppendFrame(nil, wire.EncodeRequest(req))); err != nil {
		return fmt.Errorf("sending %s: %w", req.Type(), err)
	}
	return nil
}

// Next reads the next response. A zero wait blocks without a deadline.
func (c *Client) Next(wait time.Duration) (wire.Response, error) {
	if wait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}
	frame, err := wire.ReadFrame(c.reader, wire.DefaultMaxFrameSize)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	resp, err := wire.DecodeResponse(frame)
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return resp, nil
}

// Call sends req and returns the reply, skipping room updates pushed in the
// meantime. An error status is returned as *StatusError.
func (c *Client) Call(req wire.Request) (wire.Response, error) {
	if err := c.Send(req); err != nil {
		return nil, err
	}
	for {
		resp, err := c.Next(c.timeout)
		if err != nil {
			return nil, err
		}
		if _, push := resp.(wire.RoomStateUpdate); push {
			continue
		}
		if st := resp.StatusOf(); st.Code != wire.CodeSuccess {
			return nil, &StatusError{Code: st.Code, Message: st.Message}
		}
		return resp, nil
	}
}

// Login authenticates the connection.
func (c *Client) Login(username, password string) (*wire.PlayerInfo, error) {
	resp, err := c.Call(wire.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return expect[wire.LoginResponse](resp, func(r wire.LoginResponse) *wire.PlayerInfo { return r.Player })
}

// expect unwraps a typed reply.
func expect[R wire.Response, T any](resp wire.Response, get func(R) T) (T, error) {
	r, ok := resp.(R)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected %s reply", resp.Type())
	}
	return get(r), nil
}

// IsStatus reports whether err carries the given status code.
func IsStatus(err error, code wire.ErrorCode) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
