package testutil

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/cory-johannsen/lobby/internal/lobby/wire"
)

// LobbyClient is a framed protocol client for integration testing.
type LobbyClient struct {
	conn   net.Conn
	reader *bufio.Reader
	t      *testing.T
}

// NewLobbyClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected LobbyClient or fails the test.
func NewLobbyClient(t *testing.T, addr string) *LobbyClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("lobby client connected to %s [%s]", addr, time.Since(start))
	return &LobbyClient{
		conn:   conn,
		reader: bufio.NewReader(conn),
		t:      t,
	}
}

// SendRaw writes payload as one frame without encoding it.
func (c *LobbyClient) SendRaw(payload []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.conn.Write(wire.AppendFrame(nil, payload)); err != nil {
		c.t.Fatalf("sending frame: %v", err)
	}
}

// Send encodes req and writes it as one frame.
func (c *LobbyClient) Send(req wire.Request) {
	c.t.Helper()
	c.SendRaw(wire.EncodeRequest(req))
}

// Receive reads and decodes the next response.
//
// Postcondition: Returns the next response, or fails the test on timeout.
func (c *LobbyClient) Receive(timeout time.Duration) wire.Response {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	frame, err := wire.ReadFrame(c.reader, wire.DefaultMaxFrameSize)
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	resp, err := wire.DecodeResponse(frame)
	if err != nil {
		c.t.Fatalf("decoding response: %v", err)
	}
	return resp
}

// Call sends req and returns the next response.
func (c *LobbyClient) Call(req wire.Request) wire.Response {
	c.t.Helper()
	c.Send(req)
	return c.Receive(5 * time.Second)
}

// ExpectSilence fails the test if a frame arrives within d.
func (c *LobbyClient) ExpectSilence(d time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(d))
	frame, err := wire.ReadFrame(c.reader, wire.DefaultMaxFrameSize)
	if err == nil {
		c.t.Fatalf("expected no frame, got %x", frame)
	}
	if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
		c.t.Fatalf("expected read timeout, got %v", err)
	}
	// A timed-out read may leave a partial prefix behind; reset the reader.
	c.reader.Reset(c.conn)
}

// Close closes the underlying connection.
func (c *LobbyClient) Close() {
	c.conn.Close()
}
