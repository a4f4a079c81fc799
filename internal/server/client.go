package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/roach88/ledgerd/internal/protocol"
)

// ErrConnClosed is returned when the service closes the connection before
// a reply line arrives.
var ErrConnClosed = errors.New("connection closed")

// Client is a line-protocol client for a ledgerd socket. Not safe for
// concurrent use.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// Dial connects to the socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 16*1024*1024)
	return &Client{conn: conn, scanner: scanner}, nil
}

// Call sends one message and reads one reply line.
func (c *Client) Call(ctx context.Context, kind, args string) (*protocol.Response, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	msg, err := json.Marshal(protocol.Envelope{Kind: kind, Args: args})
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	if _, err := c.conn.Write(append(msg, '\n')); err != nil {
		return nil, fmt.Errorf("send %s: %w", kind, err)
	}

	return c.read()
}

// Disconnect asks the service to stop. The service answers an accepted
// disconnect by closing the connection, which returns (nil, nil); a refusal
// comes back as a Response carrying an error.
func (c *Client) Disconnect(ctx context.Context) (*protocol.Response, error) {
	resp, err := c.Call(ctx, "disconnect", "")
	if errors.Is(err, ErrConnClosed) {
		return nil, nil
	}
	return resp, err
}

// Send writes a message without waiting for a reply.
func (c *Client) Send(kind, args string) error {
	msg, err := json.Marshal(protocol.Envelope{Kind: kind, Args: args})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if _, err := c.conn.Write(append(msg, '\n')); err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	return nil
}

// SendRaw writes one raw line and reads the reply.
func (c *Client) SendRaw(line string) (*protocol.Response, error) {
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	return c.read()
}

func (c *Client) read() (*protocol.Response, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, fmt.Errorf("read reply: %w", err)
		}
		return nil, fmt.Errorf("read reply: %w", ErrConnClosed)
	}
	return protocol.DecodeReply(c.scanner.Bytes())
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
