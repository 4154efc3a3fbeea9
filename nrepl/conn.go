// Package nrepl speaks the nREPL wire protocol: bencode-framed request and
// response dicts over TCP. A Client layers session management, synchronous
// evaluation, and interrupts on top of short-lived connections.
package nrepl

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/zeebo/bencode"
)

const (
	// dialTimeout bounds the TCP connect.
	dialTimeout = 10 * time.Second

	// writeTimeout is the per-message write deadline. Requests are small, so
	// a stalled write means the server side is gone.
	writeTimeout = 10 * time.Second

	// opTimeout is the read deadline for non-eval operations (clone,
	// ls-sessions, describe, interrupt acks). Eval reads use the caller's
	// evaluation deadline instead.
	opTimeout = 10 * time.Second
)

// ConnectionError reports a failure to reach the nREPL server.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to nREPL server at %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Conn is a single bencode-framed connection. Not safe for concurrent use;
// the Client serializes access.
type Conn struct {
	conn net.Conn
	enc  *bencode.Encoder
	dec  *bencode.Decoder
}

// DialConn opens a TCP connection to host:port and frames it with bencode.
func DialConn(host string, port int) (*Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	return &Conn{
		conn: conn,
		enc:  bencode.NewEncoder(conn),
		dec:  bencode.NewDecoder(conn),
	}, nil
}

// Send encodes one request dict onto the wire.
func (c *Conn) Send(msg map[string]any) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.enc.Encode(msg); err != nil {
		return fmt.Errorf("send %v op: %w", msg["op"], err)
	}
	return nil
}

// Recv decodes the next response message, giving up at deadline.
func (c *Conn) Recv(deadline time.Time) (*Response, error) {
	c.conn.SetReadDeadline(deadline)
	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
