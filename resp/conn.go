package resp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
)

const (
	// defaultReadBufferSize is the initial capacity of the read buffer.
	// The buffer grows as needed; frames are bounded only by memory.
	defaultReadBufferSize = 4 * 1024

	// defaultWriteBufferSize is the size of the buffered writer.
	defaultWriteBufferSize = 4 * 1024
)

// Connection owns a TCP stream together with a growing read buffer and
// exposes frame-level read and write operations on it.
//
// Thread-safety: ReadFrame and WriteFrame may be called from two
// different goroutines concurrently (one reader, one writer), but
// neither method may be called concurrently with itself.
type Connection struct {
	conn net.Conn
	w    *bufio.Writer

	// read buffer: unconsumed bytes live in buf[start:end]
	buf   []byte
	start int
	end   int
}

// NewConnection wraps an established socket.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		conn: conn,
		w:    bufio.NewWriterSize(conn, defaultWriteBufferSize),
		buf:  make([]byte, defaultReadBufferSize),
	}
}

// ReadFrame reads the next frame from the peer.
//
// It returns (nil, nil) iff the peer closed the connection cleanly at
// a frame boundary. If the connection is closed while a partial frame
// is buffered, it fails with "connection reset by peer". A malformed
// frame yields an error wrapping ErrProtocol; the caller must close
// the connection.
func (c *Connection) ReadFrame() (*Frame, error) {
	for {
		// Try to parse a complete frame from the buffered bytes.
		if c.end > c.start {
			n, err := Check(c.buf[c.start:c.end])
			if err == nil {
				frame, consumed, err := Parse(c.buf[c.start : c.start+n])
				if err != nil {
					return nil, err
				}
				c.start += consumed
				if c.start == c.end {
					c.start, c.end = 0, 0
				}
				return &frame, nil
			}
			if !errors.Is(err, ErrIncomplete) {
				return nil, err
			}
		}

		// Not enough buffered data: read more from the socket.
		c.grow()
		n, err := c.conn.Read(c.buf[c.end:])
		c.end += n
		if err != nil {
			if n > 0 && errors.Is(err, io.EOF) {
				// Data arrived together with EOF: parse it first, the
				// EOF resurfaces on the next read.
				continue
			}
			if errors.Is(err, io.EOF) {
				if c.start == c.end {
					// Clean shutdown at a frame boundary.
					return nil, nil
				}
				return nil, fmt.Errorf("connection reset by peer")
			}
			return nil, err
		}
	}
}

// grow makes room for the next socket read, compacting consumed bytes
// first and doubling the buffer when it is full of unread data.
func (c *Connection) grow() {
	if c.start > 0 {
		copy(c.buf, c.buf[c.start:c.end])
		c.end -= c.start
		c.start = 0
	}
	if c.end == len(c.buf) {
		bigger := make([]byte, len(c.buf)*2)
		copy(bigger, c.buf[:c.end])
		c.buf = bigger
	}
}

// WriteFrame encodes a frame and flushes it to the peer.
func (c *Connection) WriteFrame(f *Frame) error {
	if err := Write(*f, c.w); err != nil {
		return err
	}
	return c.w.Flush()
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.conn.Close()
}
