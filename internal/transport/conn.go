package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// Conn is a bidirectional frame stream.
type Conn interface {
	// ReadFrame blocks until a frame arrives. It returns io.EOF when the
	// peer closed the stream cleanly and an error wrapping
	// ErrMalformedFrame for a line that is not a frame.
	ReadFrame() (Frame, error)
	WriteFrame(Frame) error
	Close() error
}

// Dialer opens a connection to a server.
type Dialer func(ctx context.Context) (Conn, error)

// maxFrameSize bounds one line. Designs may inline SVG data, so this is
// generous.
const maxFrameSize = 16 << 20

// StreamConn speaks newline-delimited JSON frames over a byte stream.
// Writes are serialized; reads must come from one goroutine.
type StreamConn struct {
	r      *bufio.Reader
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	once   sync.Once
}

// NewStreamConn wraps r and w. closer may be nil.
func NewStreamConn(r io.Reader, w io.Writer, closer io.Closer) *StreamConn {
	return &StreamConn{r: bufio.NewReaderSize(r, 64<<10), w: w, closer: closer}
}

// NetConn wraps a network connection.
func NetConn(c net.Conn) *StreamConn {
	return NewStreamConn(c, c, c)
}

// ReadFrame reads the next non-blank line as a frame.
func (c *StreamConn) ReadFrame() (Frame, error) {
	for {
		line, err := c.readLine()
		if len(line) > 0 {
			f, ferr := DecodeFrame(line)
			if ferr != nil {
				return Frame{}, ferr
			}
			return f, nil
		}
		if err != nil {
			return Frame{}, err
		}
	}
}

func (c *StreamConn) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := c.r.ReadLine()
		line = append(line, chunk...)
		if len(line) > maxFrameSize {
			return nil, fmt.Errorf("frame exceeds %d bytes", maxFrameSize)
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return line, nil
			}
			return line, err
		}
		if !isPrefix {
			return bytes.TrimSpace(line), nil
		}
	}
}

// WriteFrame writes f followed by a newline.
func (c *StreamConn) WriteFrame(f Frame) error {
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close closes the underlying stream once.
func (c *StreamConn) Close() error {
	var err error
	c.once.Do(func() {
		if c.closer != nil {
			err = c.closer.Close()
		}
	})
	return err
}

// TCPDialer dials addr over TCP.
func TCPDialer(addr string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		var d net.Dialer
		c, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return NetConn(c), nil
	}
}
