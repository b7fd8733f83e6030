package transport

import (
	"errors"
	"io"
	"sync"
)

// fakeConn is an in-memory Conn. Frames sent on in are read in order;
// closing in reads as a clean EOF; a value on fail reads as that error.
type fakeConn struct {
	in   chan Frame
	fail chan error

	mu       sync.Mutex
	written  []Frame
	writeErr error

	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan Frame, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame() (Frame, error) {
	select {
	case f, ok := <-c.in:
		if !ok {
			return Frame{}, io.EOF
		}
		return f, nil
	case err := <-c.fail:
		return Frame{}, err
	case <-c.closed:
		return Frame{}, io.ErrClosedPipe
	}
}

func (c *fakeConn) WriteFrame(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, f)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame{}, c.written...)
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

var errNetwork = errors.New("connection reset")
