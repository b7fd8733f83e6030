package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/a2ui/internal/surface"
)

var (
	// ErrGaveUp is returned by Client.Run when reconnect attempts run out.
	ErrGaveUp = errors.New("reconnect attempts exhausted")

	// ErrProcessorStopped is returned when the processor stops accepting
	// batches.
	ErrProcessorStopped = errors.New("processor stopped")
)

// Client is the device side of the transport.
type Client struct {
	dial      Dialer
	processor *surface.Processor
	platform  string
	deviceID  string
	backoff   Backoff
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error

	onRegistered func(deviceID string)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBackoff sets the reconnect policy.
func WithBackoff(b Backoff) ClientOption {
	return func(c *Client) {
		c.backoff = b
	}
}

// WithDevice sets the platform and device id sent on register. An empty id
// lets the server assign one.
func WithDevice(platform, deviceID string) ClientOption {
	return func(c *Client) {
		c.platform = platform
		c.deviceID = deviceID
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSleep replaces the wait between reconnect attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = fn
	}
}

// OnRegistered is called with the server-assigned id after each
// successful registration.
func OnRegistered(fn func(deviceID string)) ClientOption {
	return func(c *Client) {
		c.onRegistered = fn
	}
}

// NewClient creates a client feeding p.
func NewClient(dial Dialer, p *surface.Processor, opts ...ClientOption) *Client {
	c := &Client{
		dial:      dial,
		processor: p,
		platform:  "go",
		backoff:   DefaultBackoff(),
		logger:    slog.Default(),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run connects and delivers batches until ctx is cancelled, the server
// closes the stream cleanly (nil), or reconnect attempts run out
// (ErrGaveUp).
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		conn, err := c.dial(ctx)
		if err == nil {
			attempt = 0
			err = c.serve(ctx, conn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == nil {
				c.logger.Info("server closed connection")
				return nil
			}
			if errors.Is(err, ErrProcessorStopped) {
				return err
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		if c.backoff.Exhausted(attempt) {
			return fmt.Errorf("%w after %d attempts: %v", ErrGaveUp, attempt-1, err)
		}
		delay := c.backoff.Delay(attempt)
		c.logger.Warn("connection failed, reconnecting", "attempt", attempt, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// serve runs one connection. It returns nil on a clean close.
func (c *Client) serve(ctx context.Context, conn Conn) error {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteFrame(RegisterFrame(c.platform, c.deviceID)); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	for {
		f, err := conn.ReadFrame()
		if errors.Is(err, ErrMalformedFrame) {
			c.logger.Warn("ignoring malformed frame", "error", err)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch f.Type {
		case FrameRegistered:
			c.logger.Info("registered", "device", f.DeviceID)
			if c.onRegistered != nil {
				c.onRegistered(f.DeviceID)
			}
		case FrameMessages:
			b := surface.Batch{Mode: surface.BatchLive, Source: "transport", Messages: f.Messages}
			if !c.processor.Enqueue(b) {
				return ErrProcessorStopped
			}
		default:
			c.logger.Debug("ignoring frame", "type", f.Type)
		}
	}
}
