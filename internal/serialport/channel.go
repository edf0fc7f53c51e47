package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/particulate.report/internal/monitoring"
	"github.com/banshee-data/particulate.report/internal/opcn3"
	"github.com/banshee-data/particulate.report/internal/timeutil"
)

// ErrShortWrite is returned when the port accepted fewer bytes than given.
var ErrShortWrite = errors.New("serialport: short write")

var _ opcn3.Channel = (*Channel)(nil)

// Channel adapts a Port to opcn3.Channel.
type Channel struct {
	mu      sync.Mutex
	port    Port
	clock   timeutil.Clock
	timeout time.Duration // last value handed to SetReadTimeout
}

// NewChannel wraps an open port. A nil clock uses the wall clock.
func NewChannel(port Port, clock timeutil.Clock) *Channel {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Channel{port: port, clock: clock}
}

// Write sends p in order. A port that takes only part of p is an error.
func (c *Channel) Write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.port.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(p))
	}
	return nil
}

// ReadUpTo collects up to n bytes, giving up once timeout has elapsed or the
// port reports a read with nothing in it. Fewer than n bytes is not an error.
func (c *Channel) ReadUpTo(n int, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := make([]byte, n)
	got := 0
	deadline := c.clock.Now().Add(timeout)
	for got < n {
		remaining := c.clock.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := c.setTimeout(remaining); err != nil {
			return buf[:got], err
		}

		k, err := c.port.Read(buf[got:])
		got += k
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return buf[:got], err
		}
		if k == 0 {
			// the port's own timeout expired
			break
		}
	}
	if got < n {
		monitoring.Debugf("[serialport] short read: %d of %d bytes", got, n)
	}
	return buf[:got], nil
}

// setTimeout pushes the timeout to the port, rounded up to whole
// milliseconds so small remainders do not thrash the driver.
func (c *Channel) setTimeout(d time.Duration) error {
	d = d.Round(time.Millisecond)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	if d == c.timeout {
		return nil
	}
	if err := c.port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	c.timeout = d
	return nil
}

// Close closes the underlying port.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port.Close()
}
