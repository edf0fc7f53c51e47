package opcn3

import "time"

// Channel is the byte-duplex link to the USB-SPI adapter. The caller owns
// it; a Driver only borrows it and never closes it.
type Channel interface {
	// Write sends p in order. Any error is fatal to the current operation.
	Write(p []byte) error

	// ReadUpTo returns whatever bytes arrived within timeout, at most n.
	// A short or empty result is not an error.
	ReadUpTo(n int, timeout time.Duration) ([]byte, error)
}
