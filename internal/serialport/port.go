// Package serialport carries the OPC-N3 byte channel over a real serial link.
package serialport

import (
	"io"
	"time"
)

// Port is the minimal serial port the channel needs. go.bug.st/serial.Port
// satisfies it, as does TestableSerialPort.
type Port interface {
	io.ReadWriteCloser
	// SetReadTimeout bounds a single Read. A Read that times out returns
	// zero bytes and no error.
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens a port at path. It lets callers substitute the real opener.
type Opener func(path string, opts PortOptions) (Port, error)
