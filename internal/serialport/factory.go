package serialport

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/banshee-data/particulate.report/internal/monitoring"
)

// OpenPort opens the serial device at path with the given options. It is the
// default Opener.
func OpenPort(path string, opts PortOptions) (Port, error) {
	opts, err := opts.Normalise()
	if err != nil {
		return nil, err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}
	monitoring.Logf("[serialport] opened %s at %s", path, opts)
	return port, nil
}

// Open opens the port at path and wraps it as a Channel on the wall clock.
func Open(path string, opts PortOptions) (*Channel, error) {
	return OpenWith(OpenPort, path, opts)
}

// OpenWith is Open with a substitute opener.
func OpenWith(open Opener, path string, opts PortOptions) (*Channel, error) {
	port, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	return NewChannel(port, nil), nil
}
