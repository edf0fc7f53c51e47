package serialport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// errPortClosed is returned by TestableSerialPort after Close.
var errPortClosed = errors.New("serial port closed")

// TestableSerialPort implements Port with configurable behaviour for testing.
// Reads never block: an empty buffer reads as a timed-out read.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadChunk caps the bytes returned by one Read, 0 means no cap
	ReadChunk int

	// ShortWrite makes Write accept one byte less than given
	ShortWrite bool

	// Responder, if set, is called with every write and its reply is
	// queued for reading, like a device answering on the other end.
	Responder func(p []byte) []byte

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// TimeoutError is returned by SetReadTimeout if set
	TimeoutError error

	// Closed indicates whether Close was called
	Closed bool

	ReadCalls  int
	WriteCalls int

	// ReadTimeout is the current read timeout
	ReadTimeout time.Duration

	// TimeoutCalls records the number of SetReadTimeout calls
	TimeoutCalls int
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	return &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

// Read reads from the read buffer. It returns (0, nil) when the buffer is
// empty, which is how go.bug.st/serial reports a read timeout.
func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++
	if t.Closed {
		return 0, errPortClosed
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	if t.ReadBuffer.Len() == 0 {
		return 0, nil
	}
	if t.ReadChunk > 0 && len(p) > t.ReadChunk {
		p = p[:t.ReadChunk]
	}
	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer and queues the Responder's reply.
func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++
	if t.Closed {
		return 0, errPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	if t.ShortWrite && len(p) > 0 {
		p = p[:len(p)-1]
	}
	n, _ := t.WriteBuffer.Write(p)
	if t.Responder != nil {
		t.ReadBuffer.Write(t.Responder(p))
	}
	return n, nil
}

// Close marks the port as closed.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return nil
}

// SetReadTimeout implements Port.
func (t *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TimeoutCalls++
	if t.TimeoutError != nil {
		return t.TimeoutError
	}
	t.ReadTimeout = timeout
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.Write(data)
}

// GetWrittenData returns a copy of all data written to the port.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.WriteBuffer.Bytes()...)
}

// MockOpener records Open calls and hands out a fixed port.
type MockOpener struct {
	mu sync.Mutex

	// Port is the port to return from Open
	Port Port

	// Error is returned by Open if set
	Error error

	// Calls records every Open call
	Calls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path    string
	Options PortOptions
}

// Open implements Opener.
func (o *MockOpener) Open(path string, opts PortOptions) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Calls = append(o.Calls, MockOpenCall{Path: path, Options: opts})
	if o.Error != nil {
		return nil, o.Error
	}
	return o.Port, nil
}
