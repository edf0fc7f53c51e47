package opcn3

import (
	"bytes"
	"sync"
	"time"
)

// busyReply is what the mock answers to a probe while not ready.
var busyReply = []byte{0x31, 0xF3}

type mockState int

const (
	mockIdle mockState = iota
	mockAwaitPower
	mockStreaming
)

// MockDevice implements Channel as a scripted OPC-N3 behind its USB-SPI
// adapter. It answers synchronously: every Write queues the bytes the real
// device would clock back, and ReadUpTo drains that queue without blocking.
type MockDevice struct {
	mu   sync.Mutex
	cmds Commands
	out  bytes.Buffer

	state    mockState
	payload  []byte
	streamed int

	// NotReadyProbes is the number of upcoming probes answered with a busy
	// reply before the device reports ready.
	NotReadyProbes int

	// AlwaysBusy makes every probe answer busy.
	AlwaysBusy bool

	// Reversed answers ready probes with the byte-swapped ready pattern.
	Reversed bool

	// Echo is the byte the adapter returns in front of every payload byte.
	Echo byte

	// Frame is returned for every histogram request when Frames is empty.
	Frame HistogramFrame

	// Frames are consumed one per histogram request before Frame is used.
	Frames []HistogramFrame

	// NextFrame, if set, replaces Frames and Frame.
	NextFrame func() HistogramFrame

	// PMData is the payload returned for PM data requests.
	PMData []byte

	// TruncateTransfers is the number of upcoming payload transfers that
	// return one byte short.
	TruncateTransfers int

	// WriteErr and ReadErr, when set, are returned by every call.
	WriteErr error
	ReadErr  error

	writes       [][]byte
	inits        int
	probes       int
	power        []byte
	histRequests int
	pmRequests   int
}

// NewMockDevice returns a device that is immediately ready, echoes the device
// address in front of payload bytes, and serves an all-zero histogram.
func NewMockDevice() *MockDevice {
	cmds := DefaultCommands()
	return &MockDevice{
		cmds:   cmds,
		Echo:   cmds.DeviceAddress,
		PMData: make([]byte, PMDataLength),
	}
}

// Write implements Channel.
func (m *MockDevice) Write(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.writes = append(m.writes, append([]byte(nil), p...))

	if len(p) == 0 {
		return nil
	}
	if p[0] == m.cmds.AdapterAddress {
		m.adapterCommand(p)
		return nil
	}
	if p[0] != m.cmds.DeviceAddress || len(p) < 2 {
		return nil
	}

	cmd := p[1]
	switch m.state {
	case mockAwaitPower:
		m.power = append(m.power, cmd)
		m.out.Write([]byte{0x03, cmd})
		m.state = mockIdle
		return nil
	case mockStreaming:
		if cmd == m.cmds.Filler {
			m.streamByte()
			return nil
		}
		// any other command abandons the transfer
		m.state = mockIdle
	}

	switch cmd {
	case m.cmds.PeripheralCommand:
		if m.probe() {
			m.state = mockAwaitPower
		}
	case m.cmds.RequestHistogram:
		m.histRequests++
		if m.probe() {
			m.startStream(m.nextHistogram())
		}
	case m.cmds.RequestPMData:
		m.pmRequests++
		if m.probe() {
			m.startStream(append([]byte(nil), m.PMData...))
		}
	}
	return nil
}

// ReadUpTo implements Channel. It never waits: whatever is queued, up to n
// bytes, is returned at once.
func (m *MockDevice) ReadUpTo(n int, _ time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if n > m.out.Len() {
		n = m.out.Len()
	}
	b := make([]byte, n)
	copy(b, m.out.Next(n))
	return b, nil
}

func (m *MockDevice) adapterCommand(p []byte) {
	for i, group := range m.cmds.InitSequence {
		if !bytes.Equal(p, group) {
			continue
		}
		if i == 0 {
			m.inits++
			m.state = mockIdle
			m.out.Reset()
		}
		reply := make([]byte, m.cmds.InitResponseLengths[i])
		for j := range reply {
			reply[j] = 0xF3
		}
		m.out.Write(reply)
		return
	}
}

// probe answers a command-class probe and reports whether it was ready.
func (m *MockDevice) probe() bool {
	m.probes++
	if m.AlwaysBusy || m.NotReadyProbes > 0 {
		if m.NotReadyProbes > 0 {
			m.NotReadyProbes--
		}
		m.out.Write(busyReply)
		return false
	}
	if m.Reversed {
		m.out.Write([]byte{m.cmds.Ready[1], m.cmds.Ready[0]})
	} else {
		m.out.Write(m.cmds.Ready[:])
	}
	return true
}

func (m *MockDevice) nextHistogram() []byte {
	switch {
	case m.NextFrame != nil:
		return m.NextFrame().Encode()
	case len(m.Frames) > 0:
		f := m.Frames[0]
		m.Frames = m.Frames[1:]
		return f.Encode()
	default:
		return m.Frame.Encode()
	}
}

func (m *MockDevice) startStream(payload []byte) {
	if m.TruncateTransfers > 0 {
		m.TruncateTransfers--
		payload = payload[:len(payload)-1]
	}
	m.payload = payload
	m.streamed = 0
	m.state = mockStreaming
}

func (m *MockDevice) streamByte() {
	if m.streamed >= len(m.payload) {
		return
	}
	m.out.Write([]byte{m.Echo, m.payload[m.streamed]})
	m.streamed++
	if m.streamed == len(m.payload) {
		m.state = mockIdle
	}
}

// Writes returns a copy of every write received.
func (m *MockDevice) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	for i, w := range m.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// InitSequences returns how many times the init sequence was started.
func (m *MockDevice) InitSequences() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inits
}

// Probes returns how many command-class probes were answered.
func (m *MockDevice) Probes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

// PowerCommands returns the fan/laser codes accepted, in order.
func (m *MockDevice) PowerCommands() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.power...)
}

// HistogramRequests returns how many histogram requests were received.
func (m *MockDevice) HistogramRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.histRequests
}

// PMDataRequests returns how many PM data requests were received.
func (m *MockDevice) PMDataRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pmRequests
}
