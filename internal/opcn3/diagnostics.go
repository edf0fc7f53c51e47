package opcn3

import "fmt"

// EventKind identifies a diagnostic event.
type EventKind int

const (
	// EventInitAck carries the reply to one step of the init sequence.
	EventInitAck EventKind = iota
	// EventPeripheralAck carries the reply to a fan or laser power byte.
	EventPeripheralAck
	// EventReversedReady reports a ready pattern received in reversed byte order.
	EventReversedReady
	// EventCooldown reports that the retry ceiling was hit and a cooldown began.
	EventCooldown
	// EventHistogramTrailer carries the unvalidated checksum/reserved bytes
	// that follow the decoded histogram fields.
	EventHistogramTrailer
	// EventPMChecksum carries the unvalidated checksum of a PM data payload.
	EventPMChecksum
)

func (k EventKind) String() string {
	switch k {
	case EventInitAck:
		return "init-ack"
	case EventPeripheralAck:
		return "peripheral-ack"
	case EventReversedReady:
		return "reversed-ready"
	case EventCooldown:
		return "cooldown"
	case EventHistogramTrailer:
		return "histogram-trailer"
	case EventPMChecksum:
		return "pm-checksum"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event exposes raw acknowledgement bytes that the driver deliberately does
// not validate, so callers can add their own checks.
type Event struct {
	Kind    EventKind
	Command byte   // command byte the event relates to, if any
	Step    int    // init step or attempt number
	Bytes   []byte // copy of the raw bytes
}

// DiagnosticFunc receives diagnostic events synchronously on the calling
// goroutine. It must not call back into the Driver.
type DiagnosticFunc func(Event)
