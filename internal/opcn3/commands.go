package opcn3

import "bytes"

// Commands is the OPC-N3 command byte table, taken from Alphasense document
// 072-0503 (Supplemental SPI information for the OPC-N3). The values are
// protocol constants; a Driver captures a copy at construction and never
// mutates it.
type Commands struct {
	AdapterAddress    byte // USB-SPI adapter
	DeviceAddress     byte // the OPC itself
	PeripheralCommand byte // precedes a fan/laser power byte
	FanOff            byte
	FanOn             byte
	LaserOff          byte
	LaserOn           byte
	RequestHistogram  byte
	RequestPMData     byte // also resets the histogram
	Filler            byte // "any value" byte clocked in per payload byte

	// InitSequence places the adapter into SPI pass-through mode. Each group
	// is written in turn and answered with up to InitResponseLengths bytes.
	InitSequence        [][]byte
	InitResponseLengths []int

	// Ready is the documented acknowledgement for a command class.
	Ready [2]byte
}

// DefaultCommands returns the command table for the OPC-N3.
func DefaultCommands() Commands {
	return Commands{
		AdapterAddress:    0x5A,
		DeviceAddress:     0x61,
		PeripheralCommand: 0x03,
		FanOff:            0x02,
		FanOn:             0x03,
		LaserOff:          0x06,
		LaserOn:           0x07,
		RequestHistogram:  0x30,
		RequestPMData:     0x32,
		Filler:            0x45,
		InitSequence: [][]byte{
			{0x5A, 0x01},
			{0x5A, 0x03},
			{0x5A, 0x02, 0x92, 0x07}, // SPI clock setting
		},
		InitResponseLengths: []int{3, 9, 2},
		Ready:               [2]byte{0xFF, 0xF3},
	}
}

// clone returns a deep copy so callers cannot alter a driver's table through
// shared slices.
func (c Commands) clone() Commands {
	out := c
	out.InitSequence = make([][]byte, len(c.InitSequence))
	for i, group := range c.InitSequence {
		out.InitSequence[i] = append([]byte(nil), group...)
	}
	out.InitResponseLengths = append([]int(nil), c.InitResponseLengths...)
	return out
}

// readiness classifies a 2-byte reply to a command-class probe.
type readiness int

const (
	notReady readiness = iota
	ready
	readyReversed
)

// classifyReady tests the reply for membership in {Ready, reversed(Ready)}.
// The reversed order is not in the device documentation but has always been
// accepted by this driver, so it is kept and reported separately.
func (c Commands) classifyReady(reply []byte) readiness {
	if len(reply) != 2 {
		return notReady
	}
	if bytes.Equal(reply, c.Ready[:]) {
		return ready
	}
	if reply[0] == c.Ready[1] && reply[1] == c.Ready[0] {
		return readyReversed
	}
	return notReady
}

func (c Commands) fanCode(on bool) byte {
	if on {
		return c.FanOn
	}
	return c.FanOff
}

func (c Commands) laserCode(on bool) byte {
	if on {
		return c.LaserOn
	}
	return c.LaserOff
}
