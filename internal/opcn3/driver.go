// Package opcn3 drives an Alphasense OPC-N3 optical particle counter through
// a USB-SPI adapter that is exposed as a byte-duplex serial channel.
//
// Every command class follows the same handshake: the host writes the device
// address and a command byte, the device answers with a 2-byte ready pattern,
// and only then is the payload exchanged. A device that is still busy answers
// with something else and is polled again. After MaxAttempts failed polls the
// driver waits for the device's SPI buffer to clear. Power commands keep
// polling after the cooldown; data requests re-run the init sequence and
// report that no data was read for this call.
//
// The device accepts one transaction at a time. The Driver serializes its own
// operations, but the Channel must not be shared with anything else.
package opcn3

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/particulate.report/internal/monitoring"
)

// Driver talks to one OPC-N3.
type Driver struct {
	mu  sync.Mutex
	ch  Channel
	cfg Config

	// Last commanded state. Nothing reads it back from the hardware.
	fanOn   bool
	laserOn bool

	latest *Measurement
}

// New creates a Driver around an already opened channel. It performs no I/O;
// call Initialize before anything else.
func New(ch Channel, opts ...Option) *Driver {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Commands = cfg.Commands.clone()
	return &Driver{ch: ch, cfg: cfg}
}

// Commands returns a copy of the command table in use.
func (d *Driver) Commands() Commands {
	return d.cfg.Commands.clone()
}

// FanOn reports the last commanded fan state. It is not confirmed by the device.
func (d *Driver) FanOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fanOn
}

// LaserOn reports the last commanded laser state. It is not confirmed by the device.
func (d *Driver) LaserOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.laserOn
}

// Latest returns the result of the most recent histogram read. It is false
// before the first read and after a read that produced no data.
func (d *Driver) Latest() (Measurement, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest == nil {
		return Measurement{}, false
	}
	return *d.latest, true
}

// Initialize switches the adapter into SPI pass-through mode. The replies are
// not checked; only a channel failure is reported.
func (d *Driver) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialize()
}

func (d *Driver) initialize() error {
	cmds := d.cfg.Commands
	d.sleep(d.cfg.Timing.Boot)
	for i, group := range cmds.InitSequence {
		if err := d.write(group); err != nil {
			return fmt.Errorf("init step %d: %w", i, err)
		}
		reply, err := d.read(cmds.InitResponseLengths[i])
		if err != nil {
			return fmt.Errorf("init step %d: %w", i, err)
		}
		monitoring.Debugf("[opcn3] init step %d reply % X", i, reply)
		d.emit(Event{Kind: EventInitAck, Command: group[len(group)-1], Step: i, Bytes: reply})
		d.sleep(d.cfg.Timing.Short)
	}
	return nil
}

// SetFanPower switches the fan on or off. It blocks until the device accepts
// the command, which by default may take forever.
func (d *Driver) SetFanPower(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.peripheral(d.cfg.Commands.fanCode(on)); err != nil {
		return fmt.Errorf("set fan power: %w", err)
	}
	d.fanOn = on
	return nil
}

// SetLaserPower switches the laser on or off. It blocks like SetFanPower.
func (d *Driver) SetLaserPower(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.peripheral(d.cfg.Commands.laserCode(on)); err != nil {
		return fmt.Errorf("set laser power: %w", err)
	}
	d.laserOn = on
	return nil
}

// peripheral runs the power handshake for one code. It only returns once the
// device was ready, the channel failed, or the optional cooldown bound ran out.
func (d *Driver) peripheral(code byte) error {
	cmds := d.cfg.Commands
	attempts := 0
	cycles := 0
	for {
		attempts++
		state, err := d.probe(cmds.PeripheralCommand)
		if err != nil {
			return err
		}
		if state != notReady {
			d.sleep(d.cfg.Timing.Short)
			if err := d.write([]byte{cmds.DeviceAddress, code}); err != nil {
				return err
			}
			ack, err := d.read(2)
			if err != nil {
				return err
			}
			d.emit(Event{Kind: EventPeripheralAck, Command: code, Step: attempts, Bytes: ack})
			d.sleep(d.cfg.Timing.Settle)
			return nil
		}

		if attempts > d.cfg.MaxAttempts {
			cycles++
			if d.cfg.MaxCooldownCycles > 0 && cycles > d.cfg.MaxCooldownCycles {
				return fmt.Errorf("%w: command 0x%02X after %d cycles", ErrCooldownLimit, code, d.cfg.MaxCooldownCycles)
			}
			d.cooldown(cmds.PeripheralCommand, attempts)
			attempts = 0
			continue
		}
		d.sleep(d.cfg.Timing.Retry)
	}
}

// ReadMeasurement requests, reads and decodes one histogram. Bin counts are
// included only when useBinData is set.
//
// A busy device or a garbled frame is retried. When the retry ceiling is
// exceeded the driver cools down, re-runs the init sequence and returns
// (nil, nil): no measurement this time, but nothing fatal either. Only a
// channel failure produces an error.
func (d *Driver) ReadMeasurement(useBinData bool) (*Measurement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	payload, err := d.request(d.cfg.Commands.RequestHistogram, HistogramLength)
	if err != nil {
		return nil, fmt.Errorf("read histogram: %w", err)
	}
	if payload == nil {
		d.latest = nil
		return nil, nil
	}

	m, err := DecodeHistogram(payload, useBinData)
	if err != nil {
		// request already checked the length
		return nil, fmt.Errorf("read histogram: %w", err)
	}
	d.emit(Event{Kind: EventHistogramTrailer, Command: d.cfg.Commands.RequestHistogram, Bytes: payload[offsetTrailer:]})

	d.latest = &m
	out := m
	return &out, nil
}

// ReadPMData requests the PM-only data set. The device resets its histogram
// when it answers. It follows the same retry and hard-failure rules as
// ReadMeasurement.
func (d *Driver) ReadPMData() (*PMData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	payload, err := d.request(d.cfg.Commands.RequestPMData, PMDataLength)
	if err != nil {
		return nil, fmt.Errorf("read PM data: %w", err)
	}
	if payload == nil {
		return nil, nil
	}

	pm, err := DecodePMData(payload)
	if err != nil {
		return nil, fmt.Errorf("read PM data: %w", err)
	}
	d.emit(Event{Kind: EventPMChecksum, Command: d.cfg.Commands.RequestPMData, Bytes: payload[PMDataLength-2:]})
	return &pm, nil
}

// request polls cmd until a payload of length n is read. A nil payload with
// a nil error means the retry ceiling was hit and the adapter was
// re-initialised.
func (d *Driver) request(cmd byte, n int) ([]byte, error) {
	attempts := 0
	for {
		attempts++
		payload, err := d.transfer(cmd, n)
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, ErrNotReady) && !errors.Is(err, ErrMalformedFrame) {
			return nil, err
		}
		monitoring.Debugf("[opcn3] command 0x%02X attempt %d: %v", cmd, attempts, err)

		if attempts > d.cfg.MaxAttempts {
			d.cooldown(cmd, attempts)
			if err := d.initialize(); err != nil {
				return nil, fmt.Errorf("reinitialise: %w", err)
			}
			monitoring.Logf("[opcn3] no data for command 0x%02X after %d attempts", cmd, attempts)
			return nil, nil
		}
		d.sleep(d.cfg.Timing.Retry)
	}
}

// transfer performs one ready check and, if the device is ready, clocks n
// payload bytes out of it with filler probes.
func (d *Driver) transfer(cmd byte, n int) ([]byte, error) {
	cmds := d.cfg.Commands
	state, err := d.probe(cmd)
	if err != nil {
		return nil, err
	}
	if state == notReady {
		return nil, ErrNotReady
	}

	filler := []byte{cmds.DeviceAddress, cmds.Filler}
	for i := 0; i < n; i++ {
		if err := d.write(filler); err != nil {
			return nil, err
		}
		d.sleep(d.cfg.Timing.Short)
	}

	raw, err := d.read(2 * n)
	if err != nil {
		return nil, err
	}
	payload := StripFiller(raw)
	if len(payload) != n {
		return nil, fmt.Errorf("%w: got %d of %d bytes", ErrMalformedFrame, len(payload), n)
	}
	return payload, nil
}

// probe asks whether the device is ready for cmd.
func (d *Driver) probe(cmd byte) (readiness, error) {
	cmds := d.cfg.Commands
	if err := d.write([]byte{cmds.DeviceAddress, cmd}); err != nil {
		return notReady, err
	}
	reply, err := d.read(2)
	if err != nil {
		return notReady, err
	}

	state := cmds.classifyReady(reply)
	if state == readyReversed {
		monitoring.Logf("[opcn3] command 0x%02X acknowledged with reversed ready pattern % X", cmd, reply)
		d.emit(Event{Kind: EventReversedReady, Command: cmd, Bytes: reply})
	}
	return state, nil
}

func (d *Driver) cooldown(cmd byte, attempts int) {
	monitoring.Logf("[opcn3] command 0x%02X not ready after %d attempts, cooling down for %v", cmd, attempts, d.cfg.Timing.Cooldown)
	d.emit(Event{Kind: EventCooldown, Command: cmd, Step: attempts})
	d.sleep(d.cfg.Timing.Cooldown)
}

func (d *Driver) write(p []byte) error {
	return wrapChannel("write", d.ch.Write(p))
}

func (d *Driver) read(n int) ([]byte, error) {
	b, err := d.ch.ReadUpTo(n, d.cfg.ReadTimeout)
	if err != nil {
		return nil, wrapChannel("read", err)
	}
	return b, nil
}

func (d *Driver) sleep(dur time.Duration) {
	if dur > 0 {
		d.cfg.Clock.Sleep(dur)
	}
}

func (d *Driver) emit(ev Event) {
	if d.cfg.Diagnostics == nil {
		return
	}
	ev.Bytes = append([]byte(nil), ev.Bytes...)
	d.cfg.Diagnostics(ev)
}
