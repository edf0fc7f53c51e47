package serialport

import (
	"testing"
	"time"

	"go.bug.st/serial"
)

func TestPortOptions_Normalise_Defaults(t *testing.T) {
	got, err := PortOptions{}.Normalise()
	if err != nil {
		t.Fatalf("Normalise() error = %v", err)
	}
	want := PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N", ReadTimeout: time.Second}
	if got != want {
		t.Errorf("Normalise() = %+v, want %+v", got, want)
	}
	if DefaultPortOptions() != want {
		t.Errorf("DefaultPortOptions() = %+v, want %+v", DefaultPortOptions(), want)
	}
}

func TestPortOptions_Normalise_ExplicitValues(t *testing.T) {
	opts := PortOptions{BaudRate: 115200, DataBits: 7, StopBits: 2, Parity: " even ", ReadTimeout: 250 * time.Millisecond}
	got, err := opts.Normalise()
	if err != nil {
		t.Fatalf("Normalise() error = %v", err)
	}
	if got.BaudRate != 115200 || got.DataBits != 7 || got.StopBits != 2 {
		t.Errorf("Normalise() = %+v", got)
	}
	if got.Parity != "E" {
		t.Errorf("Parity = %q, want %q", got.Parity, "E")
	}
	if got.ReadTimeout != 250*time.Millisecond {
		t.Errorf("ReadTimeout = %v, want 250ms", got.ReadTimeout)
	}
}

func TestPortOptions_Normalise_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"baud", PortOptions{BaudRate: 12345}},
		{"data bits low", PortOptions{DataBits: 4}},
		{"data bits high", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "mark"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.opts.Normalise(); err == nil {
				t.Errorf("Normalise(%+v) expected error", tt.opts)
			}
			if _, err := tt.opts.SerialMode(); err == nil {
				t.Errorf("SerialMode(%+v) expected error", tt.opts)
			}
		})
	}
}

func TestPortOptions_Equal(t *testing.T) {
	if !(PortOptions{}).Equal(PortOptions{BaudRate: 9600, Parity: "none"}) {
		t.Error("defaults should equal explicit 9600 8N1")
	}
	if (PortOptions{}).Equal(PortOptions{BaudRate: 19200}) {
		t.Error("different baud rates should not be equal")
	}
	if (PortOptions{Parity: "x"}).Equal(PortOptions{Parity: "x"}) {
		t.Error("invalid options should never be equal")
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	tests := []struct {
		opts     PortOptions
		parity   serial.Parity
		stopBits serial.StopBits
	}{
		{PortOptions{}, serial.NoParity, serial.OneStopBit},
		{PortOptions{Parity: "O", StopBits: 2}, serial.OddParity, serial.TwoStopBits},
		{PortOptions{Parity: "E"}, serial.EvenParity, serial.OneStopBit},
	}
	for _, tt := range tests {
		mode, err := tt.opts.SerialMode()
		if err != nil {
			t.Fatalf("SerialMode(%+v) error = %v", tt.opts, err)
		}
		if mode.BaudRate != 9600 || mode.DataBits != 8 {
			t.Errorf("SerialMode(%+v) = %+v", tt.opts, mode)
		}
		if mode.Parity != tt.parity {
			t.Errorf("Parity = %v, want %v", mode.Parity, tt.parity)
		}
		if mode.StopBits != tt.stopBits {
			t.Errorf("StopBits = %v, want %v", mode.StopBits, tt.stopBits)
		}
	}
}

func TestPortOptions_String(t *testing.T) {
	if got := (PortOptions{}).String(); got != "9600 8N1" {
		t.Errorf("String() = %q, want %q", got, "9600 8N1")
	}
	if got := (PortOptions{BaudRate: 19200, Parity: "odd", StopBits: 2}).String(); got != "19200 8O2" {
		t.Errorf("String() = %q, want %q", got, "19200 8O2")
	}
}
