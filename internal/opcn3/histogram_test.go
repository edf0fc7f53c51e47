package opcn3

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFrame() HistogramFrame {
	f := HistogramFrame{
		TimeOfFlight:   30,
		Period:         1234,
		FlowRate:       550,
		TemperatureRaw: 32768,
		HumidityRaw:    16384,
		PM1:            1.23,
		PM2_5:          4.56,
		PM10:           7.89,
	}
	for i := range f.Bins {
		f.Bins[i] = uint16(i*1000 + 7)
	}
	return f
}

func TestStripFiller(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want []byte
	}{
		{"empty", nil, []byte{}},
		{"single filler", []byte{0x61}, []byte{}},
		{"pairs", []byte{0x61, 0x01, 0x61, 0x02, 0x61, 0x03}, []byte{0x01, 0x02, 0x03}},
		{"dangling filler", []byte{0x61, 0x0A, 0x61}, []byte{0x0A}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFiller(tt.raw))
		})
	}
}

func TestInterleaveFillerInvertsStrip(t *testing.T) {
	payload := sampleFrame().Encode()
	raw := InterleaveFiller(payload, 0x61)

	require.Len(t, raw, 2*HistogramLength)
	for i := 0; i < len(raw); i += 2 {
		assert.Equal(t, byte(0x61), raw[i], "filler at wire position %d", i)
	}
	assert.Equal(t, payload, StripFiller(raw))
}

func TestCombineBytes(t *testing.T) {
	assert.Equal(t, uint16(0x1234), CombineBytes(0x34, 0x12))
	assert.Equal(t, uint16(0xFFFF), CombineBytes(0xFF, 0xFF))
	assert.Equal(t, uint16(0x00FF), CombineBytes(0xFF, 0x00))
}

func TestConversionBoundaries(t *testing.T) {
	assert.InDelta(t, -45.0, ConvertTemperature(0), 1e-9)
	assert.InDelta(t, 130.0, ConvertTemperature(65535), 1e-9)
	assert.InDelta(t, 0.0, ConvertHumidity(0), 1e-9)
	assert.InDelta(t, 100.0, ConvertHumidity(65535), 1e-9)

	for _, tc := range []struct {
		raw      uint16
		temp, rh float64
	}{
		{0, -45, 0},
		{65535, 130, 100},
	} {
		f := HistogramFrame{TemperatureRaw: tc.raw, HumidityRaw: tc.raw}
		m, err := DecodeHistogram(f.Encode(), false)
		require.NoError(t, err)
		assert.Equal(t, tc.temp, m.Temperature)
		assert.Equal(t, tc.rh, m.RelativeHumidity)
	}
}

func TestDecodeHistogram_Fields(t *testing.T) {
	m, err := DecodeHistogram(sampleFrame().Encode(), false)
	require.NoError(t, err)

	want := Measurement{
		TimeOfFlight:     10,
		SamplePeriod:     12.34,
		FlowRate:         5.5,
		Temperature:      42.501,
		RelativeHumidity: 25,
		PM1:              1.23,
		PM2_5:            4.56,
		PM10:             7.89,
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("DecodeHistogram mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, m.HasBins())
}

func TestDecodeHistogram_BinRoundTrip(t *testing.T) {
	frame := sampleFrame()
	frame.Bins[0] = 0
	frame.Bins[23] = 65535

	m, err := DecodeHistogram(frame.Encode(), true)
	require.NoError(t, err)
	require.Len(t, m.Bins, BinCount)
	for i, want := range frame.Bins {
		assert.Equal(t, want, m.Bins[i], BinName(i))
	}
	assert.Equal(t, 1.23, m.PM1)
	assert.Equal(t, 4.56, m.PM2_5)
	assert.Equal(t, 7.89, m.PM10)
}

func TestDecodeHistogram_Deterministic(t *testing.T) {
	payload := sampleFrame().Encode()
	first, err := DecodeHistogram(payload, true)
	require.NoError(t, err)

	// decode something else in between to rule out hidden state
	_, err = DecodeHistogram(HistogramFrame{PM1: 99}.Encode(), true)
	require.NoError(t, err)

	second, err := DecodeHistogram(payload, true)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("decode not deterministic (-first +second):\n%s", diff)
	}
}

func TestDecodeHistogram_WrongLength(t *testing.T) {
	for _, n := range []int{0, 85, 87, 172} {
		_, err := DecodeHistogram(make([]byte, n), false)
		if !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("len %d: err = %v, want ErrMalformedFrame", n, err)
		}
	}
}

func TestMeasurementFields(t *testing.T) {
	m, err := DecodeHistogram(sampleFrame().Encode(), true)
	require.NoError(t, err)

	fields := m.Fields()
	require.Len(t, fields, 8+BinCount)

	names := make([]string, 0, len(fields))
	for _, f := range fields[:8] {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		ColumnTimeOfFlight, ColumnPeriod, ColumnFlowRate, ColumnTemperature,
		ColumnHumidity, ColumnPM1, ColumnPM2_5, ColumnPM10,
	}, names)
	assert.Equal(t, "Bin 0", fields[8].Name)
	assert.Equal(t, "Bin 23", fields[len(fields)-1].Name)
	assert.Equal(t, float64(23*1000+7), fields[len(fields)-1].Value)

	m.Bins = nil
	assert.Len(t, m.Fields(), 8)
}

func TestDecodePMData(t *testing.T) {
	pm, err := DecodePMData(EncodePMData(1.5, 2.25, 3.125, 0xBEEF))
	require.NoError(t, err)
	assert.Equal(t, PMData{PM1: 1.5, PM2_5: 2.25, PM10: 3.125}, pm)

	_, err = DecodePMData(make([]byte, 13))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestClassifyReady(t *testing.T) {
	c := DefaultCommands()
	assert.Equal(t, ready, c.classifyReady([]byte{0xFF, 0xF3}))
	assert.Equal(t, readyReversed, c.classifyReady([]byte{0xF3, 0xFF}))
	assert.Equal(t, notReady, c.classifyReady([]byte{0x31, 0xF3}))
	assert.Equal(t, notReady, c.classifyReady([]byte{0xFF}))
	assert.Equal(t, notReady, c.classifyReady(nil))
}
