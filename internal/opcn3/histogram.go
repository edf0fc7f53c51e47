package opcn3

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Payload sizes. Every payload byte arrives behind an echoed filler byte, so
// the wire carries twice as many bytes as the payload.
const (
	HistogramLength = 86
	PMDataLength    = 14
)

// Histogram payload offsets.
const (
	offsetBins         = 0
	offsetTimeOfFlight = 48
	offsetPeriod       = 52
	offsetFlowRate     = 54
	offsetTemperature  = 56
	offsetHumidity     = 58
	offsetPM1          = 60
	offsetPM2_5        = 64
	offsetPM10         = 68
	offsetTrailer      = 72
)

// TrailerLength is the size of the checksum/reserved tail of a histogram.
const TrailerLength = HistogramLength - offsetTrailer

// StripFiller drops the echoed filler byte in front of every payload byte.
// Bytes at even wire positions (0-indexed) are discarded and the odd ones
// kept in order, so an odd-length read loses its dangling filler.
func StripFiller(raw []byte) []byte {
	out := make([]byte, 0, len(raw)/2)
	for i := 1; i < len(raw); i += 2 {
		out = append(out, raw[i])
	}
	return out
}

// InterleaveFiller is the inverse of StripFiller: it puts echo in front of
// every payload byte, producing what the adapter returns on the wire.
func InterleaveFiller(payload []byte, echo byte) []byte {
	out := make([]byte, 0, len(payload)*2)
	for _, b := range payload {
		out = append(out, echo, b)
	}
	return out
}

// CombineBytes joins a least and most significant byte into a uint16.
func CombineBytes(lsb, msb byte) uint16 {
	return uint16(msb)<<8 | uint16(lsb)
}

// ConvertTemperature converts the raw temperature reading to °C.
func ConvertTemperature(raw uint16) float64 {
	return -45 + 175*(float64(raw)/65535)
}

// ConvertHumidity converts the raw humidity reading to % relative humidity.
func ConvertHumidity(raw uint16) float64 {
	return 100 * (float64(raw) / 65535)
}

func float32At(p []byte, off int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(p[off : off+4])))
}

func uint16At(p []byte, off int) uint16 {
	return CombineBytes(p[off], p[off+1])
}

// DecodeHistogram decodes an 86-byte histogram payload. It is pure: the same
// bytes always give the same Measurement. Bins are only decoded when useBins
// is set; otherwise Measurement.Bins stays nil.
func DecodeHistogram(payload []byte, useBins bool) (Measurement, error) {
	if len(payload) != HistogramLength {
		return Measurement{}, fmt.Errorf("%w: histogram is %d bytes, want %d", ErrMalformedFrame, len(payload), HistogramLength)
	}

	m := Measurement{
		TimeOfFlight:     round3(float32At(payload, offsetTimeOfFlight) / 3),
		SamplePeriod:     round3(float64(uint16At(payload, offsetPeriod)) / 100),
		FlowRate:         round3(float64(uint16At(payload, offsetFlowRate)) / 100),
		Temperature:      round3(ConvertTemperature(uint16At(payload, offsetTemperature))),
		RelativeHumidity: round3(ConvertHumidity(uint16At(payload, offsetHumidity))),
		PM1:              round3(float32At(payload, offsetPM1)),
		PM2_5:            round3(float32At(payload, offsetPM2_5)),
		PM10:             round3(float32At(payload, offsetPM10)),
	}

	if useBins {
		m.Bins = make([]uint16, BinCount)
		for i := range m.Bins {
			m.Bins[i] = uint16At(payload, offsetBins+2*i)
		}
	}
	return m, nil
}

// DecodePMData decodes a 14-byte PM data payload. The trailing checksum is
// not validated.
func DecodePMData(payload []byte) (PMData, error) {
	if len(payload) != PMDataLength {
		return PMData{}, fmt.Errorf("%w: PM data is %d bytes, want %d", ErrMalformedFrame, len(payload), PMDataLength)
	}
	return PMData{
		PM1:   round3(float32At(payload, 0)),
		PM2_5: round3(float32At(payload, 4)),
		PM10:  round3(float32At(payload, 8)),
	}, nil
}

// HistogramFrame holds histogram fields in device units, for building
// payloads in tests and in the mock device.
type HistogramFrame struct {
	Bins           [BinCount]uint16
	TimeOfFlight   float32 // thirds of a µs
	Period         uint16  // hundredths of a second
	FlowRate       uint16  // hundredths of ml/s
	TemperatureRaw uint16
	HumidityRaw    uint16
	PM1            float32
	PM2_5          float32
	PM10           float32
	Trailer        [TrailerLength]byte
}

// Encode lays the frame out as an 86-byte payload.
func (f HistogramFrame) Encode() []byte {
	p := make([]byte, HistogramLength)
	for i, count := range f.Bins {
		binary.LittleEndian.PutUint16(p[offsetBins+2*i:], count)
	}
	binary.LittleEndian.PutUint32(p[offsetTimeOfFlight:], math.Float32bits(f.TimeOfFlight))
	binary.LittleEndian.PutUint16(p[offsetPeriod:], f.Period)
	binary.LittleEndian.PutUint16(p[offsetFlowRate:], f.FlowRate)
	binary.LittleEndian.PutUint16(p[offsetTemperature:], f.TemperatureRaw)
	binary.LittleEndian.PutUint16(p[offsetHumidity:], f.HumidityRaw)
	binary.LittleEndian.PutUint32(p[offsetPM1:], math.Float32bits(f.PM1))
	binary.LittleEndian.PutUint32(p[offsetPM2_5:], math.Float32bits(f.PM2_5))
	binary.LittleEndian.PutUint32(p[offsetPM10:], math.Float32bits(f.PM10))
	copy(p[offsetTrailer:], f.Trailer[:])
	return p
}

// EncodePMData lays PM values out as a 14-byte PM data payload with the
// given checksum bytes.
func EncodePMData(pm1, pm25, pm10 float32, checksum uint16) []byte {
	p := make([]byte, PMDataLength)
	binary.LittleEndian.PutUint32(p[0:], math.Float32bits(pm1))
	binary.LittleEndian.PutUint32(p[4:], math.Float32bits(pm25))
	binary.LittleEndian.PutUint32(p[8:], math.Float32bits(pm10))
	binary.LittleEndian.PutUint16(p[12:], checksum)
	return p
}
