package opcn3

import (
	"fmt"
	"math"
)

// BinCount is the number of particle-size bins in a histogram.
const BinCount = 24

// Column names used when a Measurement is flattened into a record.
const (
	ColumnTimeOfFlight = "MToF (us)"
	ColumnPeriod       = "Period (s)"
	ColumnFlowRate     = "Flowrate (ml/s)"
	ColumnTemperature  = "Temp (C)"
	ColumnHumidity     = "RH (%)"
	ColumnPM1          = "PM1 (ug/m-3)"
	ColumnPM2_5        = "PM2.5 (ug/m-3)"
	ColumnPM10         = "PM10 (ug/m-3)"
)

// Measurement is one decoded histogram read. Values are rounded to three
// decimal places. A Measurement is never partially populated: a failed read
// yields no Measurement at all.
type Measurement struct {
	TimeOfFlight     float64 // mean time of flight, µs
	SamplePeriod     float64 // s
	FlowRate         float64 // ml/s
	Temperature      float64 // °C
	RelativeHumidity float64 // %
	PM1              float64 // µg/m³
	PM2_5            float64 // µg/m³
	PM10             float64 // µg/m³

	// Bins holds the raw counts of bins 0..23 in order. It is nil unless bin
	// reporting was requested.
	Bins []uint16
}

// HasBins reports whether bin counts were decoded.
func (m Measurement) HasBins() bool {
	return m.Bins != nil
}

// BinName returns the column name of bin i.
func BinName(i int) string {
	return fmt.Sprintf("Bin %d", i)
}

// Field is a named value of a flattened Measurement.
type Field struct {
	Name  string
	Value float64
}

// Fields flattens m into ordered columns: the scalar readings first, then
// one column per bin when bins are present.
func (m Measurement) Fields() []Field {
	fields := []Field{
		{ColumnTimeOfFlight, m.TimeOfFlight},
		{ColumnPeriod, m.SamplePeriod},
		{ColumnFlowRate, m.FlowRate},
		{ColumnTemperature, m.Temperature},
		{ColumnHumidity, m.RelativeHumidity},
		{ColumnPM1, m.PM1},
		{ColumnPM2_5, m.PM2_5},
		{ColumnPM10, m.PM10},
	}
	for i, count := range m.Bins {
		fields = append(fields, Field{BinName(i), float64(count)})
	}
	return fields
}

// PMData is the reply to a PM data request.
type PMData struct {
	PM1   float64
	PM2_5 float64
	PM10  float64
}

// round3 rounds to the three decimal places used for reporting.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
