package main

import (
	"math/rand"

	"github.com/banshee-data/particulate.report/internal/opcn3"
)

// newDevDevice returns a simulated sensor that serves a slowly wandering
// urban background: PM1 around 5, PM2.5 around 8, PM10 around 14 µg/m³.
// It is busy for the first few probes of each request, like the real device
// while a histogram is being assembled.
func newDevDevice(rng *rand.Rand) *opcn3.MockDevice {
	dev := opcn3.NewMockDevice()
	pm1 := float32(5)
	dev.NextFrame = func() opcn3.HistogramFrame {
		pm1 += float32(rng.NormFloat64() * 0.3)
		if pm1 < 0.5 {
			pm1 = 0.5
		}
		dev.NotReadyProbes = rng.Intn(4)
		return devFrame(pm1, rng)
	}
	return dev
}

func devFrame(pm1 float32, rng *rand.Rand) opcn3.HistogramFrame {
	f := opcn3.HistogramFrame{
		TimeOfFlight:   30 + float32(rng.Intn(10)),
		Period:         140,
		FlowRate:       550,
		TemperatureRaw: 24903, // about 21.5 C
		HumidityRaw:    29491, // about 45 %
		PM1:            pm1,
		PM2_5:          pm1 * 1.6,
		PM10:           pm1 * 2.8,
	}
	n := uint16(pm1 * 40)
	for i := range f.Bins {
		f.Bins[i] = n
		n /= 2
	}
	return f
}
