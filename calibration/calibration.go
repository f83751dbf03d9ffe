// Package calibration converts raw ADC volts into physical units for the
// dosing pump: current through the clamp sensor and volume pumped.
package calibration

import (
	"errors"
	"time"
)

var ErrZeroSpan = errors.New("calibration voltage span is zero")

// Range is the linear calibration of the current sensor. VinMin..VinMax volts
// on the ADC input map to AmpsMin..AmpsMax through the pump cable.
type Range struct {
	VinMin  float64 `toml:"vin_min"`
	VinMax  float64 `toml:"vin_max"`
	AmpsMin float64 `toml:"amps_min"`
	AmpsMax float64 `toml:"amps_max"`
}

// DefaultRange is the 0-10V, 0-50A clamp used on the septic pump.
var DefaultRange = Range{
	VinMin:  0,
	VinMax:  10,
	AmpsMin: 0,
	AmpsMax: 50,
}

type Converter struct {
	factor float64
}

// NewConverter computes the conversion factor once for the process.
func NewConverter(r Range) (Converter, error) {
	span := r.VinMax - r.VinMin
	if span == 0 {
		return Converter{}, ErrZeroSpan
	}
	return Converter{factor: (r.AmpsMax - r.AmpsMin) / span}, nil
}

func (c Converter) Factor() float64 {
	return c.factor
}

func (c Converter) VoltsToAmps(raw float64) float64 {
	return raw * c.factor
}

// AllToAmps converts every raw reading, keeping the order.
func (c Converter) AllToAmps(raw []float64) []float64 {
	amps := make([]float64, len(raw))
	for i, v := range raw {
		amps[i] = c.VoltsToAmps(v)
	}
	return amps
}

// Pump holds the hydraulic constants used to estimate the volume of a dose.
type Pump struct {
	GallonsPerMinute float64 `toml:"gallons_per_minute"`
	// Gallons that drain back from the pipe after the pump stops.
	TransportVolume float64 `toml:"transport_volume"`
	LineVoltage     float64 `toml:"line_voltage"`
	// ClampNegative records 0 instead of a negative volume for very short runs.
	ClampNegative bool `toml:"clamp_negative"`
}

var DefaultPump = Pump{
	GallonsPerMinute: 43.5,
	TransportVolume:  12.8,
	LineVoltage:      120,
	ClampNegative:    false,
}

func (p Pump) GallonsPerSecond() float64 {
	return p.GallonsPerMinute / 60
}

// GallonsPumped estimates the volume moved by a run of the given length.
// The result is negative when the run is shorter than the time needed to
// refill the transport pipe, unless ClampNegative is set.
func (p Pump) GallonsPumped(d time.Duration) float64 {
	gallons := d.Seconds()*p.GallonsPerSecond() - p.TransportVolume
	if p.ClampNegative && gallons < 0 {
		return 0
	}
	return gallons
}

// Watts is the average power drawn for the given average current.
func (p Pump) Watts(amps float64) float64 {
	return amps * p.LineVoltage
}
