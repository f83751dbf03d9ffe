// Package adc reads raw voltages from the analog to digital converter the
// pump current sensor is wired to.
package adc

import (
	"errors"
	"fmt"
	"math"
)

// Reader reads one single-ended channel. Reads are synchronous and may take
// an unpredictable amount of time.
type Reader interface {
	Read(channel int) (float64, error)
	Close() error
}

var ErrOutOfRange = errors.New("adc reading out of range")

// rangeTolerance allows for ADC offset and noise around the input span.
const rangeTolerance = 0.05

// RangeChecked rejects readings the board cannot produce for a 0..Max input.
type RangeChecked struct {
	Reader
	Max float64
}

func (r RangeChecked) Read(channel int) (float64, error) {
	v, err := r.Reader.Read(channel)
	if err != nil {
		return 0, err
	}
	margin := r.Max * rangeTolerance
	if math.IsNaN(v) || v < -margin || v > r.Max+margin {
		return v, fmt.Errorf("%w: channel %d read %.4fV, expected 0 to %.2fV", ErrOutOfRange, channel, v, r.Max)
	}
	return v, nil
}

// Config selects and sets up an ADC backend.
type Config struct {
	// "ads1115", "i2c-service" or "serial".
	Backend string `toml:"backend"`
	Address uint16 `toml:"address"`
	// ADS1115 programmable gain full scale range in volts.
	FullScale float64 `toml:"full_scale"`
	// Multiplier from ADC input volts back to sensor volts.
	Scale        float64 `toml:"scale"`
	SerialDevice string  `toml:"serial_device"`
	Baudrate     int     `toml:"baudrate"`
}

func Open(c Config) (Reader, error) {
	var (
		r   Reader
		err error
	)
	switch c.Backend {
	case "ads1115":
		r, err = OpenADS1115(c.Address, c.FullScale, c.Scale)
	case "i2c-service":
		r, err = OpenADS1115Service(byte(c.Address), c.FullScale, c.Scale)
	case "serial":
		r, err = OpenSerialBridge(c.SerialDevice, c.Baudrate)
	default:
		return nil, fmt.Errorf("unknown adc backend %q", c.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s adc: %w", c.Backend, err)
	}
	return r, nil
}
