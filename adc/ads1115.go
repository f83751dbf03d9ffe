package adc

import (
	"errors"
	"fmt"
	"time"

	"github.com/TheCacophonyProject/pump-monitor/i2crequest"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	ADS1115Address = 0x48

	regConversion = 0x00
	regConfig     = 0x01

	configOS         = 1 << 15 // Start a conversion / conversion done.
	configMuxSingle  = 0x4     // AINx vs GND, channel added to this.
	configModeSingle = 1 << 8
	configDR860      = 0x7 << 5
	configCompOff    = 0x3

	maxConversionPolls = 10
	txTimeoutMs        = 100
)

// Programmable gain settings, full scale range in volts.
var pgaBits = map[float64]uint16{
	6.144: 0x0,
	4.096: 0x1,
	2.048: 0x2,
	1.024: 0x3,
	0.512: 0x4,
	0.256: 0x5,
}

var sleepFn = time.Sleep

var errConversionTimeout = errors.New("ads1115 conversion did not complete")

// txFunc writes then reads readLen bytes back from the ADC.
type txFunc func(write []byte, readLen int) ([]byte, error)

// ADS1115 does single-shot conversions on an ADS1115. The board in front of it
// divides the 0..10V sensor output down into the ADC range; Scale undoes that.
type ADS1115 struct {
	tx        txFunc
	fullScale float64
	pga       uint16
	Scale     float64
	closeFn   func() error
}

func newADS1115(tx txFunc, fullScale, scale float64, closeFn func() error) (*ADS1115, error) {
	pga, ok := pgaBits[fullScale]
	if !ok {
		return nil, fmt.Errorf("unsupported ads1115 full scale range %vV", fullScale)
	}
	if scale == 0 {
		scale = 1
	}
	return &ADS1115{
		tx:        tx,
		fullScale: fullScale,
		pga:       pga,
		Scale:     scale,
		closeFn:   closeFn,
	}, nil
}

// OpenADS1115 talks to the ADC directly on the default I2C bus.
func OpenADS1115(address uint16, fullScale, scale float64) (*ADS1115, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open("")
	if err != nil {
		return nil, err
	}
	dev := &i2c.Dev{Addr: address, Bus: bus}
	tx := func(write []byte, readLen int) ([]byte, error) {
		read := make([]byte, readLen)
		if err := dev.Tx(write, read); err != nil {
			return nil, err
		}
		return read, nil
	}
	return newADS1115(tx, fullScale, scale, bus.Close)
}

// OpenADS1115Service talks to the ADC through the i2c dbus service.
func OpenADS1115Service(address byte, fullScale, scale float64) (*ADS1115, error) {
	tx := func(write []byte, readLen int) ([]byte, error) {
		return i2crequest.Tx(address, write, readLen, txTimeoutMs)
	}
	return newADS1115(tx, fullScale, scale, nil)
}

func (a *ADS1115) config(channel int) uint16 {
	return configOS |
		uint16(configMuxSingle+channel)<<12 |
		a.pga<<9 |
		configModeSingle |
		configDR860 |
		configCompOff
}

// Read starts a conversion on channel, waits for it and returns the sensor
// voltage at the board input.
func (a *ADS1115) Read(channel int) (float64, error) {
	if channel < 0 || channel > 3 {
		return 0, fmt.Errorf("ads1115 has no channel %d", channel)
	}
	c := a.config(channel)
	if _, err := a.tx([]byte{regConfig, byte(c >> 8), byte(c)}, 0); err != nil {
		return 0, fmt.Errorf("start conversion: %w", err)
	}

	done := false
	for i := 0; i < maxConversionPolls; i++ {
		status, err := a.tx([]byte{regConfig}, 2)
		if err != nil {
			return 0, fmt.Errorf("read config: %w", err)
		}
		if len(status) == 2 && status[0]&0x80 != 0 {
			done = true
			break
		}
		sleepFn(500 * time.Microsecond)
	}
	if !done {
		return 0, errConversionTimeout
	}

	raw, err := a.tx([]byte{regConversion}, 2)
	if err != nil {
		return 0, fmt.Errorf("read conversion: %w", err)
	}
	if len(raw) != 2 {
		return 0, fmt.Errorf("conversion length: %d", len(raw))
	}
	counts := int16(uint16(raw[0])<<8 | uint16(raw[1]))
	return float64(counts) * a.fullScale / 32768 * a.Scale, nil
}

func (a *ADS1115) Close() error {
	if a.closeFn == nil {
		return nil
	}
	return a.closeFn()
}
