package monitor

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// indicator shows whether a pump run is in progress. The zero value does
// nothing.
type indicator struct {
	pin gpio.PinOut
	on  bool
}

func openLED(pinName string) (indicator, error) {
	if pinName == "" {
		return indicator{}, nil
	}
	if _, err := host.Init(); err != nil {
		return indicator{}, err
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return indicator{}, fmt.Errorf("failed to find GPIO pin '%s'", pinName)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return indicator{}, fmt.Errorf("failed to set '%s' low: %w", pinName, err)
	}
	return indicator{pin: pin}, nil
}

func (i *indicator) set(on bool) {
	if i.pin == nil || i.on == on {
		return
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := i.pin.Out(level); err != nil {
		log.Warnf("Failed to set pump LED: %v", err)
		return
	}
	i.on = on
}
