package adc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// SerialBridge reads from a microcontroller that exposes its ADC over a UART.
// Each request is "R<channel>\n" and the reply is the voltage as a decimal
// line, or "E<message>" on failure.
type SerialBridge struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
	lock   *os.File
}

const (
	lockRetries = 3
	lockWait    = time.Second
)

func OpenSerialBridge(device string, baud int) (*SerialBridge, error) {
	lock, err := lockSerial(device, lockRetries, lockWait)
	if err != nil {
		return nil, err
	}
	c := &serial.Config{Name: device, Baud: baud, ReadTimeout: time.Second}
	port, err := serial.OpenPort(c)
	if err != nil {
		unlockSerial(lock)
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	s := newSerialBridge(port)
	s.lock = lock
	return s, nil
}

func newSerialBridge(port io.ReadWriteCloser) *SerialBridge {
	return &SerialBridge{port: port, reader: bufio.NewReader(port)}
}

func (s *SerialBridge) Read(channel int) (float64, error) {
	if _, err := fmt.Fprintf(s.port, "R%d\n", channel); err != nil {
		return 0, fmt.Errorf("serial write: %w", err)
	}
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("serial read: %w", err)
	}
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "E") {
		return 0, fmt.Errorf("adc bridge error on channel %d: %s", channel, strings.TrimSpace(line[1:]))
	}
	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("bad reply %q: %w", line, err)
	}
	return v, nil
}

func (s *SerialBridge) Close() error {
	err := s.port.Close()
	if s.lock != nil {
		if lerr := unlockSerial(s.lock); err == nil {
			err = lerr
		}
	}
	return err
}
