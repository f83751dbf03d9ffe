package adc

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"
)

var cmdlineFile = "/boot/firmware/cmdline.txt"

var ErrSerialUnavailable = errors.New("serial port unavailable")

// serialInUseByConsole reports whether the kernel has a login console on the
// primary UART.
func serialInUseByConsole() bool {
	b, err := os.ReadFile(cmdlineFile)
	if err != nil {
		return false
	}
	return strings.Contains(string(b), "console=serial0")
}

// lockSerial takes an exclusive lock on device so only one process talks to
// the ADC bridge at a time. The returned file holds the lock until it is
// passed to unlockSerial.
func lockSerial(device string, retries int, wait time.Duration) (*os.File, error) {
	if strings.HasSuffix(device, "serial0") && serialInUseByConsole() {
		return nil, fmt.Errorf("%w: %s is in use by the terminal console", ErrSerialUnavailable, device)
	}

	f, err := os.OpenFile(device, os.O_RDWR, 0666)
	if err != nil {
		return nil, err
	}
	for {
		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			f.Close()
			return nil, err
		}
		if retries <= 0 {
			f.Close()
			return nil, fmt.Errorf("%w: %s is locked by another process", ErrSerialUnavailable, device)
		}
		retries--
		time.Sleep(wait)
	}
}

func unlockSerial(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
