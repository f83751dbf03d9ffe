// Package i2crequest makes I2C transactions through the org.cacophony.i2c
// dbus service, for devices on a bus that service owns.
package i2crequest

import (
	"errors"
	"sync"

	"github.com/godbus/dbus"
)

const (
	dbusName = "org.cacophony.i2c"
	dbusPath = "/org/cacophony/i2c"
)

var (
	mu   sync.Mutex
	txFn = dbusTx
)

// Tx writes to the device at address and then reads readLen bytes back.
// timeout is in milliseconds and is enforced by the service.
func Tx(address byte, write []byte, readLen, timeout int) ([]byte, error) {
	mu.Lock()
	fn := txFn
	mu.Unlock()
	return fn(address, write, readLen, timeout)
}

// CheckAddress reports whether a device acknowledges at address.
func CheckAddress(address byte, timeout int) (bool, error) {
	_, err := Tx(address, []byte{0x00}, 1, timeout)
	if err != nil {
		return false, err
	}
	return true, nil
}

func dbusTx(address byte, write []byte, readLen, timeout int) ([]byte, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	obj := conn.Object(dbusName, dbusPath)

	var response []byte
	if err := obj.Call(dbusName+".Tx", 0, address, write, readLen, timeout).Store(&response); err != nil {
		return nil, err
	}
	return response, nil
}

// TxResponse is a scripted reply for MockTxResponses.
type TxResponse struct {
	Response []byte
	Err      error
}

var ErrNoMockResponse = errors.New("i2crequest: no mock response left")

// MockTxResponses replaces the dbus transport with the given replies, consumed
// one per Tx call. Used by tests of packages that talk through this one.
func MockTxResponses(responses []TxResponse) {
	remaining := append([]TxResponse(nil), responses...)
	mu.Lock()
	defer mu.Unlock()
	txFn = func(byte, []byte, int, int) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(remaining) == 0 {
			return nil, ErrNoMockResponse
		}
		r := remaining[0]
		remaining = remaining[1:]
		return r.Response, r.Err
	}
}

// RestoreTx puts the dbus transport back after MockTxResponses.
func RestoreTx() {
	mu.Lock()
	txFn = dbusTx
	mu.Unlock()
}
