package adc

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TheCacophonyProject/pump-monitor/i2crequest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noSleepFn = func(d time.Duration) {}

func TestFakeReader(t *testing.T) {
	f := NewFakeReader([]float64{0.05, 0.3})
	for _, want := range []float64{0.05, 0.3, 0.3} {
		v, err := f.Read(0)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	assert.Equal(t, 3, f.Reads())

	f.ReadError = errors.New("bus fault")
	_, err := f.Read(0)
	assert.EqualError(t, err, "bus fault")

	require.NoError(t, f.Close())
	assert.True(t, f.Closed)
}

func TestRangeChecked(t *testing.T) {
	r := RangeChecked{Reader: NewFakeReader([]float64{9.9, 10.4, -0.2, 11, -0.6}), Max: 10}

	v, err := r.Read(0)
	require.NoError(t, err)
	assert.Equal(t, 9.9, v)

	// 5% slack either side of 0..Max for offset and noise.
	_, err = r.Read(0)
	require.NoError(t, err, "within tolerance above")
	v, err = r.Read(0)
	require.NoError(t, err, "within tolerance below")
	assert.Equal(t, -0.2, v)

	_, err = r.Read(0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = r.Read(0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestADS1115Config(t *testing.T) {
	a, err := newADS1115(nil, 4.096, 1, nil)
	require.NoError(t, err)
	// OS | MUX=100 (AIN0) | PGA=001 | MODE | DR=111 | COMP_QUE=11
	assert.Equal(t, uint16(0xC3E3), a.config(0))
	assert.Equal(t, uint16(0xF3E3), a.config(3))
}

func TestADS1115UnsupportedRange(t *testing.T) {
	_, err := newADS1115(nil, 5, 1, nil)
	assert.Error(t, err)
}

func TestADS1115ReadThroughService(t *testing.T) {
	sleepFn = noSleepFn
	defer i2crequest.RestoreTx()
	i2crequest.MockTxResponses([]i2crequest.TxResponse{
		{Response: []byte{}},           // start conversion
		{Response: []byte{0x43, 0xE3}}, // still converting
		{Response: []byte{0xC3, 0xE3}}, // done
		{Response: []byte{0x40, 0x00}}, // half scale
	})

	a, err := OpenADS1115Service(ADS1115Address, 4.096, 2.5)
	require.NoError(t, err)
	v, err := a.Read(0)
	require.NoError(t, err)
	assert.InDelta(t, 2.048*2.5, v, 1e-9)
	require.NoError(t, a.Close())
}

func TestADS1115NegativeCounts(t *testing.T) {
	sleepFn = noSleepFn
	defer i2crequest.RestoreTx()
	i2crequest.MockTxResponses([]i2crequest.TxResponse{
		{Response: []byte{}},
		{Response: []byte{0x80, 0x00}},
		{Response: []byte{0xFF, 0xFF}},
	})
	a, err := OpenADS1115Service(ADS1115Address, 4.096, 1)
	require.NoError(t, err)
	v, err := a.Read(1)
	require.NoError(t, err)
	assert.InDelta(t, -4.096/32768, v, 1e-12)
}

func TestADS1115ConversionTimeout(t *testing.T) {
	sleepFn = noSleepFn
	defer i2crequest.RestoreTx()
	responses := []i2crequest.TxResponse{{Response: []byte{}}}
	for i := 0; i < maxConversionPolls; i++ {
		responses = append(responses, i2crequest.TxResponse{Response: []byte{0x43, 0xE3}})
	}
	i2crequest.MockTxResponses(responses)

	a, err := OpenADS1115Service(ADS1115Address, 4.096, 1)
	require.NoError(t, err)
	_, err = a.Read(0)
	assert.ErrorIs(t, err, errConversionTimeout)
}

func TestADS1115TxError(t *testing.T) {
	sleepFn = noSleepFn
	defer i2crequest.RestoreTx()
	expectedErr := errors.New("foo")
	i2crequest.MockTxResponses([]i2crequest.TxResponse{{Err: expectedErr}})

	a, err := OpenADS1115Service(ADS1115Address, 4.096, 1)
	require.NoError(t, err)
	_, err = a.Read(0)
	assert.ErrorIs(t, err, expectedErr)

	_, err = a.Read(4)
	assert.Error(t, err)
}

// fakePort answers requests from a script of reply lines.
type fakePort struct {
	written bytes.Buffer
	replies io.Reader
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.replies.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *fakePort) Close() error                { p.closed = true; return nil }

func TestSerialBridge(t *testing.T) {
	port := &fakePort{replies: strings.NewReader("0.305\r\nE overrange\nnope\n")}
	s := newSerialBridge(port)

	v, err := s.Read(2)
	require.NoError(t, err)
	assert.Equal(t, 0.305, v)
	assert.Equal(t, "R2\n", port.written.String())

	_, err = s.Read(2)
	assert.ErrorContains(t, err, "overrange")

	_, err = s.Read(2)
	assert.Error(t, err)

	_, err = s.Read(2)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, s.Close())
	assert.True(t, port.closed)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "spi"})
	assert.Error(t, err)
}

func TestLockSerial(t *testing.T) {
	device := filepath.Join(t.TempDir(), "ttyADC")
	require.NoError(t, os.WriteFile(device, nil, 0666))

	first, err := lockSerial(device, 0, 0)
	require.NoError(t, err)

	_, err = lockSerial(device, 1, time.Millisecond)
	assert.ErrorIs(t, err, ErrSerialUnavailable)

	require.NoError(t, unlockSerial(first))
	second, err := lockSerial(device, 0, 0)
	require.NoError(t, err)
	require.NoError(t, unlockSerial(second))
}

func TestLockSerialConsole(t *testing.T) {
	dir := t.TempDir()
	saved := cmdlineFile
	cmdlineFile = filepath.Join(dir, "cmdline.txt")
	defer func() { cmdlineFile = saved }()
	require.NoError(t, os.WriteFile(cmdlineFile, []byte("console=serial0,115200 console=tty1 root=/dev/mmcblk0p2"), 0644))

	device := filepath.Join(dir, "serial0")
	require.NoError(t, os.WriteFile(device, nil, 0666))
	_, err := lockSerial(device, 0, 0)
	assert.ErrorIs(t, err, ErrSerialUnavailable)

	// Other devices are not affected by the console.
	other := filepath.Join(dir, "ttyUSB0")
	require.NoError(t, os.WriteFile(other, nil, 0666))
	f, err := lockSerial(other, 0, 0)
	require.NoError(t, err)
	require.NoError(t, unlockSerial(f))
}
