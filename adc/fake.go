package adc

import "errors"

// FakeReader is a test double that returns scripted voltages.
type FakeReader struct {
	// Values are returned in order, one per Read. Once exhausted the last
	// value is repeated.
	Values []float64

	index int

	// Channels records the channel of every Read.
	Channels []int

	// ReadError, if set, is returned by Read.
	ReadError error

	Closed bool
}

func NewFakeReader(values []float64) *FakeReader {
	return &FakeReader{Values: values}
}

func (f *FakeReader) Read(channel int) (float64, error) {
	f.Channels = append(f.Channels, channel)
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Values) == 0 {
		return 0, errors.New("no values configured")
	}
	v := f.Values[f.index]
	if f.index < len(f.Values)-1 {
		f.index++
	}
	return v, nil
}

// Reads is the number of Read calls made.
func (f *FakeReader) Reads() int {
	return len(f.Channels)
}

func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
