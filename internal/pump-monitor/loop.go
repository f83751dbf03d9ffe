package monitor

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/TheCacophonyProject/pump-monitor/adc"
	"github.com/TheCacophonyProject/pump-monitor/episode"
	"github.com/TheCacophonyProject/pump-monitor/pacer"
	"github.com/sirupsen/logrus"
)

type finalizer interface {
	Finalize(ctx context.Context, ep episode.Episode) (episode.Summary, error)
}

// monitor owns all sampling state. It is only touched by the goroutine
// running run.
type monitor struct {
	reader    adc.Reader
	channel   int
	pacer     *pacer.Pacer
	clock     pacer.Clock
	acc       *episode.Accumulator
	finalizer finalizer
	ledger    io.Closer
	led       indicator
	log       *logrus.Logger
	rateHz    float64
	factor    float64
	// Back to back reads timed before sampling starts, 0 to skip.
	probes int
}

// run samples until a signal arrives or something fails. The shutdown path
// runs either way; a signal gives a nil error.
func (m *monitor) run(ctx context.Context, sig <-chan os.Signal) (err error) {
	defer m.shutdown()

	m.probeRate()

	m.log.Infof("Monitoring data at %g sample(s) per second", m.rateHz)
	m.log.Infof("Amperage conversion factor is: %g", m.factor)
	m.log.Info("Starting Data Monitoring...")

	for {
		select {
		case s := <-sig:
			m.log.Infof("Received %s", s)
			return nil
		default:
		}

		if !m.pacer.Ready() {
			continue
		}
		start := m.clock.Nanos()
		m.pacer.Mark(start)

		volts, err := m.reader.Read(m.channel)
		if err != nil {
			err = fmt.Errorf("read channel %d: %w", m.channel, err)
			m.log.Error(err)
			return err
		}

		ep, done := m.acc.Observe(episode.Sample{Time: start, Volts: volts})
		m.led.set(m.acc.State() == episode.Accumulating)
		if !done {
			continue
		}
		if _, err := m.finalizer.Finalize(ctx, ep); err != nil {
			return err
		}
	}
}

func (m *monitor) shutdown() {
	if n := m.acc.Discard(); n > 0 {
		m.log.Warnf("Discarding %d samples from an unfinished pump run", n)
	}
	m.led.set(false)
	if err := m.reader.Close(); err != nil {
		m.log.Errorf("Failed to close adc: %v", err)
	}
	if err := m.ledger.Close(); err != nil {
		m.log.Errorf("Failed to close database: %v", err)
	}
	m.log.Infof("Graceful Shutdown @ %s", time.Now().Format(timeLayout))
}
