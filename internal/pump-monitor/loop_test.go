package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/TheCacophonyProject/pump-monitor/adc"
	"github.com/TheCacophonyProject/pump-monitor/artifacts"
	"github.com/TheCacophonyProject/pump-monitor/calibration"
	"github.com/TheCacophonyProject/pump-monitor/config"
	"github.com/TheCacophonyProject/pump-monitor/episode"
	"github.com/TheCacophonyProject/pump-monitor/ledger"
	"github.com/TheCacophonyProject/pump-monitor/pacer"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock moves forward by step on every Nanos call.
type fakeClock struct {
	now  int64
	step int64
}

func (c *fakeClock) Nanos() int64 {
	c.now += c.step
	return c.now
}

func (c *fakeClock) Now() time.Time {
	return time.Unix(0, c.now)
}

// stopReader sends SIGTERM once after the given number of reads.
type stopReader struct {
	*adc.FakeReader
	after int
	sig   chan os.Signal
}

func (s *stopReader) Read(channel int) (float64, error) {
	v, err := s.FakeReader.Read(channel)
	if s.Reads() == s.after {
		s.sig <- syscall.SIGTERM
	}
	return v, err
}

type failingFinalizer struct {
	err   error
	calls int
}

func (f *failingFinalizer) Finalize(ctx context.Context, ep episode.Episode) (episode.Summary, error) {
	f.calls++
	return episode.Summary{}, f.err
}

type testMonitor struct {
	*monitor
	fake   *adc.FakeReader
	ledger *ledger.Ledger
	hook   *logtest.Hook
	sig    chan os.Signal
}

func newTestMonitor(t *testing.T, values []float64, stopAfter int) testMonitor {
	dir := t.TempDir()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	db, err := ledger.Open(filepath.Join(dir, "usage.db"))
	require.NoError(t, err)
	writer, err := artifacts.NewWriter(dir)
	require.NoError(t, err)
	conv, err := calibration.NewConverter(calibration.DefaultRange)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC).UnixNano(), step: int64(20 * time.Millisecond)}
	p, err := pacer.New(100, pacer.PollAndSkip, clock, nil)
	require.NoError(t, err)

	sig := make(chan os.Signal, 1)
	fake := adc.NewFakeReader(values)

	return testMonitor{
		monitor: &monitor{
			reader:  &stopReader{FakeReader: fake, after: stopAfter, sig: sig},
			channel: 3,
			pacer:   p,
			clock:   clock,
			acc:     episode.NewAccumulator(0.1, clock),
			finalizer: &episode.Finalizer{
				Converter: conv,
				Pump:      calibration.DefaultPump,
				Target:    p.Interval(),
				Artifacts: writer,
				Ledger:    db,
				Log:       logger,
			},
			ledger: db,
			log:    logger,
			rateHz: 100,
			factor: conv.Factor(),
		},
		fake:   fake,
		ledger: db,
		hook:   hook,
		sig:    sig,
	}
}

func messages(hook *logtest.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		out = append(out, e.Message)
	}
	return out
}

// Ready and each sample both advance the fake clock 20ms, so samples are
// 40ms apart.
func TestRunFinalizesEpisodeAndShutsDownOnSignal(t *testing.T) {
	tm := newTestMonitor(t, []float64{0, 0.5, 0.6, 0.7, 0, 0}, 6)
	records, err := tm.ledger.Records(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)

	require.NoError(t, tm.run(context.Background(), tm.sig))

	assert.Equal(t, 6, tm.fake.Reads())
	for _, ch := range tm.fake.Channels {
		assert.Equal(t, 3, ch)
	}
	assert.True(t, tm.fake.Closed)

	// Ledger is closed by the shutdown path.
	_, err = tm.ledger.Records(context.Background())
	assert.Error(t, err)

	msgs := messages(tm.hook)
	assert.Equal(t, "Monitoring data at 100 sample(s) per second", msgs[0])
	assert.Equal(t, "Amperage conversion factor is: 5", msgs[1])
	assert.Contains(t, msgs, "Received terminated")
	assert.Regexp(t, "^Graceful Shutdown @ ", msgs[len(msgs)-1])

	var summaries int
	for _, m := range msgs {
		if strings.Contains(m, "Dosing pump ran for 0.08 seconds") {
			summaries++
		}
	}
	assert.Equal(t, 1, summaries)
}

func TestRunDiscardsUnfinishedEpisode(t *testing.T) {
	tm := newTestMonitor(t, []float64{0, 0.5, 0.5}, 3)

	require.NoError(t, tm.run(context.Background(), tm.sig))

	assert.Contains(t, messages(tm.hook), "Discarding 2 samples from an unfinished pump run")
	assert.Equal(t, episode.Idle, tm.acc.State())
}

func TestRunReadErrorShutsDown(t *testing.T) {
	tm := newTestMonitor(t, []float64{0}, 0)
	tm.fake.ReadError = adc.ErrOutOfRange

	err := tm.run(context.Background(), tm.sig)
	require.ErrorIs(t, err, adc.ErrOutOfRange)
	assert.Equal(t, 1, tm.fake.Reads())
	assert.True(t, tm.fake.Closed)

	msgs := messages(tm.hook)
	assert.Regexp(t, "^Graceful Shutdown @ ", msgs[len(msgs)-1])
}

func TestRunFinalizeErrorShutsDown(t *testing.T) {
	tm := newTestMonitor(t, []float64{0.5, 0.5, 0, 0, 0.5, 0}, 0)
	boom := errors.New("disk full")
	f := &failingFinalizer{err: boom}
	tm.finalizer = f

	err := tm.run(context.Background(), tm.sig)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, 3, tm.fake.Reads())
	assert.True(t, tm.fake.Closed)
}

func TestArgsApply(t *testing.T) {
	rate := 60.0
	channel := 1
	cfg := config.Default()
	Args{DataDir: "/tmp/pump", Rate: &rate, Channel: &channel, Pacing: "poll", LEDPin: "GPIO17"}.apply(&cfg)

	assert.Equal(t, "/tmp/pump", cfg.DataDir)
	assert.Equal(t, 60.0, cfg.Sampling.RateHz)
	assert.Equal(t, 1, cfg.Sampling.Channel)
	assert.Equal(t, "poll", cfg.Sampling.Pacing)
	assert.Equal(t, "GPIO17", cfg.LEDPin)

	// Flags that were not given leave the config alone.
	cfg = config.Default()
	Args{}.apply(&cfg)
	assert.Equal(t, config.Default(), cfg)
}

func TestProcArgs(t *testing.T) {
	args, err := procArgs([]string{"--rate", "30", "--channel", "2", "--log-level", "debug"})
	require.NoError(t, err)
	require.NotNil(t, args.Rate)
	assert.Equal(t, 30.0, *args.Rate)
	assert.Equal(t, 2, *args.Channel)
	assert.Equal(t, "debug", args.LogLevel)
	assert.Equal(t, defaultArgs.ConfigFile, args.ConfigFile)

	_, err = procArgs([]string{"--rate", "fast"})
	assert.Error(t, err)
}

func TestOpenADCUnknownBackend(t *testing.T) {
	_, err := openADC(adc.Config{Backend: "spi"}, 10)
	assert.Error(t, err)
}

func TestProbeRate(t *testing.T) {
	tm := newTestMonitor(t, []float64{0.2}, 0)
	tm.probes = probeSamples
	tm.probeRate()
	assert.Equal(t, probeSamples, tm.fake.Reads())
	assert.Equal(t, 3, tm.fake.Channels[0])
	if e := tm.hook.LastEntry(); e != nil {
		assert.Regexp(t, "^Maximum Data rate is: ", e.Message)
	}

	failing := newTestMonitor(t, nil, 0)
	failing.probes = probeSamples
	failing.probeRate()
	assert.Equal(t, 1, failing.fake.Reads())
	require.NotNil(t, failing.hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, failing.hook.LastEntry().Level)
}

func TestSignalDuringRateProbeShutsDown(t *testing.T) {
	tm := newTestMonitor(t, []float64{0.5}, 1)
	tm.probes = probeSamples

	require.NoError(t, tm.run(context.Background(), tm.sig))

	// The probe finishes, then the loop sees the signal before sampling.
	assert.Equal(t, probeSamples, tm.fake.Reads())
	assert.Zero(t, tm.acc.Pending())
	assert.True(t, tm.fake.Closed)
	_, err := tm.ledger.Records(context.Background())
	assert.Error(t, err)

	msgs := messages(tm.hook)
	assert.Contains(t, msgs, "Received terminated")
	assert.Regexp(t, "^Graceful Shutdown @ ", msgs[len(msgs)-1])
}
