/*
pump-monitor - Monitor a septic dosing pump through a current sensor.
Copyright (C) 2024, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"
	"time"

	"github.com/TheCacophonyProject/event-reporter/v3/eventclient"
	"github.com/TheCacophonyProject/pump-monitor/adc"
	"github.com/TheCacophonyProject/pump-monitor/artifacts"
	"github.com/TheCacophonyProject/pump-monitor/calibration"
	"github.com/TheCacophonyProject/pump-monitor/config"
	"github.com/TheCacophonyProject/pump-monitor/episode"
	"github.com/TheCacophonyProject/pump-monitor/internal/logging"
	"github.com/TheCacophonyProject/pump-monitor/ledger"
	"github.com/TheCacophonyProject/pump-monitor/pacer"
	arg "github.com/alexflint/go-arg"
)

const (
	// Number of reads used to measure the maximum sampling rate at startup.
	probeSamples = 10
	timeLayout   = "Mon Jan _2 15:04:05 2006"
)

var version = "No version provided"

var log = logging.NewLogger("info")

type Args struct {
	ConfigFile string   `arg:"-c, --config" help:"Path to the TOML config file, written with defaults if missing"`
	DataDir    string   `arg:"--data-dir" help:"Directory for the log, database, CSV files and plots"`
	Rate       *float64 `arg:"--rate" help:"Target sample rate in Hz"`
	Channel    *int     `arg:"--channel" help:"ADC channel the current sensor is wired to"`
	Pacing     string   `arg:"--pacing" help:"Pacing mode, wait or poll"`
	LEDPin     string   `arg:"--led-pin" help:"GPIO driven high while the pump is running"`
	logging.LogArgs
}

var defaultArgs = Args{
	ConfigFile: filepath.Join(config.DefaultConfigDir, config.DefaultConfigFile),
}

func (Args) Version() string {
	return version
}

func procArgs(input []string) (Args, error) {
	args := defaultArgs

	parser, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Println(version)
		os.Exit(0)
	}
	return args, err
}

// apply overrides config file values with any flags that were given.
func (a Args) apply(cfg *config.Config) {
	if a.DataDir != "" {
		cfg.DataDir = a.DataDir
	}
	if a.Rate != nil {
		cfg.Sampling.RateHz = *a.Rate
	}
	if a.Channel != nil {
		cfg.Sampling.Channel = *a.Channel
	}
	if a.Pacing != "" {
		cfg.Sampling.Pacing = a.Pacing
	}
	if a.LEDPin != "" {
		cfg.LEDPin = a.LEDPin
	}
}

func Run(inputArgs []string, ver string) error {
	version = ver
	args, err := procArgs(inputArgs)
	if err != nil {
		return fmt.Errorf("failed to parse args: %v", err)
	}

	log = logging.NewLogger(args.LogLevel)

	cfg, err := config.Load(args.ConfigFile)
	if err != nil {
		return err
	}
	args.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logFile, err := artifacts.OpenLog(cfg.Path(cfg.LogFile))
	if err != nil {
		return err
	}
	defer logFile.Close()
	logging.Tee(log, logFile)

	log.Infof("Startup @ %s. Current user is: %s", time.Now().Format(timeLayout), currentUser())
	log.Debug("Running version: ", version)

	m, err := newMonitor(cfg)
	if err != nil {
		log.Error(err)
		log.Infof("Graceful Shutdown @ %s", time.Now().Format(timeLayout))
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	return m.run(context.Background(), sig)
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

// newMonitor opens the ledger and ADC and builds the sampling pipeline. On
// error anything already opened is closed again.
func newMonitor(cfg config.Config) (*monitor, error) {
	conv, err := calibration.NewConverter(cfg.Calibration)
	if err != nil {
		return nil, err
	}
	mode, err := pacer.ParseMode(cfg.Sampling.Pacing)
	if err != nil {
		return nil, err
	}
	clock := pacer.NewSystemClock()
	waiter, err := pacer.NewWaiter(cfg.Sampling.Waiter)
	if err != nil {
		return nil, err
	}
	p, err := pacer.New(cfg.Sampling.RateHz, mode, clock, waiter)
	if err != nil {
		return nil, err
	}
	writer, err := artifacts.NewWriter(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	db, err := ledger.Open(cfg.Path(cfg.DBFile))
	if err != nil {
		return nil, err
	}
	reader, err := openADC(cfg.ADC, cfg.Calibration.VinMax)
	if err != nil {
		db.Close()
		return nil, err
	}
	led, err := openLED(cfg.LEDPin)
	if err != nil {
		reader.Close()
		db.Close()
		return nil, err
	}

	f := &episode.Finalizer{
		Converter: conv,
		Pump:      cfg.Pump,
		Target:    p.Interval(),
		Artifacts: writer,
		Ledger:    db,
		Log:       log,
	}
	if cfg.Report.Events {
		f.Report = eventclient.AddEvent
	}

	return &monitor{
		reader:    reader,
		channel:   cfg.Sampling.Channel,
		pacer:     p,
		clock:     clock,
		acc:       episode.NewAccumulator(cfg.Sampling.Threshold, clock),
		finalizer: f,
		ledger:    db,
		led:       led,
		log:       log,
		rateHz:    cfg.Sampling.RateHz,
		factor:    conv.Factor(),
		probes:    probeSamples,
	}, nil
}

func openADC(c adc.Config, vinMax float64) (adc.Reader, error) {
	r, err := adc.Open(c)
	if err != nil {
		return nil, err
	}
	return adc.RangeChecked{Reader: r, Max: vinMax}, nil
}

// probeRate logs how fast the ADC can be read back to back. A failed read is
// only logged here, the sampling loop will hit it again and shut down.
func (m *monitor) probeRate() {
	if m.probes <= 0 {
		return
	}
	start := time.Now()
	for i := 0; i < m.probes; i++ {
		if _, err := m.reader.Read(m.channel); err != nil {
			m.log.Warnf("Rate probe read failed: %v", err)
			return
		}
	}
	perRead := time.Since(start) / time.Duration(m.probes)
	if perRead <= 0 {
		return
	}
	m.log.Infof("Maximum Data rate is: %.2f hz", float64(time.Second)/float64(perRead))
}
