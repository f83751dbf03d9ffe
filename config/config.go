// Package config loads the pump monitor settings from a TOML file. A file
// with the defaults is written the first time so it can be edited in place.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/TheCacophonyProject/pump-monitor/adc"
	"github.com/TheCacophonyProject/pump-monitor/calibration"
	"github.com/TheCacophonyProject/pump-monitor/pacer"
)

const (
	maxI2CAddress = 0x7F

	DefaultConfigDir  = "/etc/pump-monitor"
	DefaultConfigFile = "pump-monitor.toml"
)

type Config struct {
	DataDir string `toml:"data_dir"`
	LogFile string `toml:"log_file"`
	DBFile  string `toml:"db_file"`
	// BCM GPIO name driven high while the pump is running, empty to disable.
	LEDPin      string            `toml:"led_pin"`
	Sampling    Sampling          `toml:"sampling"`
	ADC         adc.Config        `toml:"adc"`
	Calibration calibration.Range `toml:"calibration"`
	Pump        calibration.Pump  `toml:"pump"`
	Report      Report            `toml:"report"`
}

type Sampling struct {
	RateHz float64 `toml:"rate_hz"`
	// Readings above this many volts mean the pump is running.
	Threshold float64 `toml:"threshold"`
	Channel   int     `toml:"channel"`
	// "wait" blocks until the next sample is due, "poll" checks every loop.
	Pacing string `toml:"pacing"`
	// "spin" or "sleep", only used with wait pacing.
	Waiter string `toml:"waiter"`
}

type Report struct {
	// Start of the first billing period, YYYY-MM-DD.
	PeriodAnchor string `toml:"period_anchor"`
	PeriodMonths int    `toml:"period_months"`
	// Report pump runs to the event-reporter service.
	Events bool `toml:"events"`
}

func Default() Config {
	return Config{
		DataDir: "/home/pi/home_das",
		LogFile: "home_das.log",
		DBFile:  "home_das_db.db",
		Sampling: Sampling{
			RateHz:    120,
			Threshold: 0.1,
			Channel:   0,
			Pacing:    "wait",
			Waiter:    "spin",
		},
		ADC: adc.Config{
			Backend:      "ads1115",
			Address:      0x48,
			FullScale:    4.096,
			Scale:        2.5,
			SerialDevice: "/dev/serial0",
			Baudrate:     115200,
		},
		Calibration: calibration.DefaultRange,
		Pump:        calibration.DefaultPump,
		Report: Report{
			PeriodAnchor: "2020-10-01",
			PeriodMonths: 4,
		},
	}
}

// Load reads the config file at path, writing the defaults there first if it
// does not exist.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := write(path, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (c Config) Validate() error {
	if c.Sampling.RateHz <= 0 {
		return fmt.Errorf("sampling.rate_hz must be positive, got %v", c.Sampling.RateHz)
	}
	if c.Calibration.VinMax == c.Calibration.VinMin {
		return calibration.ErrZeroSpan
	}
	if _, err := pacer.ParseMode(c.Sampling.Pacing); err != nil {
		return fmt.Errorf("sampling.pacing: %w", err)
	}
	if _, err := pacer.NewWaiter(c.Sampling.Waiter); err != nil {
		return fmt.Errorf("sampling.waiter: %w", err)
	}
	if c.ADC.Address > maxI2CAddress {
		return fmt.Errorf("adc.address 0x%x is not a 7-bit i2c address", c.ADC.Address)
	}
	if c.Report.PeriodMonths <= 0 {
		return fmt.Errorf("report.period_months must be positive, got %d", c.Report.PeriodMonths)
	}
	if _, err := c.PeriodAnchor(); err != nil {
		return err
	}
	return nil
}

func (c Config) PeriodAnchor() (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", c.Report.PeriodAnchor, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("report.period_anchor: %w", err)
	}
	return t, nil
}

// Path joins name onto the data directory unless it is already absolute.
func (c Config) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
