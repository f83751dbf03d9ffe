package adcread

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TheCacophonyProject/pump-monitor/adc"
	"github.com/TheCacophonyProject/pump-monitor/calibration"
	"github.com/TheCacophonyProject/pump-monitor/config"
	"github.com/TheCacophonyProject/pump-monitor/i2crequest"
	"github.com/TheCacophonyProject/pump-monitor/internal/logging"
	arg "github.com/alexflint/go-arg"
)

var version = "No version provided"

var log = logging.NewLogger("info")

type Args struct {
	ConfigFile string `arg:"-c, --config" help:"Path to the TOML config file"`
	Channel    *int   `arg:"--channel" help:"ADC channel to read"`
	Samples    int    `arg:"-n, --samples" help:"Number of back to back reads used to measure the rate"`
	Scan       bool   `arg:"--scan" help:"Check the ADC address responds on the i2c service first"`
	logging.LogArgs
}

var defaultArgs = Args{
	ConfigFile: filepath.Join(config.DefaultConfigDir, config.DefaultConfigFile),
	Samples:    10,
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
	channel := cfg.Sampling.Channel
	if args.Channel != nil {
		channel = *args.Channel
	}
	conv, err := calibration.NewConverter(cfg.Calibration)
	if err != nil {
		return err
	}

	if args.Scan {
		found, err := i2crequest.CheckAddress(byte(cfg.ADC.Address), 1000)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no device found at 0x%02x", cfg.ADC.Address)
		}
		log.Infof("Found ADC at 0x%02x", cfg.ADC.Address)
	}

	r, err := adc.Open(cfg.ADC)
	if err != nil {
		return err
	}
	defer r.Close()

	reading, err := measure(adc.RangeChecked{Reader: r, Max: cfg.Calibration.VinMax}, channel, args.Samples)
	if err != nil {
		return err
	}
	log.Infof("Channel %d: %.4fV, %.3fA", channel, reading.Volts, conv.VoltsToAmps(reading.Volts))
	if reading.Rate > 0 {
		log.Infof("Maximum Data rate is: %.2f hz", reading.Rate)
	}
	return nil
}

type reading struct {
	Volts float64
	// Reads per second over the sample run, 0 if too fast to measure.
	Rate float64
}

// measure takes one reading then times n more back to back.
func measure(r adc.Reader, channel, n int) (reading, error) {
	v, err := r.Read(channel)
	if err != nil {
		return reading{}, err
	}
	res := reading{Volts: v}
	if n <= 0 {
		return res, nil
	}
	start := time.Now()
	for i := 0; i < n; i++ {
		if _, err := r.Read(channel); err != nil {
			return res, err
		}
	}
	if elapsed := time.Since(start); elapsed > 0 {
		res.Rate = float64(n) / elapsed.Seconds()
	}
	return res, nil
}
