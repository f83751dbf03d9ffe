package main

import (
	"fmt"
	"os"

	adcread "github.com/TheCacophonyProject/pump-monitor/internal/adc-read"
	"github.com/TheCacophonyProject/pump-monitor/internal/logging"
	monitor "github.com/TheCacophonyProject/pump-monitor/internal/pump-monitor"
	report "github.com/TheCacophonyProject/pump-monitor/internal/pump-report"
	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

var version = "<not set>"

func runMain() error {
	log = logging.NewLogger("info")
	if len(os.Args) < 2 {
		log.Info("Usage: pump-monitor <monitor|report|read> [args]")
		return fmt.Errorf("no subcommand given")
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	var err error
	switch subcommand {
	case "monitor":
		err = monitor.Run(args, version)
	case "report":
		err = report.Run(args, version)
	case "read":
		err = adcread.Run(args, version)
	default:
		err = fmt.Errorf("unknown subcommand: %s", subcommand)
	}

	return err
}
