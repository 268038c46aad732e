package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ArionMiles/invoicedl/pkg/config"
	"github.com/ArionMiles/invoicedl/pkg/logging"
)

const usage = `invoicedl downloads a month of invoice PDFs from the ERP portal.

Usage:
  invoicedl <command> [flags]

Commands:
  run      Download every invoice dated in the configured month
  setup    Authorize Google Sheets access (only needed for the sheets source or writer)
  status   Check configuration and readiness

Run 'invoicedl <command> -h' for command flags.
`

func main() {
	logger := logging.Setup(logging.DefaultConfig())

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := dispatch(logger, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func dispatch(logger *slog.Logger, command string, args []string) error {
	switch command {
	case "run":
		fs := flag.NewFlagSet("run", flag.ExitOnError)
		configPath := fs.String("config", config.DefaultConfigFile, "path to the JSON config file")
		envFile := fs.String("env-file", config.DefaultEnvFile, "dotenv file loaded before the environment")
		_ = fs.Parse(args)
		return runInvoicedl(logger, *configPath, *envFile)
	case "setup":
		fs := flag.NewFlagSet("setup", flag.ExitOnError)
		configPath := fs.String("config", config.DefaultConfigFile, "path to the JSON config file")
		force := fs.Bool("force", false, "re-authenticate even if a token exists")
		_ = fs.Parse(args)
		return runSetup(logger, *configPath, *force)
	case "status":
		fs := flag.NewFlagSet("status", flag.ExitOnError)
		configPath := fs.String("config", config.DefaultConfigFile, "path to the JSON config file")
		_ = fs.Parse(args)
		return runStatus(*configPath)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
