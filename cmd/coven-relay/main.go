// ABOUTME: Entry point for coven-relay
// ABOUTME: Relays Telegram and Matrix chats to the claude CLI with per-user sessions

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/2389/coven-relay/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const banner = `
                                                  _
  ___ _____   _____ _ __        _ __ ___| | __ _ _   _
 / __/ _ \ \ / / _ \ '_ \ _____| '__/ _ \ |/ _' | | | |
| (_| (_) \ V /  __/ | | |_____| | |  __/ | (_| | |_| |
 \___\___/ \_/ \___|_| |_|     |_|  \___|_|\__,_|\__, |
                                                 |___/
`

// options are the parsed command line.
type options struct {
	command     string
	configPath  string
	envFile     string
	showVersion bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	opts, err := parseArgs(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	if opts.showVersion {
		fmt.Println("coven-relay", version)
		return nil
	}

	switch opts.command {
	case "", "run":
		return runRelay(ctx, opts)
	case "init":
		return runInit(opts.configPath, os.Stdin)
	default:
		return fmt.Errorf("unknown command %q (want run or init)", opts.command)
	}
}

func parseArgs(args []string) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("coven-relay", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", config.DefaultPath(), "config file (.toml, or .yaml/.yml)")
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load; variables already set win")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: coven-relay [flags] [run|init]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run    Start the relay (default)\n")
		fmt.Fprintf(os.Stderr, "  init   Create a config file interactively\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n%s", flagSet.FlagUsages())
	}

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if flagSet.NArg() > 1 {
		return opts, fmt.Errorf("unexpected arguments: %v", flagSet.Args()[1:])
	}
	opts.command = flagSet.Arg(0)
	return opts, nil
}

// loadEnvFile loads a dotenv file without overriding the environment. A
// missing file is fine.
func loadEnvFile(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("loading %s: %w", path, err)
	}
	return true, nil
}

func printBanner() {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)
}
