// Package cmd wires up the CLI flags and dispatches to the server or
// the control client.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"remoteserver/config"
	"remoteserver/internal/core"
	"remoteserver/internal/errors"
	"remoteserver/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X remoteserver/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stdout receives --stats output and help text.  Tests replace it.
var stdout io.Writer = os.Stdout //nolint:gochecknoglobals

// options are the flags that are not part of config.Config.
type options struct {
	configPath  string
	ping        bool
	shutdown    bool
	stats       bool
	dryRun      bool
	showVersion bool
	showHelp    bool
}

func (o *options) action() core.Action {
	switch {
	case o.ping:
		return core.ActionPing
	case o.shutdown:
		return core.ActionShutdown
	case o.stats:
		return core.ActionStats
	default:
		return core.ActionServe
	}
}

// Execute parses args and runs the server, or one control-client
// action against a running server.
func Execute(ctx context.Context, args []string) error {
	cfg, opts, fs, err := loadConfig(args)
	if err != nil {
		return err
	}

	if opts.showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "remoteserver %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments %v (use --help for usage)", fs.Args())
	}

	// ── key ──────────────────────────────────────────────────────
	if err := cfg.ResolveKey(); err != nil {
		return err
	}
	if cfg.PromptKey {
		key, err := promptKey()
		if err != nil {
			return err
		}
		cfg.Key = key
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.ping && opts.shutdown || opts.ping && opts.stats || opts.shutdown && opts.stats {
		return fmt.Errorf("--ping, --shutdown and --stats are mutually exclusive")
	}

	logger := util.NewLogger(cfg.Verbose)
	logger.Verbose("config: %s", cfg)

	if opts.dryRun {
		logger.Info("configuration is valid")
		return nil
	}

	mode, err := core.Build(cfg, opts.action(), stdout, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// loadConfig layers defaults < config file < environment < flags.
func loadConfig(args []string) (*config.Config, *options, *flag.FlagSet, error) {
	configPath, err := findConfigPath(args)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg := config.Default()
	if configPath != "" {
		if err := config.LoadFile(configPath, cfg); err != nil {
			return nil, nil, nil, err
		}
	}
	config.LoadFromEnv(cfg)

	opts := &options{}
	fs := newFlagSet(cfg, opts)
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}
	return cfg, opts, fs, nil
}

// newFlagSet binds flags to cfg.  Each flag's default is cfg's current
// value, so flags only override what the file and environment set when
// they are actually given.
func newFlagSet(cfg *config.Config, opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("remoteserver", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// ── server ───────────────────────────────────────────────────
	fs.Uint16VarP(&cfg.Port, "port", "p", cfg.Port, "Listen (or, for client actions, connect) port")
	fs.StringVarP(&cfg.Key, "key", "k", cfg.Key, "Authentication key (visible in ps; prefer --key-file)")
	fs.StringVar(&cfg.KeyFile, "key-file", cfg.KeyFile, "Read the authentication key from a file")
	fs.BoolVar(&cfg.PromptKey, "prompt-key", false, "Prompt for the authentication key")
	fs.StringVarP(&cfg.Mode, "mode", "m", cfg.Mode, "production (idle watchdog) or debug")
	fs.StringVar(&cfg.Bind, "bind", cfg.Bind, "Bind address")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Idle time before a production server exits")
	fs.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "Time a client has to send its key")

	// ── lockout ──────────────────────────────────────────────────
	fs.IntVar(&cfg.MaxAuthFailures, "max-auth-failures", cfg.MaxAuthFailures, "Failed attempts per host before lockout (0 = off)")
	fs.DurationVar(&cfg.AuthFailureWindow, "auth-failure-window", cfg.AuthFailureWindow, "How long failed attempts are remembered")

	// ── client actions ───────────────────────────────────────────
	fs.BoolVar(&opts.ping, "ping", false, "Check that a running server accepts the key")
	fs.BoolVar(&opts.shutdown, "shutdown", false, "Ask a running server to stop")
	fs.BoolVar(&opts.stats, "stats", false, "Print a running server's metrics as JSON")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus metrics here on exit")
	verbose := cfg.Verbose
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	cfg.Verbose = verbose // CountVarP zeroes it; -v counts up from the env value

	// ── misc ─────────────────────────────────────────────────────
	fs.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Validate configuration and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }
	return fs
}

// findConfigPath extracts -c/--config before the real parse, so the
// file can sit underneath the environment and the other flags.
func findConfigPath(args []string) (string, error) {
	var opts options
	fs := newFlagSet(config.Default(), &opts)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return opts.configPath, nil
}

func promptKey() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", &errors.ConfigError{
			Field:   "prompt-key",
			Message: "stdin is not a terminal",
			Hint:    "use --key-file or REMOTESERVER_KEY",
		}
	}
	fmt.Fprint(os.Stderr, "Key: ")
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}
	return string(key), nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(stdout, `remoteserver v%s

A locally-bound, key-authenticated control server that exits on its own
after a period without connections.

Usage:
  remoteserver -p <port> [options]                 Serve
  remoteserver --ping -p <port> --key-file <f>     Health-check a server
  remoteserver --shutdown -p <port> --key-file <f> Stop a server
  remoteserver --stats -p <port> --key-file <f>    Print server metrics

Options:
`, version)
	fmt.Fprint(stdout, fs.FlagUsages())
	fmt.Fprintf(stdout, `
Environment:
  %[1]sPORT, %[1]sKEY, %[1]sKEY_FILE, %[1]sMODE, %[1]sDEBUG,
  %[1]sBIND, %[1]sIDLE_TIMEOUT, %[1]sHANDSHAKE_TIMEOUT,
  %[1]sMAX_AUTH_FAILURES, %[1]sAUTH_FAILURE_WINDOW,
  %[1]sMETRICS_FILE, %[1]sVERBOSE

Examples:
  remoteserver -p 9999 --key-file ~/.rs-key             Production, 30s idle
  remoteserver -p 9999 -k secret -m debug -vv           Debug, never idles out
  remoteserver --shutdown -p 9999 --key-file ~/.rs-key  Stop it
`, config.EnvPrefix)
}
