// Command largepool loads datasets through a parallel pool with live
// progress.
//
//	largepool [flags] coil <dir>
//	largepool [flags] csv <path> --lines N [--chunk C] [--sep '\t']
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/stat-ml/ncvis/internal/config"
	"github.com/stat-ml/ncvis/internal/logger"
	"github.com/stat-ml/ncvis/pool"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var (
	bold  = color.New(color.Bold)
	red   = color.New(color.FgRed)
	green = color.New(color.FgGreen)
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// app is one invocation of the command.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	opts    []pool.Option
	stdout  io.Writer
	stderr  io.Writer
	reg     *prometheus.Registry
	csvOpts csvOptions
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("largepool", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	ci := fs.Bool("ci", false, "CI mode: log progress instead of drawing a bar")
	csvFlags := registerCSVFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: largepool [flags] coil <dir>")
		fmt.Fprintln(stderr, "       largepool [flags] csv <path> --lines N [--chunk C] [--sep SEP]")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load(fs)
	if err != nil {
		red.Fprintln(stderr, err)
		return exitUsage
	}
	if isCIMode(*ci) {
		cfg.LogProgress = true
	}

	log, logCloser, err := logger.New(cfg.Log)
	if err != nil {
		red.Fprintln(stderr, err)
		return exitUsage
	}
	defer logCloser.Close()

	a := &app{
		cfg:     cfg,
		log:     logger.WithComponent(log, "largepool"),
		stdout:  stdout,
		stderr:  stderr,
		csvOpts: csvFlags,
	}

	var metrics *pool.Metrics
	if cfg.Metrics {
		a.reg = prometheus.NewRegistry()
		if metrics, err = pool.NewMetrics(a.reg, "largepool"); err != nil {
			red.Fprintln(stderr, err)
			return exitError
		}
	}
	a.opts = append(cfg.PoolOptions(a.log, metrics), pool.WithProgressWriter(stderr))

	err = a.dispatch(ctx, fs.Args())
	if a.reg != nil {
		if dumpErr := writeMetrics(stdout, a.reg); dumpErr != nil {
			a.log.Error().Err(dumpErr).Msg("metrics dump failed")
		}
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		red.Fprintln(stderr, err)
		fs.Usage()
		return exitUsage
	default:
		printFailure(stderr, err)
		return exitError
	}
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "coil":
		if len(rest) != 1 {
			return fmt.Errorf("%w: coil takes exactly one directory", errUsage)
		}
		return a.runCoil(ctx, rest[0])
	case "csv":
		if len(rest) != 1 {
			return fmt.Errorf("%w: csv takes exactly one file", errUsage)
		}
		return a.runCSV(ctx, rest[0])
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func isCIMode(ciFlag bool) bool {
	if ciFlag {
		return true
	}

	for _, env := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI", "JENKINS_HOME"} {
		value := os.Getenv(env)
		if value == "true" || value == "1" {
			return true
		}
	}
	return !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd())
}
