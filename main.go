package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"png2lvgl/internal/config"
	"png2lvgl/internal/logging"
	"png2lvgl/internal/runtime"
	"png2lvgl/internal/transcode"
)

var BuildVersion = "dev"

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	rootCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(rootCtx, os.Args[1:], os.Stdout, os.Stderr)
	stopSignals()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) int {
	if args == nil {
		args = []string{}
	}
	opts, err := config.ParseOptions(args)
	if err != nil {
		if config.IsHelp(err) {
			fmt.Fprintln(stdout, err)
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logger := logging.New(stderr)
	logger.SetVerbose(opts.Debug)
	defer func() {
		_ = logger.Close()
	}()

	saved, loadErr := config.LoadDefaults()
	if loadErr != nil && !errors.Is(loadErr, fs.ErrNotExist) {
		logger.Warn("failed to load saved defaults", logging.Field("error", loadErr))
	}
	opts = config.MergeOptionsWithDefaults(opts, saved)

	if opts.LogFile {
		if err := logger.OpenJournal("", 0); err != nil {
			logger.Warn("failed to open log file", logging.Field("error", err))
		}
	}
	logger.Debug("starting png2lvgl", logging.Field("version", BuildVersion))

	service, err := runtime.NewServiceWithHooks(opts, logger, runtime.StartHooks{Stdout: stdout})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if opts.SaveDefaults {
		if err := config.SaveDefaults(config.DefaultsFromOptions(opts)); err != nil {
			logger.Warn("failed to save defaults", logging.Field("error", err))
		} else {
			logger.Info("saved conversion defaults")
		}
	}

	return exitCode(logger, service.RunContext(ctx))
}

// exitCode maps a run error to the process status. Per-file conversion
// failures were already logged by the transcoder.
func exitCode(logger *logging.Logger, err error) int {
	var convErr *transcode.ConversionError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		logger.Debug("conversion interrupted", logging.Field("error", err))
		return exitInterrupted
	case errors.Is(err, transcode.ErrInvalidInput):
		logger.Error(err.Error())
		return exitFailure
	case errors.As(err, &convErr):
		return exitFailure
	default:
		logger.Error("batch aborted", logging.Field("error", err))
		return exitFailure
	}
}
