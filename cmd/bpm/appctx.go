package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"bpm/config"
	"bpm/misc"
	"bpm/state"
)

// initializeAppContext loads configuration, prepares debug report and logs.
// It runs after command line has been parsed, but before any command.
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.NArg() == 0 {
		return ctx, nil
	}

	var (
		env        = state.EnvFromContext(ctx)
		configFile = cmd.String("config")
		err        error
	)

	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		if len(configFile) > 0 {
			if data, err := config.Dump(env.Cfg); err == nil {
				env.Rpt.StoreData("config/"+filepath.Base(configFile), data)
			}
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started",
		zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()))
	if env.Rpt != nil {
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	}
	if len(configFile) == 0 {
		env.Log.Info("Using defaults (no configuration file)")
	}
	return ctx, nil
}

// destroyAppContext flushes logs and finalizes debug report. From here on
// errors can only go to stderr.
func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}
	env.RestoreStdLog()

	if env.Rpt != nil {
		if e := env.Rpt.Close(); e != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", e))
		}
	}
	if env.Cfg != nil {
		err = multierr.Append(err, removeEmptyPanicLog(env.Cfg.Logging.FileLogger.Destination))
	}
	return err
}

// removeEmptyPanicLog stops crash output capture and removes panic log next
// to the file log if nothing was written there.
func removeEmptyPanicLog(logDestination string) error {
	if len(logDestination) == 0 {
		return nil
	}
	debug.SetCrashOutput(nil, debug.CrashOptions{})

	fname := filepath.Join(filepath.Dir(logDestination), misc.GetAppName()+"-panic.log")
	if fi, err := os.Stat(fname); err != nil || fi.Size() != 0 {
		return nil
	}
	if err := os.Remove(fname); err != nil {
		return fmt.Errorf("unable to remove empty panic log file '%s': %w", fname, err)
	}
	return nil
}

// errWasHandled is set when command error has been logged, so main does not
// repeat it on stderr.
var errWasHandled bool

// exitErrHandler runs before application context is destroyed, while log is
// still available.
func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	if log := state.EnvFromContext(ctx).Log; log != nil {
		log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

// usageErrorHandler leaves reporting to exitErrHandler or main.
func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	if log := state.EnvFromContext(ctx).Log; log != nil {
		log.Warn("Unknown command, nothing to do", zap.String("command", name))
	}
}
