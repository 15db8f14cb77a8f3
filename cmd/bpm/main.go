package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"bpm/compile"
	"bpm/config"
	"bpm/misc"
	"bpm/process"
	"bpm/state"
)

const expandHelp = `%s
SOURCE:
    path to page(s) to process, following formats are supported:
        path to a file: "[path_to_file]page.html"
        path to a directory: "[path_to_directory]directory" - recursively process all pages under directory (symbolic links are not followed)
        path to archive with path inside archive to a particular page: "[path_to_archive]archive.zip[path_in_archive]/page.html"
        path to archive with path inside archive: "[path_to_archive]archive.zip[path_in_archive]" - recursively process all pages under archive path

	When working on archive recursively only .html, .htm and .xhtml files will
	be considered, processing of archives inside archives is not supported.

DESTINATION:
    always a path, output file name(s) will be derived from source or output name template
    if absent - current working directory
`

const compileHelp = `%s
YAML:
    emote source files with "Spritesheets" and "Custom" sections, all files
    are compiled together, duplicate emote names or selectors are errors.

Without flags results are written to locations from configuration: metadata
cache to expansion.cache_path, stylesheets to styles.directory.
`

const dumpConfigHelp = `%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values wich is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`

func expandCommand() *cli.Command {
	return &cli.Command{
		Name:         "expand",
		Usage:        "Expands emote references in HTML page(s)",
		OnUsageError: usageErrorHandler,
		Action:       process.Run,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "origin", Usage: "community `NAME` pages belong to, overrides detected one"},
			&cli.StringFlag{Name: "prefs", Usage: "read preferences from `FILE` (YAML) on every pass instead of configuration"},
			&cli.BoolFlag{Name: "nodirs", Aliases: []string{"nd"}, Usage: "when producing output do not keep input directory structure"},
			&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "continue even if destination exits, overwrite files"},
			&cli.StringFlag{Name: "force-zip-cp",
				Usage: "Force `ENCODING` for ALL non UTF-8 file names in processed archives (see IANA.org for character set names)"},
		},
		ArgsUsage:          "SOURCE [DESTINATION]",
		CustomHelpTemplate: fmt.Sprintf(expandHelp, cli.CommandHelpTemplate),
	}
}

func compileCommand() *cli.Command {
	return &cli.Command{
		Name:         "compile",
		Usage:        "Compiles emote source files into metadata cache and stylesheets",
		OnUsageError: usageErrorHandler,
		Action:       compile.Run,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cache", Usage: "write metadata cache to `FILE`"},
			&cli.StringFlag{Name: "css", Usage: "write emote stylesheet to `FILE`"},
			&cli.StringFlag{Name: "nsfw-css", Usage: "write NSFW emote stylesheet to `FILE`"},
		},
		ArgsUsage:          "YAML...",
		CustomHelpTemplate: fmt.Sprintf(compileHelp, cli.CommandHelpTemplate),
	}
}

func dumpConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "dumpconfig",
		Usage: "Dumps either default or actual configuration (YAML)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
		},
		OnUsageError:       usageErrorHandler,
		Action:             outputConfiguration,
		ArgsUsage:          "DESTINATION",
		CustomHelpTemplate: fmt.Sprintf(dumpConfigHelp, cli.CommandHelpTemplate),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "expands emote references in saved discussion pages",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, produces report archive"},
		},
		Commands: []*cli.Command{
			expandCommand(),
			compileCommand(),
			dumpConfigCommand(),
		},
	}

	var err error
	// NOTE: os.Exit is called at the end of main to set exit code, make sure
	// there are no other deffered functions after that
	defer func() {
		stop()
		if err != nil {
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	var (
		data []byte
		kind = "actual"
	)
	if cmd.Bool("default") {
		kind = "default"
		data, err = config.Prepare()
	} else {
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	fname := cmd.Args().Get(0)
	if len(fname) == 0 {
		env.Log.Info("Outputing configuration", zap.String("state", kind), zap.String("file", "STDOUT"))
		_, err = os.Stdout.Write(data)
	} else {
		env.Log.Info("Outputing configuration", zap.String("state", kind), zap.String("file", fname))
		err = os.WriteFile(fname, data, 0644)
	}
	if err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
