package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"reflow/config"
	"reflow/misc"
	"reflow/reader"
	"reflow/state"
)

// initializeAppContext prepares application context before command execution but
// after command line has been parsed
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		// nothing to do, just return
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		// save complete processed configuration if external configuration was provided
		if len(configFile) > 0 {
			// secrets are masked by Dump
			if data, err := config.Dump(env.Cfg); err == nil {
				env.Rpt.StoreData(fmt.Sprintf("config/%s", filepath.Base(configFile)), data)
			}
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()))

	if env.Rpt != nil {
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	}
	if len(configFile) == 0 && env.Log != nil {
		env.Log.Info("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	env.RestoreStdLog()

	// log is synced now, errors must be reported directly to stderr from now on
	if env.Rpt != nil {
		if er := env.Rpt.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
		}
	}
	// reporting is closed now - remove empty panic file if any
	if env.Cfg != nil && len(env.Cfg.Logging.FileLogger.Destination) > 0 {
		debug.SetCrashOutput(nil, debug.CrashOptions{})
		fname := filepath.Join(filepath.Dir(env.Cfg.Logging.FileLogger.Destination), misc.GetAppName()+"-panic.log")
		if fi, er := os.Stat(fname); er == nil && fi.Size() == 0 {
			if er := os.Remove(fname); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to remove empty panic log file '%s': %w", fname, er))
			}
		}
	}
	return
}

// Commands return regular errors, they are logged here before application
// context is destroyed.
var errWasHandled bool

func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	// reported either by exitErrHandler or on exit directly to stderr
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	state.EnvFromContext(ctx).Log.Warn("Unknown command, nothing to do", zap.String("command", name))
}

const sourceHelp = `
SOURCE:
    book to open, following formats are recognized by content: EPUB, FB2,
    MOBI/AZW, HTML/XHTML, Markdown, DOCX, PDF and plain text
        path to a file: "[path_to_file]book.epub"
        path to archive with path inside archive: "[path_to_archive]archive.zip[path_in_archive]/book.fb2"
        path to archive holding single book: "[path_to_archive]archive.zip"
`

// readerFlags are shared by all commands opening books.
func readerFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "continue even if destination exits, overwrite files"},
		&cli.StringFlag{Name: "force-zip-cp",
			Usage: "Force `ENCODING` for ALL non UTF-8 file names in processed archives (see IANA.org for character set names)"},
	}, extra...)
}

func bookCommand(name, usage, args, help string, action cli.ActionFunc, flags ...cli.Flag) *cli.Command {
	return &cli.Command{
		Name:               name,
		Usage:              usage,
		OnUsageError:       usageErrorHandler,
		Action:             action,
		Flags:              readerFlags(flags...),
		ArgsUsage:          args,
		CustomHelpTemplate: cli.CommandHelpTemplate + sourceHelp + help,
	}
}

func main() {

	// allow graceful shutdown on interrupt, serve depends on it
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	pageFlag := func(usage string) cli.Flag {
		return &cli.IntFlag{Name: "page", Aliases: []string{"p"}, Usage: usage}
	}

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "formats reflowable books into fixed size pages",
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
			bookCommand("layout", "Formats book and prints its summary", "SOURCE", "", reader.Layout,
				&cli.BoolFlag{Name: "dump", Usage: "print every page instruction by instruction"}),
			bookCommand("text", "Prints text of formatted pages", "SOURCE", "", reader.Text,
				pageFlag("print only page `N`"),
				&cli.BoolFlag{Name: "sentences", Aliases: []string{"s"}, Usage: "print one sentence per line"},
				&cli.StringFlag{Name: "separator", Value: "\n", Usage: "`TEXT` inserted between visually separate runs"}),
			bookCommand("toc", "Prints table of contents with page numbers", "SOURCE", "", reader.Toc),
			bookCommand("resolve", "Resolves link target to page and position", "SOURCE TARGET", `
TARGET:
    link target: "#id", "path#id", "filepos:NNN" or external URL
`, reader.Resolve,
				pageFlag("resolve TARGET as a link found on page `N`, relative to its sub-document")),
			bookCommand("render", "Renders formatted pages into images", "SOURCE [DESTINATION]", `
DESTINATION:
    always a path, output file name(s) derived from output_name_template
    if absent - current working directory
`, reader.Render,
				pageFlag("render only page `N`"),
				&cli.StringFlag{Name: "format", Usage: "image `TYPE` (png or jpeg), overrides configuration"}),
			bookCommand("export", "Exports formatted document as Ion or YAML", "SOURCE [DESTINATION]", `
DESTINATION:
    always a path, output file name is derived from SOURCE
    if absent - current working directory
`, reader.Export,
				&cli.StringFlag{Name: "format", Usage: "output `TYPE` (ion, ionbin or yaml), overrides configuration"}),
			{
				Name:         "bookmark",
				Usage:        "Keeps reading positions which survive page size changes",
				OnUsageError: usageErrorHandler,
				Commands: []*cli.Command{
					bookCommand("save", "Saves bookmark for a page", "SOURCE NAME", "", reader.BookmarkSave,
						pageFlag("bookmarked page `N`"),
						&cli.StringFlag{Name: "note", Usage: "free form `TEXT` kept with bookmark"}),
					bookCommand("list", "Lists bookmarks of the book", "SOURCE", "", reader.BookmarkList),
					bookCommand("goto", "Prints page bookmark points to with current layout", "SOURCE NAME", "", reader.BookmarkGoto),
					bookCommand("delete", "Removes bookmark", "SOURCE NAME", "", reader.BookmarkDelete),
				},
			},
			{
				Name:         "serve",
				Usage:        "Serves books from directory over HTTP",
				OnUsageError: usageErrorHandler,
				Action:       serve,
				ArgsUsage:    "ROOT",
				CustomHelpTemplate: fmt.Sprintf(`%s
ROOT:
    directory with books, requests address books by path relative to it
    (archives included), if absent - current working directory
`, cli.CommandHelpTemplate),
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
				CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values which is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`, cli.CommandHelpTemplate),
			},
		},
	}

	var err error
	// NOTE: os.Exit is called at the end of main to set exit code, make sure
	// there are no other deferred functions after that
	defer func() {
		stop()
		if err != nil {
			// log may be either not set yet (argument parsing) or already closed
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {

	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err   error
		data  []byte
		state string
	)

	out := os.Stdout
	if len(fname) > 0 {
		out, err = os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()
	}

	if cmd.Bool("default") {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Info("Outputing configuration", zap.String("state", state), zap.String("file", fname))

	if _, err = out.Write(data); err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
