package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/DylanMcBean/Exepose/config"
	"github.com/DylanMcBean/Exepose/diagnostics"
	"github.com/DylanMcBean/Exepose/elf"
	"github.com/DylanMcBean/Exepose/render"
	"github.com/DylanMcBean/Exepose/shell"
)

type options struct {
	configPath string

	logLevel  string
	logFormat string
	logFile   string
	color     string

	segments       bool
	symbols        bool
	dynamicSymbols bool
	notes          bool
	demangle       bool

	interactive bool
}

func main() {
	cmd := newRootCommand(&options{}, os.Stdout, os.Stderr)

	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand(
	opts *options,
	stdout io.Writer,
	stderr io.Writer,
) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print-elf [flags] <file>",
		Short: "Decode, validate and print an elf file",
		Long: `Decodes an elf file's header, program headers, section headers and
symbol tables, rejecting malformed or inconsistent input.`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Argument errors print usage; decode errors don't.
			cmd.SilenceUsage = true
			return run(cmd.Flags(), opts, args[0], stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVarP(
		&opts.configPath,
		"config",
		"c",
		"",
		"yaml configuration file")
	flags.StringVar(
		&opts.logLevel,
		"log-level",
		"",
		"minimum console log level (debug, info, warning, error)")
	flags.StringVar(
		&opts.logFormat,
		"log-format",
		"",
		"console log format (text, json)")
	flags.StringVar(
		&opts.logFile,
		"log-file",
		"",
		"debug log file (empty disables)")
	flags.StringVar(
		&opts.color,
		"color",
		"",
		"colored console output (auto, always, never)")
	flags.BoolVarP(&opts.segments, "segments", "l", false, "print program headers")
	flags.BoolVarP(&opts.symbols, "symbols", "s", false, "print the static symbol table")
	flags.BoolVarP(
		&opts.dynamicSymbols,
		"dynamic-symbols",
		"d",
		false,
		"print the dynamic symbol table")
	flags.BoolVarP(&opts.notes, "notes", "n", false, "print note entries")
	flags.BoolVar(&opts.demangle, "demangle", true, "demangle symbol names")
	flags.BoolVarP(
		&opts.interactive,
		"interactive",
		"i",
		false,
		"start a query shell after printing")

	return cmd
}

// applyFlags overrides configuration values with explicitly set flags.
func applyFlags(flags *pflag.FlagSet, opts *options, cfg *config.Config) {
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if flags.Changed("log-file") {
		cfg.Log.File = opts.logFile
	}
	if flags.Changed("color") {
		cfg.Log.Color = opts.color
	}
	if flags.Changed("segments") {
		cfg.Output.Segments = opts.segments
	}
	if flags.Changed("symbols") {
		cfg.Output.Symbols = opts.symbols
	}
	if flags.Changed("dynamic-symbols") {
		cfg.Output.DynamicSymbols = opts.dynamicSymbols
	}
	if flags.Changed("notes") {
		cfg.Output.Notes = opts.notes
	}
	if flags.Changed("demangle") {
		cfg.Output.Demangle = opts.demangle
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && diagnostics.IsTerminal(file.Fd())
}

func newSink(
	cfg *config.Config,
	stderr io.Writer,
) (
	diagnostics.Sink,
	func() error,
	error,
) {
	console, err := diagnostics.NewLogger(
		diagnostics.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: stderr,
			Colors: cfg.UseColors(isTerminal(stderr)),
		})
	if err != nil {
		return nil, nil, err
	}

	sink := diagnostics.NewLogrusSink(console)
	if cfg.Log.File == "" {
		return sink, func() error { return nil }, nil
	}

	logFile, err := os.OpenFile(
		cfg.Log.File,
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	fileLogger, err := diagnostics.NewLogger(
		diagnostics.Options{
			Level:  "debug",
			Format: cfg.Log.Format,
			Output: logFile,
		})
	if err != nil {
		logFile.Close()
		return nil, nil, err
	}

	return diagnostics.Tee(sink, diagnostics.NewLogrusSink(fileLogger)),
		logFile.Close,
		nil
}

func run(
	flags *pflag.FlagSet,
	opts *options,
	path string,
	stdout io.Writer,
	stderr io.Writer,
) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	applyFlags(flags, opts, cfg)
	err = cfg.Validate()
	if err != nil {
		return err
	}

	sink, closeLog, err := newSink(cfg, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	recorder := diagnostics.NewRecorder()
	file, err := elf.Open(path, diagnostics.Tee(sink, recorder))
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	err = printFile(stdout, file, cfg)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(
		stdout,
		"\n%d warning(s), %d info message(s)\n",
		recorder.Count(diagnostics.Warning),
		recorder.Count(diagnostics.Info))
	if err != nil {
		return err
	}

	if opts.interactive {
		return shell.New(file, stdout, cfg.Output.Demangle).Run(
			cfg.Shell.Prompt,
			cfg.Shell.HistoryFile)
	}

	return nil
}

func printFile(w io.Writer, file *elf.File, cfg *config.Config) error {
	fmt.Fprintln(w, "Header:")
	err := render.Header(w, file)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nSections: %d\n", len(file.Sections))
	err = render.SectionHeaders(w, file)
	if err != nil {
		return err
	}

	if cfg.Output.Segments {
		fmt.Fprintf(w, "\nProgram headers: %d\n", len(file.ProgramHeaders))
		err = render.ProgramHeaders(w, file)
		if err != nil {
			return err
		}
	}

	if cfg.Output.Symbols {
		fmt.Fprintf(
			w,
			"\nSymbols (%s): %d\n",
			elf.SymbolTableName,
			len(file.Symbols.Symbols))
		err = render.Symbols(w, file.Symbols, "", cfg.Output.Demangle)
		if err != nil {
			return err
		}
	}

	if cfg.Output.DynamicSymbols {
		fmt.Fprintf(
			w,
			"\nSymbols (%s): %d\n",
			elf.DynamicSymbolTableName,
			len(file.DynamicSymbols.Symbols))
		err = render.Symbols(w, file.DynamicSymbols, "", cfg.Output.Demangle)
		if err != nil {
			return err
		}
	}

	if cfg.Output.Notes {
		fmt.Fprintf(w, "\nNotes: %d\n", len(file.Notes))
		err = render.Notes(w, file)
		if err != nil {
			return err
		}
	}

	return nil
}
