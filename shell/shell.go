// Package shell is an interactive query prompt over a decoded elf file.
package shell

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/kr/pretty"

	"github.com/DylanMcBean/Exepose/elf"
	"github.com/DylanMcBean/Exepose/render"
)

type command struct {
	name  string
	usage string
	run   func(*Shell, []string) error
}

// NOTE: commands are prefix matched in this order, so "s" means "sections".
var commands []command

func init() {
	commands = []command{
		{
			name:  "header",
			usage: "print the elf header",
			run:   (*Shell).header,
		},
		{
			name:  "sections",
			usage: "print the section header table",
			run:   (*Shell).sections,
		},
		{
			name:  "segments",
			usage: "print the program header table",
			run:   (*Shell).segments,
		},
		{
			name:  "symbols",
			usage: "symbols [filter]: print the static symbol table",
			run:   (*Shell).symbols,
		},
		{
			name:  "dynsyms",
			usage: "dynsyms [filter]: print the dynamic symbol table",
			run:   (*Shell).dynamicSymbols,
		},
		{
			name:  "lookup",
			usage: "lookup <name>: find symbols by (demangled) name",
			run:   (*Shell).lookup,
		},
		{
			name:  "at",
			usage: "at <address>: find the symbol spanning an address",
			run:   (*Shell).at,
		},
		{
			name:  "notes",
			usage: "print note entries",
			run:   (*Shell).notes,
		},
		{
			name:  "raw",
			usage: "raw section|segment|symbol|dynsym <index>: dump a decoded record",
			run:   (*Shell).raw,
		},
		{
			name:  "help",
			usage: "list commands",
			run:   (*Shell).help,
		},
		{
			name:  "quit",
			usage: "exit the shell",
		},
	}
}

type Shell struct {
	file     *elf.File
	out      io.Writer
	demangle bool

	lastLine string
}

func New(file *elf.File, out io.Writer, demangle bool) *Shell {
	return &Shell{
		file:     file,
		out:      out,
		demangle: demangle,
	}
}

// Run reads commands from the terminal until quit, EOF or interrupt.
func (shell *Shell) Run(prompt string, historyFile string) error {
	rl, err := readline.NewEx(
		&readline.Config{
			Prompt:      prompt,
			HistoryFile: historyFile,
		})
	if err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF || err == readline.ErrInterrupt {
				return nil
			}
			return err
		}

		quit, err := shell.Execute(line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// Execute runs a single command line.  An empty line repeats the previous
// command.  Execute reports whether the shell should exit.
func (shell *Shell) Execute(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		line = shell.lastLine
	}
	shell.lastLine = line

	if line == "" {
		return false, nil
	}

	args := strings.Fields(line)
	for _, cmd := range commands {
		if !strings.HasPrefix(cmd.name, args[0]) {
			continue
		}

		if cmd.run == nil {
			return true, nil
		}

		return false, cmd.run(shell, args[1:])
	}

	_, err := fmt.Fprintln(shell.out, "invalid command:", args[0])
	return false, err
}

func (shell *Shell) header(args []string) error {
	return render.Header(shell.out, shell.file)
}

func (shell *Shell) sections(args []string) error {
	return render.SectionHeaders(shell.out, shell.file)
}

func (shell *Shell) segments(args []string) error {
	return render.ProgramHeaders(shell.out, shell.file)
}

func filterArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func (shell *Shell) symbols(args []string) error {
	return render.Symbols(
		shell.out,
		shell.file.Symbols,
		filterArg(args),
		shell.demangle)
}

func (shell *Shell) dynamicSymbols(args []string) error {
	return render.Symbols(
		shell.out,
		shell.file.DynamicSymbols,
		filterArg(args),
		shell.demangle)
}

func (shell *Shell) tables() []*elf.SymbolTable {
	return []*elf.SymbolTable{shell.file.Symbols, shell.file.DynamicSymbols}
}

func (shell *Shell) lookup(args []string) error {
	if len(args) != 1 {
		_, err := fmt.Fprintln(shell.out, "usage: lookup <name>")
		return err
	}

	found := false
	for _, table := range shell.tables() {
		for _, symbol := range table.SymbolsByName(args[0]) {
			found = true
			_, err := fmt.Fprintf(
				shell.out,
				"[%s] %d: %s %s size=%d\n",
				shell.file.SectionNames[table.SectionIndex],
				symbol.Index,
				render.Hex(symbol.Value),
				symbol.PrettyName(),
				symbol.Size)
			if err != nil {
				return err
			}
		}
	}

	if !found {
		_, err := fmt.Fprintln(shell.out, "no symbol named", args[0])
		return err
	}
	return nil
}

func (shell *Shell) at(args []string) error {
	if len(args) != 1 {
		_, err := fmt.Fprintln(shell.out, "usage: at <address>")
		return err
	}

	value, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		_, err = fmt.Fprintf(shell.out, "invalid address (%s): %s\n", args[0], err)
		return err
	}
	address := elf.FileAddress(value)

	for _, table := range shell.tables() {
		symbol := table.SymbolSpans(address)
		if symbol == nil {
			continue
		}

		_, err := fmt.Fprintf(
			shell.out,
			"%s+%#x\n",
			symbol.PrettyName(),
			uint64(address)-symbol.Value)
		return err
	}

	_, err = fmt.Fprintln(shell.out, "no symbol at", render.Hex(value))
	return err
}

func (shell *Shell) notes(args []string) error {
	return render.Notes(shell.out, shell.file)
}

func (shell *Shell) raw(args []string) error {
	if len(args) != 2 {
		_, err := fmt.Fprintln(
			shell.out,
			"usage: raw section|segment|symbol|dynsym <index>")
		return err
	}

	idx, err := strconv.Atoi(args[1])
	if err != nil || idx < 0 {
		_, err = fmt.Fprintln(shell.out, "invalid index:", args[1])
		return err
	}

	var record interface{}
	switch {
	case strings.HasPrefix("section", args[0]):
		if idx < len(shell.file.Sections) {
			record = shell.file.Sections[idx]
		}
	case strings.HasPrefix("segment", args[0]):
		if idx < len(shell.file.ProgramHeaders) {
			record = shell.file.ProgramHeaders[idx]
		}
	case strings.HasPrefix("symbol", args[0]):
		if idx < len(shell.file.Symbols.Symbols) {
			record = shell.file.Symbols.Symbols[idx]
		}
	case strings.HasPrefix("dynsym", args[0]):
		if idx < len(shell.file.DynamicSymbols.Symbols) {
			record = shell.file.DynamicSymbols.Symbols[idx]
		}
	default:
		_, err = fmt.Fprintln(shell.out, "invalid record kind:", args[0])
		return err
	}

	if record == nil {
		_, err = fmt.Fprintln(shell.out, "index out of bound:", idx)
		return err
	}

	_, err = pretty.Fprintf(shell.out, "%# v\n", record)
	return err
}

func (shell *Shell) help(args []string) error {
	for _, cmd := range commands {
		_, err := fmt.Fprintf(shell.out, "  %-10s %s\n", cmd.name, cmd.usage)
		if err != nil {
			return err
		}
	}
	return nil
}
