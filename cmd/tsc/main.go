// tsc compiles and runs tinyscript programs.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/tinyscript/compiler"
	"github.com/chazu/tinyscript/engine"
	"github.com/chazu/tinyscript/journal"
	"github.com/chazu/tinyscript/manifest"
	"github.com/chazu/tinyscript/server"
	"github.com/chazu/tinyscript/vm"
	"github.com/chazu/tinyscript/vm/dist"
)

type options struct {
	eval        string
	interactive bool
	compileOut  string
	execImage   bool
	disassemble bool
	tree        bool
	tokens      bool
	lsp         bool
	configDir   string
	journalPath string
	history     int
	verbose     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.eval, "e", "", "Run one command line")
	flag.BoolVar(&opts.interactive, "i", false, "Start interactive REPL")
	flag.StringVar(&opts.compileOut, "c", "", "Compile the script to a program image at this path")
	flag.BoolVar(&opts.execImage, "x", false, "Treat arguments as program images and run them")
	flag.BoolVar(&opts.disassemble, "S", false, "Print the instruction listing")
	flag.BoolVar(&opts.tree, "tree", false, "Print the code-generation tree")
	flag.BoolVar(&opts.tokens, "tokens", false, "Print the token stream")
	flag.BoolVar(&opts.lsp, "lsp", false, "Serve the language server on stdio")
	flag.StringVar(&opts.configDir, "config", "", "Directory holding tinyscript.toml")
	flag.StringVar(&opts.journalPath, "journal", "", "Record runs in this SQLite database")
	flag.IntVar(&opts.history, "history", 0, "List the last n journaled runs")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tsc [options] [scripts...]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles and runs tinyscript programs. With no scripts, starts the REPL.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tsc hello.ts                 # Run a script\n")
		fmt.Fprintf(os.Stderr, "  tsc -e 'x <- 6 * 7'          # Run a command line, echo the result\n")
		fmt.Fprintf(os.Stderr, "  tsc -S -tree hello.ts        # Show the tree and listing, then run\n")
		fmt.Fprintf(os.Stderr, "  tsc -c hello.tsb hello.ts    # Compile to a program image\n")
		fmt.Fprintf(os.Stderr, "  tsc -x hello.tsb             # Verify and run a program image\n")
		fmt.Fprintf(os.Stderr, "  tsc -journal runs.db -history 10\n")
	}
	flag.Parse()

	verbosity := 0
	if opts.verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	m, err := loadManifest(opts.configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if opts.verbose && m.Dir != "" {
		fmt.Printf("Loaded %s\n", filepath.Join(m.Dir, manifest.FileName))
	}

	if opts.lsp {
		srv := server.NewLSP(engine.New(nil, m))
		if err := srv.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	jpath := opts.journalPath
	if jpath == "" {
		jpath = m.JournalPath()
	}
	var j *journal.Journal
	if jpath != "" {
		j, err = journal.Open(jpath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer j.Close()
	}

	if opts.history > 0 {
		if j == nil {
			fmt.Fprintf(os.Stderr, "Error: -history needs a journal (-journal or journal.path)\n")
			os.Exit(1)
		}
		if err := printHistory(j, opts.history); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	paths := flag.Args()
	status := 0
	switch {
	case opts.eval != "":
		r := newRunner(m, j, opts)
		status = r.run("-e", opts.eval, engine.ModeCommandLine)
	case opts.execImage:
		for _, path := range paths {
			if err := runImage(path, m, opts.verbose); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
	case opts.compileOut != "":
		if len(paths) != 1 {
			fmt.Fprintf(os.Stderr, "Error: -c takes exactly one script\n")
			os.Exit(1)
		}
		if err := compileImage(paths[0], opts.compileOut, m, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case len(paths) > 0:
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			// Each script gets its own variables.
			r := newRunner(m, j, opts)
			if s := r.run(path, string(data), engine.ModeScript); s > status {
				status = s
			}
		}
	}

	if opts.interactive || (len(paths) == 0 && opts.eval == "") {
		runREPL(newRunner(m, j, opts))
	}
	os.Exit(status)
}

func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return manifest.Default(), nil
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	return m, nil
}

// runner compiles and runs sources on one engine, printing diagnostics and
// recording each run in the journal when one is open.
type runner struct {
	engine  *engine.Engine
	out     *teeOutput
	journal *journal.Journal
	opts    options
	last    *engine.Compilation
}

func newRunner(m *manifest.Manifest, j *journal.Journal, opts options) *runner {
	out := &teeOutput{
		out:    &vm.WriterOutput{Out: os.Stdout, Err: os.Stderr, ClearScreen: true},
		record: &vm.BufferOutput{},
	}
	return &runner{
		engine:  engine.New(out, m),
		out:     out,
		journal: j,
		opts:    opts,
	}
}

// run returns the process status for src: 0 on a clean run, 1 when
// anything was rejected or faulted.
func (r *runner) run(name, src string, mode engine.Mode) int {
	if r.opts.tokens {
		for _, tok := range compiler.Tokenize(src) {
			fmt.Println(tok)
		}
	}

	r.out.record = &vm.BufferOutput{}
	res, err := r.engine.Run(src, mode)
	r.out.endLine()
	c := res.Compilation
	r.last = c
	for _, msg := range c.Messages() {
		fmt.Fprintln(os.Stderr, msg)
	}
	showCompilation(os.Stdout, c, r.opts)

	status := 0
	if c.Failed {
		status = 1
	}
	fault := ""
	switch {
	case errors.Is(err, engine.ErrNotExecuted):
		status = 1
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", name, err)
		fault = err.Error()
		status = 1
	}

	if r.journal != nil {
		_, jerr := r.journal.Record(journal.Entry{
			Mode:        mode.String(),
			Source:      src,
			Diagnostics: c.Messages(),
			Output:      r.out.record.Stdout(),
			Fault:       fault,
			Executed:    res.Executed,
		})
		if jerr != nil {
			fmt.Fprintf(os.Stderr, "Warning: journal: %v\n", jerr)
		}
	}
	return status
}

// showCompilation prints the tree and listing requested by -tree and -S,
// each ending on its own line.
func showCompilation(w io.Writer, c *engine.Compilation, opts options) {
	if opts.tree && c.Tree != nil {
		fmt.Fprintln(w, c.Tree.String())
	}
	if opts.disassemble && c.Program != nil {
		fmt.Fprintln(w, vm.Disassemble(c.Program))
	}
}

func compileImage(path, out string, m *manifest.Manifest, opts options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	e := engine.New(nil, m)
	c := e.Compile(string(data), engine.ModeScript)
	for _, msg := range c.Messages() {
		fmt.Fprintln(os.Stderr, msg)
	}
	showCompilation(os.Stdout, c, opts)
	img, err := e.Image(c)
	if err != nil {
		return err
	}
	if err := dist.WriteFile(out, img); err != nil {
		return err
	}
	if opts.verbose {
		fmt.Printf("Wrote %s (%d instructions, %d bytes of storage)\n", out, len(img.Instructions), img.StorageSize)
	}
	return nil
}

func runImage(path string, m *manifest.Manifest, verbose bool) error {
	img, err := dist.ReadFile(path)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("Loaded %s (source %x)\n", path, img.SourceHash[:6])
	}
	e := engine.New(&vm.WriterOutput{Out: os.Stdout, Err: os.Stderr, ClearScreen: true}, m)
	return e.RunImage(img)
}

func printHistory(j *journal.Journal, n int) error {
	entries, err := j.Recent(n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		status := "ok"
		switch {
		case e.Fault != "":
			status = "fault: " + e.Fault
		case !e.Executed:
			status = "not executed"
		case len(e.Diagnostics) > 0:
			status = fmt.Sprintf("%d diagnostics", len(e.Diagnostics))
		}
		fmt.Printf("#%d %s [%s] %s\n", e.ID, e.At.Format("2006-01-02 15:04:05"), e.Mode, status)
		for _, line := range strings.Split(strings.TrimRight(e.Source, "\n"), "\n") {
			fmt.Printf("    %s\n", line)
		}
	}
	return nil
}

// teeOutput forwards program output and keeps a copy for the journal.
// open is set while the last standard-output write left a line unfinished.
type teeOutput struct {
	out    vm.Output
	record *vm.BufferOutput
	open   bool
}

func (t *teeOutput) Clear() {
	t.out.Clear()
	t.record.Clear()
	t.open = false
}

func (t *teeOutput) Write(kind vm.OutputKind, text string) {
	t.out.Write(kind, text)
	t.record.Write(kind, text)
	if kind == vm.StdOut && text != "" {
		t.open = !strings.HasSuffix(text, "\n")
	}
}

// endLine terminates an unfinished output line so diagnostics and the next
// prompt start on their own line. The journal copy is left as printed.
func (t *teeOutput) endLine() {
	if t.open {
		t.out.Write(vm.StdOut, "\n")
		t.open = false
	}
}
