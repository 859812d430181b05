// Package engine drives one tinyscript session: it compiles source against
// a persistent symbol table and runs the result on a persistent machine.
package engine

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/chazu/tinyscript/compiler"
	"github.com/chazu/tinyscript/compiler/hash"
	"github.com/chazu/tinyscript/manifest"
	"github.com/chazu/tinyscript/vm"
	"github.com/chazu/tinyscript/vm/dist"
)

var log = commonlog.GetLogger("tinyscript.engine")

// Mode selects the grammar a source is parsed with.
type Mode uint8

const (
	// ModeScript accepts every statement form.
	ModeScript Mode = iota
	// ModeCommandLine accepts assignments and expressions only and echoes
	// the accumulator, followed by a newline, after a run.
	ModeCommandLine
)

func (m Mode) String() string {
	if m == ModeCommandLine {
		return "command-line"
	}
	return "script"
}

// ErrNotExecuted is returned by Run when a compilation produced no program
// to execute.
var ErrNotExecuted = errors.New("program not executed")

// Compilation is the outcome of compiling one source.
type Compilation struct {
	Source      string
	Mode        Mode
	Tree        *compiler.Tree
	Program     *vm.Program
	Diagnostics []*compiler.ParseError
	// Failed is set when any statement was rejected. Program may still be
	// non-nil and hold the statements that parsed.
	Failed bool
}

// Messages returns the formatted diagnostics.
func (c *Compilation) Messages() []string {
	out := make([]string, len(c.Diagnostics))
	for i, d := range c.Diagnostics {
		out[i] = d.Error()
	}
	return out
}

// Result is the outcome of Run.
type Result struct {
	Compilation *Compilation
	Executed    bool
	Accumulator vm.Register
}

// Engine owns the context and machine a session compiles and runs against.
// It is not safe for concurrent use.
type Engine struct {
	ctx      *vm.Context
	machine  *vm.Machine
	out      vm.Output
	manifest *manifest.Manifest
}

// New creates an engine writing program output to out. A nil manifest
// means manifest.Default().
func New(out vm.Output, m *manifest.Manifest) *Engine {
	if m == nil {
		m = manifest.Default()
	}
	ctx := vm.NewContext()
	machine := vm.NewMachine(ctx.Storage, out)
	machine.SetStackGrow(m.VM.StackGrow)
	machine.SetMaxSteps(m.Run.MaxSteps)
	return &Engine{ctx: ctx, machine: machine, out: out, manifest: m}
}

// Context returns the session's symbol table and storage.
func (e *Engine) Context() *vm.Context { return e.ctx }

// Machine returns the session's machine.
func (e *Engine) Machine() *vm.Machine { return e.machine }

// Manifest returns the configuration the engine was built with.
func (e *Engine) Manifest() *manifest.Manifest { return e.manifest }

// SetOutput redirects program output.
func (e *Engine) SetOutput(out vm.Output) {
	e.out = out
	e.machine.SetOutput(out)
}

// Reset clears every variable and the machine state.
func (e *Engine) Reset() {
	e.ctx.Reset()
	e.machine.Reset()
}

// Compile lexes, parses and generates src. New variables are declared in
// the engine's context. Command-line input gets a trailing ';' when it
// lacks one.
func (e *Engine) Compile(src string, mode Mode) *Compilation {
	if mode == ModeCommandLine {
		src = terminate(src)
	}
	c := &Compilation{Source: src, Mode: mode}

	ts := compiler.NewTokenStream(compiler.NewLexerString(src), e.manifest.Lexer.BufferSize)
	p := compiler.NewParser(ts, e.ctx)
	var res *compiler.ParseResult
	if mode == ModeCommandLine {
		res = p.ParseCommandLine()
	} else {
		res = p.ParseScript()
	}
	c.Tree = res.Tree
	c.Diagnostics = res.Diagnostics
	c.Failed = res.Failed
	for _, d := range res.Diagnostics {
		log.Debugf("%s", d)
	}
	if c.Tree == nil {
		return c
	}

	b := vm.NewBuilder()
	if err := compiler.Generate(c.Tree, b); err != nil {
		log.Errorf("generate: %s", err)
		c.Failed = true
		return c
	}
	prog, err := b.Commit()
	if err != nil {
		log.Errorf("commit: %s", err)
		c.Failed = true
		return c
	}
	prog.StorageSize = e.ctx.Storage.Size()
	c.Program = prog
	return c
}

func terminate(src string) string {
	trimmed := strings.TrimRight(src, " \t\r\n")
	if trimmed == "" || strings.HasSuffix(trimmed, ";") {
		return src
	}
	return trimmed + ";"
}

// Executable reports whether c should be run: it has a program and either
// compiled cleanly or strict mode is off and something survived.
func (e *Engine) Executable(c *Compilation) bool {
	switch {
	case c.Program == nil:
		return false
	case !c.Failed:
		return true
	}
	return !e.manifest.Run.Strict && c.Program.Len() > 0
}

// Execute runs p on the engine's machine. Registers keep their values
// from the previous run.
func (e *Engine) Execute(p *vm.Program) error {
	e.machine.Load(p)
	if err := e.machine.Run(); err != nil {
		log.Warningf("run: %s", err)
		return err
	}
	return nil
}

// Run compiles src and, when the compilation is executable, runs it. The
// returned error is a VM fault, the step limit, or ErrNotExecuted.
func (e *Engine) Run(src string, mode Mode) (*Result, error) {
	c := e.Compile(src, mode)
	r := &Result{Compilation: c}
	if !e.Executable(c) {
		return r, ErrNotExecuted
	}
	if err := e.Execute(c.Program); err != nil {
		return r, err
	}
	r.Executed = true
	r.Accumulator = e.machine.Accumulator()

	if mode == ModeCommandLine && e.manifest.Run.EchoAccumulator && r.Accumulator.Type == vm.TypeInt4 {
		if e.out != nil {
			e.out.Write(vm.StdOut, r.Accumulator.Value.String()+"\n")
		}
	}
	return r, nil
}

// TreeHash compiles src into a scratch context and returns the hash of
// its code-generation tree. It is the recompile hook for dist.Verify.
func TreeHash(src string, mode dist.Mode) ([32]byte, error) {
	e := New(nil, manifest.Default())
	c := e.Compile(src, Mode(mode))
	if c.Tree == nil || c.Failed {
		return [32]byte{}, errors.Errorf("%s", strings.Join(c.Messages(), "\n"))
	}
	return hash.HashTree(c.Tree), nil
}

// Image captures a compilation as a distributable program image.
func (e *Engine) Image(c *Compilation) (*dist.Image, error) {
	if c.Program == nil || c.Tree == nil {
		return nil, errors.New("image: nothing compiled")
	}
	if c.Failed {
		return nil, errors.Errorf("image: compilation failed:\n%s", strings.Join(c.Messages(), "\n"))
	}
	return dist.NewImage(c.Source, dist.Mode(c.Mode), hash.HashTree(c.Tree), c.Program, e.ctx.Symbols.Symbols()), nil
}

// RunImage verifies img by recompiling its source, declares its symbols
// and runs its program.
func (e *Engine) RunImage(img *dist.Image) error {
	if err := dist.Verify(img, TreeHash); err != nil {
		return err
	}
	if err := img.Restore(e.ctx); err != nil {
		return err
	}
	prog, err := img.Program()
	if err != nil {
		return err
	}
	return e.Execute(prog)
}
