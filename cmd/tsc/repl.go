package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/chazu/tinyscript/engine"
	"github.com/chazu/tinyscript/vm"
)

const (
	historyFile = ".tinyscript_history"
	prompt      = "ts> "
)

// replSession holds the most recent compilation so :dis and :tree can show
// it after the fact.
type replSession struct {
	r    *runner
	last *engine.Compilation
}

// runREPL reads command lines until EOF or :quit. Variables persist across
// lines because every line runs on the same engine.
func runREPL(r *runner) {
	fmt.Println("tinyscript REPL (Ctrl+D or :quit to exit, :help for commands)")
	fmt.Println()

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	s := &replSession{r: r}
	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		if strings.HasPrefix(line, ":") {
			if !s.command(line) {
				break
			}
			continue
		}
		s.eval(line)
	}
	fmt.Println()
}

func (s *replSession) eval(line string) {
	s.r.run("repl", line, engine.ModeCommandLine)
	s.last = s.r.last
}

// command runs a REPL meta-command. It reports false when the session
// should end.
func (s *replSession) command(cmd string) bool {
	switch cmd {
	case ":quit", ":q":
		return false
	case ":help", ":h", ":?":
		fmt.Println("REPL Commands:")
		fmt.Println("  :help, :h, :?     Show this help")
		fmt.Println("  :symbols          List declared variables")
		fmt.Println("  :dis              Show the listing of the last line")
		fmt.Println("  :tree             Show the code-generation tree of the last line")
		fmt.Println("  :reset            Forget every variable")
		fmt.Println("  :quit, :q         Exit REPL")
	case ":symbols":
		syms := s.r.engine.Context().Symbols.Symbols()
		if len(syms) == 0 {
			fmt.Println("no variables")
		}
		for _, sym := range syms {
			val, err := s.r.engine.Context().Storage.Load(sym.Type, sym.Offset)
			if err != nil {
				fmt.Printf("  %-16s %s @%d  <%v>\n", sym.Name, sym.Type, sym.Offset, err)
				continue
			}
			fmt.Printf("  %-16s %s @%d  %s\n", sym.Name, sym.Type, sym.Offset, val)
		}
	case ":dis":
		if s.last == nil || s.last.Program == nil {
			fmt.Println("nothing compiled")
			break
		}
		fmt.Println(vm.Disassemble(s.last.Program))
	case ":tree":
		if s.last == nil || s.last.Tree == nil {
			fmt.Println("nothing compiled")
			break
		}
		fmt.Println(s.last.Tree.String())
	case ":reset":
		s.r.engine.Reset()
		s.last = nil
		fmt.Println("variables cleared")
	default:
		fmt.Printf("Unknown command: %s (type :help for commands)\n", cmd)
	}
	return true
}
