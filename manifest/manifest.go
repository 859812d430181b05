// Package manifest handles tinyscript.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "tinyscript.toml"

// Defaults applied to keys the file leaves out.
const (
	DefaultMaxSteps   = 1_000_000
	DefaultBufferSize = 5
	DefaultStackGrow  = 10
)

// Manifest represents a tinyscript.toml configuration.
type Manifest struct {
	Project Project       `toml:"project"`
	Run     RunConfig     `toml:"run"`
	Lexer   LexerConfig   `toml:"lexer"`
	VM      VMConfig      `toml:"vm"`
	Journal JournalConfig `toml:"journal"`

	// Dir is the directory containing the tinyscript.toml file (set at load
	// time). It is empty for Default.
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// RunConfig controls how compiled programs are executed.
type RunConfig struct {
	// Strict refuses to execute a program when any statement failed to
	// parse.
	Strict bool `toml:"strict"`
	// MaxSteps bounds the instructions one run may execute. Zero means
	// unbounded.
	MaxSteps int `toml:"max-steps"`
	// EchoAccumulator prints R1 after each command-line run.
	EchoAccumulator bool `toml:"echo-accumulator"`
}

// LexerConfig configures the token stream.
type LexerConfig struct {
	BufferSize int `toml:"buffer-size"`
}

// VMConfig configures the machine.
type VMConfig struct {
	StackGrow int `toml:"stack-grow"`
}

// JournalConfig configures the run journal. An empty Path disables it.
type JournalConfig struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no tinyscript.toml exists.
func Default() *Manifest {
	return &Manifest{
		Run: RunConfig{
			MaxSteps:        DefaultMaxSteps,
			EchoAccumulator: true,
		},
		Lexer: LexerConfig{BufferSize: DefaultBufferSize},
		VM:    VMConfig{StackGrow: DefaultStackGrow},
	}
}

// Load parses a tinyscript.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Run.MaxSteps < 0 {
		return nil, fmt.Errorf("%s: run.max-steps must not be negative", path)
	}
	if m.Lexer.BufferSize < 1 {
		m.Lexer.BufferSize = DefaultBufferSize
	}
	if m.VM.StackGrow < 1 {
		m.VM.StackGrow = DefaultStackGrow
	}

	return m, nil
}

// FindAndLoad walks up from startDir to find a tinyscript.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// JournalPath returns the journal database path, resolved against Dir, or
// "" when journaling is off.
func (m *Manifest) JournalPath() string {
	if m.Journal.Path == "" {
		return ""
	}
	if filepath.IsAbs(m.Journal.Path) || m.Dir == "" {
		return m.Journal.Path
	}
	return filepath.Join(m.Dir, m.Journal.Path)
}
