package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a tinyscript.toml
	dir := t.TempDir()
	tomlContent := `
[project]
name = "calc"

[run]
strict = true
max-steps = 500
echo-accumulator = false

[lexer]
buffer-size = 8

[vm]
stack-grow = 32

[journal]
path = "runs.db"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "calc" {
		t.Errorf("project name = %q, want calc", m.Project.Name)
	}
	if !m.Run.Strict {
		t.Error("run.strict = false, want true")
	}
	if m.Run.MaxSteps != 500 {
		t.Errorf("run.max-steps = %d, want 500", m.Run.MaxSteps)
	}
	if m.Run.EchoAccumulator {
		t.Error("run.echo-accumulator = true, want false")
	}
	if m.Lexer.BufferSize != 8 {
		t.Errorf("lexer.buffer-size = %d, want 8", m.Lexer.BufferSize)
	}
	if m.VM.StackGrow != 32 {
		t.Errorf("vm.stack-grow = %d, want 32", m.VM.StackGrow)
	}
	if got, want := m.JournalPath(), filepath.Join(m.Dir, "runs.db"); got != want {
		t.Errorf("JournalPath() = %q, want %q", got, want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "minimal"

[lexer]
buffer-size = 0
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Run.Strict {
		t.Error("default run.strict = true, want false")
	}
	if m.Run.MaxSteps != DefaultMaxSteps {
		t.Errorf("default run.max-steps = %d, want %d", m.Run.MaxSteps, DefaultMaxSteps)
	}
	if !m.Run.EchoAccumulator {
		t.Error("default run.echo-accumulator = false, want true")
	}
	if m.Lexer.BufferSize != DefaultBufferSize {
		t.Errorf("lexer.buffer-size = %d, want %d", m.Lexer.BufferSize, DefaultBufferSize)
	}
	if m.VM.StackGrow != DefaultStackGrow {
		t.Errorf("vm.stack-grow = %d, want %d", m.VM.StackGrow, DefaultStackGrow)
	}
	if m.JournalPath() != "" {
		t.Errorf("JournalPath() = %q, want empty", m.JournalPath())
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[run\nstrict = true"},
		{"type", "[run]\nmax-steps = \"many\""},
		{"negative steps", "[run]\nmax-steps = -1"},
	}
	for _, tc := range tests {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tc.content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(dir); err == nil {
			t.Errorf("%s: Load succeeded, want error", tc.name)
		}
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of a directory without tinyscript.toml should fail")
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[project]
name = "found-project"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no tinyscript.toml exists")
	}
}

func TestJournalPath(t *testing.T) {
	tests := []struct {
		dir, path, want string
	}{
		{"/app", "", ""},
		{"/app", "runs.db", "/app/runs.db"},
		{"/app", "/var/tinyscript/runs.db", "/var/tinyscript/runs.db"},
		{"", "runs.db", "runs.db"},
	}
	for _, tc := range tests {
		m := &Manifest{Dir: tc.dir, Journal: JournalConfig{Path: tc.path}}
		if got := m.JournalPath(); got != tc.want {
			t.Errorf("JournalPath(dir=%q, path=%q) = %q, want %q", tc.dir, tc.path, got, tc.want)
		}
	}
}
