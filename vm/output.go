package vm

import (
	"io"
	"strings"
	"sync"
)

// OutputKind selects the stream a Write goes to.
type OutputKind uint8

const (
	StdOut OutputKind = iota
	StdErr
)

func (k OutputKind) String() string {
	if k == StdErr {
		return "stderr"
	}
	return "stdout"
}

// Output is the sink PRINT and CLR talk to.
type Output interface {
	Clear()
	Write(kind OutputKind, text string)
}

// WriterOutput sends each write to an io.Writer as is. Consecutive writes
// run together, so print(a, b) renders a and b with no separator. Clear emits an ANSI clear-screen sequence when ClearScreen is set and is
// otherwise a no-op.
type WriterOutput struct {
	Out         io.Writer
	Err         io.Writer
	ClearScreen bool
}

func (w *WriterOutput) Clear() {
	if w.ClearScreen && w.Out != nil {
		io.WriteString(w.Out, "\x1b[H\x1b[2J")
	}
}

func (w *WriterOutput) Write(kind OutputKind, text string) {
	dst := w.Out
	if kind == StdErr && w.Err != nil {
		dst = w.Err
	}
	if dst == nil {
		return
	}
	io.WriteString(dst, text)
}

// OutputLine is one recorded write.
type OutputLine struct {
	Kind OutputKind
	Text string
}

// BufferOutput records writes in memory. Clear discards everything recorded
// so far. It is safe for concurrent use.
type BufferOutput struct {
	mu     sync.Mutex
	lines  []OutputLine
	clears int
}

func (b *BufferOutput) Clear() {
	b.mu.Lock()
	b.lines = nil
	b.clears++
	b.mu.Unlock()
}

func (b *BufferOutput) Write(kind OutputKind, text string) {
	b.mu.Lock()
	b.lines = append(b.lines, OutputLine{Kind: kind, Text: text})
	b.mu.Unlock()
}

// Lines returns a copy of the recorded writes.
func (b *BufferOutput) Lines() []OutputLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]OutputLine, len(b.lines))
	copy(out, b.lines)
	return out
}

// Stdout returns the standard-output writes concatenated.
func (b *BufferOutput) Stdout() string {
	return b.joined(StdOut)
}

// Stderr returns the standard-error writes concatenated.
func (b *BufferOutput) Stderr() string {
	return b.joined(StdErr)
}

func (b *BufferOutput) joined(kind OutputKind) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sb strings.Builder
	for _, l := range b.lines {
		if l.Kind == kind {
			sb.WriteString(l.Text)
		}
	}
	return sb.String()
}

// Clears returns how many times Clear has been called.
func (b *BufferOutput) Clears() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clears
}
