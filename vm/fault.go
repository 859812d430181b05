package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrStepLimit is returned by Run when the configured instruction budget
// is exhausted before the program halts.
var ErrStepLimit = errors.New("step limit exceeded")

// Fault is a fatal machine error: an operand form or type the machine does
// not support, or a stack underflow. A fault aborts the run.
type Fault struct {
	IP  int
	Op  Opcode
	Msg string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("vm fault @ip=%d %s: %s", f.IP, f.Op, f.Msg)
}

// faultf aborts the current instruction. Run recovers it into an error.
func faultf(format string, args ...interface{}) {
	panic(faultSignal{msg: fmt.Sprintf(format, args...)})
}

// faultSignal is the panic payload used inside the dispatch loop; Run
// attaches the instruction address and opcode.
type faultSignal struct {
	msg string
}
