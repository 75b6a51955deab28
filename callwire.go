package callwire

import "context"

// Marker is the fixed last argument passed to the external program so it
// can tell the record-file calling convention apart from other invocations.
const Marker = "PYFUNC_CALL"

// Invocation describes one synchronous external call.
type Invocation struct {
	// Program is the interpreter or module path the runner executes.
	Program string
	Module  string
	Func    string
	// Path names the exchange file holding the encoded arguments. The
	// program overwrites it with the encoded results.
	Path   string
	Marker string
}

// Args returns the argument vector after the program name.
func (inv Invocation) Args() []string {
	marker := inv.Marker
	if marker == "" {
		marker = Marker
	}
	return []string{"-m", inv.Module, inv.Func, inv.Path, marker}
}

// Runner executes an external program for a call and waits for it. A
// non-zero exit is reported as an *errors.Error of kind KindExitStatus.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, inv Invocation) error

func (f RunnerFunc) Run(ctx context.Context, inv Invocation) error {
	return f(ctx, inv)
}
