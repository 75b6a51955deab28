package bridge

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/wippyai/callwire"
	"github.com/wippyai/callwire/errors"
)

// ExecRunner starts the external program as a child process and waits for
// it. The zero value passes the parent's stdout, stderr and environment
// through.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	// Env replaces the inherited environment when non-nil.
	Env []string
	Dir string
}

func (r ExecRunner) Run(ctx context.Context, inv callwire.Invocation) error {
	cmd := exec.CommandContext(ctx, inv.Program, inv.Args()...)
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.Env = r.Env
	cmd.Dir = r.Dir

	Logger().Debug("running external program",
		zap.String("program", inv.Program),
		zap.Strings("args", cmd.Args[1:]))

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(errors.PhaseCall, errors.KindExitStatus, ctxErr, inv.Program+" cancelled")
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return errors.ExitStatus(inv.Program, exitErr.ExitCode(), err)
	}
	return errors.Wrap(errors.PhaseCall, errors.KindInvalidInput, err, "start "+inv.Program)
}
