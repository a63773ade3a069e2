package service

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// RunResult captures one synchronous invocation of a collaborator process.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner invokes an external process and waits for it. The error
// return is reserved for failures to run at all (missing binary, fork
// failure); a process that started and exited non-zero is reported through
// ExitCode.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (RunResult, error)
}

// execRunner runs real subprocesses with an optional bounded wait. A hung
// collaborator would otherwise stall the whole daemon; on timeout the
// process is killed and surfaces as a non-zero exit.
type execRunner struct {
	timeout time.Duration
}

// NewExecRunner returns a CommandRunner backed by os/exec. A zero timeout
// disables the bounded wait.
func NewExecRunner(timeout time.Duration) CommandRunner {
	return &execRunner{timeout: timeout}
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (RunResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if ctx.Err() != nil && result.Stderr == "" {
				result.Stderr = "process killed: " + ctx.Err().Error()
			}
			return result, nil
		}
		return result, err
	}

	return result, nil
}
