package git

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner executes commands. Tests replace it with a fake.
type CommandRunner interface {
	// Run executes name with args in workDir, with env appended to the
	// process environment, and returns the trimmed stdout. On failure the
	// error is a *CommandError.
	Run(ctx context.Context, workDir string, env []string, name string, args ...string) (stdout string, err error)
}

// ExecRunner is the default CommandRunner using exec.CommandContext.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command using exec.CommandContext.
func (r *ExecRunner) Run(ctx context.Context, workDir string, env []string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = strings.TrimSpace(stdout.String())
		}
		if errMsg == "" {
			errMsg = err.Error()
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return errMsg, &CommandError{
			Command:  name,
			Args:     args,
			WorkDir:  workDir,
			Output:   errMsg,
			ExitCode: exitCode,
			Err:      err,
		}
	}

	return strings.TrimSpace(stdout.String()), nil
}

// CommandError represents a command execution error.
type CommandError struct {
	Command string
	Args    []string
	WorkDir string
	Output  string
	// ExitCode is -1 when the process did not start or was killed.
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	if e.Output != "" {
		return e.Command + " " + strings.Join(e.Args, " ") + ": " + e.Output
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "command failed"
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// exitCode returns the exit code of a failed command, or -1.
func exitCode(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}
