package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Names of the external tools the release toolchain drives.
const (
	ToolDocker = "docker"
	ToolAWS    = "aws"
	ToolBun    = "bun"
)

// Runner abstracts external process invocation so workflows can be
// exercised without the real toolchain.
type Runner interface {
	// Run executes a command, streaming output to the process streams.
	// A non-zero exit status is reported as an error.
	Run(ctx context.Context, name string, args ...string) error
	// RunIn behaves like Run with the working directory set to dir.
	RunIn(ctx context.Context, dir, name string, args ...string) error
	// RunWithInput behaves like Run with the given bytes on stdin.
	RunWithInput(ctx context.Context, input []byte, name string, args ...string) error
	// Output executes a command and returns its captured stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)
	// LookPath resolves a tool name on the execution path.
	LookPath(name string) (string, error)
}

// ExecRunner invokes commands via os/exec.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return wrapExit(name, cmd.Run())
}

func (ExecRunner) RunIn(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return wrapExit(name, cmd.Run())
}

func (ExecRunner) RunWithInput(ctx context.Context, input []byte, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return wrapExit(name, cmd.Run())
}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", wrapExit(name, err), msg)
		}
		return "", wrapExit(name, err)
	}
	return stdout.String(), nil
}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// wrapExit converts an exec failure into an error that carries the exit
// status instead of relying on the raw *exec.ExitError text.
func wrapExit(name string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s exited with status %d", name, exitErr.ExitCode())
	}
	return fmt.Errorf("%s: %w", name, err)
}
