package ca

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Runner executes one external toolchain command. Implementations run the
// process to completion; there is no kill-switch beyond ctx cancellation
// before the process starts.
type Runner interface {
	// Run executes the command, streaming its output for observability, and
	// returns an error on nonzero exit.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes the command and returns its captured standard output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs toolchain commands with a fixed working directory and an
// environment override pointing at the generated openssl configuration.
type ExecRunner struct {
	// Dir is the working directory for every command.
	Dir string
	// Env entries are appended to the inherited environment.
	Env []string
	// Stdout and Stderr receive the process output. Nil defaults to the
	// host process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

var _ Runner = (*ExecRunner)(nil)

func (r *ExecRunner) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), r.Env...)
	if r.Stderr != nil {
		cmd.Stderr = r.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}
	return cmd
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := r.command(ctx, name, args...)
	if r.Stdout != nil {
		cmd.Stdout = r.Stdout
	} else {
		cmd.Stdout = os.Stdout
	}
	return wrapExecErr(name, cmd.Run())
}

func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := r.command(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := wrapExecErr(name, cmd.Run()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func wrapExecErr(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%s: %v: %w", name, err, ErrToolchainUnavailable)
	}
	return fmt.Errorf("%s: %w", name, err)
}
