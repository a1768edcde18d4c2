package iobuffer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrEmptyCommand is returned by Process.Initialize when there is no command.
var ErrEmptyCommand = errors.New("no command to run")

// Process is a Buffer over the standard input and output of a program, such
// as sendmail.
type Process struct {
	stream

	command string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  bytes.Buffer
}

var _ Buffer = (*Process)(nil)

// NewProcess returns a Process that runs command when initialized. The
// command is split into arguments at whitespace. No shell is involved.
func NewProcess(command string) *Process {
	return &Process{command: command}
}

// Command returns the command line.
func (p *Process) Command() string {
	return p.command
}

// Initialize starts the program.
func (p *Process) Initialize(ctx context.Context) error {
	args := strings.Fields(p.command)
	if len(args) == 0 {
		return ErrEmptyCommand
	}

	cmd := exec.Command(args[0], args[1:]...)
	p.stderr.Reset()
	cmd.Stderr = &p.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("process could not be started [%s]: %w", p.command, err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.open(stdout, stdin)
	return nil
}

// ReadLine reads a line of output.
func (p *Process) ReadLine(seq int) (string, error) {
	if p.cmd == nil {
		return "", ErrNotInitialized
	}
	return p.readLine()
}

// Terminate closes standard input and waits for the program to exit. An
// error includes anything the program wrote to standard error.
func (p *Process) Terminate() error {
	if p.cmd == nil {
		return nil
	}

	flushErr := p.Flush()
	_ = p.stdin.Close()
	err := p.cmd.Wait()

	p.cmd = nil
	p.stdin = nil
	p.close()

	if err != nil {
		if msg := strings.TrimSpace(p.stderr.String()); msg != "" {
			return fmt.Errorf("process [%s] failed: %w: %s", p.command, err, msg)
		}
		return fmt.Errorf("process [%s] failed: %w", p.command, err)
	}
	return flushErr
}
