package media

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
)

// maxLineBytes caps a single output line; longer lines end line delivery.
const maxLineBytes = 1024 * 1024

// Process is a started command whose combined output is delivered line by line.
type Process interface {
	// Lines yields combined stdout and stderr lines and is closed at EOF.
	// It must be drained before calling Wait.
	Lines() <-chan string
	// Wait blocks until the command exits.
	Wait() error
}

// Runner starts external commands.
type Runner interface {
	Start(ctx context.Context, name string, args ...string) (Process, error)
}

// ExecRunner runs commands with os/exec. Commands are killed when ctx ends.
type ExecRunner struct {
	// Env, when set, replaces the child environment.
	Env []string
}

// Start implements Runner.
func (r ExecRunner) Start(ctx context.Context, name string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- fixed tool names, argument list built internally
	if r.Env != nil {
		cmd.Env = r.Env
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe %s output: %w", name, err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	lines := make(chan string, 16)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		defer close(lines)
		readLines(stdout, lines)
	}()
	return &execProcess{cmd: cmd, lines: lines, drained: drained}, nil
}

// readLines sends each line of r to lines and then consumes whatever the
// scanner gave up on, so the child never blocks writing to a full pipe.
func readLines(r io.Reader, lines chan<- string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	_, _ = io.Copy(io.Discard, r)
}

type execProcess struct {
	cmd     *exec.Cmd
	lines   chan string
	drained chan struct{}
}

func (p *execProcess) Lines() <-chan string {
	return p.lines
}

func (p *execProcess) Wait() error {
	<-p.drained
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w", p.cmd.Path, err)
	}
	return nil
}
