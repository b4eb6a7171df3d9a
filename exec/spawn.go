package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"sync"

	"github.com/zhubert/spinrun/command"
)

// Process is a running verifier.
type Process interface {
	// Stdin is the verifier's standard input.
	Stdin() io.Writer
	// Stdout yields stdout and stderr merged, in the order written.
	Stdout() io.Reader
	Pid() int
	// Kill destroys the process and releases its output stream. It is safe
	// to call more than once.
	Kill() error
	// Wait blocks until the process exits and returns its exit code. A
	// non-zero exit is not an error.
	Wait() (int, error)
	CloseStdin() error
}

// Spawner starts verifier processes.
type Spawner interface {
	Spawn(ctx context.Context, cmd command.Command) (Process, error)
}

// PipeSpawner connects the verifier through pipes. Stdout and stderr share
// one pipe so their interleaving is preserved.
type PipeSpawner struct{}

// Spawn implements Spawner.
func (PipeSpawner) Spawn(_ context.Context, cmd command.Command) (Process, error) {
	c := osexec.Command(cmd.Path, argv(cmd)...)
	c.Dir = cmd.Dir

	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("output pipe: %w", err)
	}
	c.Stdout = pw
	c.Stderr = pw

	if err := c.Start(); err != nil {
		stdin.Close()
		pr.Close()
		pw.Close()
		return nil, err
	}
	// The child holds its own copy of the write end.
	pw.Close()

	return &osProcess{cmd: c, stdin: stdin, stdout: pr}, nil
}

// osProcess is a started os/exec command.
type osProcess struct {
	cmd    *osexec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	killOnce sync.Once
	killErr  error
	waitOnce sync.Once
	code     int
	waitErr  error
}

func (p *osProcess) Stdin() io.Writer  { return p.stdin }
func (p *osProcess) Stdout() io.Reader { return p.stdout }
func (p *osProcess) Pid() int          { return p.cmd.Process.Pid }

func (p *osProcess) CloseStdin() error { return p.stdin.Close() }

func (p *osProcess) Kill() error {
	p.killOnce.Do(func() {
		err := p.cmd.Process.Kill()
		if err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.killErr = err
		}
		// A grandchild may still hold the output open.
		p.stdout.Close()
	})
	return p.killErr
}

func (p *osProcess) Wait() (int, error) {
	p.waitOnce.Do(func() {
		p.code, p.waitErr = exitCode(p.cmd.Wait())
	})
	return p.code, p.waitErr
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

var _ Spawner = PipeSpawner{}
var _ Spawner = PTYSpawner{}
