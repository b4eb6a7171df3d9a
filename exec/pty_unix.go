//go:build !windows

package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/zhubert/spinrun/command"
)

// PTYSpawner runs the verifier on a pseudo-terminal so that it line-buffers
// its output. The terminal is put in raw mode: no echo of our replies and no
// CR/LF translation.
type PTYSpawner struct{}

// Spawn implements Spawner.
func (PTYSpawner) Spawn(_ context.Context, cmd command.Command) (Process, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}
	defer tty.Close()

	if _, err := term.MakeRaw(int(tty.Fd())); err != nil {
		ptmx.Close()
		return nil, fmt.Errorf("raw mode: %w", err)
	}

	c := osexec.Command(cmd.Path, argv(cmd)...)
	c.Dir = cmd.Dir
	c.Stdin = tty
	c.Stdout = tty
	c.Stderr = tty
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := c.Start(); err != nil {
		ptmx.Close()
		return nil, err
	}

	return &osProcess{
		cmd:    c,
		stdin:  nopCloser{ptmx},
		stdout: ptyReader{ptmx},
	}, nil
}

// ptyReader reports the EIO a master returns once the slave side is gone as
// a plain end of stream.
type ptyReader struct {
	f *os.File
}

func (r ptyReader) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	if errors.Is(err, syscall.EIO) {
		return n, io.EOF
	}
	return n, err
}

func (r ptyReader) Close() error { return r.f.Close() }

// nopCloser keeps CloseStdin from closing the master, which is also the
// output stream.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
