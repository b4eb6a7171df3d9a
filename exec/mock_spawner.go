package exec

import (
	"context"
	"io"
	"slices"
	"sync"

	"github.com/zhubert/spinrun/command"
)

// MockSpawner hands out MockProcesses and records what it was asked to run.
type MockSpawner struct {
	// Err, when set, fails every Spawn.
	Err error
	// OnSpawn, when set, drives each new process from its own goroutine.
	OnSpawn func(p *MockProcess)

	mu       sync.Mutex
	commands []command.Command
	spawned  chan *MockProcess
}

// NewMockSpawner creates a MockSpawner.
func NewMockSpawner() *MockSpawner {
	return &MockSpawner{spawned: make(chan *MockProcess, 16)}
}

// Spawn implements Spawner.
func (s *MockSpawner) Spawn(_ context.Context, cmd command.Command) (Process, error) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	p := NewMockProcess()
	if s.OnSpawn != nil {
		go s.OnSpawn(p)
	}
	select {
	case s.spawned <- p:
	default:
	}
	return p, nil
}

// Spawned delivers each process as it is spawned.
func (s *MockSpawner) Spawned() <-chan *MockProcess {
	return s.spawned
}

// Commands returns every command passed to Spawn.
func (s *MockSpawner) Commands() []command.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.commands)
}

// MockProcess is a scripted verifier. The test plays the verifier's side:
// Emit writes output lines, Writes shows what was sent to stdin and Exit
// ends the process.
type MockProcess struct {
	out     *io.PipeReader
	outW    *io.PipeWriter
	written chan string

	mu       sync.Mutex
	writes   []string
	stdinErr error
	closed   bool
	killed   bool
	code     int
	exited   chan struct{}
	exitOnce sync.Once
}

// NewMockProcess creates a running MockProcess.
func NewMockProcess() *MockProcess {
	r, w := io.Pipe()
	return &MockProcess{
		out:     r,
		outW:    w,
		written: make(chan string, 64),
		exited:  make(chan struct{}),
	}
}

// Emit writes one line of verifier output. It blocks until the line is read.
func (p *MockProcess) Emit(lines ...string) error {
	for _, line := range lines {
		if _, err := io.WriteString(p.outW, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// CloseOutput ends the output stream without ending the process.
func (p *MockProcess) CloseOutput() {
	p.outW.Close()
}

// Exit closes the output and ends the process with code.
func (p *MockProcess) Exit(code int) {
	p.outW.Close()
	p.exitOnce.Do(func() {
		p.mu.Lock()
		p.code = code
		p.mu.Unlock()
		close(p.exited)
	})
}

// FailStdin makes subsequent stdin writes fail with err.
func (p *MockProcess) FailStdin(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stdinErr = err
}

// Writes returns everything written to stdin, one entry per write.
func (p *MockProcess) Writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.writes)
}

// Written delivers each stdin write as it happens.
func (p *MockProcess) Written() <-chan string {
	return p.written
}

// StdinClosed reports whether CloseStdin was called.
func (p *MockProcess) StdinClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Killed reports whether Kill was called.
func (p *MockProcess) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *MockProcess) Stdin() io.Writer  { return mockStdin{p} }
func (p *MockProcess) Stdout() io.Reader { return p.out }
func (p *MockProcess) Pid() int          { return 4242 }

func (p *MockProcess) CloseStdin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *MockProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.Exit(-1)
	return nil
}

func (p *MockProcess) Wait() (int, error) {
	<-p.exited
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code, nil
}

type mockStdin struct {
	p *MockProcess
}

func (w mockStdin) Write(b []byte) (int, error) {
	w.p.mu.Lock()
	if err := w.p.stdinErr; err != nil {
		w.p.mu.Unlock()
		return 0, err
	}
	w.p.writes = append(w.p.writes, string(b))
	w.p.mu.Unlock()
	select {
	case w.p.written <- string(b):
	default:
	}
	return len(b), nil
}

var _ Spawner = (*MockSpawner)(nil)
var _ Process = (*MockProcess)(nil)
