// Package supervisor runs the verifier: it builds the command line, spawns
// the process in the model's directory, streams its merged output through a
// mode-specific formatter into a sink and, in interactive mode, lets an
// interactive.Session answer the verifier's questions.
//
// At most one run is live per Supervisor. Lifecycle calls (Kill, IsRunning,
// WaitForExit) are safe from any goroutine; the read loop is the only writer
// of the verifier's stdin and the only appender to the output sink.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zhubert/spinrun/command"
	"github.com/zhubert/spinrun/config"
	"github.com/zhubert/spinrun/exec"
	"github.com/zhubert/spinrun/filter"
	"github.com/zhubert/spinrun/interactive"
	"github.com/zhubert/spinrun/logger"
	"github.com/zhubert/spinrun/paths"
	"github.com/zhubert/spinrun/sink"
)

var (
	// ErrNoFileOpen is returned when a run is requested without a model file.
	ErrNoFileOpen = errors.New("no file open")
	// ErrSpawn is returned when the verifier cannot be started.
	ErrSpawn = errors.New("failed to start verifier")
	// ErrAlreadyRunning is returned by Start while a run is live.
	ErrAlreadyRunning = errors.New("verifier already running")
	// ErrNotStarted is returned by WaitForExit before any run was started.
	ErrNotStarted = errors.New("no verifier run started")
	// ErrNoSelector is returned by Start for an interactive run when no
	// Selector is configured.
	ErrNoSelector = errors.New("interactive run needs a selector")
)

// Message sink texts.
const (
	msgOpenFile = "You must open a file first\n"
	msgDone     = "done!\n"
	msgStopped  = "\nSpin process stopped\n"
)

// Mode selects how verifier output is handled.
type Mode int

const (
	// Plain shows every line unchanged.
	Plain Mode = iota
	// Simulation formats random and guided simulation output.
	Simulation
	// Interactive formats simulation output and answers "choose from=" prompts.
	Interactive
	// Verification keeps the summary lines of a verification run.
	Verification
)

func (m Mode) String() string {
	switch m {
	case Plain:
		return "plain"
	case Simulation:
		return "simulation"
	case Interactive:
		return "interactive"
	case Verification:
		return "verification"
	default:
		return "unknown"
	}
}

// Options are the run settings taken from the properties.
type Options struct {
	// Quote groups parameters containing spaces.
	Quote rune
	// PollingDelay bounds how long Kill waits for the read loop to stop
	// before the process is destroyed.
	PollingDelay time.Duration
}

// OptionsFrom reads Options from p.
func OptionsFrom(p *config.Properties) Options {
	return Options{
		Quote:        command.QuoteFor(p.Bool(config.KeySingleQuote)),
		PollingDelay: p.Millis(config.KeyPollingDelay),
	}
}

// Config holds the collaborators of a Supervisor.
type Config struct {
	Spawner  exec.Spawner
	Sink     sink.Sink
	Selector interactive.Selector
	// NewFilter returns a fresh formatter for each run.
	NewFilter func() *filter.Filter
	Options   Options
	Log       *slog.Logger
}

// Request describes one run.
type Request struct {
	Program string
	Params  string
	Mode    Mode
	// Output is the sink that receives formatted output.
	Output sink.ID
	// SourceFile is the model being checked; the verifier runs in its directory.
	SourceFile string
}

// RunOutcome summarizes a finished run.
type RunOutcome struct {
	RunID    string
	Command  string
	ExitCode int
	// Lines is the number of lines read from the verifier.
	Lines int
	// Cancelled is set when the run was killed.
	Cancelled bool
	// Err is the failure that ended the read loop early, if any. It has
	// already been reported to the message sink.
	Err error
}

// Supervisor owns the verifier process.
type Supervisor struct {
	cfg Config
	log *slog.Logger

	mu  sync.Mutex
	run *run
}

// New creates a Supervisor.
func New(cfg Config) *Supervisor {
	if cfg.Spawner == nil {
		cfg.Spawner = exec.PipeSpawner{}
	}
	if cfg.Sink == nil {
		cfg.Sink = sink.Func(func(sink.ID, string) {})
	}
	if cfg.NewFilter == nil {
		cfg.NewFilter = func() *filter.Filter { return filter.New(filter.Settings{}) }
	}
	if cfg.Options.Quote == 0 {
		cfg.Options.Quote = command.QuoteFor(false)
	}
	log := cfg.Log
	if log == nil {
		log = logger.WithComponent("supervisor")
	}
	return &Supervisor{cfg: cfg, log: log}
}

// Start spawns the verifier and starts reading its output. Failures are also
// reported to the message sink. The run is killed when ctx ends.
func (s *Supervisor) Start(ctx context.Context, req Request) error {
	if req.SourceFile == "" {
		s.cfg.Sink.Append(sink.Messages, msgOpenFile)
		return ErrNoFileOpen
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != nil && s.run.alive() {
		return ErrAlreadyRunning
	}
	if req.Mode == Interactive && s.cfg.Selector == nil {
		s.cfg.Sink.Append(sink.Messages, fmt.Sprintf("%v\n", ErrNoSelector))
		return ErrNoSelector
	}

	dir, err := paths.ModelDir(req.SourceFile)
	if err != nil {
		s.cfg.Sink.Append(sink.Messages, fmt.Sprintf("%v\n", err))
		return err
	}
	cmd, err := command.New(req.Program, req.Params, dir, s.cfg.Options.Quote)
	if err != nil {
		s.cfg.Sink.Append(sink.Messages, fmt.Sprintf("%s %s: %v\n", req.Program, req.Params, err))
		return err
	}
	s.cfg.Sink.Append(sink.Messages, cmd.String()+" ... ")

	id := uuid.New().String()
	log := s.log.With("runID", id, "mode", req.Mode.String())

	proc, err := s.cfg.Spawner.Spawn(ctx, cmd)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrSpawn, req.Program, err)
		log.Error("spawn failed", "command", cmd.String(), "error", err)
		s.cfg.Sink.Append(sink.Messages, fmt.Sprintf("\n%v\n", err))
		return err
	}
	log.Info("verifier started", "command", cmd.String(), "dir", dir, "pid", proc.Pid())

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		id:       id,
		req:      req,
		cmd:      cmd,
		proc:     proc,
		filter:   s.cfg.NewFilter(),
		sink:     s.cfg.Sink,
		log:      log,
		ctx:      runCtx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
	}
	if req.Mode == Interactive {
		r.session = interactive.New(interactive.Config{
			Stdin:    proc.Stdin(),
			Kill:     proc.Kill,
			Selector: s.cfg.Selector,
			Filter:   r.filter,
			Emit:     func(text string) { s.cfg.Sink.Append(req.Output, text+"\n") },
			Log:      log.With("component", "interactive"),
		})
		r.session.Start()
	}

	r.group.Go(func() error {
		defer r.cancel()
		s.readLoop(r)
		code, err := proc.Wait()
		r.mu.Lock()
		r.exitCode = code
		r.mu.Unlock()
		if err != nil {
			return fmt.Errorf("wait for verifier: %w", err)
		}
		log.Info("verifier exited", "exitCode", code)
		return nil
	})
	r.group.Go(func() error {
		select {
		case <-ctx.Done():
			log.Info("caller context ended, stopping verifier", "reason", ctx.Err())
			s.stop(r)
		case <-r.loopDone:
		}
		return nil
	})

	s.run = r
	return nil
}

// WaitForExit blocks until the current run's read loop and process have
// finished. The first call appends "done!" to the message sink.
func (s *Supervisor) WaitForExit() (RunOutcome, error) {
	r := s.current()
	if r == nil {
		return RunOutcome{}, ErrNotStarted
	}
	r.finish.Do(func() {
		r.waitErr = r.group.Wait()
		s.cfg.Sink.Append(sink.Messages, msgDone)
	})
	return r.outcome(), r.waitErr
}

// RunAndWait starts a run and waits for it to finish.
func (s *Supervisor) RunAndWait(ctx context.Context, req Request) (RunOutcome, error) {
	if err := s.Start(ctx, req); err != nil {
		return RunOutcome{}, err
	}
	return s.WaitForExit()
}

// Kill stops the current run: a pending selection is abandoned, the read loop
// is given PollingDelay to notice and the process is destroyed. Calling it
// again, or with nothing running, does nothing.
func (s *Supervisor) Kill() {
	if r := s.current(); r != nil && r.alive() {
		s.stop(r)
	}
}

// IsRunning reports whether a read loop is active.
func (s *Supervisor) IsRunning() bool {
	r := s.current()
	return r != nil && r.alive()
}

func (s *Supervisor) current() *run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

func (s *Supervisor) stop(r *run) {
	r.kill.Do(func() {
		r.mu.Lock()
		r.cancelled = true
		r.mu.Unlock()

		r.cancel()
		if r.session != nil {
			r.session.Cancel()
		}
		select {
		case <-r.loopDone:
		case <-time.After(s.cfg.Options.PollingDelay):
			r.log.Warn("read loop did not stop in time", "delay", s.cfg.Options.PollingDelay)
		}
		if err := r.proc.Kill(); err != nil {
			r.log.Warn("failed to kill verifier", "error", err)
		}
		r.log.Info("verifier stopped")
		s.cfg.Sink.Append(sink.Messages, msgStopped)
	})
}

// run is one verifier invocation.
type run struct {
	id      string
	req     Request
	cmd     command.Command
	proc    exec.Process
	filter  *filter.Filter
	session *interactive.Session
	sink    sink.Sink
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	loopDone chan struct{}
	kill     sync.Once
	finish   sync.Once
	waitErr  error

	mu        sync.Mutex
	lines     int
	exitCode  int
	cancelled bool
	err       error
}

func (r *run) alive() bool {
	select {
	case <-r.loopDone:
		return false
	default:
		return true
	}
}

func (r *run) outcome() RunOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RunOutcome{
		RunID:     r.id,
		Command:   r.cmd.String(),
		ExitCode:  r.exitCode,
		Lines:     r.lines,
		Cancelled: r.cancelled,
		Err:       r.err,
	}
}

type readResult struct {
	line string
	err  error
}

// readLine reads one line, giving up when the run is cancelled. The pending
// read finishes once the process is killed.
func (r *run) readLine(reader *bufio.Reader) (string, error) {
	resultCh := make(chan readResult, 1)
	go func() {
		line, err := reader.ReadString('\n')
		resultCh <- readResult{line: line, err: err}
	}()

	select {
	case <-r.ctx.Done():
		return "", r.ctx.Err()
	case result := <-resultCh:
		return result.line, result.err
	}
}

func (s *Supervisor) readLoop(r *run) {
	defer close(r.loopDone)
	reader := bufio.NewReader(r.proc.Stdout())
	draining := false

	for {
		raw, err := r.readLine(reader)
		if raw != "" {
			line := strings.TrimRight(raw, "\r\n")
			r.mu.Lock()
			r.lines++
			r.mu.Unlock()
			logger.Line(r.log, line)

			if !draining && !s.dispatch(r, line) {
				if r.session.State() != interactive.Terminated || r.failed() {
					return
				}
				// The human quit. Nothing more is shown; the rest of the
				// output is discarded so the verifier can exit.
				if err := r.proc.CloseStdin(); err != nil {
					r.log.Debug("closing verifier stdin", "error", err)
				}
				draining = true
			}
		}
		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, io.EOF):
			r.log.Debug("verifier output closed")
		case r.ctx.Err() != nil:
			r.log.Debug("read loop cancelled")
		default:
			r.setErr(fmt.Errorf("%w: %w", interactive.ErrStreamIO, err))
			s.cfg.Sink.Append(sink.Messages, fmt.Sprintf("\nError reading verifier output: %v\n", err))
		}
		return
	}
}

// dispatch handles one line in the run's mode and reports whether the
// session wants more input.
func (s *Supervisor) dispatch(r *run, line string) bool {
	switch r.req.Mode {
	case Interactive:
		keep, err := r.session.HandleLine(r.ctx, line)
		switch {
		case err == nil:
		case errors.Is(err, interactive.ErrCancelled):
			r.log.Info("selection abandoned")
		case keep:
			s.cfg.Sink.Append(sink.Messages, fmt.Sprintf("\n%v\n", err))
		default:
			r.setErr(err)
			s.cfg.Sink.Append(sink.Messages, fmt.Sprintf("\n%v\n", err))
		}
		return keep
	case Simulation:
		r.show(r.filter.Simulation(line))
	case Verification:
		r.show(r.filter.Verification(line))
	default:
		r.show(r.filter.Raw(line))
	}
	return true
}

func (r *run) show(text string, ok bool) {
	if ok {
		r.sink.Append(r.req.Output, text+"\n")
	}
}

func (r *run) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *run) failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err != nil || r.cancelled
}
