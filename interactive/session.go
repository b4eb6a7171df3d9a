// Package interactive drives one interactive simulation: it classifies each
// verifier line, shows what the human should see, asks for a transition when
// the verifier offers a choice and writes the reply to the verifier's stdin.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/zhubert/spinrun/logger"
	"github.com/zhubert/spinrun/protocol"
)

var (
	// ErrCancelled is returned when the session is cancelled while waiting
	// for a selection. It is informational.
	ErrCancelled = errors.New("selection cancelled")
	// ErrStreamIO is returned when the reply cannot be written to the verifier.
	ErrStreamIO = errors.New("verifier stream i/o failed")
	// ErrSelectionFailed is returned when the selector fails or answers with
	// an index outside the offered range.
	ErrSelectionFailed = errors.New("selection failed")
)

// Selector presents labels to a human and returns the chosen 1-based index,
// or 0 to quit. Select must return promptly once ctx is done.
type Selector interface {
	Select(ctx context.Context, prompt string, labels []string) (int, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(ctx context.Context, prompt string, labels []string) (int, error)

// Select calls f.
func (f SelectorFunc) Select(ctx context.Context, prompt string, labels []string) (int, error) {
	return f(ctx, prompt, labels)
}

// SimulationFilter formats simulation lines and tracks variable values.
type SimulationFilter interface {
	Simulation(line string) (string, bool)
	StoreVariables(stateLine string)
	Title() string
	Variables() string
}

// State is the session lifecycle state.
type State int

const (
	Idle State = iota
	AwaitingLine
	AwaitingSelection
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingLine:
		return "awaiting_line"
	case AwaitingSelection:
		return "awaiting_selection"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config holds the collaborators of a Session.
type Config struct {
	// Stdin is the verifier's standard input.
	Stdin io.Writer
	// Kill destroys the verifier after an unrecoverable failure.
	Kill     func() error
	Selector Selector
	Filter   SimulationFilter
	// Emit receives each display line, without a trailing newline.
	Emit func(string)
	Log  *slog.Logger
}

// Session is the per-run interactive state machine. HandleLine must be called
// from a single goroutine; State and Cancel may be called from any.
type Session struct {
	cfg    Config
	log    *slog.Logger
	parser protocol.ParserState

	mu     sync.Mutex
	state  State
	cancel chan struct{}
	once   sync.Once

	// writeMu orders replies against Cancel: no reply starts after Cancel
	// returns.
	writeMu sync.Mutex
}

type selection struct {
	index int
	err   error
}

// New creates an idle session.
func New(cfg Config) *Session {
	log := cfg.Log
	if log == nil {
		log = logger.WithComponent("interactive")
	}
	if cfg.Emit == nil {
		cfg.Emit = func(string) {}
	}
	if cfg.Kill == nil {
		cfg.Kill = func() error { return nil }
	}
	return &Session{
		cfg:    cfg,
		log:    log,
		cancel: make(chan struct{}),
	}
}

// Start moves an idle session to AwaitingLine.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Idle {
		s.state = AwaitingLine
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Terminated {
		s.state = st
	}
}

// Cancel terminates the session. A pending selection wait returns
// ErrCancelled without writing to the verifier. A reply already being written
// completes before Cancel returns.
func (s *Session) Cancel() {
	s.once.Do(func() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		s.mu.Lock()
		s.state = Terminated
		s.mu.Unlock()
		close(s.cancel)
	})
}

func (s *Session) cancelled() bool {
	select {
	case <-s.cancel:
		return true
	default:
		return false
	}
}

// HandleLine processes one verifier line. keepReading is false once the
// session has terminated. A non-nil error with keepReading true is a
// malformed line that was reported and skipped over.
func (s *Session) HandleLine(ctx context.Context, line string) (keepReading bool, err error) {
	s.Start()
	if s.State() == Terminated {
		return false, nil
	}

	c, classifyErr := protocol.Classify(line, &s.parser)
	s.parser.Apply(c)
	if classifyErr != nil {
		s.log.Warn("malformed verifier line", "line", line, "error", classifyErr)
	}

	switch c.Tag {
	case protocol.TagStateHeader, protocol.TagChosenMarker, protocol.TagCandidate:
	case protocol.TagChosenEcho:
		for _, l := range c.Display {
			s.emit(l)
		}
	case protocol.TagChooseFrom:
		return s.choose(ctx)
	default:
		s.emit(line)
	}
	return true, classifyErr
}

func (s *Session) emit(line string) {
	if text, ok := s.cfg.Filter.Simulation(line); ok {
		s.cfg.Emit(text)
	}
}

func (s *Session) choose(ctx context.Context) (bool, error) {
	labels := s.parser.Labels()
	if len(labels) == 0 {
		s.log.Info("no candidates offered, quitting")
		return s.quit()
	}

	s.cfg.Filter.StoreVariables(s.parser.CurrentState)
	prompt := s.cfg.Filter.Title() + "\n" + s.cfg.Filter.Variables()

	s.setState(AwaitingSelection)
	index, err := s.await(ctx, prompt, labels)
	switch {
	case errors.Is(err, ErrCancelled):
		s.log.Info("selection cancelled")
		s.Cancel()
		return false, err
	case err != nil:
		return false, s.fail(fmt.Errorf("%w: %w", ErrSelectionFailed, err))
	case index == 0:
		return s.quit()
	case index < 0 || index > len(labels):
		return false, s.fail(fmt.Errorf("%w: index %d outside 0..%d", ErrSelectionFailed, index, len(labels)))
	}

	s.log.Debug("transition selected", "index", index, "label", labels[index-1])
	if err := s.write(strconv.Itoa(index-1) + "\n"); err != nil {
		return false, err
	}
	s.setState(AwaitingLine)
	return true, nil
}

// await runs the selector on its own goroutine and waits for its answer, the
// caller's context or Cancel, whichever comes first.
func (s *Session) await(ctx context.Context, prompt string, labels []string) (int, error) {
	selCtx, stop := context.WithCancel(ctx)
	defer stop()

	result := make(chan selection, 1)
	go func() {
		index, err := s.cfg.Selector.Select(selCtx, prompt, labels)
		result <- selection{index: index, err: err}
	}()

	select {
	case r := <-result:
		if s.cancelled() {
			return 0, ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return r.index, r.err
	case <-s.cancel:
		return 0, ErrCancelled
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}

func (s *Session) quit() (bool, error) {
	if err := s.write("q\n"); err != nil {
		return false, err
	}
	s.Cancel()
	return false, nil
}

// write sends reply unless the session was cancelled in the meantime.
func (s *Session) write(reply string) error {
	s.writeMu.Lock()
	if s.cancelled() {
		s.writeMu.Unlock()
		s.log.Info("reply dropped, session cancelled", "reply", strings.TrimSpace(reply))
		return ErrCancelled
	}
	_, err := io.WriteString(s.cfg.Stdin, reply)
	s.writeMu.Unlock()
	if err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrStreamIO, err))
	}
	return nil
}

// fail kills the verifier and terminates the session.
func (s *Session) fail(err error) error {
	s.log.Error("interactive session failed", "error", err)
	s.Cancel()
	if killErr := s.cfg.Kill(); killErr != nil {
		s.log.Warn("failed to kill verifier", "error", killErr)
	}
	return err
}
