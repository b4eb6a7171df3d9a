// Package exec runs external programs. Executors run short commands to
// completion (tool probes); Spawners start a long-running verifier whose
// stdin and merged output the supervisor owns. Both have mocks for tests.
package exec

import (
	"context"
	osexec "os/exec"
	"slices"
	"sync"

	"github.com/zhubert/spinrun/command"
)

// CommandExecutor runs a command to completion.
type CommandExecutor interface {
	// CombinedOutput returns stdout and stderr interleaved.
	CombinedOutput(ctx context.Context, cmd command.Command) ([]byte, error)
	// LookPath resolves a program on PATH.
	LookPath(name string) (string, error)
}

// RealExecutor executes commands using os/exec.
type RealExecutor struct{}

// NewRealExecutor returns a new RealExecutor.
func NewRealExecutor() *RealExecutor {
	return &RealExecutor{}
}

func (e *RealExecutor) prepare(ctx context.Context, cmd command.Command) *osexec.Cmd {
	c := osexec.CommandContext(ctx, cmd.Path, argv(cmd)...)
	c.Dir = cmd.Dir
	return c
}

// CombinedOutput implements CommandExecutor.
func (e *RealExecutor) CombinedOutput(ctx context.Context, cmd command.Command) ([]byte, error) {
	return e.prepare(ctx, cmd).CombinedOutput()
}

// LookPath implements CommandExecutor.
func (e *RealExecutor) LookPath(name string) (string, error) {
	return osexec.LookPath(name)
}

// argv drops the program name from the argument vector.
func argv(cmd command.Command) []string {
	if len(cmd.Args) == 0 {
		return nil
	}
	return cmd.Args[1:]
}

// MockResponse defines the response for a mocked command.
type MockResponse struct {
	Output []byte
	Err    error
}

// CommandMatcher reports whether a rule applies to cmd.
type CommandMatcher func(cmd command.Command) bool

// MockRule pairs a matcher with its response.
type MockRule struct {
	Match    CommandMatcher
	Response MockResponse
}

// MockExecutor returns pre-recorded responses. Rules are tried in the order
// they were added; unmatched commands succeed with no output.
type MockExecutor struct {
	mu    sync.RWMutex
	rules []MockRule
	calls []command.Command
	paths map[string]string
}

// NewMockExecutor creates an empty MockExecutor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{paths: make(map[string]string)}
}

// AddRule adds a matching rule with its response.
func (e *MockExecutor) AddRule(match CommandMatcher, response MockResponse) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, MockRule{Match: match, Response: response})
}

// AddExactMatch matches a program and its full argument list.
func (e *MockExecutor) AddExactMatch(program string, args []string, response MockResponse) {
	e.AddRule(func(cmd command.Command) bool {
		return cmd.Path == program && slices.Equal(argv(cmd), args)
	}, response)
}

// AddProgram matches any invocation of program.
func (e *MockExecutor) AddProgram(program string, response MockResponse) {
	e.AddRule(func(cmd command.Command) bool { return cmd.Path == program }, response)
}

// SetPath makes LookPath resolve name to path.
func (e *MockExecutor) SetPath(name, path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paths[name] = path
}

// GetCalls returns all recorded invocations.
func (e *MockExecutor) GetCalls() []command.Command {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.calls)
}

func (e *MockExecutor) respond(cmd command.Command) MockResponse {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, cmd)
	for _, rule := range e.rules {
		if rule.Match(cmd) {
			return rule.Response
		}
	}
	return MockResponse{}
}

// CombinedOutput implements CommandExecutor.
func (e *MockExecutor) CombinedOutput(_ context.Context, cmd command.Command) ([]byte, error) {
	resp := e.respond(cmd)
	return resp.Output, resp.Err
}

// LookPath implements CommandExecutor.
func (e *MockExecutor) LookPath(name string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if path, ok := e.paths[name]; ok {
		return path, nil
	}
	return "", &osexec.Error{Name: name, Err: osexec.ErrNotFound}
}

var _ CommandExecutor = (*RealExecutor)(nil)
var _ CommandExecutor = (*MockExecutor)(nil)

var defaultExecutorMu sync.RWMutex

// defaultExecutor can be swapped for testing.
var defaultExecutor CommandExecutor = NewRealExecutor()

// GetDefaultExecutor returns the global default executor.
func GetDefaultExecutor() CommandExecutor {
	defaultExecutorMu.RLock()
	defer defaultExecutorMu.RUnlock()
	return defaultExecutor
}

// SetDefaultExecutor sets the global default executor.
func SetDefaultExecutor(e CommandExecutor) {
	defaultExecutorMu.Lock()
	defer defaultExecutorMu.Unlock()
	defaultExecutor = e
}
