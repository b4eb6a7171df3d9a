package selector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/zhubert/spinrun/interactive"
)

// Scripted answers from a fixed list of choices and quits once the list is
// used up. It backs non-interactive runs and tests.
type Scripted struct {
	mu      sync.Mutex
	choices []int
	next    int
	asked   [][]string
}

// NewScripted returns a Scripted selector that answers choices in order.
func NewScripted(choices ...int) *Scripted {
	return &Scripted{choices: choices}
}

// ParseScript reads a comma separated list of choices such as "1,2,0".
func ParseScript(s string) (*Scripted, error) {
	var choices []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid choice %q", field)
		}
		choices = append(choices, n)
	}
	return NewScripted(choices...), nil
}

// Select implements interactive.Selector.
func (s *Scripted) Select(ctx context.Context, _ string, labels []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, labels)
	if s.next >= len(s.choices) {
		return 0, nil
	}
	choice := s.choices[s.next]
	s.next++
	return choice, nil
}

// Asked returns the labels offered on each call.
func (s *Scripted) Asked() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.asked...)
}

var _ interactive.Selector = (*Scripted)(nil)
