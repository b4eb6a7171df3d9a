// Package sink defines where display text goes.
//
// A run writes to two append-only targets: the message sink (command echo,
// lifecycle markers, errors) and an output sink chosen per run. Appends come
// from the read loop and from lifecycle calls on other goroutines, so every
// Sink handed to the supervisor must be safe for concurrent use. Queue makes
// any Sink safe by funnelling appends through one writer goroutine.
package sink

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ID names an output sink.
type ID string

const (
	// Messages receives command echoes, lifecycle markers and errors.
	Messages ID = "messages"
	// Output receives formatted verifier output.
	Output ID = "output"
)

// Sink appends text to a named target.
type Sink interface {
	Append(id ID, text string)
}

// Func adapts a function to Sink.
type Func func(id ID, text string)

// Append calls f.
func (f Func) Append(id ID, text string) { f(id, text) }

// Buffer collects appended text in memory.
type Buffer struct {
	mu   sync.Mutex
	text map[ID]*strings.Builder
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{text: make(map[ID]*strings.Builder)}
}

// Append implements Sink.
func (b *Buffer) Append(id ID, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sb, ok := b.text[id]
	if !ok {
		sb = &strings.Builder{}
		b.text[id] = sb
	}
	sb.WriteString(text)
}

// Text returns everything appended to id.
func (b *Buffer) Text(id ID) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sb, ok := b.text[id]; ok {
		return sb.String()
	}
	return ""
}

// Lines returns the text of id split into lines, without a trailing empty one.
func (b *Buffer) Lines(id ID) []string {
	text := strings.TrimSuffix(b.Text(id), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

type entry struct {
	id      ID
	text    string
	flushed chan struct{}
}

// Queue serializes appends to a target through a single writer goroutine.
// Appends are delivered in the order Append was called.
type Queue struct {
	target Sink
	ch     chan entry
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts the writer goroutine for target.
func NewQueue(target Sink, size int) *Queue {
	q := &Queue{
		target: target,
		ch:     make(chan entry, size),
		done:   make(chan struct{}),
	}
	go q.drain()
	return q
}

func (q *Queue) drain() {
	defer close(q.done)
	for e := range q.ch {
		if e.flushed != nil {
			close(e.flushed)
			continue
		}
		q.target.Append(e.id, e.text)
	}
}

// Append enqueues text. Appends after Close are dropped.
func (q *Queue) Append(id ID, text string) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	q.ch <- entry{id: id, text: text}
}

// Flush blocks until every earlier Append has reached the target.
func (q *Queue) Flush() {
	flushed := make(chan struct{})
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return
	}
	q.ch <- entry{flushed: flushed}
	q.mu.RUnlock()
	<-flushed
}

// Close flushes pending appends and stops the writer. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
}

var messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

// Terminal writes the output sink to out and the message sink, dimmed, to msg.
// It is not safe for concurrent use; wrap it in a Queue.
type Terminal struct {
	out io.Writer
	msg io.Writer
}

// NewTerminal returns a Terminal sink.
func NewTerminal(out, msg io.Writer) *Terminal {
	return &Terminal{out: out, msg: msg}
}

// Append implements Sink.
func (t *Terminal) Append(id ID, text string) {
	if id != Messages {
		io.WriteString(t.out, text)
		return
	}
	parts := strings.Split(text, "\n")
	for i, part := range parts {
		if part != "" {
			part = messageStyle.Render(part)
		}
		parts[i] = part
	}
	io.WriteString(t.msg, strings.Join(parts, "\n"))
}
