package sink

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func TestBuffer(t *testing.T) {
	b := NewBuffer()
	b.Append(Output, "a\n")
	b.Append(Output, "b\n")
	b.Append(Messages, "spin -a model.pml ... ")

	if got := b.Lines(Output); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Lines(Output) = %q", got)
	}
	if got := b.Text(Messages); got != "spin -a model.pml ... " {
		t.Errorf("Text(Messages) = %q", got)
	}
	if b.Lines("unknown") != nil {
		t.Error("unknown sink should have no lines")
	}
}

func TestQueue_PreservesOrder(t *testing.T) {
	b := NewBuffer()
	q := NewQueue(b, 4)

	for i := 0; i < 100; i++ {
		q.Append(Output, fmt.Sprintf("%d\n", i))
	}
	q.Close()

	lines := b.Lines(Output)
	if len(lines) != 100 {
		t.Fatalf("expected 100 lines, got %d", len(lines))
	}
	for i, line := range lines {
		if line != fmt.Sprint(i) {
			t.Fatalf("line %d = %q, out of order", i, line)
		}
	}
}

func TestQueue_ConcurrentAppendsAreWhole(t *testing.T) {
	var mu sync.Mutex
	var got []string
	target := Func(func(id ID, text string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, text)
	})
	q := NewQueue(target, 0)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				q.Append(Messages, fmt.Sprintf("writer %d line %d\n", w, i))
			}
		}(w)
	}
	wg.Wait()
	q.Close()

	if len(got) != 100 {
		t.Fatalf("expected 100 appends, got %d", len(got))
	}
	for _, text := range got {
		if !strings.HasPrefix(text, "writer ") || !strings.HasSuffix(text, "\n") {
			t.Errorf("partial append %q", text)
		}
	}
}

func TestQueue_Flush(t *testing.T) {
	b := NewBuffer()
	q := NewQueue(b, 8)
	defer q.Close()

	q.Append(Output, "first\n")
	q.Append(Output, "second\n")
	q.Flush()

	if got := b.Text(Output); got != "first\nsecond\n" {
		t.Errorf("Text after Flush = %q", got)
	}
}

func TestQueue_CloseIdempotentAndDropsLateAppends(t *testing.T) {
	b := NewBuffer()
	q := NewQueue(b, 1)
	q.Append(Messages, "before\n")
	q.Close()
	q.Close()
	q.Append(Messages, "after\n")
	q.Flush()

	if got := b.Text(Messages); got != "before\n" {
		t.Errorf("Text = %q", got)
	}
}

func TestTerminal(t *testing.T) {
	var out, msg bytes.Buffer
	term := NewTerminal(&out, &msg)

	term.Append(Output, "P  12 x = 1\n")
	term.Append(Messages, "\nSpin process stopped\n")

	if out.String() != "P  12 x = 1\n" {
		t.Errorf("out = %q", out.String())
	}
	if !strings.Contains(msg.String(), "Spin process stopped") {
		t.Errorf("msg = %q", msg.String())
	}
	if !strings.HasPrefix(msg.String(), "\n") || !strings.HasSuffix(msg.String(), "\n") {
		t.Errorf("newlines should be kept, msg = %q", msg.String())
	}
}
