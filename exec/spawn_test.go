package exec

import (
	"bufio"
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/zhubert/spinrun/command"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
}

func TestPipeSpawner_MergedOutputAndStdin(t *testing.T) {
	skipOnWindows(t)

	p, err := PipeSpawner{}.Spawn(context.Background(), sh("echo out; echo err 1>&2; read x; echo got $x; exit 3"))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if p.Pid() <= 0 {
		t.Errorf("Pid = %d", p.Pid())
	}

	scanner := bufio.NewScanner(p.Stdout())
	var lines []string
	for len(lines) < 2 && scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if _, err := io.WriteString(p.Stdin(), "hello\n"); err != nil {
		t.Fatalf("write stdin: %v", err)
	}
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	want := []string{"out", "err", "got hello"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", lines, want)
	}

	code, err := p.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestPipeSpawner_Kill(t *testing.T) {
	skipOnWindows(t)

	p, err := PipeSpawner{}.Spawn(context.Background(), sh("sleep 30"))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := p.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if err := p.Kill(); err != nil {
		t.Errorf("second Kill: %v", err)
	}

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Kill")
	}
}

func TestPipeSpawner_MissingProgram(t *testing.T) {
	cmd := command.Command{Path: "definitely-not-a-real-program-xyz", Args: []string{"definitely-not-a-real-program-xyz"}}
	if _, err := (PipeSpawner{}).Spawn(context.Background(), cmd); err == nil {
		t.Error("expected spawn error")
	}
}

func TestPTYSpawner(t *testing.T) {
	skipOnWindows(t)

	p, err := PTYSpawner{}.Spawn(context.Background(), sh("echo hi"))
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	out, err := io.ReadAll(p.Stdout())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(out), "hi") {
		t.Errorf("output = %q", out)
	}
	if code, err := p.Wait(); err != nil || code != 0 {
		t.Errorf("Wait = %d, %v", code, err)
	}
}

func TestMockProcess(t *testing.T) {
	p := NewMockProcess()

	go func() {
		p.Emit("initial state=0", "choose from=1")
		p.Exit(0)
	}()
	out, err := io.ReadAll(p.Stdout())
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "initial state=0\nchoose from=1\n" {
		t.Errorf("output = %q", out)
	}

	io.WriteString(p.Stdin(), "0\n")
	if got := <-p.Written(); got != "0\n" {
		t.Errorf("written = %q", got)
	}
	if code, _ := p.Wait(); code != 0 {
		t.Errorf("exit code = %d", code)
	}

	p.FailStdin(errors.New("broken pipe"))
	if _, err := io.WriteString(p.Stdin(), "q\n"); err == nil {
		t.Error("expected stdin failure")
	}
	if got := p.Writes(); len(got) != 1 {
		t.Errorf("writes = %q", got)
	}
}

func TestMockProcess_KillEndsOutput(t *testing.T) {
	p := NewMockProcess()
	p.Kill()
	p.Kill()

	if _, err := io.ReadAll(p.Stdout()); err != nil {
		t.Errorf("read after kill: %v", err)
	}
	if !p.Killed() {
		t.Error("Killed should be true")
	}
	if code, _ := p.Wait(); code != -1 {
		t.Errorf("exit code = %d, want -1", code)
	}
	if err := p.Emit("late"); err == nil {
		t.Error("Emit after kill should fail")
	}
}

func TestMockSpawner(t *testing.T) {
	s := NewMockSpawner()
	s.OnSpawn = func(p *MockProcess) { p.Exit(7) }

	cmd := command.Command{Path: "spin", Args: []string{"spin", "-a", "model.pml"}}
	p, err := s.Spawn(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	if code, _ := p.Wait(); code != 7 {
		t.Errorf("exit code = %d", code)
	}
	if got := <-s.Spawned(); got != p {
		t.Error("Spawned should deliver the process")
	}
	if cmds := s.Commands(); len(cmds) != 1 || cmds[0].Path != "spin" {
		t.Errorf("commands = %+v", cmds)
	}

	s.Err = errors.New("no such file")
	if _, err := s.Spawn(context.Background(), cmd); err == nil {
		t.Error("expected spawn error")
	}
}
