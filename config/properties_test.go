package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	p := Defaults()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"single quote", p.Bool(KeySingleQuote), false},
		{"select menu", p.Int(KeySelectMenu), 5},
		{"polling delay", p.Millis(KeyPollingDelay), 200 * time.Millisecond},
		{"spin", p.String(KeySpin), "spin"},
		{"interactive options", p.String(KeyInteractiveOptions), "-i -X"},
		{"use pty", p.Bool(KeyUsePTY), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.String(KeySpin) != "spin" {
		t.Errorf("SPIN = %q, want default", p.String(KeySpin))
	}
	if p.FilePath() != path {
		t.Errorf("FilePath = %q, want %q", p.FilePath(), path)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spinrun.yaml")
	content := "SINGLE_QUOTE: true\nSELECT_MENU: 3\nspin: /opt/spin/bin/spin\nEXCLUDED_VARIABLES: \"_pid, _nr_pr\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !p.Bool(KeySingleQuote) {
		t.Error("SINGLE_QUOTE should be true")
	}
	if p.Int(KeySelectMenu) != 3 {
		t.Errorf("SELECT_MENU = %d, want 3", p.Int(KeySelectMenu))
	}
	// Keys are normalized to upper case.
	if p.String(KeySpin) != "/opt/spin/bin/spin" {
		t.Errorf("SPIN = %q", p.String(KeySpin))
	}
	if got := p.List(KeyExcludedVariables); len(got) != 2 || got[0] != "_pid" || got[1] != "_nr_pr" {
		t.Errorf("EXCLUDED_VARIABLES = %v", got)
	}
	// Untouched keys keep their defaults.
	if p.String(KeyPan) != "pan" {
		t.Errorf("PAN = %q, want default", p.String(KeyPan))
	}
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spinrun.toml")
	content := "POLLING_DELAY = 50\nUSE_PTY = true\nPAN_OPTIONS = \"-X -m20000\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Millis(KeyPollingDelay) != 50*time.Millisecond {
		t.Errorf("POLLING_DELAY = %v", p.Millis(KeyPollingDelay))
	}
	if !p.Bool(KeyUsePTY) {
		t.Error("USE_PTY should be true")
	}
	if p.String(KeyPanOptions) != "-X -m20000" {
		t.Errorf("PAN_OPTIONS = %q", p.String(KeyPanOptions))
	}
}

func TestLoad_RejectsNestedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spinrun.yaml")
	if err := os.WriteFile(path, []byte("SPIN:\n  path: spin\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for nested value")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spinrun.yaml")
	if err := os.WriteFile(path, []byte("SPIN: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTypedGetters_FallBackOnMalformed(t *testing.T) {
	p := Defaults()
	p.Set(KeySelectMenu, "many")
	p.Set(KeySingleQuote, "perhaps")

	if p.Int(KeySelectMenu) != 5 {
		t.Errorf("Int should fall back to default, got %d", p.Int(KeySelectMenu))
	}
	if p.Bool(KeySingleQuote) {
		t.Error("Bool should fall back to default false")
	}
	if p.Int("UNKNOWN_KEY") != 0 {
		t.Error("unknown key should read as 0")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	tests := []string{"spinrun.yaml", "spinrun.toml"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sub", name)
			p := Defaults()
			p.SetFilePath(path)
			p.SetInt(KeySelectButton, 240)
			p.Set(KeySpin, "/usr/local/bin/spin")

			if err := p.Save(); err != nil {
				t.Fatalf("Save: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded.Int(KeySelectButton) != 240 {
				t.Errorf("SELECT_BUTTON = %d, want 240", loaded.Int(KeySelectButton))
			}
			if loaded.String(KeySpin) != "/usr/local/bin/spin" {
				t.Errorf("SPIN = %q", loaded.String(KeySpin))
			}
		})
	}
}

func TestSave_NoPath(t *testing.T) {
	if err := Defaults().Save(); err == nil {
		t.Fatal("expected error when saving without a path")
	}
}

func TestKeysSorted(t *testing.T) {
	keys := Defaults().Keys()
	if len(keys) == 0 {
		t.Fatal("expected keys")
	}
	for i := 1; i < len(keys); i++ {
		if strings.Compare(keys[i-1], keys[i]) >= 0 {
			t.Fatalf("keys not sorted: %q before %q", keys[i-1], keys[i])
		}
	}
}

func TestKnown(t *testing.T) {
	p := Defaults()
	if !p.Known(KeyPollingDelay) {
		t.Error("POLLING_DELAY should be known")
	}
	if p.Known("NOT_A_PROPERTY") {
		t.Error("unexpected known key")
	}
}
