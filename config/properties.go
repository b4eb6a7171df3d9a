// Package config holds the key-value property store consulted by every run.
//
// Properties are plain strings addressed by upper-case keys, mirroring the
// property files verifier front-ends traditionally use. Typed getters parse on
// read and fall back to the built-in default when a stored value is malformed.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/zhubert/spinrun/paths"
)

// Property keys.
const (
	KeySingleQuote        = "SINGLE_QUOTE"
	KeySelectMenu         = "SELECT_MENU"
	KeyPollingDelay       = "POLLING_DELAY"
	KeySelectButton       = "SELECT_BUTTON"
	KeySelectHeight       = "SELECT_HEIGHT"
	KeySpin               = "SPIN"
	KeyCCompiler          = "C_COMPILER"
	KeyPan                = "PAN"
	KeyCommonOptions      = "COMMON_OPTIONS"
	KeyRandomOptions      = "RANDOM_OPTIONS"
	KeyInteractiveOptions = "INTERACTIVE_OPTIONS"
	KeyCheckOptions       = "CHECK_OPTIONS"
	KeyVerifyOptions      = "VERIFY_OPTIONS"
	KeyCCompilerOptions   = "C_COMPILER_OPTIONS"
	KeyPanOptions         = "PAN_OPTIONS"
	KeyProcessWidth       = "PROCESS_WIDTH"
	KeyStatementWidth     = "STATEMENT_WIDTH"
	KeyVariableWidth      = "VARIABLE_WIDTH"
	KeyExcludedVariables  = "EXCLUDED_VARIABLES"
	KeyExcludedStatements = "EXCLUDED_STATEMENTS"
	KeyRawVerification    = "RAW_VERIFICATION"
	KeyUsePTY             = "USE_PTY"
)

var defaults = map[string]string{
	KeySingleQuote:        "false",
	KeySelectMenu:         "5",
	KeyPollingDelay:       "200",
	KeySelectButton:       "120",
	KeySelectHeight:       "70",
	KeySpin:               "spin",
	KeyCCompiler:          "gcc",
	KeyPan:                "pan",
	KeyCommonOptions:      "-g -l -p -r -s",
	KeyRandomOptions:      "-X",
	KeyInteractiveOptions: "-i -X",
	KeyCheckOptions:       "-a -v",
	KeyVerifyOptions:      "-a",
	KeyCCompilerOptions:   "-o pan pan.c",
	KeyPanOptions:         "-X",
	KeyProcessWidth:       "10",
	KeyStatementWidth:     "24",
	KeyVariableWidth:      "10",
	KeyExcludedVariables:  "",
	KeyExcludedStatements: "",
	KeyRawVerification:    "false",
	KeyUsePTY:             "false",
}

// Properties is a thread-safe string map backed by an optional file.
type Properties struct {
	mu       sync.RWMutex
	values   map[string]string
	filePath string
}

// Defaults returns a property set holding only the built-in defaults.
func Defaults() *Properties {
	values := make(map[string]string, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	return &Properties{values: values}
}

// LoadDefault loads the property file at paths.ConfigFilePath.
func LoadDefault() (*Properties, error) {
	path, err := paths.ConfigFilePath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Load overlays the file at path on the defaults. A missing file yields the
// defaults. Files ending in .toml are parsed as TOML, everything else as YAML.
func Load(path string) (*Properties, error) {
	p := Defaults()
	p.filePath = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read properties: %w", err)
	}

	raw := make(map[string]any)
	if isTOML(path) {
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse properties %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse properties %s: %w", path, err)
		}
	}

	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("property %s must be a scalar", k)
		case nil:
			p.values[strings.ToUpper(k)] = ""
		default:
			p.values[strings.ToUpper(k)] = fmt.Sprint(v)
		}
	}
	return p, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// String returns the raw value for key, or "" when unset.
func (p *Properties) String(key string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values[key]
}

// Bool parses key as a boolean.
func (p *Properties) Bool(key string) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(p.String(key))); err == nil {
		return b
	}
	b, _ := strconv.ParseBool(defaults[key])
	return b
}

// Int parses key as an integer.
func (p *Properties) Int(key string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(p.String(key))); err == nil {
		return n
	}
	n, _ := strconv.Atoi(defaults[key])
	return n
}

// Millis reads key as a count of milliseconds.
func (p *Properties) Millis(key string) time.Duration {
	return time.Duration(p.Int(key)) * time.Millisecond
}

// List splits a comma separated value, dropping empty entries.
func (p *Properties) List(key string) []string {
	var out []string
	for _, part := range strings.Split(p.String(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Set stores value under key.
func (p *Properties) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}

// SetInt stores an integer value under key.
func (p *Properties) SetInt(key string, value int) {
	p.Set(key, strconv.Itoa(value))
}

// Known reports whether key is a built-in property.
func (p *Properties) Known(key string) bool {
	_, ok := defaults[key]
	return ok
}

// Keys returns every key in sorted order.
func (p *Properties) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FilePath returns the file Save writes to.
func (p *Properties) FilePath() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filePath
}

// SetFilePath sets the file Save writes to (for testing).
func (p *Properties) SetFilePath(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filePath = path
}

// Save writes the properties to disk. Concurrent savers from other spinrun
// processes are serialized through a lock file next to the property file.
func (p *Properties) Save() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.filePath == "" {
		return fmt.Errorf("properties have no file path")
	}
	if err := os.MkdirAll(filepath.Dir(p.filePath), 0755); err != nil {
		return err
	}

	lock := flock.New(p.filePath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock properties: %w", err)
	}
	defer lock.Unlock()

	var data []byte
	if isTOML(p.filePath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(p.values); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		out, err := yaml.Marshal(p.values)
		if err != nil {
			return err
		}
		data = out
	}

	return os.WriteFile(p.filePath, data, 0644)
}
