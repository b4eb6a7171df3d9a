// Package filter formats verifier output for display.
//
// A Filter is created per run and is not safe for concurrent use; the read
// loop that owns the run is its only caller.
package filter

import (
	"regexp"
	"slices"
	"strings"

	"github.com/zhubert/spinrun/config"
	"github.com/zhubert/spinrun/protocol"
)

// Settings controls column widths and exclusions.
type Settings struct {
	ProcessWidth       int
	StatementWidth     int
	VariableWidth      int
	ExcludedVariables  []string
	ExcludedStatements []string
	RawVerification    bool
}

// SettingsFrom reads the filter settings from p.
func SettingsFrom(p *config.Properties) Settings {
	return Settings{
		ProcessWidth:       p.Int(config.KeyProcessWidth),
		StatementWidth:     p.Int(config.KeyStatementWidth),
		VariableWidth:      p.Int(config.KeyVariableWidth),
		ExcludedVariables:  p.List(config.KeyExcludedVariables),
		ExcludedStatements: p.List(config.KeyExcludedStatements),
		RawVerification:    p.Bool(config.KeyRawVerification),
	}
}

var (
	// "  3:	proc  1 (P:1) model.pml:12 (state 4)	[x = (x+1)]"
	stepRe = regexp.MustCompile(`^\s*\d+:\s+proc\s+(\d+)\s+\(([^)]*)\)\s+\S+?:(\d+)\s+\(state\s+\d+\)\s+\[(.*)\]\s*$`)
	// "		x = 1" or "		P(1):y = 2"
	assignRe = regexp.MustCompile(`^\s+([A-Za-z_][\w\[\]\.():]*)\s*=\s*(.*?)\s*$`)
)

// verificationKeep lists the fragments of verifier output worth showing when
// not in raw mode.
var verificationKeep = []string{
	"pan:", "pan1:", "spin:", "errors:", "error", "warning",
	"state-vector", "depth reached", "states, stored", "states, matched",
	"transitions (", "unreached in", "assertion violated", "acceptance cycle",
	"non-progress cycle", "invalid end state", "search not completed", "wrote ",
}

// Filter formats lines and tracks the variable values seen so far.
type Filter struct {
	settings Settings
	names    []string
	values   map[string]string
}

// New returns a Filter using settings.
func New(settings Settings) *Filter {
	return &Filter{settings: settings, values: make(map[string]string)}
}

// Raw passes a line through unchanged.
func (f *Filter) Raw(line string) (string, bool) {
	return line, true
}

// Simulation formats one line of simulation output. The boolean is false when
// the line should not be displayed.
func (f *Filter) Simulation(line string) (string, bool) {
	if strings.TrimSpace(line) == "" {
		return "", false
	}

	switch {
	case strings.HasPrefix(line, protocol.PrefixInitialState), strings.HasPrefix(line, protocol.PrefixNextState):
		f.StoreVariables(line)
		row := strings.TrimRight(f.Variables(), " ")
		return row, strings.TrimSpace(row) != ""
	case strings.HasPrefix(line, protocol.PrefixProcess):
		process, _ := protocol.Extract(line, protocol.PrefixProcess)
		lineNo, _ := protocol.Extract(line, protocol.TagLine)
		stmt, ok := protocol.ExtractBraces(line, protocol.TagStatement)
		if !ok {
			return line, true
		}
		return f.step(process, lineNo, stmt)
	}

	if m := stepRe.FindStringSubmatch(line); m != nil {
		return f.step(m[2], m[3], m[4])
	}
	if m := assignRe.FindStringSubmatch(line); m != nil {
		name, value := m[1], m[2]
		if f.excludedVariable(name) {
			return "", false
		}
		f.set(name, value)
		return strings.TrimRight(pad("", f.settings.ProcessWidth)+pad("", 5)+name+" = "+value, " "), true
	}
	return strings.TrimRight(line, " \t"), true
}

func (f *Filter) step(process, lineNo, stmt string) (string, bool) {
	if f.excludedStatement(stmt) {
		return "", false
	}
	row := pad(process, f.settings.ProcessWidth) + padLeft(lineNo, 4) + " " + pad(stmt, f.settings.StatementWidth)
	return strings.TrimRight(row, " "), true
}

// Verification formats one line of verifier output.
func (f *Filter) Verification(line string) (string, bool) {
	if f.settings.RawVerification {
		return line, true
	}
	lower := strings.ToLower(line)
	for _, keep := range verificationKeep {
		if strings.Contains(lower, keep) {
			return strings.TrimSpace(line), true
		}
	}
	return "", false
}

// StoreVariables records the variable bindings carried by a state header,
// "next state= x = 1, y = 2".
func (f *Filter) StoreVariables(stateLine string) {
	_, bindings, ok := strings.Cut(stateLine, "=")
	if !ok {
		return
	}
	for _, part := range strings.Split(bindings, ",") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if name == "" || f.excludedVariable(name) {
			continue
		}
		f.set(name, value)
	}
}

func (f *Filter) set(name, value string) {
	if _, seen := f.values[name]; !seen {
		f.names = append(f.names, name)
	}
	f.values[name] = value
}

// Title returns the column header for the variable table.
func (f *Filter) Title() string {
	var b strings.Builder
	b.WriteString(pad("Process", f.settings.ProcessWidth))
	b.WriteString(pad("Statement", f.settings.StatementWidth))
	for _, name := range f.names {
		b.WriteString(pad(name, f.settings.VariableWidth))
	}
	return strings.TrimRight(b.String(), " ")
}

// Variables returns the current values aligned under Title.
func (f *Filter) Variables() string {
	var b strings.Builder
	b.WriteString(pad("", f.settings.ProcessWidth))
	b.WriteString(pad("", f.settings.StatementWidth))
	for _, name := range f.names {
		b.WriteString(pad(f.values[name], f.settings.VariableWidth))
	}
	return b.String()
}

func (f *Filter) excludedVariable(name string) bool {
	return slices.ContainsFunc(f.settings.ExcludedVariables, func(ex string) bool {
		return strings.Contains(name, ex)
	})
}

func (f *Filter) excludedStatement(stmt string) bool {
	return slices.ContainsFunc(f.settings.ExcludedStatements, func(ex string) bool {
		return strings.Contains(stmt, ex)
	})
}

// pad left-aligns s in a column of width, always leaving one space.
func pad(s string, width int) string {
	if len(s) >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
