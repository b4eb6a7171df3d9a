package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedLine is returned when a line lacks a field its prefix promises.
var ErrMalformedLine = errors.New("malformed line")

// Line prefixes and field tags of the interactive protocol.
const (
	PrefixInitialState = "initial state="
	PrefixNextState    = "next state="
	PrefixChosen       = "chosen transition="
	PrefixProcess      = "process="
	PrefixChooseFrom   = "choose from="

	TagLine      = "line="
	TagStatement = "statement="
)

// Tag identifies what a verifier line is.
type Tag int

const (
	// TagDefault is any line the protocol does not recognize.
	TagDefault Tag = iota
	// TagStateHeader starts a new step; the candidate list is reset.
	TagStateHeader
	// TagChosenMarker announces that the next process line is an echo.
	TagChosenMarker
	// TagCandidate is one executable transition.
	TagCandidate
	// TagChosenEcho restates the transition that was just taken.
	TagChosenEcho
	// TagChooseFrom asks for a selection among the candidates.
	TagChooseFrom
)

func (t Tag) String() string {
	switch t {
	case TagDefault:
		return "default"
	case TagStateHeader:
		return "state_header"
	case TagChosenMarker:
		return "chosen_marker"
	case TagCandidate:
		return "candidate"
	case TagChosenEcho:
		return "chosen_echo"
	case TagChooseFrom:
		return "choose_from"
	default:
		return "unknown"
	}
}

// Candidate is one selectable transition.
type Candidate struct {
	Process   string
	Line      string
	Statement string
	// Raw holds the text after "process=" when the line could not be
	// parsed; Label falls back to it.
	Raw string
}

// Label is the text offered to the human: "process line statement".
func (c Candidate) Label() string {
	if c.Raw != "" {
		return c.Raw
	}
	return c.Process + " " + c.Line + " " + c.Statement
}

// ParserState is the per-run protocol state.
type ParserState struct {
	CurrentState string
	Candidates   []Candidate
	ChosenEcho   bool
}

// Labels returns the candidate labels in arrival order.
func (s *ParserState) Labels() []string {
	labels := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		labels[i] = c.Label()
	}
	return labels
}

// Classification is the result of classifying one line.
type Classification struct {
	Tag  Tag
	Line string

	// Candidate is set for TagCandidate.
	Candidate Candidate
	// Display holds the lines to show for TagChosenEcho: the buffered state
	// header followed by the echoed transition.
	Display []string
}

// Classify reports what line is, given the current state. It does not modify
// st. For a malformed candidate it returns a usable TagCandidate
// classification together with an error wrapping ErrMalformedLine.
func Classify(line string, st *ParserState) (Classification, error) {
	c := Classification{Tag: TagDefault, Line: line}

	switch {
	case strings.HasPrefix(line, PrefixInitialState), strings.HasPrefix(line, PrefixNextState):
		c.Tag = TagStateHeader
	case strings.HasPrefix(line, PrefixChosen):
		c.Tag = TagChosenMarker
	case strings.HasPrefix(line, PrefixProcess) && !st.ChosenEcho:
		c.Tag = TagCandidate
		cand, err := parseCandidate(line)
		c.Candidate = cand
		if err != nil {
			return c, err
		}
	case strings.HasPrefix(line, PrefixProcess):
		c.Tag = TagChosenEcho
		c.Display = []string{st.CurrentState, line}
	case strings.HasPrefix(line, PrefixChooseFrom):
		c.Tag = TagChooseFrom
	}
	return c, nil
}

// Apply folds a classification into the state.
func (s *ParserState) Apply(c Classification) {
	switch c.Tag {
	case TagStateHeader:
		s.CurrentState = c.Line
		s.Candidates = nil
	case TagChosenMarker:
		s.ChosenEcho = true
	case TagCandidate:
		s.Candidates = append(s.Candidates, c.Candidate)
	case TagChosenEcho:
		s.ChosenEcho = false
	}
}

func parseCandidate(line string) (Candidate, error) {
	process, _ := Extract(line, PrefixProcess)
	lineNo, okLine := Extract(line, TagLine)
	stmt, okStmt := ExtractBraces(line, TagStatement)
	if okLine && okStmt {
		return Candidate{Process: process, Line: lineNo, Statement: stmt}, nil
	}

	raw := strings.TrimSpace(strings.TrimPrefix(line, PrefixProcess))
	if raw == "" {
		raw = "?"
	}
	missing := TagLine
	if okLine {
		missing = TagStatement
	}
	return Candidate{Process: process, Line: lineNo, Statement: stmt, Raw: raw},
		fmt.Errorf("%w: %q has no usable %s", ErrMalformedLine, line, missing)
}

// Extract returns the text after tag up to the next space or end of line.
func Extract(line, tag string) (string, bool) {
	_, rest, ok := strings.Cut(line, tag)
	if !ok {
		return "", false
	}
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		rest = rest[:i]
	}
	return rest, true
}

// ExtractBraces returns the text between the first '{' after tag and its
// matching '}'. Nested braces are kept.
func ExtractBraces(line, tag string) (string, bool) {
	_, rest, ok := strings.Cut(line, tag)
	if !ok {
		return "", false
	}
	open := strings.IndexByte(rest, '{')
	if open < 0 {
		return "", false
	}
	depth := 0
	for i := open; i < len(rest); i++ {
		switch rest[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return rest[open+1 : i], true
			}
		}
	}
	return "", false
}
