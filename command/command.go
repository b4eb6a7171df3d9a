// Package command turns a program name and a raw parameter string into the
// argument vector handed to the verifier.
package command

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnterminatedQuote is returned when a quoted token has no closing quote.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// QuoteFor maps the SINGLE_QUOTE property to the quote character.
func QuoteFor(singleQuote bool) rune {
	if singleQuote {
		return '\''
	}
	return '"'
}

// Command is one verifier invocation. It is built once per run.
type Command struct {
	Path string   // program to execute
	Args []string // argument vector; Args[0] is the program name
	Dir  string   // working directory

	params string
}

// New tokenizes params and returns the Command for program.
func New(program, params, dir string, quote rune) (Command, error) {
	args, err := Tokenize(program, params, quote)
	if err != nil {
		return Command{}, err
	}
	return Command{Path: program, Args: args, Dir: dir, params: params}, nil
}

// String echoes the command line the way it was requested.
func (c Command) String() string {
	if c.params == "" {
		return c.Path
	}
	return c.Path + " " + c.params
}

// Tokenize splits params into tokens and prepends program.
//
// Tokens are separated by spaces. A token that starts with quote extends to
// the next quote; the quotes delimit the token and are not part of it. There
// is no escaping. Tokens are substrings of params, so bytes that are not
// valid UTF-8 reach the verifier unchanged.
func Tokenize(program, params string, quote rune) ([]string, error) {
	args := []string{program}
	q := string(quote)
	rest := params
	for {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			return args, nil
		}
		if strings.HasPrefix(rest, q) {
			body := rest[len(q):]
			end := strings.Index(body, q)
			if end < 0 {
				return nil, fmt.Errorf("%w: %s", ErrUnterminatedQuote, strings.TrimSpace(rest))
			}
			args = append(args, body[:end])
			rest = body[end+len(q):]
			continue
		}
		end := strings.IndexByte(rest, ' ')
		if end < 0 {
			end = len(rest)
		}
		args = append(args, rest[:end])
		rest = rest[end:]
	}
}
