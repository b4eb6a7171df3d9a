// Package protocol classifies the lines a verifier prints during an
// interactive simulation.
//
// # Wire format
//
// In interactive mode the verifier prints, for every step:
//
//	next state=<variable bindings>
//	process=P line=12 statement={x = x+1}     (one per executable transition)
//	choose from=2
//
// and reads the chosen zero-based index (or "q") on stdin. After a choice it
// restates the transition it took:
//
//	chosen transition=1
//	process=P line=12 statement={x = x+1}
//
// # Usage
//
// Classify is pure: it inspects a line against the current ParserState and
// reports what the line is. Apply folds the result into the state:
//
//	c, err := protocol.Classify(line, &st)
//	if err != nil {
//	    // malformed line: report it, c is still usable
//	}
//	st.Apply(c)
//
// Splitting the two keeps the state transitions in one place and lets callers
// inspect a classification before committing to it.
package protocol
