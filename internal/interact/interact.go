// Package interact is the Interaction Shim (§4.6): the only place this
// module reads from stdin or writes human-facing progress output. The
// Reconciliation Engine depends on the Shim interface, never on os.Stdin/
// os.Stdout directly, so it can run headlessly under test (§9 "Prompting:
// treat interactive I/O as an injected capability").
package interact

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Decision is a user's answer to a Confirm prompt that offers a orphan-table
// removal menu (§4.5.2): act on just this one, all remaining, none of them,
// or list the affected tables before deciding.
type Decision int

const (
	DecisionNo Decision = iota
	DecisionYes
	DecisionAll
	DecisionNone
	DecisionList
)

func (d Decision) String() string {
	switch d {
	case DecisionYes:
		return "yes"
	case DecisionAll:
		return "all"
	case DecisionNone:
		return "none"
	case DecisionList:
		return "list"
	default:
		return "no"
	}
}

// Level mirrors the handful of severities the Reconciliation Engine reports
// at; it exists so this package's exported surface doesn't force callers to
// import logrus directly.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) logrusLevel() log.Level {
	switch l {
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Shim is the narrow capability the Reconciliation Engine is built against
// for everything that touches a human: confirmation prompts and progress
// reporting.
type Shim interface {
	// Confirm prints prompt and reads one line of stdin, mapping it to a
	// Decision via the menu implied by allowList ("y/n/a/q/l" vs
	// "y/n/a/q"). An empty line counts as "no"; input that doesn't resolve
	// to a listed choice is re-prompted.
	Confirm(prompt string, allowList bool) (Decision, error)

	// Report emits one line of progress or diagnostic output, tagged by
	// section (e.g. the current phase name) and severity.
	Report(section, message string, level Level)
}

// StdShim is the production Shim: stdin for prompts, logrus (with the
// module's ANSI formatter) for reporting.
type StdShim struct {
	in     *bufio.Reader
	logger *log.Logger
}

// NewStdShim builds a Shim reading from in (os.Stdin in production) and
// logging through a fresh logrus.Logger configured with the module's
// terminal-aware formatter.
func NewStdShim(in io.Reader) *StdShim {
	return &StdShim{in: bufio.NewReader(in), logger: newLogger()}
}

func (s *StdShim) Confirm(prompt string, allowList bool) (Decision, error) {
	menu := "[y/n/a/q]"
	if allowList {
		menu = "[y/n/a/q/l]"
	}
	for {
		fmt.Fprintf(os.Stdout, "%s %s ", prompt, menu)
		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			return DecisionNo, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return DecisionYes, nil
		case "n", "no", "":
			return DecisionNo, nil
		case "a", "all":
			return DecisionAll, nil
		case "q", "none", "quit":
			return DecisionNone, nil
		case "l", "list":
			if allowList {
				return DecisionList, nil
			}
		}
		fmt.Fprintln(os.Stdout, "please answer one of", menu)
	}
}

func (s *StdShim) Report(section, message string, level Level) {
	s.logger.WithField("section", section).Log(level.logrusLevel(), message)
}
