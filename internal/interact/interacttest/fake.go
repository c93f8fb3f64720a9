// Package interacttest provides a scripted interact.Shim double for testing
// the Reconciliation Engine's prompting and reporting behavior without a
// terminal.
package interacttest

import "github.com/divbloxjs/dx-db-sync/internal/interact"

// Report is one recorded call to Shim.Report.
type Report struct {
	Section string
	Message string
	Level   interact.Level
}

// Shim is a scripted interact.Shim: Confirm answers are consumed in order
// from Answers, and every Report call is appended to Reports for assertion.
type Shim struct {
	Answers []interact.Decision
	Prompts []string
	Reports []Report

	// DefaultAnswer is returned once Answers is exhausted, so tests that
	// don't care about a specific prompt don't need to size Answers exactly.
	DefaultAnswer interact.Decision
}

func (s *Shim) Confirm(prompt string, allowList bool) (interact.Decision, error) {
	s.Prompts = append(s.Prompts, prompt)
	if len(s.Answers) == 0 {
		return s.DefaultAnswer, nil
	}
	next := s.Answers[0]
	s.Answers = s.Answers[1:]
	return next, nil
}

func (s *Shim) Report(section, message string, level interact.Level) {
	s.Reports = append(s.Reports, Report{Section: section, Message: message, Level: level})
}
