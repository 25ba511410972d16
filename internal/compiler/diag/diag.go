// Package diag collects and renders compiler diagnostics: positioned
// messages tagged with the phase that raised them and a severity.
package diag

import "fmt"

// Position is a location in a source file.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Severity distinguishes a fatal error from a warning that still lets the
// build proceed.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one positioned compiler message.
type Diagnostic struct {
	Pos      Position
	Phase    string // "merge", "scope", "lower", "codegen/client", ...
	Severity Severity
	Message  string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("[%s:%s] %s: %s", d.Phase, d.Severity, d.Pos, d.Message)
}

// Bag collects diagnostics raised during a single compilation run.
type Bag struct {
	Diagnostics []*Diagnostic
}

// NewBag returns an empty Bag.
func NewBag() *Bag {
	return &Bag{}
}

// Add appends a diagnostic at the given severity.
func (b *Bag) Add(pos Position, phase string, sev Severity, message string) {
	b.Diagnostics = append(b.Diagnostics, &Diagnostic{Pos: pos, Phase: phase, Severity: sev, Message: message})
}

// Errorf is shorthand for Add with Severity Error.
func (b *Bag) Errorf(pos Position, phase, format string, args ...any) {
	b.Add(pos, phase, Error, fmt.Sprintf(format, args...))
}

// Warnf is shorthand for Add with Severity Warning.
func (b *Bag) Warnf(pos Position, phase, format string, args ...any) {
	b.Add(pos, phase, Warning, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any diagnostic at Severity Error was recorded.
func (b *Bag) HasErrors() bool {
	for _, d := range b.Diagnostics {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// String renders one diagnostic per line, in recorded order.
func (b *Bag) String() string {
	s := ""
	for _, d := range b.Diagnostics {
		s += d.Error() + "\n"
	}
	return s
}
