package diag

import (
	"strings"
	"testing"
)

func TestPositionString(t *testing.T) {
	tests := []struct {
		name     string
		pos      Position
		expected string
	}{
		{"with file", Position{File: "app.tova", Line: 10, Column: 5}, "app.tova:10:5"},
		{"without file", Position{Line: 10, Column: 5}, "10:5"},
		{"line 1 column 1", Position{Line: 1, Column: 1}, "1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.String(); got != tt.expected {
				t.Errorf("Position.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSeverityString(t *testing.T) {
	if Error.String() != "error" {
		t.Errorf("Error.String() = %q, want %q", Error.String(), "error")
	}
	if Warning.String() != "warning" {
		t.Errorf("Warning.String() = %q, want %q", Warning.String(), "warning")
	}
}

func TestDiagnosticError(t *testing.T) {
	d := &Diagnostic{
		Pos:      Position{File: "app.tova", Line: 10, Column: 5},
		Phase:    "merge",
		Severity: Error,
		Message:  "duplicate component Header",
	}
	want := "[merge:error] app.tova:10:5: duplicate component Header"
	if got := d.Error(); got != want {
		t.Errorf("Diagnostic.Error() = %q, want %q", got, want)
	}
}

func TestBagAddAndHasErrors(t *testing.T) {
	b := NewBag()
	if b.HasErrors() {
		t.Error("empty Bag should not have errors")
	}

	b.Warnf(Position{Line: 1}, "merge", "shared module %q renamed", "utils")
	if b.HasErrors() {
		t.Error("Bag with only a warning should not report HasErrors")
	}

	b.Errorf(Position{Line: 5, Column: 2}, "scope", "undeclared name %q", "x")
	if !b.HasErrors() {
		t.Error("Bag with an error diagnostic should report HasErrors")
	}
	if len(b.Diagnostics) != 2 {
		t.Fatalf("len(Diagnostics) = %d, want 2", len(b.Diagnostics))
	}
}

func TestBagString(t *testing.T) {
	b := NewBag()
	b.Add(Position{Line: 1, Column: 5}, "scope", Error, "undeclared name x")
	b.Add(Position{Line: 3, Column: 10}, "merge", Warning, "duplicate route")

	result := b.String()
	if !strings.Contains(result, "[scope:error] 1:5: undeclared name x") {
		t.Errorf("String() missing first diagnostic, got: %s", result)
	}
	if !strings.Contains(result, "[merge:warning] 3:10: duplicate route") {
		t.Errorf("String() missing second diagnostic, got: %s", result)
	}
}

func TestBagStringEmpty(t *testing.T) {
	b := NewBag()
	if got := b.String(); got != "" {
		t.Errorf("empty Bag.String() = %q, want %q", got, "")
	}
}
