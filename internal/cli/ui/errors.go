package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message describes a diagnostic written to the terminal
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Details     []string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// Format renders m as a block of text.
//
// Example output:
//
//	✗ ENTITY TYPE NOT FOUND: Cannot find entity type 'ordr'.
//
//	   Did you mean: order?
//
//	   → List entity types: ormmeta inspect
func Format(m Message) string {
	var b strings.Builder

	var header, body *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		header, body, symbol = color.New(color.FgYellow, color.Bold), color.New(color.FgYellow), "!"
	case LevelInfo:
		header, body, symbol = color.New(color.FgCyan, color.Bold), color.New(color.FgCyan), "i"
	default:
		header, body, symbol = color.New(color.FgRed, color.Bold), color.New(color.FgRed), "✗"
	}
	accent := color.New(color.FgYellow)
	hint := color.New(color.FgCyan)
	if m.NoColor {
		for _, c := range []*color.Color{header, body, accent, hint} {
			c.DisableColor()
		}
	}

	if m.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	if len(m.Details) > 0 {
		b.WriteString("\n")
		for _, d := range m.Details {
			body.Fprintf(&b, "   - %s\n", d)
		}
	}

	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		accent.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Hints) > 0 {
		b.WriteString("\n")
		for _, h := range m.Hints {
			hint.Fprintf(&b, "   → %s\n", h)
		}
	}

	return b.String()
}

// Write writes the formatted message to w
func Write(w io.Writer, m Message) {
	fmt.Fprint(w, Format(m))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to w
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// EntityTypeNotFound reports an unknown entity type name with close matches
// among known
func EntityTypeNotFound(name string, known []string, noColor bool) string {
	return Format(Message{
		Context:     "entity type not found",
		Problem:     fmt.Sprintf("Cannot find entity type '%s'.", name),
		Suggestions: FindSimilar(name, known, nil),
		Hints:       []string{"List entity types: ormmeta inspect"},
		NoColor:     noColor,
	})
}

// ModelFileError reports a model file that could not be loaded or applied.
// Each error in errs becomes one detail line.
func ModelFileError(path string, errs []error, noColor bool) string {
	details := make([]string, len(errs))
	for i, err := range errs {
		details[i] = err.Error()
	}
	return Format(Message{
		Context: "model file rejected",
		Problem: path,
		Details: details,
		Hints:   []string{"Check the model file: ormmeta validate --help"},
		NoColor: noColor,
	})
}

// ValidationFailed reports a model that failed validation
func ValidationFailed(errs []error, noColor bool) string {
	details := make([]string, len(errs))
	for i, err := range errs {
		details[i] = err.Error()
	}
	return Format(Message{
		Context: "model invalid",
		Problem: fmt.Sprintf("%d problem(s) found.", len(errs)),
		Details: details,
		NoColor: noColor,
	})
}

// Warning creates a warning message
func Warning(message string, noColor bool) string {
	return Format(Message{Level: LevelWarning, Problem: message, NoColor: noColor})
}
