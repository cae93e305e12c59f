package main

import (
	"fmt"
	"io"
	"os"

	"github.com/baseplus/skinquiz/internal/saga"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Progress and diagnostics go to stderr so stdout stays pipeable
// (`skinquiz checkout --no-open cart.json | pbcopy`).
var stderr io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printMarked(color, mark, format string, args ...any) {
	fmt.Fprintln(stderr, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printMarked(colorGreen, "✓", format, args...) }
func printError(format string, args ...any) { printMarked(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { printMarked(colorYellow, "⚠", format, args...) }
func printStep(format string, args ...any) { printMarked(colorCyan, "→", format, args...) }

// printStatus prints an aligned "label: value" row for `skinquiz status`.
func printStatus(label string, format string, args ...any) {
	l := colorize(colorBold, fmt.Sprintf("%-15s", label+":"))
	fmt.Fprintf(stderr, "  %s %s\n", l, fmt.Sprintf(format, args...))
}

// outcomeColor picks the colour a saga outcome is shown in.
func outcomeColor(outcome string) string {
	switch saga.Outcome(outcome) {
	case saga.OutcomeRedirecting:
		return colorGreen
	case saga.OutcomeBusy:
		return colorYellow
	default:
		return colorRed
	}
}
