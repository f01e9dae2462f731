package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	return paint(base, statusKindColor(kind), colorize)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func paint(value, color string, colorize bool) string {
	if !colorize || color == "" || value == "" {
		return value
	}
	return color + value + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// verdictLabel renders a tamper verdict; held verdicts are marked so readers
// know no distance was computed for that image.
func verdictLabel(tampered, inferred bool, errText string, colorize bool) string {
	switch {
	case errText != "":
		return paint("error", ansiYellow, colorize)
	case tampered && inferred:
		return paint("TAMPERED", ansiRed, colorize)
	case tampered:
		return paint("TAMPERED (held)", ansiRed, colorize)
	case inferred:
		return paint("clear", ansiGreen, colorize)
	default:
		return paint("clear (held)", ansiGreen, colorize)
	}
}

func formatDistance(distance float64, inferred bool) string {
	if !inferred {
		return "-"
	}
	return strconv.FormatFloat(distance, 'f', 4, 64)
}

func formatThreshold(threshold float64) string {
	return strconv.FormatFloat(threshold, 'f', 2, 64)
}

func dashIfEmpty(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
