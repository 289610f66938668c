package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"amequeue/internal/api"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func colorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isTerminal(w)
}

func colorLifecycle(w io.Writer, lifecycle string) string {
	if !colorEnabled(w) {
		return lifecycle
	}
	switch lifecycle {
	case "Succeeded":
		return text.FgGreen.Sprint(lifecycle)
	case "Failed":
		return text.FgRed.Sprint(lifecycle)
	case "Aborted", "Aborting":
		return text.FgYellow.Sprint(lifecycle)
	case "Encoding", "Submitting":
		return text.FgCyan.Sprint(lifecycle)
	default:
		return lifecycle
	}
}

func formatProgress(progress *float64) string {
	if progress == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *progress)
}

// formatWhen renders an API timestamp relative to now.
func formatWhen(value string) string {
	ts, ok := api.ParseTime(value)
	if !ok {
		return "-"
	}
	return humanize.Time(ts)
}

func formatDuration(start, end string) string {
	from, ok := api.ParseTime(start)
	if !ok {
		return "-"
	}
	to, ok := api.ParseTime(end)
	if !ok {
		to = time.Now()
	}
	return strings.TrimSpace(humanize.RelTime(from, to, "", ""))
}

func truncate(value string, width int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if width <= 1 || len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

// baseName returns the last element of a local or Windows path.
func baseName(path string) string {
	path = strings.TrimRight(strings.TrimSpace(path), `/\`)
	if path == "" {
		return "-"
	}
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
