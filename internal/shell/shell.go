package shell

import (
	"fmt"
	"strings"

	"github.com/CZERTAINLY/runway/internal/model"
)

const (
	StdoutPreview = 2000
	StderrPreview = 500

	truncatedMarker = " [truncated]"
)

// Argv returns the argv running command through the given interpreter, so
// pipes, redirects and other shell constructs work.
func Argv(interpreter, command string) (string, []string) {
	if interpreter == "" {
		interpreter = "sh"
	}
	return interpreter, []string{"-c", command}
}

// Format copies the process output through and adds a human readable summary.
func Format(raw model.ExecResult) model.ShellResult {
	parts := []string{fmt.Sprintf("Command exited with code %d.", raw.ExitCode)}

	if strings.TrimSpace(raw.Stdout) != "" {
		parts = append(parts, fmt.Sprintf("\nstdout (%d bytes):\n%s", len(raw.Stdout), preview(raw.Stdout, StdoutPreview)))
	} else {
		parts = append(parts, "\nNo stdout output.")
	}

	if strings.TrimSpace(raw.Stderr) != "" {
		parts = append(parts, fmt.Sprintf("\nstderr (%d bytes):\n%s", len(raw.Stderr), preview(raw.Stderr, StderrPreview)))
	}

	return model.ShellResult{
		Stdout:   raw.Stdout,
		Stderr:   raw.Stderr,
		ExitCode: raw.ExitCode,
		Summary:  strings.Join(parts, "\n"),
	}
}

// preview returns the first n characters of s, marked when s is longer
func preview(s string, n int) string {
	var count int
	for i := range s {
		if count == n {
			return s[:i] + truncatedMarker
		}
		count++
	}
	return s
}
