package model

import (
	"strings"
	"time"
)

// Kind distinguishes the two task variants handled by runway.
type Kind string

const (
	KindShell Kind = "shell"
	KindNmap  Kind = "nmap"
)

// Status is the normalized run status of a task. Values originating from the
// engine are translated into this closed set before they leave the engine
// package.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusUnknown   Status = "UNKNOWN"
)

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further status change is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TaskInput is what the pipeline runs. Command is used by the shell variant,
// Target and Args by the nmap variant. It is never mutated once submitted.
type TaskInput struct {
	TaskID  string `json:"task_id"`
	Command string `json:"command,omitempty"`
	Target  string `json:"target,omitempty"`
	Args    string `json:"nmap_args,omitempty"`
}

// TaskRecord is the registry's view of a task started by this process.
type TaskRecord struct {
	TaskID    string    `json:"task_id"`
	Kind      Kind      `json:"kind"`
	Input     TaskInput `json:"input"`
	Label     string    `json:"label"`
	StartedAt time.Time `json:"started_at"`
	Status    Status    `json:"status"`
}

// DefaultLabel returns the label used when the caller does not provide one.
func DefaultLabel(kind Kind, in TaskInput) string {
	switch kind {
	case KindNmap:
		return "Scan of " + in.Target
	default:
		return truncateRunes(strings.TrimSpace(in.Command), 60)
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
