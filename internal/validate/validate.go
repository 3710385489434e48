// Package validate rejects malformed or unsafe task input before any process
// is spawned.
//
// The nmap checks are a deny-list: suspicious constructs are rejected rather
// than proven safe. nmap is never run through a shell, its argv is passed as
// a token list, so metacharacters are refused only to keep them out of argv
// token boundaries. The shell variant runs through an interpreter on purpose
// and only rejects blank commands.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/CZERTAINLY/runway/internal/model"

	"github.com/kballard/go-shellquote"
)

var blockedMetacharacters = regexp.MustCompile("[;&|`$(){}<>\n\r]")

// blockedFlags let nmap write arbitrary files, read an attacker controlled
// target list or load scripts and data from elsewhere
var blockedFlags = map[string]struct{}{
	"--script-args": {},
	"-il":           {},
	"-on":           {},
	"-ox":           {},
	"-og":           {},
	"-oa":           {},
	"-os":           {},
	"-om":           {},
	"--datadir":     {},
}

// Command validates input of the shell variant.
func Command(in model.TaskInput) error {
	if strings.TrimSpace(in.Command) == "" {
		return fmt.Errorf("%w: command must not be empty", model.ErrInvalidInput)
	}
	return nil
}

// Scan validates input of the nmap variant and returns the tokenized
// arguments.
func Scan(in model.TaskInput) ([]string, error) {
	if blockedMetacharacters.MatchString(in.Target) {
		return nil, fmt.Errorf("%w: target contains blocked characters: %q", model.ErrInvalidInput, in.Target)
	}
	if blockedMetacharacters.MatchString(in.Args) {
		return nil, fmt.Errorf("%w: arguments contain blocked characters: %q", model.ErrInvalidInput, in.Args)
	}

	tokens, err := SplitArgs(in.Args)
	if err != nil {
		return nil, fmt.Errorf("%w: arguments are not parseable: %v", model.ErrInvalidInput, err)
	}

	for _, token := range tokens {
		if flag, blocked := isBlocked(token); blocked {
			return nil, fmt.Errorf("%w: blocked nmap flag: %q", model.ErrInvalidInput, flag)
		}
	}

	if strings.TrimSpace(in.Target) == "" {
		return nil, fmt.Errorf("%w: target must not be empty", model.ErrInvalidInput)
	}
	return tokens, nil
}

// SplitArgs tokenizes nmap options as shell words. Blank input yields no
// tokens.
func SplitArgs(args string) ([]string, error) {
	if strings.TrimSpace(args) == "" {
		return nil, nil
	}
	return shellquote.Split(args)
}

func isBlocked(token string) (string, bool) {
	canonical, _, _ := strings.Cut(token, "=")
	canonical = strings.ToLower(canonical)
	_, ok := blockedFlags[canonical]
	return canonical, ok
}
