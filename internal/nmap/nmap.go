// Package nmap turns nmap XML output into runway's ScanResult and builds the
// argv of an nmap run.
package nmap

import (
	"github.com/CZERTAINLY/runway/internal/runner"
)

// Scanner describes how nmap is started on a worker
type Scanner struct {
	nmap string
}

func NewScanner() Scanner {
	return Scanner{nmap: "nmap"}
}

func (s Scanner) WithNmapBinary(nmap string) Scanner {
	if nmap != "" {
		s.nmap = nmap
	}
	return s
}

// Command returns the runner command scanning target. nmap writes its XML
// report to stdout, the target always comes last. A non-zero exit without any
// output is a failure, nmap often exits non-zero after a partial scan.
func (s Scanner) Command(target string, tokens []string) runner.Command {
	path, args := Argv(s.nmap, tokens, target)
	return runner.Command{
		Path:             path,
		Args:             args,
		FailOnSilentExit: true,
		Note:             "nmap scanning " + target,
	}
}

// Argv returns path and arguments of the nmap invocation
func Argv(binary string, tokens []string, target string) (string, []string) {
	if binary == "" {
		binary = "nmap"
	}
	args := make([]string, 0, len(tokens)+3)
	args = append(args, tokens...)
	args = append(args, "-oX", "-", target)
	return binary, args
}
