package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrNoTerminal is returned when an interactive answer is required but stdin
// is not a terminal.
var ErrNoTerminal = errors.New("interactive confirmation required and no terminal available")

// Secret lazily resolves a secret from an environment variable or by
// prompting the operator without echo. The value is cached after the first
// successful retrieval.
type Secret struct {
	envVar string
	label  string

	once  sync.Once
	value string
	err   error
}

// NewSecret constructs a source that checks envVar before prompting for label.
func NewSecret(envVar, label string) *Secret {
	return &Secret{envVar: strings.TrimSpace(envVar), label: label}
}

// Get returns the cached secret or resolves it on first use. Whitespace-only
// values are rejected.
func (s *Secret) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		if !term.IsTerminal(int(os.Stdin.Fd())) {
			if s.envVar != "" {
				s.err = fmt.Errorf("%s required; set %s or run interactively", s.label, s.envVar)
			} else {
				s.err = fmt.Errorf("%s required and no terminal available", s.label)
			}
			return
		}

		fmt.Fprintf(os.Stderr, "Enter %s: ", s.label)
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			s.err = fmt.Errorf("failed to read %s: %w", s.label, err)
			return
		}
		if strings.TrimSpace(string(bytes)) == "" {
			s.err = fmt.Errorf("%s cannot be empty", s.label)
			return
		}
		s.value = string(bytes)
	})
	return s.value, s.err
}

// Confirmer asks yes/no questions. AssumeYes answers every question without
// reading input.
type Confirmer struct {
	AssumeYes bool

	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewConfirmer reads answers from stdin and writes questions to stderr.
func NewConfirmer(assumeYes bool) *Confirmer {
	return &Confirmer{
		AssumeYes:   assumeYes,
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stderr,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// NewScriptedConfirmer answers from in regardless of whether it is a terminal.
func NewScriptedConfirmer(in io.Reader, out io.Writer) *Confirmer {
	return &Confirmer{in: bufio.NewReader(in), out: out, interactive: true}
}

// Confirm prints question and reports whether the operator answered "y".
func (c *Confirmer) Confirm(question string) (bool, error) {
	if c.AssumeYes {
		return true, nil
	}
	if !c.interactive {
		return false, ErrNoTerminal
	}
	fmt.Fprintf(c.out, "%s [y/n] ", question)
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return false, fmt.Errorf("read answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
