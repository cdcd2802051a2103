package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
)

// Test seams for the terminal calls
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// TerminalPrompter asks for missing credentials on the terminal
type TerminalPrompter struct {
	reader *bufio.Reader
	out    io.Writer
	fd     int
}

// Ensure TerminalPrompter implements port.Prompter
var _ port.Prompter = (*TerminalPrompter)(nil)

// NewTerminalPrompter reads from stdin and writes prompts to out
func NewTerminalPrompter(out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{
		reader: bufio.NewReader(os.Stdin),
		out:    out,
		fd:     int(os.Stdin.Fd()),
	}
}

// readLine reads one line; a final line without a newline is accepted
func (p *TerminalPrompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Username reads a single line
func (p *TerminalPrompter) Username() (string, error) {
	if _, err := fmt.Fprint(p.out, "User Name: "); err != nil {
		return "", err
	}
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password reads a password without echo. When stdin is not a terminal it
// reads the next line instead, so a password can be piped in.
func (p *TerminalPrompter) Password() (string, error) {
	if _, err := fmt.Fprint(p.out, "Password: "); err != nil {
		return "", err
	}
	if !isTerminal(p.fd) {
		return p.readLine()
	}

	pw, err := readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
