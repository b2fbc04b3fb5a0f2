package app

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
)

// TerminalPrompter asks on out and reads one line per question from in.
// Only "y" and "yes" confirm; end of input declines.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *TerminalPrompter) Confirm(question string) (bool, error) {
	_, err := fmt.Fprintf(p.out, "%s [y/N] ", question)
	if err != nil {
		return false, bosherr.WrapError(err, "Writing question")
	}

	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, bosherr.WrapError(err, "Reading answer")
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// YesPrompter answers every question with yes. Used for --yes.
type YesPrompter struct{}

func (YesPrompter) Confirm(string) (bool, error) {
	return true, nil
}
