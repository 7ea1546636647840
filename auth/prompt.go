package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrPromptUnavailable is returned by prompters that cannot reach an operator.
var ErrPromptUnavailable = errors.New("auth: second-factor prompt unavailable")

// CodePrompter obtains a one-time second-factor code from the operator.
type CodePrompter interface {
	RequestCode(ctx context.Context) (string, error)
}

// TerminalPrompter asks on Out and reads one line from In.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

// NewTerminalPrompter prompts on stderr so stdout stays reserved for the report.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

// RequestCode blocks until a line is read or ctx is done.
func (p *TerminalPrompter) RequestCode(ctx context.Context) (string, error) {
	fmt.Fprint(p.Out, "\nA verification code was sent to you.\nEnter the code: ")

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("read verification code: %w", r.err)
		}
		return strings.TrimSpace(r.line), nil
	}
}

// RejectPrompter refuses every prompt. Used where no operator is attached.
type RejectPrompter struct{}

func (RejectPrompter) RequestCode(context.Context) (string, error) {
	return "", ErrPromptUnavailable
}
