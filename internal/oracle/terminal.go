// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// TerminalOracle lets an operator play the oracle: the latest prompt is
// printed and one line is read back as the reply.
type TerminalOracle struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal returns a TerminalOracle reading from in and writing to out.
func NewTerminal(in io.Reader, out io.Writer) *TerminalOracle {
	return &TerminalOracle{in: bufio.NewReader(in), out: out}
}

// Ask implements Oracle. Only the last message is shown; the operator has
// already seen the earlier turns.
func (t *TerminalOracle) Ask(ctx context.Context, transcript []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if n := len(transcript); n > 0 {
		fmt.Fprintf(t.out, "%s\n", transcript[n-1].Content)
	}
	fmt.Fprint(t.out, "> ")

	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading reply: %w", err)
	}
	return strings.TrimSpace(line), nil
}
