// Package prompt asks the user yes/no questions on the terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/cancelreader"
)

// ErrCanceled reports that the context ended while waiting for an answer.
var ErrCanceled = errors.New("prompt: canceled")

// Confirm writes question followed by " (y/n): " to out and reads one line
// from in. Only "y" or "Y" (surrounding blanks ignored) confirms; EOF
// declines.
//
// When in is a terminal or pipe the read goes through a cancelreader, so a
// canceled ctx (for example on Ctrl-C) unblocks it and Confirm returns
// ErrCanceled. Other readers are read in the calling goroutine once ctx has
// been checked; they cannot be interrupted.
func Confirm(ctx context.Context, in io.Reader, out io.Writer, question string) (bool, error) {
	if _, err := fmt.Fprintf(out, "%s (y/n): ", question); err != nil {
		return false, fmt.Errorf("prompt: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	r := in
	if f, ok := in.(*os.File); ok {
		// regular files cannot be polled and never block
		if cr, err := cancelreader.NewReader(f); err == nil {
			defer cr.Close()
			stop := context.AfterFunc(ctx, func() { cr.Cancel() })
			defer stop()
			r = cr
		}
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		if errors.Is(err, cancelreader.ErrCanceled) {
			return false, fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
		}
		return false, fmt.Errorf("prompt: read answer: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(line), "y"), nil
}
