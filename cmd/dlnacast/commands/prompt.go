package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var errNoChoice = errors.New("no choice made")

// prompter asks the user to pick from numbered menus.
type prompter struct {
	lines <-chan string
	out   io.Writer
}

// newPrompter reads lines from in in the background, so that a pending
// question can be abandoned when the context is canceled.
func newPrompter(in io.Reader, out io.Writer) *prompter {
	lines := make(chan string)
	go func() {
		defer close(lines)

		s := bufio.NewScanner(in)
		for s.Scan() {
			lines <- s.Text()
		}
	}()

	return &prompter{lines: lines, out: out}
}

// choose prints the options and returns the index of the one picked.
func (p *prompter) choose(ctx context.Context, title string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, errNoChoice
	}

	fmt.Fprintln(p.out, title)
	for i, opt := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, opt)
	}

	for {
		fmt.Fprintf(p.out, "Select [1-%d]: ", len(options))

		var line string
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case l, ok := <-p.lines:
			if !ok {
				return -1, errNoChoice
			}
			line = l
		}

		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(options) {
			fmt.Fprintf(p.out, "Invalid choice %q.\n", strings.TrimSpace(line))
			continue
		}

		return n - 1, nil
	}
}
