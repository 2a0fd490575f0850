package hoist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"cargo-hoist/manifest"
)

// ErrInputClosed is returned by the prompt when input ends before an answer.
var ErrInputClosed = errors.New("input closed before a choice was made")

const promptAttempts = 3

// PromptProvider asks an operator to pick a source on a terminal.
type PromptProvider struct {
	in  *bufio.Reader
	out io.Writer

	title  lipgloss.Style
	number lipgloss.Style
	muted  lipgloss.Style
	errMsg lipgloss.Style
}

func NewPromptProvider(in io.Reader, out io.Writer) *PromptProvider {
	r := lipgloss.NewRenderer(out)
	return &PromptProvider{
		in:     bufio.NewReader(in),
		out:    out,
		title:  r.NewStyle().Bold(true),
		number: r.NewStyle().Foreground(lipgloss.Color("6")),
		muted:  r.NewStyle().Faint(true),
		errMsg: r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// Choose lists the options numbered from 1, with 0 meaning skip. An empty
// answer skips. After three invalid answers the group is skipped.
func (p *PromptProvider) Choose(key GroupKey, options []Option) (int, error) {
	where := ""
	if key.Table != manifest.Regular {
		where = fmt.Sprintf(" in [%s]", key.Table)
	}
	fmt.Fprintln(p.out, p.title.Render(fmt.Sprintf("Dependency `%s`%s has conflicting source specifications:", key.Name, where)))
	for i, o := range options {
		fmt.Fprintf(p.out, "  %s %s %s\n", p.number.Render(strconv.Itoa(i+1)+")"), o.Source, p.muted.Render("["+strings.Join(o.Members, ", ")+"]"))
	}
	fmt.Fprintf(p.out, "  %s %s\n", p.number.Render("0)"), p.muted.Render("Skip hoisting this dependency"))

	for attempt := 0; attempt < promptAttempts; attempt++ {
		fmt.Fprintf(p.out, "Please choose an option for `%s` [0]: ", key.Name)
		line, err := p.in.ReadString('\n')
		answer := strings.TrimSpace(line)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return SkipChoice, err
			}
			if answer == "" {
				fmt.Fprintln(p.out)
				return SkipChoice, ErrInputClosed
			}
		}
		if answer == "" || answer == "0" {
			return SkipChoice, nil
		}
		n, convErr := strconv.Atoi(answer)
		if convErr == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintln(p.out, p.errMsg.Render(fmt.Sprintf("Invalid choice %q: enter a number between 0 and %d.", answer, len(options))))
		if err != nil {
			return SkipChoice, ErrInputClosed
		}
	}
	fmt.Fprintln(p.out, p.muted.Render(fmt.Sprintf("No valid choice for `%s`; skipping.", key.Name)))
	return SkipChoice, nil
}

// IsInteractive reports whether r is a terminal. Readers that are not files,
// such as test input, count as interactive.
func IsInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return true
	}
	return term.IsTerminal(int(f.Fd()))
}
