package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Picker errors.
var (
	ErrNoOptions       = errors.New("nothing to choose from")
	ErrTooManyAttempts = errors.New("too many invalid choices")
)

const defaultPickAttempts = 3

// Picker asks the user to choose one of a fixed list of options.
type Picker struct {
	reader      *LineReader
	writer      io.Writer
	maxAttempts int
}

// NewPicker creates a picker reading answers from r and writing prompts to w.
func NewPicker(r io.Reader, w io.Writer) *Picker {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &Picker{
		reader:      NewLineReader(r),
		writer:      w,
		maxAttempts: defaultPickAttempts,
	}
}

// Choose lists options numbered from 1 and returns the one the user picks,
// either by number or by typing the option itself.
func (p *Picker) Choose(ctx context.Context, label string, options []string) (string, error) {
	if len(options) == 0 {
		return "", ErrNoOptions
	}

	fmt.Fprintln(p.writer, SubtitleStyle.Render(label))
	width := len(strconv.Itoa(len(options)))
	for i, opt := range options {
		fmt.Fprintf(p.writer, "  %*d) %s\n", width, i+1, opt)
	}

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		fmt.Fprint(p.writer, FormatPrompt(label))

		answer, err := p.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}

		if choice, ok := match(answer, options); ok {
			return choice, nil
		}
		fmt.Fprintln(p.writer, FormatWarning(fmt.Sprintf("%q is not one of the options", answer)))
	}

	return "", fmt.Errorf("%w for %s", ErrTooManyAttempts, label)
}

func match(answer string, options []string) (string, bool) {
	if answer == "" {
		return "", false
	}
	for _, opt := range options {
		if opt == answer {
			return opt, true
		}
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	return "", false
}
