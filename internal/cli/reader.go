package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

type line struct {
	err  error
	text string
}

// LineReader reads lines from an input that may block, such as a terminal,
// while still honoring context cancellation. One goroutine scans the input;
// a line that arrives after its reader gave up goes to the next ReadLine.
type LineReader struct {
	src   io.Reader
	lines chan line
	start sync.Once
}

// NewLineReader returns a reader over r. Scanning starts on the first ReadLine.
func NewLineReader(r io.Reader) *LineReader {
	if r == nil {
		panic("reader cannot be nil")
	}
	return &LineReader{src: r, lines: make(chan line)}
}

func (r *LineReader) scan() {
	scanner := bufio.NewScanner(r.src)
	for scanner.Scan() {
		r.lines <- line{text: scanner.Text()}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	// Every later read sees the same terminal error.
	for {
		r.lines <- line{err: err}
	}
}

// ReadLine returns the next line with surrounding whitespace trimmed. A final
// line without a newline is returned like any other; after it ReadLine
// returns io.EOF.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}
	r.start.Do(func() { go r.scan() })

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case l := <-r.lines:
		if l.err != nil {
			return "", l.err
		}
		return strings.TrimSpace(l.text), nil
	}
}
