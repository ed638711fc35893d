package run

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// Output is the sink for removed paths, written delimiter-joined with no
// trailing delimiter. The mutex keeps writes whole if the policy loops are
// ever dispatched concurrently.
type Output struct {
	w           io.Writer
	flush       func() error
	close       func() error
	delimiter   string
	mu          sync.Mutex
	firstOutput bool
}

// NewOutput opens the sink for path. An empty path discards all output and
// `-` writes to stdout.
func NewOutput(path, delimiter string, unbuffered bool) (*Output, error) {
	o := &Output{
		delimiter:   delimiter,
		firstOutput: true,
		flush:       func() error { return nil },
		close:       func() error { return nil },
	}

	switch path {
	case "":
		o.w = io.Discard

		return o, nil

	case "-":
		o.w = os.Stdout

	default:
		f, err := os.Create(path) //nolint:gosec // G304: Potential file inclusion via variable.
		if err != nil {
			return nil, fmt.Errorf("create output file %s: %w", path, err)
		}

		o.w = f
		o.close = f.Close
	}

	if !unbuffered {
		bw := bufio.NewWriter(o.w)
		o.w = bw
		o.flush = bw.Flush
	}

	return o, nil
}

// Write appends one removed path to the sink.
func (o *Output) Write(path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.firstOutput {
		_, err := io.WriteString(o.w, o.delimiter)
		if err != nil {
			return fmt.Errorf("write output delimiter: %w", err)
		}
	} else {
		o.firstOutput = false
	}

	_, err := io.WriteString(o.w, path)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}

// Close flushes buffered output and releases the sink.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	err := o.flush()
	if err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	err = o.close()
	if err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	return nil
}
