// Package execlog appends a human-readable record of every run to a log
// sink. Records are written whole, so concurrent runs never interleave.
package execlog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
)

// ErrLogWriteFailed wraps I/O errors from the sink. The run result itself
// is still valid when it is returned.
var ErrLogWriteFailed = errors.New("log write failed")

// Separator opens and closes every record.
var Separator = strings.Repeat("=", 80)

// Logger serializes records onto one sink. Records appear in the order the
// lock is granted.
type Logger struct {
	mu     sync.Mutex
	sink   io.Writer
	closer io.Closer
}

// New logs to sink. The sink should be append-only; Logger never seeks.
func New(sink io.Writer) *Logger {
	return &Logger{sink: sink}
}

// Open logs to the file at path, creating it if needed and appending to
// whatever it already holds.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrLogWriteFailed, path, err)
	}
	return &Logger{sink: f, closer: f}, nil
}

// Close closes a sink opened by Open. It is a no-op for New.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

// LogRun appends the record of result with a single write.
func (l *Logger) LogRun(result *lib.RunResult) error {
	record := Format(result)

	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.sink.Write(record)
	if err == nil && n < len(record) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLogWriteFailed, err)
	}
	return nil
}

// Format renders the record of result.
func Format(result *lib.RunResult) []byte {
	var b bytes.Buffer

	fmt.Fprintln(&b, Separator)
	fmt.Fprintf(&b, "Execution Time: %s\n", result.StartedAt.Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "Run ID: %s\n", result.ID)
	fmt.Fprintf(&b, "Command: %s\n", result.Command.String())
	fmt.Fprintf(&b, "Status: %s\n", result.Status)
	if result.ExitCode != nil {
		fmt.Fprintf(&b, "Exit Code: %d\n", *result.ExitCode)
	} else {
		fmt.Fprintln(&b, "Exit Code: none")
	}
	if result.SpawnError != nil {
		fmt.Fprintf(&b, "Error: %v\n", result.SpawnError)
	}
	fmt.Fprintf(&b, "Finished: %s (%s)\n", result.FinishedAt.Format(time.RFC3339Nano), result.Duration())
	writeSection(&b, "Standard Output", result.Stdout)
	writeSection(&b, "Standard Error", result.Stderr)
	fmt.Fprintln(&b, Separator)

	return b.Bytes()
}

func writeSection(b *bytes.Buffer, title, body string) {
	fmt.Fprintf(b, "--- %s ---\n", title)
	if body == "" {
		fmt.Fprintln(b, "(empty)")
		return
	}
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
}
