package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLineSize bounds a single encoded event.
const maxLineSize = 1 << 20

type jsonLinesSource struct {
	r io.Reader
}

// NewJSONLines returns a Source decoding one JSON event per line of r.
// Blank lines are skipped. A malformed line stops the stream with an error
// naming the line. When the context is cancelled while waiting for input,
// r is closed if it implements io.Closer.
func NewJSONLines(r io.Reader) Source {
	return &jsonLinesSource{r: r}
}

func (s *jsonLinesSource) Run(ctx context.Context, out chan<- Event) error {
	lines := make(chan []byte)
	errc := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go s.scan(lines, errc, stop)

	line := 0
	for {
		select {
		case <-ctx.Done():
			s.close()
			return ctx.Err()
		case data, ok := <-lines:
			if !ok {
				if err := <-errc; err != nil {
					return fmt.Errorf("failed to read events: %w", err)
				}
				slog.Debug("event stream ended", "lines", line)
				return nil
			}
			line++

			data = bytes.TrimSpace(data)
			if len(data) == 0 {
				continue
			}

			var ev Event
			if err := json.Unmarshal(data, &ev); err != nil {
				return fmt.Errorf("line %d: invalid event: %w", line, err)
			}
			if ev.Program == "" {
				return fmt.Errorf("line %d: event has no program", line)
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				s.close()
				return ctx.Err()
			}
		}
	}
}

// scan reads lines from the underlying reader until it ends or stop is
// closed. The scan error, if any, is sent on errc before lines is closed.
func (s *jsonLinesSource) scan(lines chan<- []byte, errc chan<- error, stop <-chan struct{}) {
	defer close(lines)

	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		select {
		case lines <- bytes.Clone(scanner.Bytes()):
		case <-stop:
			return
		}
	}
	errc <- scanner.Err()
}

func (s *jsonLinesSource) close() {
	c, ok := s.r.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		slog.Debug("failed to close event reader", "error", err)
	}
}
