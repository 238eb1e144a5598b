// Package ingest decodes the event stream produced by running collection
// programs.
package ingest

import "context"

// Event is one record emitted by a collection program. A nil Value means the
// record carries no value and counts as one occurrence.
type Event struct {
	Program string         `json:"program"`
	Value   *float64       `json:"value,omitempty"`
	Fields  map[string]any `json:"fields"`
}

// Source produces events until ctx is done or the stream ends.
type Source interface {
	Run(ctx context.Context, out chan<- Event) error
}

type channelSource struct {
	in <-chan Event
}

// NewChannel returns a Source forwarding events from an in-process producer.
// It stops when in is closed.
func NewChannel(in <-chan Event) Source {
	return &channelSource{in: in}
}

func (s *channelSource) Run(ctx context.Context, out chan<- Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.in:
			if !ok {
				return nil
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
